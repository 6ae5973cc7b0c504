package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize(t *testing.T) {
	roles := []Role{RoleEditor, RoleAdmin, RoleSuperAdmin}
	for _, have := range roles {
		for _, need := range roles {
			assert.Equal(t, have.Level() >= need.Level(), Authorize(have, need), "%s vs %s", have, need)
		}
	}
	assert.False(t, Authorize(RoleEditor, RoleSuperAdmin))
	assert.True(t, Authorize(RoleSuperAdmin, RoleEditor))
	assert.False(t, Authorize(Role("guest"), RoleEditor))
}

func TestParseRole(t *testing.T) {
	r, ok := ParseRole("superadmin")
	assert.True(t, ok)
	assert.Equal(t, RoleSuperAdmin, r)

	_, ok = ParseRole("owner")
	assert.False(t, ok)
}

func TestStatusToggle(t *testing.T) {
	assert.Equal(t, StatusInactive, StatusActive.Toggled())
	assert.Equal(t, StatusActive, StatusInactive.Toggled())
	assert.Equal(t, ActionEnable, ToggleAction(StatusActive))
	assert.Equal(t, ActionDisable, ToggleAction(StatusInactive))
}
