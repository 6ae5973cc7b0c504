package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	err := Validation("name", "is required")
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "name: is required", err.Error())

	wrapped := fmt.Errorf("create category: %w", Conflict("slug taken"))
	assert.True(t, errors.Is(wrapped, ErrConflict))
	assert.Equal(t, KindConflict, KindOf(wrapped))

	nf := NotFound(EntityApp, "42")
	assert.True(t, errors.Is(nf, ErrNotFound))
	assert.Contains(t, nf.Error(), `app "42" not found`)

	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
}

func TestSnapshotClone(t *testing.T) {
	s := SnapshotOfApp(App{Name: "A", Tags: []string{"x"}})
	c := s.Clone()
	c.App.Tags[0] = "y"
	c.App.Name = "B"
	assert.Equal(t, "x", s.App.Tags[0])
	assert.Equal(t, "A", s.App.Name)
	assert.Nil(t, (*Snapshot)(nil).Clone())
}
