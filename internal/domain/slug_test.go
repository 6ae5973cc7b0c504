package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Health & Fitness!", "health-fitness"},
		{"Productivity", "productivity"},
		{"  Hello   World  ", "hello-world"},
		{"foo---bar", "foo-bar"},
		{"-leading and trailing-", "leading-and-trailing"},
		{"tabs\tand\nnewlines", "tabs-and-newlines"},
		{"a - - b", "a-b"},
		{"Ünïcödé Apps", "ncd-apps"},
		{"!!!", ""},
		{"", ""},
		{"123 Games", "123-games"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveSlug(tt.input))
		})
	}
}

func TestDeriveSlug_Idempotent(t *testing.T) {
	inputs := []string{
		"Health & Fitness!", "  --A--B--  ", "x\t\ty", "Über Cool_Name", "already-a-slug", "UPPER case",
	}
	for _, in := range inputs {
		once := DeriveSlug(in)
		assert.Equal(t, once, DeriveSlug(once), in)
		assert.Regexp(t, `^([a-z0-9]+(-[a-z0-9]+)*)?$`, once)
	}
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("health-fitness"))
	assert.False(t, ValidSlug("Health"))
	assert.False(t, ValidSlug("a--b"))
	assert.False(t, ValidSlug(""))
}

func TestValidPackage(t *testing.T) {
	valid := []string{"com.a.b", "com.taskmaster.pro", "org.example_app.v2", "a.b"}
	invalid := []string{"", "bad pkg", "com", "com..b", ".com.b", "com.b.", "com.ex-ample.app", "com.a b.c"}
	for _, p := range valid {
		assert.True(t, ValidPackage(p), p)
	}
	for _, p := range invalid {
		assert.False(t, ValidPackage(p), p)
	}
}

func TestValidPackage_LengthCap(t *testing.T) {
	longest := "com." + strings.Repeat("a", MaxPackageLength-4)
	require.Len(t, longest, MaxPackageLength)
	assert.True(t, ValidPackage(longest))
	assert.False(t, ValidPackage(longest+"b"))
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" Tasks", "productivity", "tasks", "", "Collaboration"})
	assert.Equal(t, []string{"collaboration", "productivity", "tasks"}, got)
	assert.Empty(t, NormalizeTags(nil))
}
