package domain

import (
	"regexp"
	"strings"
)

var (
	slugStrip  = regexp.MustCompile(`[^a-z0-9\s-]+`)
	slugSpaces = regexp.MustCompile(`\s+`)
	slugDashes = regexp.MustCompile(`-{2,}`)
)

// DeriveSlug turns a display name into a URL-safe slug.
//
//	"Health & Fitness!" -> "health-fitness"
func DeriveSlug(name string) string {
	s := strings.ToLower(name)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSpaces.ReplaceAllString(s, "-")
	s = slugDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// ValidSlug reports whether s is already in derived form.
func ValidSlug(s string) bool { return s != "" && DeriveSlug(s) == s }
