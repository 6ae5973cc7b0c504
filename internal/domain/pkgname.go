package domain

import (
	"net/url"
	"regexp"
	"strings"
)

var packageSegment = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// MaxPackageLength matches the longest app name, since imported apps are named after
// their package.
const MaxPackageLength = 120

// ValidPackage checks the reverse-domain shape of an application id, e.g. com.example.app.
func ValidPackage(pkg string) bool {
	if len(pkg) > MaxPackageLength {
		return false
	}
	parts := strings.Split(pkg, ".")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts {
		if !packageSegment.MatchString(p) {
			return false
		}
	}
	return true
}

func DefaultPackageURL(pkg string) string {
	return "https://play.google.com/store/apps/details?id=" + url.QueryEscape(pkg)
}
