package domain

import (
	"sort"
	"strings"
	"time"
)

type App struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Package     string    `json:"package"`
	PackageURL  string    `json:"packageUrl"`
	Icon        string    `json:"icon,omitempty"`
	Description string    `json:"description,omitempty"`
	CategoryID  string    `json:"categoryId"`
	Tags        []string  `json:"tags"`
	Source      Source    `json:"source"`
	Status      Status    `json:"status"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	CreatedBy   string    `json:"createdBy"`
}

type CreateAppInput struct {
	Name        string   `json:"name" binding:"required,max=120"`
	Package     string   `json:"package" binding:"required,pkgname"`
	PackageURL  string   `json:"packageUrl" binding:"omitempty,url"`
	Icon        string   `json:"icon"`
	Description string   `json:"description" binding:"max=1000"`
	CategoryID  string   `json:"categoryId" binding:"required"`
	Tags        []string `json:"tags"`
	Source      Source   `json:"source" binding:"omitempty,oneof=manual api import"`
	Status      *Status  `json:"status" binding:"omitempty,oneof=active inactive"`
}

// UpdateAppInput is a patch. Source is deliberately absent: provenance never changes.
type UpdateAppInput struct {
	Name        *string   `json:"name" binding:"omitempty,max=120"`
	Package     *string   `json:"package" binding:"omitempty,pkgname"`
	PackageURL  *string   `json:"packageUrl" binding:"omitempty,url"`
	Icon        *string   `json:"icon"`
	Description *string   `json:"description" binding:"omitempty,max=1000"`
	CategoryID  *string   `json:"categoryId"`
	Tags        *[]string `json:"tags"`
	Status      *Status   `json:"status" binding:"omitempty,oneof=active inactive"`
	Version     int64     `json:"version"`
}

// NormalizeTags treats tags as a set: trimmed, lower-cased, de-duplicated and sorted.
func NormalizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
