package domain

import "time"

// AuditEntry is immutable once recorded.
type AuditEntry struct {
	ID         string     `json:"id"`
	Seq        uint64     `json:"-"`
	UserID     string     `json:"userId"`
	UserName   string     `json:"userName"`
	Action     Action     `json:"action"`
	EntityType EntityType `json:"entityType"`
	EntityID   string     `json:"entityId"`
	EntityName string     `json:"entityName"`
	Before     *Snapshot  `json:"beforeSnapshot,omitempty"`
	After      *Snapshot  `json:"afterSnapshot,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	IPAddress  string     `json:"ipAddress,omitempty"`
}

// Snapshot is a tagged union keyed by Type; exactly one variant is set.
type Snapshot struct {
	Type     EntityType        `json:"type"`
	Category *CategorySnapshot `json:"category,omitempty"`
	App      *AppSnapshot      `json:"app,omitempty"`
	User     *UserSnapshot     `json:"user,omitempty"`
	Import   *ImportSnapshot   `json:"import,omitempty"`
}

type CategorySnapshot struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Status      Status `json:"status"`
}

type AppSnapshot struct {
	Name        string   `json:"name"`
	Package     string   `json:"package"`
	PackageURL  string   `json:"packageUrl"`
	Icon        string   `json:"icon,omitempty"`
	Description string   `json:"description,omitempty"`
	CategoryID  string   `json:"categoryId"`
	Tags        []string `json:"tags"`
	Source      Source   `json:"source"`
	Status      Status   `json:"status"`
}

// UserSnapshot never carries credentials.
type UserSnapshot struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	Status Status `json:"status"`
}

// ImportSnapshot summarises one committed import. Categories the import created have no
// audit entries of their own; CategoriesCreated counts them.
type ImportSnapshot struct {
	TotalProcessed    int  `json:"totalProcessed"`
	Created           int  `json:"created"`
	Updated           int  `json:"updated"`
	Skipped           int  `json:"skipped"`
	Errors            int  `json:"errors"`
	CategoriesCreated int  `json:"categoriesCreated"`
	DryRun            bool `json:"dryRun"`
}

func SnapshotOfCategory(c Category) *Snapshot {
	return &Snapshot{Type: EntityCategory, Category: &CategorySnapshot{
		Name: c.Name, Slug: c.Slug, Description: c.Description, Status: c.Status,
	}}
}

func SnapshotOfApp(a App) *Snapshot {
	return &Snapshot{Type: EntityApp, App: &AppSnapshot{
		Name: a.Name, Package: a.Package, PackageURL: a.PackageURL, Icon: a.Icon,
		Description: a.Description, CategoryID: a.CategoryID,
		Tags: append([]string(nil), a.Tags...), Source: a.Source, Status: a.Status,
	}}
}

func SnapshotOfUser(u User) *Snapshot {
	return &Snapshot{Type: EntityUser, User: &UserSnapshot{
		Name: u.Name, Email: u.Email, Role: u.Role, Status: u.Status,
	}}
}

func SnapshotOfImport(r ImportResult, categoriesCreated int, dryRun bool) *Snapshot {
	return &Snapshot{Type: EntityApp, Import: &ImportSnapshot{
		TotalProcessed: r.TotalProcessed, Created: r.Created, Updated: r.Updated,
		Skipped: r.Skipped, Errors: len(r.Errors), CategoriesCreated: categoriesCreated, DryRun: dryRun,
	}}
}

// Clone deep-copies the snapshot so stored entries cannot be mutated through it.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{Type: s.Type}
	if s.Category != nil {
		c := *s.Category
		out.Category = &c
	}
	if s.App != nil {
		a := *s.App
		a.Tags = append([]string(nil), s.App.Tags...)
		out.App = &a
	}
	if s.User != nil {
		u := *s.User
		out.User = &u
	}
	if s.Import != nil {
		i := *s.Import
		out.Import = &i
	}
	return out
}

// Clone returns a copy sharing nothing mutable with e.
func (e AuditEntry) Clone() AuditEntry {
	e.Before = e.Before.Clone()
	e.After = e.After.Clone()
	return e
}
