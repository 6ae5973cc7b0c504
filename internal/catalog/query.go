package catalog

import (
	"sort"
	"strings"
	"time"

	"catalog-admin/internal/domain"
)

type CategoryFilter struct {
	Search string
	Status domain.Status
	Offset int
	Limit  int
}

type AppFilter struct {
	Search     string
	Status     domain.Status
	Source     domain.Source
	CategoryID string
	Offset     int
	Limit      int
}

type UserFilter struct {
	Search string
	Role   domain.Role
	Status domain.Status
	Offset int
	Limit  int
}

type Count struct {
	Total    int `json:"total"`
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
}

func (c *Count) add(s domain.Status) {
	c.Total++
	if s == domain.StatusActive {
		c.Active++
	} else {
		c.Inactive++
	}
}

type Stats struct {
	Categories   Count                 `json:"categories"`
	Apps         Count                 `json:"apps"`
	Users        Count                 `json:"users"`
	AppsBySource map[domain.Source]int `json:"appsBySource"`
}

func (s *Store) GetCategory(id string) (domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cats[id]
	if !ok {
		return domain.Category{}, domain.NotFound(domain.EntityCategory, id)
	}
	return c, nil
}

func (s *Store) GetApp(id string) (domain.App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[id]
	if !ok {
		return domain.App{}, domain.NotFound(domain.EntityApp, id)
	}
	return cloneApp(a), nil
}

func (s *Store) GetUser(id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.NotFound(domain.EntityUser, id)
	}
	return u, nil
}

// FindUserByEmail matches case-insensitively.
func (s *Store) FindUserByEmail(email string) (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domain.User{}, false
	}
	return s.users[id], true
}

// ListCategories searches name and slug.
func (s *Store) ListCategories(f CategoryFilter) ([]domain.Category, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]domain.Category, 0, len(s.cats))
	for _, c := range s.cats {
		if f.Status != "" && c.Status != f.Status {
			continue
		}
		if q != "" && !contains(q, c.Name, c.Slug) {
			continue
		}
		out = append(out, c)
	}
	sortNewest(out, func(c domain.Category) (time.Time, string) { return c.CreatedAt, c.ID })
	return page(out, f.Offset, f.Limit), len(out)
}

// ListApps searches name, package and the owning category's name.
func (s *Store) ListApps(f AppFilter) ([]domain.App, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]domain.App, 0, len(s.apps))
	for _, a := range s.apps {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.Source != "" && a.Source != f.Source {
			continue
		}
		if f.CategoryID != "" && a.CategoryID != f.CategoryID {
			continue
		}
		if q != "" && !contains(q, a.Name, a.Package, s.cats[a.CategoryID].Name) {
			continue
		}
		out = append(out, cloneApp(a))
	}
	sortNewest(out, func(a domain.App) (time.Time, string) { return a.CreatedAt, a.ID })
	return page(out, f.Offset, f.Limit), len(out)
}

func (s *Store) ListUsers(f UserFilter) ([]domain.User, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if q != "" && !contains(q, u.Name, u.Email) {
			continue
		}
		out = append(out, u)
	}
	sortNewest(out, func(u domain.User) (time.Time, string) { return u.CreatedAt, u.ID })
	return page(out, f.Offset, f.Limit), len(out)
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{AppsBySource: map[domain.Source]int{
		domain.SourceManual: 0, domain.SourceAPI: 0, domain.SourceImport: 0,
	}}
	for _, c := range s.cats {
		st.Categories.add(c.Status)
	}
	for _, a := range s.apps {
		st.Apps.add(a.Status)
		st.AppsBySource[a.Source]++
	}
	for _, u := range s.users {
		st.Users.add(u.Status)
	}
	return st
}

func contains(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func sortNewest[T any](xs []T, key func(T) (time.Time, string)) {
	sort.Slice(xs, func(i, j int) bool {
		ti, idi := key(xs[i])
		tj, idj := key(xs[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi < idj
	})
}

func page[T any](xs []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(xs) {
		return xs[:0]
	}
	xs = xs[offset:]
	if limit > 0 && limit < len(xs) {
		xs = xs[:limit]
	}
	return xs
}
