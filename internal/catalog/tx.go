package catalog

import (
	"fmt"
	"net/mail"
	"sort"
	"strings"
	"time"

	"catalog-admin/internal/domain"
)

type DeleteOptions struct {
	// Cascade deletes the category's apps too. Without it, deleting a category that
	// still has apps is a conflict.
	Cascade bool
}

// Tx stages changes on top of the committed store. A nil entry in an overlay map marks a
// deletion; an empty string in an index overlay marks a released key.
type Tx struct {
	s     *Store
	actor domain.Actor
	now   time.Time

	cats  map[string]*domain.Category
	apps  map[string]*domain.App
	users map[string]*domain.User

	slugs  map[string]string
	pkgs   map[string]string
	emails map[string]string

	entries []domain.AuditEntry
}

func (s *Store) begin(actor domain.Actor) *Tx {
	return &Tx{
		s:      s,
		actor:  actor,
		now:    s.now(),
		cats:   map[string]*domain.Category{},
		apps:   map[string]*domain.App{},
		users:  map[string]*domain.User{},
		slugs:  map[string]string{},
		pkgs:   map[string]string{},
		emails: map[string]string{},
	}
}

func (tx *Tx) Actor() domain.Actor { return tx.actor }

// Entries returns the audit entries staged so far.
func (tx *Tx) Entries() []domain.AuditEntry {
	out := make([]domain.AuditEntry, len(tx.entries))
	for i, e := range tx.entries {
		out[i] = e.Clone()
	}
	return out
}

// Record stages an extra audit entry, e.g. an import summary.
func (tx *Tx) Record(action domain.Action, et domain.EntityType, id, name string, before, after *domain.Snapshot) domain.AuditEntry {
	e := tx.s.rec.Build(tx.actor, action, et, id, name, before, after)
	tx.entries = append(tx.entries, e)
	return e
}

func (tx *Tx) changeSet() ChangeSet {
	var cs ChangeSet
	for _, id := range sortedKeys(tx.cats) {
		if c := tx.cats[id]; c == nil {
			cs.DeletedCategories = append(cs.DeletedCategories, id)
		} else {
			cs.Categories = append(cs.Categories, *c)
		}
	}
	for _, id := range sortedKeys(tx.apps) {
		if a := tx.apps[id]; a == nil {
			cs.DeletedApps = append(cs.DeletedApps, id)
		} else {
			cs.Apps = append(cs.Apps, cloneApp(*a))
		}
	}
	for _, id := range sortedKeys(tx.users) {
		cs.Users = append(cs.Users, *tx.users[id])
	}
	cs.Audit = append(cs.Audit, tx.entries...)
	return cs
}

// --- overlay accessors ---

func (tx *Tx) Category(id string) (domain.Category, bool) {
	if c, ok := tx.cats[id]; ok {
		if c == nil {
			return domain.Category{}, false
		}
		return *c, true
	}
	c, ok := tx.s.cats[id]
	return c, ok
}

func (tx *Tx) App(id string) (domain.App, bool) {
	if a, ok := tx.apps[id]; ok {
		if a == nil {
			return domain.App{}, false
		}
		return cloneApp(*a), true
	}
	a, ok := tx.s.apps[id]
	return cloneApp(a), ok
}

func (tx *Tx) User(id string) (domain.User, bool) {
	if u, ok := tx.users[id]; ok {
		return *u, true
	}
	u, ok := tx.s.users[id]
	return u, ok
}

func lookup(staged, base map[string]string, key string) (string, bool) {
	if v, ok := staged[key]; ok {
		return v, v != ""
	}
	v, ok := base[key]
	return v, ok
}

// AppByPackage finds an app by its exact package identifier.
func (tx *Tx) AppByPackage(pkg string) (domain.App, bool) {
	id, ok := lookup(tx.pkgs, tx.s.pkgs, pkg)
	if !ok {
		return domain.App{}, false
	}
	return tx.App(id)
}

func (tx *Tx) UserByEmail(email string) (domain.User, bool) {
	id, ok := lookup(tx.emails, tx.s.emails, strings.ToLower(strings.TrimSpace(email)))
	if !ok {
		return domain.User{}, false
	}
	return tx.User(id)
}

// CategoryByName matches names case-insensitively after trimming. Names are not unique;
// when several match, the oldest category wins (ties broken by id).
func (tx *Tx) CategoryByName(name string) (domain.Category, bool) {
	name = strings.TrimSpace(name)
	var found domain.Category
	ok := false
	tx.eachCategory(func(c domain.Category) bool {
		if !strings.EqualFold(c.Name, name) {
			return true
		}
		if !ok || olderThan(c, found) {
			found, ok = c, true
		}
		return true
	})
	return found, ok
}

func olderThan(a, b domain.Category) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (tx *Tx) eachCategory(fn func(domain.Category) bool) {
	for id, c := range tx.s.cats {
		if _, staged := tx.cats[id]; staged {
			continue
		}
		if !fn(c) {
			return
		}
	}
	for _, id := range sortedKeys(tx.cats) {
		if c := tx.cats[id]; c != nil && !fn(*c) {
			return
		}
	}
}

func (tx *Tx) eachApp(fn func(domain.App) bool) {
	for id, a := range tx.s.apps {
		if _, staged := tx.apps[id]; staged {
			continue
		}
		if !fn(a) {
			return
		}
	}
	for _, id := range sortedKeys(tx.apps) {
		if a := tx.apps[id]; a != nil && !fn(*a) {
			return
		}
	}
}

func (tx *Tx) putCategory(c domain.Category) { tx.cats[c.ID] = &c }
func (tx *Tx) putApp(a domain.App)           { a = cloneApp(a); tx.apps[a.ID] = &a }
func (tx *Tx) putUser(u domain.User)         { tx.users[u.ID] = &u }

func (tx *Tx) record(action domain.Action, et domain.EntityType, id, name string, before, after *domain.Snapshot) {
	tx.Record(action, et, id, name, before, after)
}

// --- categories ---

func (tx *Tx) uniqueSlug(base, selfID string) string {
	candidate := base
	for n := 2; ; n++ {
		owner, taken := lookup(tx.slugs, tx.s.slugs, candidate)
		if !taken || owner == selfID {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
}

// resolveSlug validates an explicit slug or derives one from name.
func (tx *Tx) resolveSlug(explicit, name, selfID string) (string, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if !domain.ValidSlug(explicit) {
			return "", domain.Validation("slug", "must contain only lowercase letters, digits and single hyphens")
		}
		if owner, taken := lookup(tx.slugs, tx.s.slugs, explicit); taken && owner != selfID {
			return "", domain.Conflict(fmt.Sprintf("slug %q is already in use", explicit))
		}
		return explicit, nil
	}
	base := domain.DeriveSlug(name)
	if base == "" {
		return "", domain.Validation("name", "must contain at least one letter or digit")
	}
	return tx.uniqueSlug(base, selfID), nil
}

func (tx *Tx) moveSlug(from, to, id string) {
	if from == to {
		return
	}
	if from != "" {
		tx.slugs[from] = ""
	}
	tx.slugs[to] = id
}

func (tx *Tx) CreateCategory(in domain.CreateCategoryInput) (domain.Category, error) {
	c, err := tx.newCategory(in)
	if err != nil {
		return c, err
	}
	tx.record(domain.ActionCreate, domain.EntityCategory, c.ID, c.Name, nil, domain.SnapshotOfCategory(c))
	return c, nil
}

// StageCategory creates a category without an audit entry of its own. The caller accounts
// for it in a summary entry, as imports do.
func (tx *Tx) StageCategory(in domain.CreateCategoryInput) (domain.Category, error) {
	return tx.newCategory(in)
}

func (tx *Tx) newCategory(in domain.CreateCategoryInput) (domain.Category, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Category{}, domain.Validation("name", "is required")
	}
	status := domain.StatusActive
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.Category{}, domain.Validation("status", "must be active or inactive")
		}
		status = *in.Status
	}
	id := tx.s.newID()
	slug, err := tx.resolveSlug(in.Slug, name, id)
	if err != nil {
		return domain.Category{}, err
	}

	c := domain.Category{
		ID:          id,
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		Status:      status,
		Version:     1,
		CreatedAt:   tx.now,
		UpdatedAt:   tx.now,
		CreatedBy:   tx.actor.UserID,
	}
	tx.putCategory(c)
	tx.moveSlug("", slug, id)
	return c, nil
}

func checkVersion(et domain.EntityType, want, have int64) error {
	if want != 0 && want != have {
		return domain.Conflict(fmt.Sprintf("%s was modified concurrently (version %d, current %d)", et, want, have))
	}
	return nil
}

func (tx *Tx) UpdateCategory(id string, in domain.UpdateCategoryInput) (domain.Category, error) {
	c, ok := tx.Category(id)
	if !ok {
		return domain.Category{}, domain.NotFound(domain.EntityCategory, id)
	}
	if err := checkVersion(domain.EntityCategory, in.Version, c.Version); err != nil {
		return domain.Category{}, err
	}
	before := domain.SnapshotOfCategory(c)

	name := c.Name
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.Category{}, domain.Validation("name", "is required")
		}
	}
	slug := c.Slug
	switch {
	case in.Slug != nil && strings.TrimSpace(*in.Slug) != "":
		s, err := tx.resolveSlug(*in.Slug, name, id)
		if err != nil {
			return domain.Category{}, err
		}
		slug = s
	case name != c.Name:
		s, err := tx.resolveSlug("", name, id)
		if err != nil {
			return domain.Category{}, err
		}
		slug = s
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.Category{}, domain.Validation("status", "must be active or inactive")
		}
		c.Status = *in.Status
	}
	if in.Description != nil {
		c.Description = strings.TrimSpace(*in.Description)
	}

	tx.moveSlug(c.Slug, slug, id)
	c.Name, c.Slug = name, slug
	c.UpdatedAt = tx.now
	c.Version++
	tx.putCategory(c)
	tx.record(domain.ActionUpdate, domain.EntityCategory, c.ID, c.Name, before, domain.SnapshotOfCategory(c))
	return c, nil
}

func (tx *Tx) ToggleCategoryStatus(id string) (domain.Category, error) {
	c, ok := tx.Category(id)
	if !ok {
		return domain.Category{}, domain.NotFound(domain.EntityCategory, id)
	}
	before := domain.SnapshotOfCategory(c)
	c.Status = c.Status.Toggled()
	c.UpdatedAt = tx.now
	c.Version++
	tx.putCategory(c)
	tx.record(domain.ToggleAction(c.Status), domain.EntityCategory, c.ID, c.Name, before, domain.SnapshotOfCategory(c))
	return c, nil
}

func (tx *Tx) DeleteCategory(id string, opts DeleteOptions) error {
	c, ok := tx.Category(id)
	if !ok {
		return domain.NotFound(domain.EntityCategory, id)
	}
	if c.AppCount > 0 {
		if !opts.Cascade {
			return domain.Conflict(fmt.Sprintf("category %q still has %d apps", c.Name, c.AppCount))
		}
		var owned []string
		tx.eachApp(func(a domain.App) bool {
			if a.CategoryID == id {
				owned = append(owned, a.ID)
			}
			return true
		})
		sort.Strings(owned)
		for _, appID := range owned {
			if err := tx.DeleteApp(appID); err != nil {
				return err
			}
		}
		c, _ = tx.Category(id)
	}
	tx.cats[id] = nil
	tx.slugs[c.Slug] = ""
	tx.record(domain.ActionDelete, domain.EntityCategory, c.ID, c.Name, domain.SnapshotOfCategory(c), nil)
	return nil
}

func (tx *Tx) adjustAppCount(categoryID string, delta int) {
	c, ok := tx.Category(categoryID)
	if !ok {
		return
	}
	c.AppCount += delta
	tx.putCategory(c)
}

// --- apps ---

func validatePackage(pkg string) error {
	if pkg == "" {
		return domain.Validation("package", "is required")
	}
	if !domain.ValidPackage(pkg) {
		return domain.Validation("package", "must be a reverse-domain identifier such as com.example.app")
	}
	return nil
}

func (tx *Tx) CreateApp(in domain.CreateAppInput) (domain.App, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.App{}, domain.Validation("name", "is required")
	}
	pkg := strings.TrimSpace(in.Package)
	if err := validatePackage(pkg); err != nil {
		return domain.App{}, err
	}
	if _, taken := lookup(tx.pkgs, tx.s.pkgs, pkg); taken {
		return domain.App{}, domain.Conflict(fmt.Sprintf("package %q already exists", pkg))
	}
	if _, ok := tx.Category(in.CategoryID); !ok {
		return domain.App{}, domain.Validation("categoryId", fmt.Sprintf("category %q does not exist", in.CategoryID))
	}
	source := in.Source
	if source == "" {
		source = domain.SourceManual
	}
	if !source.Valid() {
		return domain.App{}, domain.Validation("source", "must be manual, api or import")
	}
	status := domain.StatusActive
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.App{}, domain.Validation("status", "must be active or inactive")
		}
		status = *in.Status
	}
	pkgURL := strings.TrimSpace(in.PackageURL)
	if pkgURL == "" {
		pkgURL = domain.DefaultPackageURL(pkg)
	}

	a := domain.App{
		ID:          tx.s.newID(),
		Name:        name,
		Package:     pkg,
		PackageURL:  pkgURL,
		Icon:        strings.TrimSpace(in.Icon),
		Description: strings.TrimSpace(in.Description),
		CategoryID:  in.CategoryID,
		Tags:        domain.NormalizeTags(in.Tags),
		Source:      source,
		Status:      status,
		Version:     1,
		CreatedAt:   tx.now,
		UpdatedAt:   tx.now,
		CreatedBy:   tx.actor.UserID,
	}
	tx.putApp(a)
	tx.pkgs[pkg] = a.ID
	tx.adjustAppCount(a.CategoryID, +1)
	tx.record(domain.ActionCreate, domain.EntityApp, a.ID, a.Name, nil, domain.SnapshotOfApp(a))
	return a, nil
}

func (tx *Tx) UpdateApp(id string, in domain.UpdateAppInput) (domain.App, error) {
	a, ok := tx.App(id)
	if !ok {
		return domain.App{}, domain.NotFound(domain.EntityApp, id)
	}
	if err := checkVersion(domain.EntityApp, in.Version, a.Version); err != nil {
		return domain.App{}, err
	}
	before := domain.SnapshotOfApp(a)
	oldPkg, oldCategory := a.Package, a.CategoryID

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.App{}, domain.Validation("name", "is required")
		}
		a.Name = name
	}
	if in.Package != nil {
		pkg := strings.TrimSpace(*in.Package)
		if err := validatePackage(pkg); err != nil {
			return domain.App{}, err
		}
		if owner, taken := lookup(tx.pkgs, tx.s.pkgs, pkg); taken && owner != id {
			return domain.App{}, domain.Conflict(fmt.Sprintf("package %q already exists", pkg))
		}
		a.Package = pkg
	}
	if in.CategoryID != nil {
		if _, ok := tx.Category(*in.CategoryID); !ok {
			return domain.App{}, domain.Validation("categoryId", fmt.Sprintf("category %q does not exist", *in.CategoryID))
		}
		a.CategoryID = *in.CategoryID
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.App{}, domain.Validation("status", "must be active or inactive")
		}
		a.Status = *in.Status
	}
	if in.PackageURL != nil {
		a.PackageURL = strings.TrimSpace(*in.PackageURL)
	}
	if a.PackageURL == "" || (a.Package != oldPkg && a.PackageURL == domain.DefaultPackageURL(oldPkg)) {
		a.PackageURL = domain.DefaultPackageURL(a.Package)
	}
	if in.Icon != nil {
		a.Icon = strings.TrimSpace(*in.Icon)
	}
	if in.Description != nil {
		a.Description = strings.TrimSpace(*in.Description)
	}
	if in.Tags != nil {
		a.Tags = domain.NormalizeTags(*in.Tags)
	}

	if a.Package != oldPkg {
		tx.pkgs[oldPkg] = ""
		tx.pkgs[a.Package] = id
	}
	if a.CategoryID != oldCategory {
		tx.adjustAppCount(oldCategory, -1)
		tx.adjustAppCount(a.CategoryID, +1)
	}
	a.UpdatedAt = tx.now
	a.Version++
	tx.putApp(a)
	tx.record(domain.ActionUpdate, domain.EntityApp, a.ID, a.Name, before, domain.SnapshotOfApp(a))
	return a, nil
}

func (tx *Tx) ToggleAppStatus(id string) (domain.App, error) {
	a, ok := tx.App(id)
	if !ok {
		return domain.App{}, domain.NotFound(domain.EntityApp, id)
	}
	before := domain.SnapshotOfApp(a)
	a.Status = a.Status.Toggled()
	a.UpdatedAt = tx.now
	a.Version++
	tx.putApp(a)
	tx.record(domain.ToggleAction(a.Status), domain.EntityApp, a.ID, a.Name, before, domain.SnapshotOfApp(a))
	return a, nil
}

func (tx *Tx) DeleteApp(id string) error {
	a, ok := tx.App(id)
	if !ok {
		return domain.NotFound(domain.EntityApp, id)
	}
	tx.apps[id] = nil
	tx.pkgs[a.Package] = ""
	tx.adjustAppCount(a.CategoryID, -1)
	tx.record(domain.ActionDelete, domain.EntityApp, a.ID, a.Name, domain.SnapshotOfApp(a), nil)
	return nil
}

// --- users ---

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", domain.Validation("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.Validation("email", "must be a valid email address")
	}
	return email, nil
}

func (tx *Tx) CreateUser(in domain.CreateUserInput) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.User{}, domain.Validation("name", "is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return domain.User{}, err
	}
	if _, taken := lookup(tx.emails, tx.s.emails, email); taken {
		return domain.User{}, domain.Conflict(fmt.Sprintf("user with email %q already exists", email))
	}
	role := in.Role
	if role == "" {
		role = domain.DefaultRole
	}
	if !role.Valid() {
		return domain.User{}, domain.Validation("role", "must be Editor, Admin or SuperAdmin")
	}
	status := in.Status
	if status == "" {
		status = domain.StatusActive
	}
	if !status.Valid() {
		return domain.User{}, domain.Validation("status", "must be active or inactive")
	}

	u := domain.User{
		ID:           tx.s.newID(),
		Name:         name,
		Email:        email,
		Role:         role,
		Status:       status,
		PasswordHash: in.PasswordHash,
		CreatedAt:    tx.now,
		UpdatedAt:    tx.now,
	}
	tx.putUser(u)
	tx.emails[email] = u.ID
	tx.record(domain.ActionCreate, domain.EntityUser, u.ID, u.Name, nil, domain.SnapshotOfUser(u))
	return u, nil
}

func (tx *Tx) UpdateUser(id string, in domain.UpdateUserInput) (domain.User, error) {
	u, ok := tx.User(id)
	if !ok {
		return domain.User{}, domain.NotFound(domain.EntityUser, id)
	}
	before := domain.SnapshotOfUser(u)
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return domain.User{}, domain.Validation("name", "is required")
		}
		u.Name = name
	}
	if in.Role != nil {
		if !in.Role.Valid() {
			return domain.User{}, domain.Validation("role", "must be Editor, Admin or SuperAdmin")
		}
		u.Role = *in.Role
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return domain.User{}, domain.Validation("status", "must be active or inactive")
		}
		u.Status = *in.Status
	}
	u.UpdatedAt = tx.now
	tx.putUser(u)
	tx.record(domain.ActionUpdate, domain.EntityUser, u.ID, u.Name, before, domain.SnapshotOfUser(u))
	return u, nil
}

func (tx *Tx) ToggleUserStatus(id string) (domain.User, error) {
	u, ok := tx.User(id)
	if !ok {
		return domain.User{}, domain.NotFound(domain.EntityUser, id)
	}
	before := domain.SnapshotOfUser(u)
	u.Status = u.Status.Toggled()
	u.UpdatedAt = tx.now
	tx.putUser(u)
	tx.record(domain.ToggleAction(u.Status), domain.EntityUser, u.ID, u.Name, before, domain.SnapshotOfUser(u))
	return u, nil
}

func (tx *Tx) SetPassword(id, hash string) error {
	u, ok := tx.User(id)
	if !ok {
		return domain.NotFound(domain.EntityUser, id)
	}
	if hash == "" {
		return domain.Validation("password", "is required")
	}
	u.PasswordHash = hash
	u.UpdatedAt = tx.now
	tx.putUser(u)
	snap := domain.SnapshotOfUser(u)
	tx.record(domain.ActionUpdate, domain.EntityUser, u.ID, u.Name, snap, snap)
	return nil
}

func cloneApp(a domain.App) domain.App {
	if a.Tags != nil {
		a.Tags = append([]string(nil), a.Tags...)
	}
	return a
}
