// Package catalog is the in-memory catalog of categories, apps and users. Every mutation
// runs as a transaction: changes are staged, optionally persisted, then published together
// with their audit entries. Readers never observe a partially applied transaction.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"catalog-admin/internal/audit"
	"catalog-admin/internal/core/metrics"
	"catalog-admin/internal/domain"
	"catalog-admin/pkg/utils"
)

// Persister mirrors committed change sets to durable storage. Apply must be atomic:
// either the whole change set is stored or none of it.
type Persister interface {
	Apply(ctx context.Context, cs ChangeSet) error
}

// ChangeSet is what one committed transaction changed.
type ChangeSet struct {
	Categories        []domain.Category
	Apps              []domain.App
	Users             []domain.User
	DeletedCategories []string
	DeletedApps       []string
	Audit             []domain.AuditEntry
}

func (cs ChangeSet) Empty() bool {
	return len(cs.Categories) == 0 && len(cs.Apps) == 0 && len(cs.Users) == 0 &&
		len(cs.DeletedCategories) == 0 && len(cs.DeletedApps) == 0 && len(cs.Audit) == 0
}

// State is a full dump used to warm the store at startup.
type State struct {
	Categories []domain.Category
	Apps       []domain.App
	Users      []domain.User
	Audit      []domain.AuditEntry
}

type Options struct {
	Recorder  *audit.Recorder
	Persister Persister
	Clock     func() time.Time
	NewID     func() string
	Logger    *zap.Logger
}

type Store struct {
	mu sync.RWMutex

	cats  map[string]domain.Category
	apps  map[string]domain.App
	users map[string]domain.User

	slugs  map[string]string // slug -> category id
	pkgs   map[string]string // package -> app id
	emails map[string]string // lower-cased email -> user id

	rec       *audit.Recorder
	persister Persister
	clock     func() time.Time
	newID     func() string
	log       *zap.Logger
}

func New(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = utils.NewID
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Recorder == nil {
		opts.Recorder = audit.New(audit.Options{Clock: opts.Clock, Logger: opts.Logger})
	}
	return &Store{
		cats:      map[string]domain.Category{},
		apps:      map[string]domain.App{},
		users:     map[string]domain.User{},
		slugs:     map[string]string{},
		pkgs:      map[string]string{},
		emails:    map[string]string{},
		rec:       opts.Recorder,
		persister: opts.Persister,
		clock:     opts.Clock,
		newID:     opts.NewID,
		log:       opts.Logger,
	}
}

func (s *Store) Recorder() *audit.Recorder { return s.rec }

// Load replaces the store content with a persisted state. App counts are recomputed
// from the apps rather than trusted.
func (s *Store) Load(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cats = make(map[string]domain.Category, len(st.Categories))
	s.apps = make(map[string]domain.App, len(st.Apps))
	s.users = make(map[string]domain.User, len(st.Users))
	s.slugs = make(map[string]string, len(st.Categories))
	s.pkgs = make(map[string]string, len(st.Apps))
	s.emails = make(map[string]string, len(st.Users))

	for _, c := range st.Categories {
		c.AppCount = 0
		s.cats[c.ID] = c
		s.slugs[strings.ToLower(c.Slug)] = c.ID
	}
	for _, a := range st.Apps {
		c, ok := s.cats[a.CategoryID]
		if !ok {
			s.log.Warn("dropping app with unknown category", zap.String("app", a.ID), zap.String("category", a.CategoryID))
			continue
		}
		c.AppCount++
		s.cats[c.ID] = c
		a.Tags = domain.NormalizeTags(a.Tags)
		s.apps[a.ID] = a
		s.pkgs[a.Package] = a.ID
	}
	for _, u := range st.Users {
		s.users[u.ID] = u
		s.emails[strings.ToLower(u.Email)] = u.ID
	}
	s.rec.Load(st.Audit)
	s.log.Info("catalog loaded",
		zap.Int("categories", len(s.cats)),
		zap.Int("apps", len(s.apps)),
		zap.Int("users", len(s.users)),
		zap.Int("audit", len(st.Audit)),
	)
}

// Atomically runs fn as one transaction. If fn returns an error nothing it staged is
// applied and no audit entry is written.
func (s *Store) Atomically(ctx context.Context, actor domain.Actor, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := s.begin(actor)
	if err := fn(tx); err != nil {
		metrics.CatalogMutations.WithLabelValues("rejected").Inc()
		return err
	}
	return s.commit(ctx, tx)
}

// Simulate runs fn against a transaction that is always discarded. Mutations inside fn
// see each other, but nothing reaches the store, the audit log or the persister.
func (s *Store) Simulate(ctx context.Context, actor domain.Actor, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.begin(actor))
}

func (s *Store) commit(ctx context.Context, tx *Tx) error {
	cs := tx.changeSet()
	if cs.Empty() {
		return nil
	}
	if s.persister != nil {
		if err := s.persister.Apply(ctx, cs); err != nil {
			metrics.CatalogMutations.WithLabelValues("failed").Inc()
			s.log.Error("persist change set failed", zap.Error(err))
			return fmt.Errorf("persist catalog changes: %w", err)
		}
	}

	for id, c := range tx.cats {
		if c == nil {
			delete(s.cats, id)
		} else {
			s.cats[id] = *c
		}
	}
	for id, a := range tx.apps {
		if a == nil {
			delete(s.apps, id)
		} else {
			s.apps[id] = *a
		}
	}
	for id, u := range tx.users {
		s.users[id] = *u
	}
	applyIndex(s.slugs, tx.slugs)
	applyIndex(s.pkgs, tx.pkgs)
	applyIndex(s.emails, tx.emails)

	s.rec.Append(tx.entries...)
	metrics.CatalogMutations.WithLabelValues("committed").Inc()
	s.log.Debug("catalog commit",
		zap.String("actor", tx.actor.UserID),
		zap.Int("categories", len(cs.Categories)+len(cs.DeletedCategories)),
		zap.Int("apps", len(cs.Apps)+len(cs.DeletedApps)),
		zap.Int("audit", len(tx.entries)),
	)
	return nil
}

func applyIndex(dst, staged map[string]string) {
	for k, v := range staged {
		if v == "" {
			delete(dst, k)
		} else {
			dst[k] = v
		}
	}
}

func (s *Store) now() time.Time { return s.clock().UTC() }

// --- single-operation wrappers ---

func (s *Store) CreateCategory(ctx context.Context, actor domain.Actor, in domain.CreateCategoryInput) (domain.Category, error) {
	var out domain.Category
	err := s.Atomically(ctx, actor, func(tx *Tx) (err error) {
		out, err = tx.CreateCategory(in)
		return err
	})
	return out, err
}

func (s *Store) UpdateCategory(ctx context.Context, actor domain.Actor, id string, in domain.UpdateCategoryInput) (domain.Category, error) {
	var out domain.Category
	err := s.Atomically(ctx, actor, func(tx *Tx) (err error) {
		out, err = tx.UpdateCategory(id, in)
		return err
	})
	return out, err
}

func (s *Store) ToggleCategoryStatus(ctx context.Context, actor domain.Actor, id string) (domain.Category, error) {
	var out domain.Category
	err := s.Atomically(ctx, actor, func(tx *Tx) (err error) {
		out, err = tx.ToggleCategoryStatus(id)
		return err
	})
	return out, err
}

func (s *Store) DeleteCategory(ctx context.Context, actor domain.Actor, id string, opts DeleteOptions) error {
	return s.Atomically(ctx, actor, func(tx *Tx) error {
		return tx.DeleteCategory(id, opts)
	})
}

func (s *Store) CreateApp(ctx context.Context, actor domain.Actor, in domain.CreateAppInput) (domain.App, error) {
	var out domain.App
	err := s.Atomically(ctx, actor, func(tx *Tx) (err error) {
		out, err = tx.CreateApp(in)
		return err
	})
	return out, err
}

func (s *Store) UpdateApp(ctx context.Context, actor domain.Actor, id string, in domain.UpdateAppInput) (domain.App, error) {
	var out domain.App
	err := s.Atomically(ctx, actor, func(tx *Tx) (err error) {
		out, err = tx.UpdateApp(id, in)
		return err
	})
	return out, err
}

func (s *Store) ToggleAppStatus(ctx context.Context, actor domain.Actor, id string) (domain.App, error) {
	var out domain.App
	err := s.Atomically(ctx, actor, func(tx *Tx) (err error) {
		out, err = tx.ToggleAppStatus(id)
		return err
	})
	return out, err
}

func (s *Store) DeleteApp(ctx context.Context, actor domain.Actor, id string) error {
	return s.Atomically(ctx, actor, func(tx *Tx) error {
		return tx.DeleteApp(id)
	})
}

func (s *Store) CreateUser(ctx context.Context, actor domain.Actor, in domain.CreateUserInput) (domain.User, error) {
	var out domain.User
	err := s.Atomically(ctx, actor, func(tx *Tx) (err error) {
		out, err = tx.CreateUser(in)
		return err
	})
	return out, err
}

func (s *Store) UpdateUser(ctx context.Context, actor domain.Actor, id string, in domain.UpdateUserInput) (domain.User, error) {
	var out domain.User
	err := s.Atomically(ctx, actor, func(tx *Tx) (err error) {
		out, err = tx.UpdateUser(id, in)
		return err
	})
	return out, err
}

func (s *Store) ToggleUserStatus(ctx context.Context, actor domain.Actor, id string) (domain.User, error) {
	var out domain.User
	err := s.Atomically(ctx, actor, func(tx *Tx) (err error) {
		out, err = tx.ToggleUserStatus(id)
		return err
	})
	return out, err
}

func (s *Store) SetPassword(ctx context.Context, actor domain.Actor, id, hash string) error {
	return s.Atomically(ctx, actor, func(tx *Tx) error {
		return tx.SetPassword(id, hash)
	})
}

// TouchLastLogin records a successful sign-in. It is not an audited catalog change.
func (s *Store) TouchLastLogin(ctx context.Context, id string) (domain.User, error) {
	var out domain.User
	err := s.Atomically(ctx, domain.SystemActor, func(tx *Tx) error {
		u, ok := tx.User(id)
		if !ok {
			return domain.NotFound(domain.EntityUser, id)
		}
		now := tx.now
		u.LastLogin = &now
		tx.putUser(u)
		out = u
		return nil
	})
	return out, err
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
