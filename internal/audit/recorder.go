// Package audit keeps the append-only log of catalog mutations.
package audit

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"

	"catalog-admin/internal/core/metrics"
	"catalog-admin/internal/domain"
)

type Options struct {
	Clock  func() time.Time
	Logger *zap.Logger
}

// Recorder holds entries ordered by Seq, which Build hands out in increasing order.
// Ids only sort to the second, so Seq is what keeps entries of one second in order.
// There is no API to change or remove an entry.
type Recorder struct {
	mu      sync.RWMutex
	entries []domain.AuditEntry
	seq     atomic.Uint64
	clock   func() time.Time
	log     *zap.Logger
}

func New(opts Options) *Recorder {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Recorder{clock: opts.Clock, log: opts.Logger}
}

// Record builds an entry and appends it immediately.
func (r *Recorder) Record(actor domain.Actor, action domain.Action, et domain.EntityType,
	entityID, entityName string, before, after *domain.Snapshot) domain.AuditEntry {
	e := r.Build(actor, action, et, entityID, entityName, before, after)
	r.Append(e)
	return e
}

// Build creates an entry without appending it. The catalog store uses this to stage
// entries until a transaction commits.
func (r *Recorder) Build(actor domain.Actor, action domain.Action, et domain.EntityType,
	entityID, entityName string, before, after *domain.Snapshot) domain.AuditEntry {
	now := r.clock().UTC()
	id, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		id = ksuid.New()
	}
	return domain.AuditEntry{
		ID:         id.String(),
		Seq:        r.seq.Add(1),
		UserID:     actor.UserID,
		UserName:   actor.UserName,
		Action:     action,
		EntityType: et,
		EntityID:   entityID,
		EntityName: entityName,
		Before:     before.Clone(),
		After:      after.Clone(),
		Timestamp:  now,
		IPAddress:  actor.IPAddress,
	}
}

func (r *Recorder) Append(entries ...domain.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	r.mu.Lock()
	for _, e := range entries {
		r.insert(e.Clone())
	}
	r.mu.Unlock()

	for _, e := range entries {
		metrics.AuditEntries.WithLabelValues(string(e.Action), string(e.EntityType)).Inc()
		r.log.Debug("audit",
			zap.String("id", e.ID),
			zap.String("action", string(e.Action)),
			zap.String("entity_type", string(e.EntityType)),
			zap.String("entity_id", e.EntityID),
			zap.String("user_id", e.UserID),
		)
	}
}

// insert keeps entries sorted by Seq. Entries almost always arrive in order, so the
// scan starts at the tail.
func (r *Recorder) insert(e domain.AuditEntry) {
	i := len(r.entries)
	for i > 0 && r.entries[i-1].Seq > e.Seq {
		i--
	}
	r.entries = append(r.entries, domain.AuditEntry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = e
}

// Load seeds the log with previously persisted entries and resumes numbering after the
// highest Seq among them.
func (r *Recorder) Load(entries []domain.AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make([]domain.AuditEntry, 0, len(entries))
	var top uint64
	for _, e := range entries {
		r.entries = append(r.entries, e.Clone())
		if e.Seq > top {
			top = e.Seq
		}
	}
	sort.SliceStable(r.entries, func(i, j int) bool { return r.entries[i].Seq < r.entries[j].Seq })
	if top > r.seq.Load() {
		r.seq.Store(top)
	}
}

func (r *Recorder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Recent returns the n newest entries, newest first.
func (r *Recorder) Recent(n int) []domain.AuditEntry {
	if n <= 0 {
		return []domain.AuditEntry{}
	}
	out, _ := r.List(Filter{Limit: n})
	return out
}

type Filter struct {
	EntityType domain.EntityType
	Action     domain.Action
	UserID     string
	EntityID   string
	Offset     int
	Limit      int
}

func (f Filter) match(e domain.AuditEntry) bool {
	return (f.EntityType == "" || e.EntityType == f.EntityType) &&
		(f.Action == "" || e.Action == f.Action) &&
		(f.UserID == "" || e.UserID == f.UserID) &&
		(f.EntityID == "" || e.EntityID == f.EntityID)
}

// List pages matching entries newest first and returns the total match count.
func (r *Recorder) List(f Filter) ([]domain.AuditEntry, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []domain.AuditEntry{}
	total := 0
	for i := len(r.entries) - 1; i >= 0; i-- {
		e := r.entries[i]
		if !f.match(e) {
			continue
		}
		total++
		if total <= f.Offset {
			continue
		}
		if f.Limit > 0 && len(out) >= f.Limit {
			continue
		}
		out = append(out, e.Clone())
	}
	return out, total
}
