// Package importer validates bulk category/package uploads and merges them into the
// catalog as a single transaction.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"catalog-admin/internal/catalog"
	"catalog-admin/internal/core/metrics"
	"catalog-admin/internal/domain"
)

// BulkEntityID is the entity id of the summary audit entry written for every import.
const BulkEntityID = "bulk"

type Limits struct {
	MaxFileSizeMB  int
	MaxCategories  int
	MaxApps        int
	MaxTitleLength int
	AutoActivate   bool
}

func DefaultLimits() Limits {
	return Limits{MaxFileSizeMB: 10, MaxCategories: 100, MaxApps: 1000, MaxTitleLength: 100}
}

func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxFileSizeMB <= 0 {
		l.MaxFileSizeMB = d.MaxFileSizeMB
	}
	if l.MaxCategories <= 0 {
		l.MaxCategories = d.MaxCategories
	}
	if l.MaxApps <= 0 {
		l.MaxApps = d.MaxApps
	}
	if l.MaxTitleLength <= 0 {
		l.MaxTitleLength = d.MaxTitleLength
	}
	return l
}

func (l Limits) maxBytes() int { return l.MaxFileSizeMB << 20 }

// Archiver stores the raw document of a committed import.
type Archiver interface {
	Archive(ctx context.Context, key string, data []byte) error
}

type Options struct {
	Archiver Archiver
	Logger   *zap.Logger
}

type Importer struct {
	store    *catalog.Store
	limits   Limits
	archiver Archiver
	log      *zap.Logger
}

func New(store *catalog.Store, limits Limits, opts Options) *Importer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Importer{
		store:    store,
		limits:   limits.withDefaults(),
		archiver: opts.Archiver,
		log:      opts.Logger,
	}
}

func (im *Importer) Limits() Limits { return im.limits }

// Request carries either the raw upload in Data or an already parsed Payload.
type Request struct {
	Data    []byte
	Payload *Payload
	DryRun  bool
}

// Run validates the request against the limits and merges it. A dry run computes the same
// result without touching the catalog or the audit log.
func (im *Importer) Run(ctx context.Context, actor domain.Actor, req Request) (domain.ImportResult, error) {
	start := time.Now()
	dry := strconv.FormatBool(req.DryRun)
	defer func() { metrics.ImportDuration.WithLabelValues(dry).Observe(time.Since(start).Seconds()) }()

	payload, err := im.prepare(req)
	if err != nil {
		return domain.ImportResult{}, err
	}

	var (
		res     domain.ImportResult
		summary domain.AuditEntry
	)
	exec := func(tx *catalog.Tx) error {
		r, newCats, err := im.merge(ctx, tx, payload)
		if err != nil {
			return err
		}
		res = r
		if !req.DryRun {
			summary = tx.Record(domain.ActionImport, domain.EntityApp, BulkEntityID,
				fmt.Sprintf("import of %d packages", r.TotalProcessed), nil, domain.SnapshotOfImport(r, newCats, false))
		}
		return nil
	}
	if req.DryRun {
		err = im.store.Simulate(ctx, actor, exec)
	} else {
		err = im.store.Atomically(ctx, actor, exec)
	}
	if err != nil {
		im.log.Warn("import failed", zap.Bool("dry_run", req.DryRun), zap.String("user_id", actor.UserID), zap.Error(err))
		return domain.ImportResult{}, err
	}

	metrics.ImportRecords.WithLabelValues("created", dry).Add(float64(res.Created))
	metrics.ImportRecords.WithLabelValues("updated", dry).Add(float64(res.Updated))
	metrics.ImportRecords.WithLabelValues("skipped", dry).Add(float64(res.Skipped))
	im.log.Info("import finished",
		zap.Bool("dry_run", req.DryRun),
		zap.String("user_id", actor.UserID),
		zap.Int("total", res.TotalProcessed),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", len(res.Errors)),
	)

	if !req.DryRun {
		im.archive(ctx, summary, req, payload)
	}
	return res, nil
}

// prepare parses the request and enforces the caps before anything is merged.
func (im *Importer) prepare(req Request) (Payload, error) {
	if req.Payload != nil {
		p := *req.Payload
		return p, im.checkCaps(p)
	}
	if len(req.Data) > im.limits.maxBytes() {
		return Payload{}, domain.CapExceeded(fmt.Sprintf("file exceeds %d MB", im.limits.MaxFileSizeMB))
	}
	p, err := ParsePayload(req.Data)
	if err != nil {
		return Payload{}, err
	}
	return p, im.checkCaps(p)
}

func (im *Importer) checkCaps(p Payload) error {
	if n := len(p.Categories); n > im.limits.MaxCategories {
		return domain.CapExceeded(fmt.Sprintf("%d categories exceed the limit of %d per import", n, im.limits.MaxCategories))
	}
	if n := p.packageCount(); n > im.limits.MaxApps {
		return domain.CapExceeded(fmt.Sprintf("%d apps exceed the limit of %d per import", n, im.limits.MaxApps))
	}
	return nil
}

func (im *Importer) status() domain.Status {
	if im.limits.AutoActivate {
		return domain.StatusActive
	}
	return domain.StatusInactive
}

// merge stages every record of p in tx and returns the counters and the number of
// categories it created. Per-record problems are reported in the result; only
// infrastructure or cancellation errors are returned. Created categories are not audited
// one by one, so a commit writes one entry per created or updated app plus the summary.
func (im *Importer) merge(ctx context.Context, tx *catalog.Tx, p Payload) (domain.ImportResult, int, error) {
	res := domain.ImportResult{Errors: []domain.ImportError{}}
	newCats := 0
	status := im.status()
	seen := map[string]struct{}{}

	skipAll := func(c CategoryEntry, msg string) {
		res.TotalProcessed += len(c.Packages)
		res.Skipped += len(c.Packages)
		res.Errors = append(res.Errors, domain.ImportError{
			Line: c.Line, Message: msg, Data: map[string]any{"title": titleData(c)},
		})
	}

	for _, c := range p.Categories {
		if err := ctx.Err(); err != nil {
			return res, newCats, err
		}
		title := strings.TrimSpace(c.Title)
		switch {
		case c.TitleRaw != "":
			skipAll(c, "category title must be a string")
			continue
		case title == "":
			skipAll(c, "category title is required")
			continue
		case utf8.RuneCountInString(title) > im.limits.MaxTitleLength:
			skipAll(c, fmt.Sprintf("category title exceeds %d characters", im.limits.MaxTitleLength))
			continue
		}

		cat, ok := tx.CategoryByName(title)
		if !ok {
			created, err := tx.StageCategory(domain.CreateCategoryInput{Name: title, Status: &status})
			if err != nil {
				if domain.KindOf(err) == "" {
					return res, newCats, err
				}
				skipAll(c, err.Error())
				continue
			}
			cat = created
			newCats++
		}

		for _, e := range c.Packages {
			res.TotalProcessed++
			pkg := strings.TrimSpace(e.Package)
			if e.Raw != "" || !domain.ValidPackage(pkg) {
				res.Skipped++
				res.Errors = append(res.Errors, packageError(e, "invalid package format"))
				continue
			}
			if _, dup := seen[pkg]; dup {
				res.Skipped++
				continue
			}
			seen[pkg] = struct{}{}

			var err error
			if existing, found := tx.AppByPackage(pkg); found {
				_, err = tx.UpdateApp(existing.ID, domain.UpdateAppInput{CategoryID: &cat.ID})
				if err == nil {
					res.Updated++
				}
			} else {
				_, err = tx.CreateApp(domain.CreateAppInput{
					Name:       pkg,
					Package:    pkg,
					PackageURL: domain.DefaultPackageURL(pkg),
					CategoryID: cat.ID,
					Source:     domain.SourceImport,
					Status:     &status,
				})
				if err == nil {
					res.Created++
				}
			}
			if err != nil {
				if domain.KindOf(err) == "" {
					return res, newCats, err
				}
				res.Skipped++
				res.Errors = append(res.Errors, packageError(e, err.Error()))
			}
		}
	}

	sort.SliceStable(res.Errors, func(i, j int) bool { return res.Errors[i].Line < res.Errors[j].Line })
	return res, newCats, nil
}

func packageError(e PackageEntry, msg string) domain.ImportError {
	var data any = e.Package
	if e.Raw != "" {
		data = json.RawMessage(e.Raw)
	}
	return domain.ImportError{Line: e.Line, Message: msg, Data: map[string]any{"package": data}}
}

func titleData(c CategoryEntry) any {
	if c.TitleRaw != "" {
		return json.RawMessage(c.TitleRaw)
	}
	return c.Title
}

func (im *Importer) archive(ctx context.Context, summary domain.AuditEntry, req Request, p Payload) {
	if im.archiver == nil {
		return
	}
	data := req.Data
	if len(data) == 0 {
		b, err := json.Marshal(p)
		if err != nil {
			im.log.Warn("encode import payload for archive", zap.Error(err))
			return
		}
		data = b
	}
	key := ArchiveKey(summary.Timestamp, summary.ID)
	if err := im.archiver.Archive(ctx, key, data); err != nil {
		im.log.Warn("archive import payload", zap.String("key", key), zap.Error(err))
		return
	}
	im.log.Debug("import archived", zap.String("key", key))
}

// ArchiveKey is imports/<yyyy-mm-dd>/<audit id>.json.
func ArchiveKey(ts time.Time, auditID string) string {
	return fmt.Sprintf("imports/%s/%s.json", ts.UTC().Format("2006-01-02"), auditID)
}
