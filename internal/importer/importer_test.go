package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-admin/internal/catalog"
	"catalog-admin/internal/domain"
)

var actor = domain.Actor{UserID: "u1", UserName: "Admin", IPAddress: "10.0.0.9"}

func TestParsePayload_Lines(t *testing.T) {
	doc := `{
  "categories": [
    {
      "title": "Productivity",
      "packages": [
        "com.example.todoapp",
        42,
        {"nested": true}
      ]
    },
    { "title": null, "packages": [] }
  ]
}`
	p, err := ParsePayload([]byte(doc))
	require.NoError(t, err)
	require.Len(t, p.Categories, 2)

	c := p.Categories[0]
	assert.Equal(t, "Productivity", c.Title)
	assert.Equal(t, 4, c.Line)
	require.Len(t, c.Packages, 3)
	assert.Equal(t, PackageEntry{Line: 6, Package: "com.example.todoapp"}, c.Packages[0])
	assert.Equal(t, PackageEntry{Line: 7, Raw: "42"}, c.Packages[1])
	assert.Equal(t, 8, c.Packages[2].Line)
	assert.Equal(t, `{"nested": true}`, c.Packages[2].Raw)

	assert.Equal(t, "", p.Categories[1].Title)
	assert.Equal(t, 11, p.Categories[1].Line)
}

func TestParsePayload_Shape(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		ok   bool
	}{
		{"empty object", `{}`, false},
		{"categories missing", `{"nope": 1}`, false},
		{"categories empty", `{"categories": []}`, true},
		{"unknown keys ignored", `{"version": 2, "categories": []}`, true},
		{"not an object", `[]`, false},
		{"categories not array", `{"categories": {}}`, false},
		{"category not object", `{"categories": ["Tools"]}`, false},
		{"packages not array", `{"categories": [{"title": "T", "packages": "com.a.b"}]}`, false},
		{"truncated", `{"categories": [`, false},
		{"trailing data", `{"categories": []} {}`, false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload([]byte(tt.doc))
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestParsePayload_CategoriesRequired(t *testing.T) {
	for _, doc := range []string{`{}`, `{"nope": 1}`, `{"version": 2}`} {
		_, err := ParsePayload([]byte(doc))
		require.ErrorIs(t, err, domain.ErrValidation, doc)
		var de *domain.Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "categories", de.Field, doc)
	}
}

func TestPayload_MarshalRoundTrip(t *testing.T) {
	p, err := ParsePayload([]byte(`{"categories":[{"title":"Tools","packages":["com.a.b",7]}]}`))
	require.NoError(t, err)
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"categories":[{"title":"Tools","packages":["com.a.b",7]}]}`, string(b))
}

type fakeArchiver struct {
	keys []string
	data [][]byte
	err  error
}

func (f *fakeArchiver) Archive(_ context.Context, key string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.data = append(f.data, data)
	return nil
}

func newImporter(t *testing.T, limits Limits) (*Importer, *catalog.Store, *fakeArchiver) {
	t.Helper()
	s := catalog.New(catalog.Options{})
	a := &fakeArchiver{}
	return New(s, limits, Options{Archiver: a}), s, a
}

func run(t *testing.T, im *Importer, doc string, dry bool) domain.ImportResult {
	t.Helper()
	res, err := im.Run(context.Background(), actor, Request{Data: []byte(doc), DryRun: dry})
	require.NoError(t, err)
	require.Equal(t, res.TotalProcessed, res.Created+res.Updated+res.Skipped)
	return res
}

func TestRun_Example(t *testing.T) {
	im, s, _ := newImporter(t, Limits{})
	res := run(t, im, `{"categories":[{"title":"Tools","packages":["com.a.b","bad pkg","com.a.b"]}]}`, false)

	assert.Equal(t, 3, res.TotalProcessed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 2, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 1, res.Errors[0].Line)
	assert.Equal(t, "bad pkg", res.Errors[0].Data["package"])

	apps, total := s.ListApps(catalog.AppFilter{})
	require.Equal(t, 1, total)
	assert.Equal(t, "com.a.b", apps[0].Package)
	assert.Equal(t, "com.a.b", apps[0].Name)
	assert.Equal(t, domain.SourceImport, apps[0].Source)
	assert.Equal(t, domain.StatusInactive, apps[0].Status)
	assert.Equal(t, domain.DefaultPackageURL("com.a.b"), apps[0].PackageURL)

	cats, _ := s.ListCategories(catalog.CategoryFilter{})
	require.Len(t, cats, 1)
	assert.Equal(t, "Tools", cats[0].Name)
	assert.Equal(t, 1, cats[0].AppCount)
}

func TestRun_AuditsEveryRecordPlusSummary(t *testing.T) {
	im, s, _ := newImporter(t, Limits{})
	_, err := s.CreateCategory(context.Background(), actor, domain.CreateCategoryInput{Name: "Tools"})
	require.NoError(t, err)
	before := s.Recorder().Len()

	const k = 5
	pkgs := make([]string, k)
	for i := range pkgs {
		pkgs[i] = fmt.Sprintf("%q", fmt.Sprintf("com.tools.app%d", i))
	}
	res := run(t, im, `{"categories":[{"title":"tools","packages":[`+strings.Join(pkgs, ",")+`]}]}`, false)

	assert.Equal(t, k, res.Created)
	assert.Zero(t, res.Updated)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, before+k+1, s.Recorder().Len())

	summary := s.Recorder().Recent(1)[0]
	assert.Equal(t, domain.ActionImport, summary.Action)
	assert.Equal(t, domain.EntityApp, summary.EntityType)
	assert.Equal(t, BulkEntityID, summary.EntityID)
	assert.Equal(t, "u1", summary.UserID)
	require.NotNil(t, summary.After)
	assert.Equal(t, &domain.ImportSnapshot{TotalProcessed: k, Created: k}, summary.After.Import)
}

func TestRun_NewCategoryCountedInSummary(t *testing.T) {
	im, s, _ := newImporter(t, Limits{AutoActivate: true})
	run(t, im, `{"categories":[{"title":"Games","packages":["com.g.one"]},{"title":"GAMES","packages":["com.g.two"]}]}`, false)

	cats, _ := s.ListCategories(catalog.CategoryFilter{})
	require.Len(t, cats, 1, "second title merges into the category created by the first")
	assert.Equal(t, domain.StatusActive, cats[0].Status)
	assert.Equal(t, 2, cats[0].AppCount)

	// two apps and one summary; the category rides on the summary
	entries := s.Recorder().Recent(10)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.NotEqual(t, domain.EntityCategory, e.EntityType)
	}
	summary := entries[0]
	require.Equal(t, domain.ActionImport, summary.Action)
	require.NotNil(t, summary.After)
	assert.Equal(t, &domain.ImportSnapshot{TotalProcessed: 2, Created: 2, CategoriesCreated: 1}, summary.After.Import)
}

func TestRun_ExistingPackageIsUpdated(t *testing.T) {
	im, s, _ := newImporter(t, Limits{})
	ctx := context.Background()
	edu, err := s.CreateCategory(ctx, actor, domain.CreateCategoryInput{Name: "Education"})
	require.NoError(t, err)
	app, err := s.CreateApp(ctx, actor, domain.CreateAppInput{Name: "Learn Swift", Package: "com.learn.swift", CategoryID: edu.ID})
	require.NoError(t, err)

	res := run(t, im, `{"categories":[{"title":"Coding","packages":["com.learn.swift"]}]}`, false)
	assert.Equal(t, 1, res.Updated)
	assert.Zero(t, res.Created)

	got, err := s.GetApp(app.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceManual, got.Source, "provenance is kept")
	assert.Equal(t, "Learn Swift", got.Name)
	assert.NotEqual(t, edu.ID, got.CategoryID)

	e, _ := s.GetCategory(edu.ID)
	assert.Zero(t, e.AppCount)
}

func TestRun_InvalidTitlesSkipTheirPackages(t *testing.T) {
	im, s, _ := newImporter(t, Limits{MaxTitleLength: 10})
	doc := `{"categories":[
{"title":"  ","packages":["com.a.one","com.a.two"]},
{"title":"This title is far too long","packages":["com.a.three"]},
{"title":7,"packages":["com.a.four"]},
{"title":"Ok","packages":["com.a.five"]}
]}`
	res := run(t, im, doc, false)

	assert.Equal(t, 5, res.TotalProcessed)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 4, res.Skipped)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, []int{2, 3, 4}, []int{res.Errors[0].Line, res.Errors[1].Line, res.Errors[2].Line})
	assert.Contains(t, res.Errors[1].Message, "10")

	_, total := s.ListApps(catalog.AppFilter{})
	assert.Equal(t, 1, total)
}

func TestRun_ErrorsOrderedByLine(t *testing.T) {
	im, _, _ := newImporter(t, Limits{})
	doc := `{"categories":[
{"title":"A","packages":[
  "x",
  1
]},
{"title":"","packages":[]},
{"title":"B","packages":["com.b..c"]}
]}`
	res := run(t, im, doc, true)
	require.Len(t, res.Errors, 4)
	for i := 1; i < len(res.Errors); i++ {
		assert.LessOrEqual(t, res.Errors[i-1].Line, res.Errors[i].Line)
	}
	assert.Equal(t, 3, res.Errors[0].Line)
	assert.Equal(t, json.RawMessage("1"), res.Errors[1].Data["package"])
}

func TestRun_DryRunIsPure(t *testing.T) {
	im, s, arch := newImporter(t, Limits{})
	ctx := context.Background()
	c, err := s.CreateCategory(ctx, actor, domain.CreateCategoryInput{Name: "Tools"})
	require.NoError(t, err)
	_, err = s.CreateApp(ctx, actor, domain.CreateAppInput{Name: "X", Package: "com.x.y", CategoryID: c.ID})
	require.NoError(t, err)

	catsBefore, _ := s.ListCategories(catalog.CategoryFilter{})
	appsBefore, _ := s.ListApps(catalog.AppFilter{})
	auditBefore := s.Recorder().Recent(100)

	doc := `{"categories":[{"title":"New","packages":["com.x.y","com.n.one","bad"]},{"title":"Tools","packages":["com.n.two"]}]}`
	dry := run(t, im, doc, true)

	catsAfter, _ := s.ListCategories(catalog.CategoryFilter{})
	appsAfter, _ := s.ListApps(catalog.AppFilter{})
	assert.Equal(t, catsBefore, catsAfter)
	assert.Equal(t, appsBefore, appsAfter)
	assert.Equal(t, auditBefore, s.Recorder().Recent(100))
	assert.Empty(t, arch.keys)

	real := run(t, im, doc, false)
	assert.Equal(t, dry, real, "a dry run predicts the real result")
	assert.Equal(t, 2, real.Created)
	assert.Equal(t, 1, real.Updated)
}

func TestRun_Caps(t *testing.T) {
	tests := []struct {
		name   string
		limits Limits
		doc    string
	}{
		{"too many categories", Limits{MaxCategories: 1}, `{"categories":[{"title":"A"},{"title":"B"}]}`},
		{"too many apps", Limits{MaxApps: 2}, `{"categories":[{"title":"A","packages":["com.a.a","com.a.b"]},{"title":"B","packages":["bad"]}]}`},
		{"file too large", Limits{MaxFileSizeMB: 1}, `{"categories":[],"pad":"` + strings.Repeat("x", 1<<20) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im, s, _ := newImporter(t, tt.limits)
			res, err := im.Run(context.Background(), actor, Request{Data: []byte(tt.doc)})
			assert.ErrorIs(t, err, domain.ErrCapExceeded)
			assert.Equal(t, domain.ImportResult{}, res)
			assert.Zero(t, s.Recorder().Len())
			_, total := s.ListCategories(catalog.CategoryFilter{})
			assert.Zero(t, total)
		})
	}
}

func TestRun_ParsedPayload(t *testing.T) {
	im, s, arch := newImporter(t, Limits{})
	p := &Payload{Categories: []CategoryEntry{{
		Line: 1, Title: "Music", Packages: []PackageEntry{{Line: 2, Package: "com.music.player"}},
	}}}
	res, err := im.Run(context.Background(), actor, Request{Payload: p})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, s.Recorder().Len())

	require.Len(t, arch.keys, 1)
	assert.True(t, strings.HasPrefix(arch.keys[0], "imports/"))
	assert.True(t, strings.HasSuffix(arch.keys[0], ".json"))
	assert.JSONEq(t, `{"categories":[{"title":"Music","packages":["com.music.player"]}]}`, string(arch.data[0]))
}

func TestRun_ArchiveFailureIsNotFatal(t *testing.T) {
	im, s, arch := newImporter(t, Limits{})
	arch.err = errors.New("bucket unavailable")

	res := run(t, im, `{"categories":[{"title":"A","packages":["com.a.b"]}]}`, false)
	assert.Equal(t, 1, res.Created)
	_, total := s.ListApps(catalog.AppFilter{})
	assert.Equal(t, 1, total)
}

type failingPersister struct{}

func (failingPersister) Apply(context.Context, catalog.ChangeSet) error {
	return errors.New("db down")
}

func TestRun_PersistFailureRollsBack(t *testing.T) {
	s := catalog.New(catalog.Options{Persister: failingPersister{}})
	im := New(s, Limits{}, Options{})

	_, err := im.Run(context.Background(), actor, Request{Data: []byte(`{"categories":[{"title":"A","packages":["com.a.b"]}]}`)})
	require.Error(t, err)
	_, total := s.ListApps(catalog.AppFilter{})
	assert.Zero(t, total)
	assert.Zero(t, s.Recorder().Len())
}

func TestArchiveKey(t *testing.T) {
	ts, _ := time.Parse(time.RFC3339, "2024-01-15T23:30:00-05:00")
	assert.Equal(t, "imports/2024-01-16/abc.json", ArchiveKey(ts, "abc"))
}

func TestRun_OverlongPackageSkipped(t *testing.T) {
	im, s, _ := newImporter(t, Limits{})
	long := "com." + strings.Repeat("x", domain.MaxPackageLength)
	res := run(t, im, `{"categories":[{"title":"Tools","packages":["`+long+`","com.ok.app"]}]}`, false)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "invalid package format", res.Errors[0].Message)
	assert.Equal(t, long, res.Errors[0].Data["package"])
	_, total := s.ListApps(catalog.AppFilter{})
	assert.Equal(t, 1, total)
}

func TestRun_DuplicateTitlesMergeIntoOldest(t *testing.T) {
	at := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	s := catalog.New(catalog.Options{Clock: func() time.Time {
		at = at.Add(time.Minute)
		return at
	}})
	ctx := context.Background()
	older, err := s.CreateCategory(ctx, actor, domain.CreateCategoryInput{Name: "TOOLS"})
	require.NoError(t, err)
	_, err = s.CreateCategory(ctx, actor, domain.CreateCategoryInput{Name: "Tools"})
	require.NoError(t, err)
	im := New(s, Limits{}, Options{})

	for i := 0; i < 20; i++ {
		pkg := fmt.Sprintf("com.tools.app%d", i)
		run(t, im, `{"categories":[{"title":"tools","packages":["`+pkg+`"]}]}`, false)
	}
	_, inOlder := s.ListApps(catalog.AppFilter{CategoryID: older.ID})
	_, all := s.ListApps(catalog.AppFilter{})
	assert.Equal(t, 20, inOlder)
	assert.Equal(t, 20, all)
}
