package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"catalog-admin/internal/authgate"
	"catalog-admin/internal/catalog"
	"catalog-admin/internal/core/auth"
	"catalog-admin/internal/domain"
	"catalog-admin/internal/importer"
	"catalog-admin/internal/transport/http/handler"
	"catalog-admin/pkg/utils"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	store  *catalog.Store
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := catalog.New(catalog.Options{})
	svc := authgate.NewService(store, authgate.Options{
		JWT: &auth.JWTer{Secret: []byte("test"), Issuer: "catalog-admin", TTL: time.Hour},
	})
	for _, u := range []struct {
		email string
		role  domain.Role
	}{
		{"root@company.com", domain.RoleSuperAdmin},
		{"admin@company.com", domain.RoleAdmin},
		{"editor@company.com", domain.RoleEditor},
	} {
		hash, err := utils.HashPassword("password1")
		require.NoError(t, err)
		_, err = store.CreateUser(context.Background(), domain.SystemActor, domain.CreateUserInput{
			Name: string(u.role), Email: u.email, Role: u.role, PasswordHash: hash,
		})
		require.NoError(t, err)
	}

	deps := handler.Deps{
		Store:    store,
		Auth:     svc,
		Importer: importer.New(store, importer.DefaultLimits(), importer.Options{}),
		Log:      zap.NewNop(),
	}
	return &testServer{t: t, engine: NewEngine(zap.NewNop(), deps, Options{}), store: store}
}

func (s *testServer) do(method, path, token string, body any) envelope {
	s.t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return s.send(req, token)
}

func (s *testServer) send(req *http.Request, token string) envelope {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (s *testServer) signIn(email string) string {
	s.t.Helper()
	env := s.do(http.MethodPost, "/api/v1/auth/sign-in", "", gin.H{"email": email, "password": "password1"})
	require.Equal(s.t, 0, env.Code, env.Msg)
	var sess authgate.Session
	require.NoError(s.t, json.Unmarshal(env.Data, &sess))
	return sess.Token
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}

func TestAuthFlow(t *testing.T) {
	s := newServer(t)

	env := s.do(http.MethodGet, "/api/v1/me", "", nil)
	assert.Equal(t, 401, env.Code)

	env = s.do(http.MethodPost, "/api/v1/auth/sign-in", "", gin.H{"email": "editor@company.com", "password": "nope"})
	assert.Equal(t, 401, env.Code)

	env = s.do(http.MethodPost, "/api/v1/auth/sign-in", "", gin.H{"email": "not-an-email", "password": "x"})
	assert.Equal(t, 400, env.Code)

	token := s.signIn("editor@company.com")
	me := decode[struct {
		User domain.User `json:"user"`
	}](t, s.do(http.MethodGet, "/api/v1/me", token, nil))
	assert.Equal(t, "editor@company.com", me.User.Email)

	env = s.do(http.MethodPost, "/api/v1/auth/sign-out", token, nil)
	assert.Equal(t, 0, env.Code)
	env = s.do(http.MethodGet, "/api/v1/me", token, nil)
	assert.Equal(t, 401, env.Code)
}

func TestSignUpGetsEditorRole(t *testing.T) {
	s := newServer(t)
	env := s.do(http.MethodPost, "/api/v1/auth/sign-up", "", gin.H{
		"name": "Jane", "email": "jane@company.com", "password": "password1", "confirmPassword": "password1",
	})
	require.Equal(t, 0, env.Code, env.Msg)
	sess := decode[authgate.Session](t, env)
	assert.Equal(t, domain.RoleEditor, sess.User.Role)

	env = s.do(http.MethodGet, "/admin/v1/users", sess.Token, nil)
	assert.Equal(t, 403, env.Code)
}

func TestCatalogCRUDAndRoles(t *testing.T) {
	s := newServer(t)
	editor := s.signIn("editor@company.com")
	admin := s.signIn("admin@company.com")

	env := s.do(http.MethodPost, "/admin/v1/categories", editor, gin.H{"name": "Developer Tools"})
	require.Equal(t, 0, env.Code, env.Msg)
	cat := decode[domain.Category](t, env)
	assert.Equal(t, "developer-tools", cat.Slug)

	env = s.do(http.MethodPost, "/admin/v1/apps", editor, gin.H{"name": "X", "package": "not a package", "categoryId": cat.ID})
	assert.Equal(t, 400, env.Code)
	assert.JSONEq(t, `{"field":"package"}`, string(env.Data))

	env = s.do(http.MethodPost, "/admin/v1/apps", editor, gin.H{"name": "Git", "package": "com.example.git", "categoryId": cat.ID})
	require.Equal(t, 0, env.Code, env.Msg)
	app := decode[domain.App](t, env)
	assert.Equal(t, domain.SourceManual, app.Source)

	env = s.do(http.MethodPost, "/admin/v1/apps", editor, gin.H{"name": "Dup", "package": "com.example.git", "categoryId": cat.ID})
	assert.Equal(t, 409, env.Code)

	env = s.do(http.MethodPut, "/admin/v1/categories/"+cat.ID, editor, gin.H{"description": "tools", "version": 99})
	assert.Equal(t, 409, env.Code)

	env = s.do(http.MethodPost, "/admin/v1/apps/"+app.ID+"/toggle", editor, nil)
	require.Equal(t, 0, env.Code)
	assert.Equal(t, domain.StatusInactive, decode[domain.App](t, env).Status)

	page := decode[handler.Page[domain.App]](t, s.do(http.MethodGet, "/admin/v1/apps?status=inactive&q=git", editor, nil))
	assert.Equal(t, 1, page.Total)

	env = s.do(http.MethodDelete, "/admin/v1/categories/"+cat.ID, editor, nil)
	assert.Equal(t, 403, env.Code)
	env = s.do(http.MethodDelete, "/admin/v1/categories/"+cat.ID, admin, nil)
	assert.Equal(t, 409, env.Code)
	env = s.do(http.MethodDelete, "/admin/v1/categories/"+cat.ID+"?cascade=true", admin, nil)
	require.Equal(t, 0, env.Code, env.Msg)

	env = s.do(http.MethodGet, "/admin/v1/apps/"+app.ID, editor, nil)
	assert.Equal(t, 404, env.Code)

	entries := decode[handler.Page[domain.AuditEntry]](t, s.do(http.MethodGet, "/admin/v1/audit?entityType=app", editor, nil))
	// create, disable, cascade delete
	assert.Equal(t, 3, entries.Total)
	assert.Equal(t, domain.ActionDelete, entries.Items[0].Action)
	assert.Equal(t, "Admin", entries.Items[0].UserName)
}

func TestImportEndpoints(t *testing.T) {
	s := newServer(t)
	admin := s.signIn("admin@company.com")
	editor := s.signIn("editor@company.com")
	doc := `{"categories":[{"title":"Games","packages":["com.example.chess","bad pkg"]}]}`

	req := httptest.NewRequest(http.MethodPost, "/admin/v1/imports", bytes.NewBufferString(doc))
	req.Header.Set("Content-Type", "application/json")
	env := s.send(req, editor)
	assert.Equal(t, 403, env.Code)

	// dry run by default
	req = httptest.NewRequest(http.MethodPost, "/admin/v1/imports", bytes.NewBufferString(doc))
	req.Header.Set("Content-Type", "application/json")
	env = s.send(req, admin)
	require.Equal(t, 0, env.Code, env.Msg)
	out := decode[struct {
		DryRun bool `json:"dryRun"`
		domain.ImportResult
	}](t, env)
	assert.True(t, out.DryRun)
	assert.Equal(t, 1, out.Created)
	assert.Equal(t, 1, out.Skipped)
	require.Len(t, out.Errors, 1)
	_, total := s.store.ListApps(catalog.AppFilter{})
	assert.Equal(t, 0, total)

	auditBefore := s.store.Recorder().Len()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "import.json")
	require.NoError(t, err)
	_, _ = fw.Write([]byte(doc))
	require.NoError(t, mw.Close())
	req = httptest.NewRequest(http.MethodPost, "/admin/v1/imports?dryRun=false", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	env = s.send(req, admin)
	require.Equal(t, 0, env.Code, env.Msg)
	assert.False(t, decode[struct {
		DryRun bool `json:"dryRun"`
	}](t, env).DryRun)
	_, total = s.store.ListApps(catalog.AppFilter{})
	assert.Equal(t, 1, total)

	hist := decode[handler.Page[domain.AuditEntry]](t, s.do(http.MethodGet, "/admin/v1/imports", admin, nil))
	require.Equal(t, 1, hist.Total)
	require.NotNil(t, hist.Items[0].After)
	assert.Equal(t, 1, hist.Items[0].After.Import.CategoriesCreated)
	// one app entry plus the summary
	assert.Equal(t, 2, s.store.Recorder().Len()-auditBefore)

	req = httptest.NewRequest(http.MethodPost, "/admin/v1/imports?dryRun=false", bytes.NewBufferString(`{"nope":1}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, 400, s.send(req, admin).Code)
}

func TestDashboardAndUsers(t *testing.T) {
	s := newServer(t)
	root := s.signIn("root@company.com")
	admin := s.signIn("admin@company.com")

	dash := decode[handler.Dashboard](t, s.do(http.MethodGet, "/admin/v1/dashboard", admin, nil))
	assert.Equal(t, 3, dash.Users.Total)
	assert.LessOrEqual(t, len(dash.Recent), 5)

	users := decode[handler.Page[domain.User]](t, s.do(http.MethodGet, "/admin/v1/users?role=Editor", admin, nil))
	require.Equal(t, 1, users.Total)
	editorID := users.Items[0].ID

	env := s.do(http.MethodPost, "/admin/v1/users/"+editorID+"/toggle", admin, nil)
	assert.Equal(t, 403, env.Code)

	env = s.do(http.MethodPost, "/admin/v1/users/"+editorID+"/toggle", root, nil)
	require.Equal(t, 0, env.Code, env.Msg)
	assert.Equal(t, domain.StatusInactive, decode[domain.User](t, env).Status)

	env = s.do(http.MethodPut, "/admin/v1/users/"+editorID, root, gin.H{"role": "Owner"})
	assert.Equal(t, 400, env.Code)
	env = s.do(http.MethodPut, "/admin/v1/users/"+editorID, root, gin.H{"role": "Admin"})
	require.Equal(t, 0, env.Code, env.Msg)
	assert.Equal(t, domain.RoleAdmin, decode[domain.User](t, env).Role)

	env = s.do(http.MethodPost, "/api/v1/auth/sign-in", "", gin.H{"email": "editor@company.com", "password": "password1"})
	assert.Equal(t, 401, env.Code)
}
