package authgate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-admin/internal/catalog"
	"catalog-admin/internal/core/auth"
	"catalog-admin/internal/domain"
	"catalog-admin/pkg/utils"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type captureNotifier struct {
	token string
}

func (n *captureNotifier) NotifyReset(_ context.Context, _ domain.User, token string, _ time.Time) error {
	n.token = token
	return nil
}

type fixture struct {
	svc      *Service
	store    *catalog.Store
	clock    *clock
	notifier *captureNotifier
	admin    domain.User
}

const adminPassword = "admin12345"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clk := &clock{now: time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)}
	store := catalog.New(catalog.Options{Clock: clk.Now})
	hash, err := utils.HashPassword(adminPassword)
	require.NoError(t, err)
	admin, err := store.CreateUser(context.Background(), domain.SystemActor, domain.CreateUserInput{
		Name: "John Smith", Email: "admin@company.com", Role: domain.RoleSuperAdmin, PasswordHash: hash,
	})
	require.NoError(t, err)

	n := &captureNotifier{}
	svc := NewService(store, Options{
		Config:   Config{SessionTimeout: time.Hour, MaxLoginAttempts: 3},
		JWT:      &auth.JWTer{Secret: []byte("test-secret"), Issuer: "catalog-admin", TTL: time.Hour, Now: clk.Now},
		Notifier: n,
		Clock:    clk.Now,
	})
	return &fixture{svc: svc, store: store, clock: clk, notifier: n, admin: admin}
}

func TestSignIn_VerifyAndSignOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess, err := f.svc.SignIn(ctx, Credentials{Email: " Admin@Company.com", Password: adminPassword})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, f.admin.ID, sess.User.ID)
	require.NotNil(t, sess.User.LastLogin)
	assert.Equal(t, f.clock.Now().Add(time.Hour), sess.ExpiresAt)

	p, err := f.svc.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleSuperAdmin, p.Role)
	assert.Equal(t, "John Smith", p.Name)

	require.NoError(t, f.svc.SignOut(ctx, sess.Token))
	_, err = f.svc.Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestSignIn_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignIn(ctx, Credentials{Email: "admin@company.com", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrAuth)
	_, err = f.svc.SignIn(ctx, Credentials{Email: "nobody@company.com", Password: adminPassword})
	assert.ErrorIs(t, err, domain.ErrAuth)

	_, err = f.store.ToggleUserStatus(ctx, domain.SystemActor, f.admin.ID)
	require.NoError(t, err)
	_, err = f.svc.SignIn(ctx, Credentials{Email: "admin@company.com", Password: adminPassword})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestSignIn_ThrottlesRepeatedFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	creds := Credentials{Email: "admin@company.com", Password: "wrong"}

	for i := 0; i < 3; i++ {
		_, err := f.svc.SignIn(ctx, creds)
		require.ErrorIs(t, err, domain.ErrAuth)
	}
	_, err := f.svc.SignIn(ctx, Credentials{Email: "admin@company.com", Password: adminPassword})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many")

	// one attempt is refilled every timeout/maxAttempts
	f.clock.Advance(20 * time.Minute)
	_, err = f.svc.SignIn(ctx, Credentials{Email: "admin@company.com", Password: adminPassword})
	assert.NoError(t, err)
}

func TestSignUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignUp(ctx, SignUpInput{Name: "Jane", Email: "jane@company.com", Password: "password1", ConfirmPassword: "password2"})
	require.ErrorIs(t, err, domain.ErrAuth)
	assert.Contains(t, err.Error(), "passwords do not match")

	_, err = f.svc.SignUp(ctx, SignUpInput{Name: "Dup", Email: "ADMIN@company.com", Password: "password1", ConfirmPassword: "password1"})
	assert.ErrorIs(t, err, domain.ErrAuth)

	_, err = f.svc.SignUp(ctx, SignUpInput{Name: "Jane", Email: "jane@company.com", Password: "short", ConfirmPassword: "short"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	sess, err := f.svc.SignUp(ctx, SignUpInput{Name: "Jane", Email: "jane@company.com", Password: "password1", ConfirmPassword: "password1"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEditor, sess.User.Role)
	assert.Equal(t, domain.StatusActive, sess.User.Status)

	p, err := f.svc.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, p.UserID)

	e := f.store.Recorder().Recent(1)[0]
	assert.Equal(t, domain.ActionCreate, e.Action)
	assert.Equal(t, domain.EntityUser, e.EntityType)
}

func TestVerify_UsesCurrentRoleAndStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess, err := f.svc.SignIn(ctx, Credentials{Email: "admin@company.com", Password: adminPassword})
	require.NoError(t, err)

	role := domain.RoleEditor
	_, err = f.store.UpdateUser(ctx, domain.SystemActor, f.admin.ID, domain.UpdateUserInput{Role: &role})
	require.NoError(t, err)
	p, err := f.svc.Verify(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleEditor, p.Role)

	_, err = f.store.ToggleUserStatus(ctx, domain.SystemActor, f.admin.ID)
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestVerify_RejectsForeignAndIdleTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := &auth.JWTer{Secret: []byte("other"), Issuer: "catalog-admin", TTL: time.Hour}
	forged, _, err := other.Issue(auth.Identity{UID: f.admin.ID, Role: "SuperAdmin"}, "sid")
	require.NoError(t, err)
	_, err = f.svc.Verify(ctx, forged)
	assert.ErrorIs(t, err, domain.ErrAuth)

	_, err = f.svc.Verify(ctx, "garbage")
	assert.ErrorIs(t, err, domain.ErrAuth)

	sess, err := f.svc.SignIn(ctx, Credentials{Email: "admin@company.com", Password: adminPassword})
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	require.NoError(t, f.svc.SweepIdle(ctx))
	_, err = f.svc.Verify(ctx, sess.Token)
	require.NoError(t, err, "touched sessions stay alive")

	f.clock.Advance(61 * time.Minute)
	require.NoError(t, f.svc.SweepIdle(ctx))
	_, err = f.svc.Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@company.com"))
	assert.Empty(t, f.notifier.token)

	sess, err := f.svc.SignIn(ctx, Credentials{Email: "admin@company.com", Password: adminPassword})
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "admin@company.com"))
	token := f.notifier.token
	require.NotEmpty(t, token)

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "newpassword", ConfirmPassword: "different"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: "bogus", Password: "newpassword", ConfirmPassword: "newpassword"})
	assert.ErrorIs(t, err, domain.ErrAuth)

	require.NoError(t, f.svc.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "newpassword", ConfirmPassword: "newpassword"}))

	// single use
	err = f.svc.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: "another1", ConfirmPassword: "another1"})
	assert.ErrorIs(t, err, domain.ErrAuth)

	// existing sessions are revoked
	_, err = f.svc.Verify(ctx, sess.Token)
	assert.ErrorIs(t, err, domain.ErrAuth)

	_, err = f.svc.SignIn(ctx, Credentials{Email: "admin@company.com", Password: adminPassword})
	assert.ErrorIs(t, err, domain.ErrAuth)
	_, err = f.svc.SignIn(ctx, Credentials{Email: "admin@company.com", Password: "newpassword"})
	assert.NoError(t, err)
}

func TestPasswordReset_Expires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.svc.ForgotPassword(ctx, "admin@company.com"))

	f.clock.Advance(2 * time.Hour)
	err := f.svc.ResetPassword(ctx, ResetPasswordInput{Token: f.notifier.token, Password: "newpassword", ConfirmPassword: "newpassword"})
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry(time.Minute)
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, r.Add(ctx, "s1", "u1", t0))
	require.NoError(t, r.Add(ctx, "s2", "u1", t0))
	require.NoError(t, r.Add(ctx, "s3", "u2", t0))

	uid, ok, err := r.Touch(ctx, "s1", t0.Add(50*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "u1", uid)

	removed, remaining, err := r.Sweep(ctx, t0.Add(90*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, remaining)

	require.NoError(t, r.RemoveUser(ctx, "u1"))
	_, ok, _ = r.Touch(ctx, "s1", t0.Add(91*time.Second))
	assert.False(t, ok)
}
