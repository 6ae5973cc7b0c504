package authgate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"catalog-admin/internal/catalog"
	"catalog-admin/internal/core/auth"
	"catalog-admin/internal/domain"
	"catalog-admin/pkg/utils"
)

func serviceWithLogs(t *testing.T, reveal bool) (*Service, *observer.ObservedLogs) {
	t.Helper()
	store := catalog.New(catalog.Options{})
	hash, err := utils.HashPassword(adminPassword)
	require.NoError(t, err)
	_, err = store.CreateUser(context.Background(), domain.SystemActor, domain.CreateUserInput{
		Name: "John Smith", Email: "admin@company.com", Role: domain.RoleSuperAdmin, PasswordHash: hash,
	})
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	svc := NewService(store, Options{
		JWT:            &auth.JWTer{Secret: []byte("test-secret"), Issuer: "catalog-admin", TTL: time.Hour},
		LogResetTokens: reveal,
		Logger:         zap.New(core),
	})
	return svc, logs
}

func TestForgotPassword_TokenNotLoggedByDefault(t *testing.T) {
	svc, logs := serviceWithLogs(t, false)
	require.NoError(t, svc.ForgotPassword(context.Background(), "admin@company.com"))

	entries := logs.FilterMessage("password reset requested").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "reset_token")
	assert.Equal(t, "admin@company.com", fields["email"])
	assert.Contains(t, fields, "expires_at")
}

func TestForgotPassword_TokenLoggedWhenEnabled(t *testing.T) {
	svc, logs := serviceWithLogs(t, true)
	require.NoError(t, svc.ForgotPassword(context.Background(), "admin@company.com"))

	entries := logs.FilterMessage("password reset requested").All()
	require.Len(t, entries, 1)
	token, ok := entries[0].ContextMap()["reset_token"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	// the logged token is the one the reset flow accepts
	err := svc.ResetPassword(context.Background(), ResetPasswordInput{
		Token: token, Password: "newpass123", ConfirmPassword: "newpass123",
	})
	assert.NoError(t, err)
}
