package authgate

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-admin/internal/domain"
)

func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNewRedisSlot_DefaultKey(t *testing.T) {
	rdb := unreachableRedis(t)
	assert.Equal(t, DefaultRedisSlotKey, NewRedisSlot(rdb, "").Key)
	assert.Equal(t, "team:token", NewRedisSlot(rdb, "team:token").Key)
}

func TestRedisSlot_ErrorsAreWrapped(t *testing.T) {
	ctx := context.Background()
	slot := NewRedisSlot(unreachableRedis(t), "")

	_, ok, err := slot.Load(ctx)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "load token")

	err = slot.Save(ctx, "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save token")

	err = slot.Clear(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clear token")
}

func TestClientSession_UnreadableRedisSlot(t *testing.T) {
	s := NewClientSession(&mockAuthenticator{}, NewRedisSlot(unreachableRedis(t), ""), nil)

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.Equal(t, PhaseError, s.State().Phase)
	assert.Empty(t, s.Token())
}
