package authgate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRegistry tracks live server-side sessions. A session that has not been touched
// for longer than the idle timeout is gone.
type SessionRegistry interface {
	Add(ctx context.Context, sid, userID string, now time.Time) error
	// Touch refreshes a session and returns its user. ok is false for unknown or idle sessions.
	Touch(ctx context.Context, sid string, now time.Time) (userID string, ok bool, err error)
	Remove(ctx context.Context, sid string) error
	RemoveUser(ctx context.Context, userID string) error
	// Sweep drops idle sessions and reports how many were removed and how many remain.
	Sweep(ctx context.Context, now time.Time) (removed, remaining int, err error)
}

type memSession struct {
	userID   string
	lastSeen time.Time
}

type MemoryRegistry struct {
	mu       sync.Mutex
	idle     time.Duration
	sessions map[string]memSession
}

func NewMemoryRegistry(idle time.Duration) *MemoryRegistry {
	return &MemoryRegistry{idle: idle, sessions: map[string]memSession{}}
}

func (r *MemoryRegistry) expired(s memSession, now time.Time) bool {
	return now.Sub(s.lastSeen) > r.idle
}

func (r *MemoryRegistry) Add(_ context.Context, sid, userID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = memSession{userID: userID, lastSeen: now}
	return nil
}

func (r *MemoryRegistry) Touch(_ context.Context, sid string, now time.Time) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sid]
	if !ok {
		return "", false, nil
	}
	if r.expired(s, now) {
		delete(r.sessions, sid)
		return "", false, nil
	}
	s.lastSeen = now
	r.sessions[sid] = s
	return s.userID, true, nil
}

func (r *MemoryRegistry) Remove(_ context.Context, sid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	return nil
}

func (r *MemoryRegistry) RemoveUser(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for sid, s := range r.sessions {
		if s.userID == userID {
			delete(r.sessions, sid)
		}
	}
	return nil
}

func (r *MemoryRegistry) Sweep(_ context.Context, now time.Time) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for sid, s := range r.sessions {
		if r.expired(s, now) {
			delete(r.sessions, sid)
			removed++
		}
	}
	return removed, len(r.sessions), nil
}

// RedisRegistry keeps one key per session with a sliding TTL, plus a set of session ids
// per user for bulk revocation. Redis expiry does the idle sweeping.
type RedisRegistry struct {
	rdb    *redis.Client
	idle   time.Duration
	prefix string
}

func NewRedisRegistry(rdb *redis.Client, idle time.Duration) *RedisRegistry {
	return &RedisRegistry{rdb: rdb, idle: idle, prefix: "catalog:"}
}

func (r *RedisRegistry) sessionKey(sid string) string { return r.prefix + "session:" + sid }
func (r *RedisRegistry) userKey(uid string) string    { return r.prefix + "user_sessions:" + uid }

func (r *RedisRegistry) Add(ctx context.Context, sid, userID string, _ time.Time) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.sessionKey(sid), userID, r.idle)
		p.SAdd(ctx, r.userKey(userID), sid)
		p.Expire(ctx, r.userKey(userID), r.idle)
		return nil
	})
	if err != nil {
		return fmt.Errorf("register session: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Touch(ctx context.Context, sid string, _ time.Time) (string, bool, error) {
	uid, err := r.rdb.GetEx(ctx, r.sessionKey(sid), r.idle).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("touch session: %w", err)
	}
	// the index lives as long as its newest session
	if err := r.rdb.Expire(ctx, r.userKey(uid), r.idle).Err(); err != nil {
		return "", false, fmt.Errorf("touch session: %w", err)
	}
	return uid, true, nil
}

func (r *RedisRegistry) Remove(ctx context.Context, sid string) error {
	uid, err := r.rdb.GetDel(ctx, r.sessionKey(sid)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return r.rdb.SRem(ctx, r.userKey(uid), sid).Err()
}

func (r *RedisRegistry) RemoveUser(ctx context.Context, userID string) error {
	sids, err := r.rdb.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return fmt.Errorf("list user sessions: %w", err)
	}
	keys := make([]string, 0, len(sids)+1)
	for _, sid := range sids {
		keys = append(keys, r.sessionKey(sid))
	}
	keys = append(keys, r.userKey(userID))
	return r.rdb.Del(ctx, keys...).Err()
}

// Sweep only counts what is left; expired keys are already gone.
func (r *RedisRegistry) Sweep(ctx context.Context, _ time.Time) (int, int, error) {
	remaining := 0
	iter := r.rdb.Scan(ctx, 0, r.sessionKey("*"), 500).Iterator()
	for iter.Next(ctx) {
		remaining++
	}
	if err := iter.Err(); err != nil {
		return 0, 0, fmt.Errorf("scan sessions: %w", err)
	}
	return 0, remaining, nil
}
