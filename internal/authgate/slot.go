package authgate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// TokenSlot is a durable single-key store for the client's session token.
type TokenSlot interface {
	Load(ctx context.Context) (token string, ok bool, err error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type MemorySlot struct {
	mu    sync.Mutex
	token string
}

func (s *MemorySlot) Load(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != "", nil
}

func (s *MemorySlot) Save(_ context.Context, token string) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *MemorySlot) Clear(context.Context) error { return s.Save(context.Background(), "") }

// FileSlot keeps the token in a file. Writes go to a temp file that is renamed into
// place, so a crash leaves either the old token or the new one.
type FileSlot struct {
	Path string
	mu   sync.Mutex
}

func NewFileSlot(path string) (*FileSlot, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &FileSlot{Path: path}, nil
}

func (s *FileSlot) Load(context.Context) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	token := strings.TrimSpace(string(b))
	return token, token != "", nil
}

func (s *FileSlot) Save(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

func (s *FileSlot) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

const DefaultRedisSlotKey = "catalogctl:token"

// RedisSlot keeps the token under one Redis key, so every client pointed at the same key
// shares a sign-in.
type RedisSlot struct {
	RDB *redis.Client
	Key string
}

func NewRedisSlot(rdb *redis.Client, key string) *RedisSlot {
	if key == "" {
		key = DefaultRedisSlotKey
	}
	return &RedisSlot{RDB: rdb, Key: key}
}

func (s *RedisSlot) Load(ctx context.Context) (string, bool, error) {
	v, err := s.RDB.Get(ctx, s.Key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load token: %w", err)
	}
	return v, v != "", nil
}

func (s *RedisSlot) Save(ctx context.Context, token string) error {
	if err := s.RDB.Set(ctx, s.Key, token, 0).Err(); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *RedisSlot) Clear(ctx context.Context) error {
	if err := s.RDB.Del(ctx, s.Key).Err(); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}
