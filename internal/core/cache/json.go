package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Fetch is GetOrLoad for a JSON-encoded value. Loads are never cached when they fail,
// and a cached document that no longer decodes into T is reloaded.
func Fetch[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if c == nil {
		return load(ctx)
	}
	var fresh *T
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		fresh = &v
		return json.Marshal(v)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if fresh != nil {
		return *fresh, nil
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		c.Invalidate(ctx, key)
		v, lerr := load(ctx)
		if lerr != nil {
			return v, fmt.Errorf("cache %s: %w", key, lerr)
		}
		return v, nil
	}
	return out, nil
}
