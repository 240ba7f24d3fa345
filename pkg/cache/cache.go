package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is a best-effort read-through cache. It is never the source of
// truth: values expire after their TTL, and every write path that changes
// the underlying data must call Invalidate for the affected key.
type Cache interface {
	// GetOrCompute returns the cached value for key, or runs produce,
	// stores the result with the given TTL, and returns it.
	GetOrCompute(ctx context.Context, key string, ttl time.Duration, produce func(ctx context.Context) ([]byte, error)) ([]byte, error)
	// Invalidate removes key so the next read recomputes it.
	Invalidate(ctx context.Context, key string) error
}

// Remember is a typed convenience wrapper over GetOrCompute using JSON encoding.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, produce func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	raw, err := c.GetOrCompute(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := produce(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, err
	}
	return out, nil
}
