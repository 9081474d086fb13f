package cache

import (
	"context"
	"time"
)

// LoadFunc fetches a value on a cache miss.
type LoadFunc[T any] func(ctx context.Context) (T, error)

// Result reports whether GetOrLoad served from cache.
type Result[T any] struct {
	Value T
	Hit   bool
	// CacheErr is a CacheError from a type mismatch; the value was reloaded.
	CacheErr error
}

// GetOrLoad returns the cached value for key or calls load and caches a
// successful result for ttl. Failed loads are never cached so the next
// request retries upstream.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl TTLFunc[T], load LoadFunc[T]) (Result[T], error) {
	v, ok, cacheErr := GetAs[T](c, key)
	if ok {
		return Result[T]{Value: v, Hit: true}, nil
	}

	v, err := load(ctx)
	if err != nil {
		return Result[T]{CacheErr: cacheErr}, err
	}
	c.Set(key, v, ttl(v))
	return Result[T]{Value: v, CacheErr: cacheErr}, nil
}

// TTLFunc picks a lifetime for a freshly loaded value. Returning zero skips
// caching, which lets callers avoid pinning empty upstream answers.
type TTLFunc[T any] func(v T) time.Duration

// Fixed returns a TTLFunc that always yields d.
func Fixed[T any](d time.Duration) TTLFunc[T] {
	return func(T) time.Duration { return d }
}
