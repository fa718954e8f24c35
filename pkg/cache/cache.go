// Package cache is a small key/value cache with TTLs. Two backends exist:
// Redis for deployments and an in-process Memory store for local runs and
// tests. Both satisfy Store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/onyxia-store/onyxia/config"
	"github.com/onyxia-store/onyxia/pkg/logger"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is implemented by Memory and Redis. A zero ttl means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// Open builds the store named by CACHE_DRIVER. When Redis is selected but not
// reachable it logs a warning and returns a Memory store instead.
func Open(ctx context.Context) Store {
	if config.CacheDriver() == "memory" {
		return NewMemory()
	}

	r, err := DialRedis(ctx, config.RedisAddr(), config.RedisPassword())
	if err != nil {
		logger.Warn("redis unavailable, using in-memory cache", "addr", config.RedisAddr(), "error", err)
		return NewMemory()
	}
	return r
}

// GetJSON decodes the value under key into dest. It reports a hit only when
// the key exists and decodes cleanly.
func GetJSON(ctx context.Context, s Store, key string, dest interface{}) bool {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

// SetJSON encodes value and stores it under key.
func SetJSON(ctx context.Context, s Store, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: marshal %s: %w", key, err)
	}
	return s.Set(ctx, key, raw, ttl)
}

// Remember returns the cached value for key, or calls fn, caches its result
// for ttl and returns it. The bool reports whether the value came from cache.
func Remember[T any](ctx context.Context, s Store, key string, ttl time.Duration, fn func() (T, error)) (T, bool, error) {
	var v T
	if GetJSON(ctx, s, key, &v) {
		return v, true, nil
	}
	v, err := fn()
	if err != nil {
		return v, false, err
	}
	if err := SetJSON(ctx, s, key, v, ttl); err != nil {
		logger.WithCtx(ctx).Warn("cache write failed", "key", key, "error", err)
	}
	return v, false, nil
}
