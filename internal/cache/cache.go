// Package cache provides the byte cache behind the aggregated
// documentation endpoints: an in-process map or a shared Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vyrodovalexey/bizgw/internal/config"
	"github.com/vyrodovalexey/bizgw/internal/observability"
)

// Common cache errors.
var (
	// ErrCacheMiss indicates that the key was not found or has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidConfig indicates that the cache configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")
)

// Cache stores opaque values under string keys.
type Cache interface {
	// Get returns ErrCacheMiss when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value for ttl. A zero ttl uses the cache default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	Delete(ctx context.Context, key string) error

	// Clear removes every key this cache owns.
	Clear(ctx context.Context) error

	Close() error
}

// New creates the cache described by cfg. A disabled cache returns
// (nil, nil); callers treat a nil Cache as "no caching".
func New(cfg config.CacheConfig, logger observability.Logger) (Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Type {
	case config.CacheTypeMemory, "":
		return NewMemory(cfg.TTL.Duration()), nil
	case config.CacheTypeRedis:
		rc, err := NewRedis(cfg.RedisURL, cfg.TTL.Duration(), WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return rc, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache type %q", ErrInvalidConfig, cfg.Type)
	}
}
