package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vyrodovalexey/bizgw/internal/observability"
)

// DefaultKeyPrefix namespaces every key the gateway writes.
const DefaultKeyPrefix = "bizgw:docs:"

// Redis is a cache shared between gateway replicas.
type Redis struct {
	client     *redis.Client
	logger     observability.Logger
	keyPrefix  string
	defaultTTL time.Duration
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) RedisOption {
	return func(c *Redis) {
		c.logger = logger
	}
}

// WithKeyPrefix overrides DefaultKeyPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(c *Redis) {
		c.keyPrefix = prefix
	}
}

// NewRedis connects to rawURL (redis:// or rediss://) and pings it.
func NewRedis(rawURL string, defaultTTL time.Duration, opts ...RedisOption) (*Redis, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("%w: redis URL is required", ErrInvalidConfig)
	}
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	c := &Redis{
		client:     redis.NewClient(redisOpts),
		logger:     observability.NopLogger(),
		keyPrefix:  DefaultKeyPrefix,
		defaultTTL: defaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.Ping(ctx).Err(); err != nil {
		_ = c.client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", redisOpts.Addr, err)
	}

	c.logger.Info("redis cache connected", observability.String("addr", redisOpts.Addr))
	return c, nil
}

// Get returns ErrCacheMiss for absent keys.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// Set stores value with ttl, or the default TTL when ttl is zero.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Redis) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the prefix using SCAN, so other data in
// the same database is untouched.
func (c *Redis) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	c.logger.Debug("redis cache cleared", observability.Int("keys", len(keys)))
	return nil
}

// Close closes the client.
func (c *Redis) Close() error {
	return c.client.Close()
}
