// Package cache is a small JSON read-through cache on Redis. A nil *Cache
// (no REDIS_URL configured) is valid and turns every call into a miss or a
// no-op, so callers never branch on whether caching is enabled.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache wraps a Redis client with a key prefix and a default TTL.
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New connects to redisURL (redis:// or rediss://). An empty URL returns a
// nil, disabled cache.
func New(redisURL, prefix string, ttl time.Duration) (*Cache, error) {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	if opts.PoolSize == 0 {
		opts.PoolSize = 10
	}
	return NewWithClient(redis.NewClient(opts), prefix, ttl), nil
}

// NewWithClient wraps an existing client. Keys are stored as
// "<prefix>:<key>"; a trailing ":" on prefix is dropped.
func NewWithClient(client redis.UniversalClient, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cache{client: client, prefix: strings.TrimSuffix(prefix, ":"), ttl: ttl}
}

// Enabled reports whether calls reach Redis.
func (c *Cache) Enabled() bool { return c != nil && c.client != nil }

// Ping checks connectivity.
func (c *Cache) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// GetJSON decodes the value stored at key into dst. It reports false on a
// miss, when disabled, or when the stored value no longer decodes.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if !c.Enabled() {
		return false, nil
	}
	b, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		_ = c.client.Del(ctx, c.key(key)).Err()
		return false, nil
	}
	return true, nil
}

// SetJSON stores v at key. ttl <= 0 uses the cache default.
func (c *Cache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if !c.Enabled() {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	return c.client.Set(ctx, c.key(key), b, ttl).Err()
}

// Delete removes keys.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if !c.Enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// Generation returns the current generation counter of a namespace. Keys
// that embed it are invalidated together by Bump.
func (c *Cache) Generation(ctx context.Context, ns string) (int64, error) {
	if !c.Enabled() {
		return 0, nil
	}
	n, err := c.client.Get(ctx, c.key("gen:"+ns)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Bump advances a namespace generation.
func (c *Cache) Bump(ctx context.Context, ns string) error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Incr(ctx, c.key("gen:"+ns)).Err()
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}
