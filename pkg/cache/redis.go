package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces every key this package writes.
const redisKeyPrefix = "astro"

// RedisCache is a Cache backed by Redis. Entries are JSON encoded and
// written with the cache TTL as the Redis expiry; freshness is still decided
// from StoredAt so all backends agree.
type RedisCache[T any] struct {
	redis *redis.Client
	name  string
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisCache creates a Redis backed cache. name is used both as key
// namespace and metric label.
func NewRedisCache[T any](client *redis.Client, name string, ttl time.Duration, opts ...Option) *RedisCache[T] {
	if client == nil {
		panic("redis client cannot be nil")
	}
	o := buildOptions(opts)
	return &RedisCache[T]{
		redis: client,
		name:  name,
		ttl:   ttl,
		now:   o.now,
	}
}

func (c *RedisCache[T]) redisKey(key Key) string {
	return fmt.Sprintf("%s:%s:%s", redisKeyPrefix, c.name, key)
}

// Get retrieves a fresh entry. A missing key or stale entry yields ok=false
// with a nil error.
func (c *RedisCache[T]) Get(ctx context.Context, key Key) (T, bool, error) {
	var zero T

	data, err := c.redis.Get(ctx, c.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues(c.name).Inc()
			return zero, false, nil
		}
		CacheErrors.WithLabelValues(c.name, "get").Inc()
		return zero, false, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues(c.name, "get").Inc()
		return zero, false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired(c.now(), c.ttl) {
		CacheExpired.WithLabelValues(c.name).Inc()
		CacheMisses.WithLabelValues(c.name).Inc()
		return zero, false, nil
	}

	CacheHits.WithLabelValues(c.name).Inc()
	return entry.Value, true, nil
}

// Put stores value and resets its freshness.
func (c *RedisCache[T]) Put(ctx context.Context, key Key, value T) error {
	data, err := json.Marshal(Entry[T]{Value: value, StoredAt: c.now()})
	if err != nil {
		CacheErrors.WithLabelValues(c.name, "set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := c.redis.Set(ctx, c.redisKey(key), data, c.ttl).Err(); err != nil {
		CacheErrors.WithLabelValues(c.name, "set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *RedisCache[T]) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}
