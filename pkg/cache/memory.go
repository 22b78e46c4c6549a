package cache

import (
	"context"
	"sync"
	"time"
)

// TTLCache is an in-memory Cache. Stale entries are shadowed on Get and
// replaced on the next Put; nothing is evicted.
type TTLCache[T any] struct {
	name    string
	ttl     time.Duration
	now     func() time.Time
	mu      sync.RWMutex
	entries map[Key]Entry[T]
}

// NewTTLCache creates an in-memory cache. name labels its metrics.
func NewTTLCache[T any](name string, ttl time.Duration, opts ...Option) *TTLCache[T] {
	o := buildOptions(opts)
	return &TTLCache[T]{
		name:    name,
		ttl:     ttl,
		now:     o.now,
		entries: make(map[Key]Entry[T]),
	}
}

// Get returns the value for key if it exists and is still fresh.
func (c *TTLCache[T]) Get(_ context.Context, key Key) (T, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	var zero T
	if !ok {
		CacheMisses.WithLabelValues(c.name).Inc()
		return zero, false, nil
	}
	if entry.IsExpired(c.now(), c.ttl) {
		CacheExpired.WithLabelValues(c.name).Inc()
		CacheMisses.WithLabelValues(c.name).Inc()
		return zero, false, nil
	}

	CacheHits.WithLabelValues(c.name).Inc()
	return entry.Value, true, nil
}

// Put stores value under key and resets its freshness.
func (c *TTLCache[T]) Put(_ context.Context, key Key, value T) error {
	c.mu.Lock()
	c.entries[key] = Entry[T]{Value: value, StoredAt: c.now()}
	c.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, stale ones included.
func (c *TTLCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Ping always succeeds.
func (c *TTLCache[T]) Ping(context.Context) error { return nil }
