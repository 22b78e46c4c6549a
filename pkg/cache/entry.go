package cache

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is the process-wide lifetime shared by the diagram and
// position caches.
const DefaultTTL = 128 * time.Hour

var (
	// ErrCacheMiss indicates the requested key was absent or stale.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Entry is a cached value with the time it was stored.
type Entry[T any] struct {
	Value    T         `json:"value"`
	StoredAt time.Time `json:"stored_at"`
}

// IsExpired reports whether the entry is stale at now for the given TTL.
func (e Entry[T]) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) >= ttl
}

// Remaining returns the time left before the entry goes stale.
// Returns 0 if already stale.
func (e Entry[T]) Remaining(now time.Time, ttl time.Duration) time.Duration {
	left := ttl - now.Sub(e.StoredAt)
	if left < 0 {
		return 0
	}
	return left
}

// Cache is a key/value store with TTL freshness. Get reports ok=false for
// absent and stale keys alike. Implementations are safe for concurrent use.
type Cache[T any] interface {
	Get(ctx context.Context, key Key) (value T, ok bool, err error)
	Put(ctx context.Context, key Key, value T) error
}

// Pinger is implemented by backends that can report their availability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Option configures a cache backend.
type Option func(*options)

type options struct {
	now func() time.Time
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
