package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	namespace TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	value BLOB NOT NULL,
	stored_at INTEGER NOT NULL,
	PRIMARY KEY (namespace, cache_key)
);
`

// OpenSQLite opens (or creates) the cache database at path.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	// single writer avoids SQLITE_BUSY under concurrent requests
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}
	return db, nil
}

// SQLiteCache is a persistent Cache. Several caches can share one database,
// each under its own namespace. stored_at holds Unix nanoseconds.
type SQLiteCache[T any] struct {
	db   *sql.DB
	name string
	ttl  time.Duration
	now  func() time.Time
}

// NewSQLiteCache creates a cache over db, which must come from OpenSQLite
// or already hold the cache_entries table.
func NewSQLiteCache[T any](db *sql.DB, name string, ttl time.Duration, opts ...Option) (*SQLiteCache[T], error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite db cannot be nil")
	}
	o := buildOptions(opts)
	return &SQLiteCache[T]{db: db, name: name, ttl: ttl, now: o.now}, nil
}

// Get retrieves a fresh entry.
func (c *SQLiteCache[T]) Get(ctx context.Context, key Key) (T, bool, error) {
	var zero T
	var data []byte
	var storedAt int64

	err := c.db.QueryRowContext(ctx,
		`SELECT value, stored_at FROM cache_entries WHERE namespace = ? AND cache_key = ?`,
		c.name, string(key),
	).Scan(&data, &storedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			CacheMisses.WithLabelValues(c.name).Inc()
			return zero, false, nil
		}
		CacheErrors.WithLabelValues(c.name, "get").Inc()
		return zero, false, fmt.Errorf("cache get: %w", err)
	}

	entry := Entry[T]{StoredAt: time.Unix(0, storedAt)}
	if entry.IsExpired(c.now(), c.ttl) {
		CacheExpired.WithLabelValues(c.name).Inc()
		CacheMisses.WithLabelValues(c.name).Inc()
		return zero, false, nil
	}

	if err := json.Unmarshal(data, &entry.Value); err != nil {
		CacheErrors.WithLabelValues(c.name, "get").Inc()
		return zero, false, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	CacheHits.WithLabelValues(c.name).Inc()
	return entry.Value, true, nil
}

// Put stores value and resets its freshness.
func (c *SQLiteCache[T]) Put(ctx context.Context, key Key, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		CacheErrors.WithLabelValues(c.name, "set").Inc()
		return fmt.Errorf("marshal cache value: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO cache_entries (namespace, cache_key, value, stored_at) VALUES (?, ?, ?, ?)`,
		c.name, string(key), data, c.now().UnixNano(),
	)
	if err != nil {
		CacheErrors.WithLabelValues(c.name, "set").Inc()
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (c *SQLiteCache[T]) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
