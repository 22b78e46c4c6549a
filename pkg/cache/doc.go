// Package cache provides the TTL caches that sit in front of the upstream
// astrology API.
//
// Two independent caches exist per process, one for rendered chart diagrams
// and one for raw planetary-position tables. Both share a single TTL
// (DefaultTTL, 128 hours) and the same freshness rule:
//
//   - An entry is fresh while now - StoredAt < TTL.
//   - Stale entries are shadowed, not purged. Get reports them as absent,
//     they stay in the store until the next Put for the same key.
//   - Put always overwrites and resets StoredAt.
//
// There is no eviction beyond the TTL check; growth is unbounded for the
// in-memory backend.
//
// # Backends
//
//	// In-memory (default)
//	diagrams := cache.NewTTLCache[string]("diagrams", cache.DefaultTTL)
//
//	// Redis
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	diagrams := cache.NewRedisCache[string](rdb, "diagrams", cache.DefaultTTL)
//
//	// SQLite
//	db, err := cache.OpenSQLite("vedic-sage.db")
//	diagrams, err := cache.NewSQLiteCache[string](db, "diagrams", cache.DefaultTTL)
//
// # Keys
//
// DeriveKey builds the cache key from the chart kind and the birth fields
// that identify a chart. ChartID hashes a whole request payload for client
// side correlation and is independent of the cache key.
//
// # Metrics
//
//   - astro_cache_hits_total{cache}
//   - astro_cache_misses_total{cache}
//   - astro_cache_expired_total{cache}
//   - astro_cache_errors_total{cache, operation}
package cache
