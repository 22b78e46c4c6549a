package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh hits by cache name ("diagrams", "planets")
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astro_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	// CacheMisses tracks lookups that found no fresh entry
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astro_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// CacheExpired tracks lookups that found a stale entry
	CacheExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astro_cache_expired_total",
			Help: "Total number of lookups shadowed by an expired entry",
		},
		[]string{"cache"},
	)

	// CacheErrors tracks backend failures
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "astro_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"cache", "operation"}, // "get", "set"
	)
)
