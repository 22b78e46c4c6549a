// Package metrics documents the Prometheus metrics exported by vedic-sage
// and exposes the registry and scrape handler they share. The metrics
// themselves are declared with promauto next to the code that updates them
// (cache, client, ratelimit) to avoid circular dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's promauto metrics land in.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source scraped by Handler.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names lists every metric family this service exports.
var Names = []string{
	"astro_cache_hits_total",
	"astro_cache_misses_total",
	"astro_cache_expired_total",
	"astro_cache_errors_total",
	"astro_upstream_requests_total",
	"astro_upstream_request_duration_seconds",
	"astro_upstream_errors_total",
	"astro_credential_failovers_total",
	"astro_credential_soft_failures",
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - astro_cache_hits_total{cache} (Counter): fresh entries served
//   - astro_cache_misses_total{cache} (Counter): absent or stale lookups
//   - astro_cache_expired_total{cache} (Counter): lookups that found a stale entry
//   - astro_cache_errors_total{cache, operation} (Counter): backend failures
//
// Upstream Metrics (pkg/client):
//   - astro_upstream_requests_total{endpoint, status} (Counter): attempts by endpoint and HTTP status
//   - astro_upstream_request_duration_seconds{endpoint} (Histogram): attempt duration
//   - astro_upstream_errors_total{class} (Counter): failures by error class
//   - astro_credential_failovers_total{reason} (Counter): rotations past a credential
//
// Credential Metrics (pkg/ratelimit):
//   - astro_credential_soft_failures{credential} (Gauge): soft failures per credential
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(astro_cache_hits_total[5m])) /
//   (sum(rate(astro_cache_hits_total[5m])) + sum(rate(astro_cache_misses_total[5m])))
//
//   # Rate-limited attempts
//   rate(astro_credential_failovers_total{reason="rate_limited"}[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(astro_upstream_request_duration_seconds_bucket[5m]))
