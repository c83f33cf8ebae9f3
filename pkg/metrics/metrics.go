// Package metrics exposes the Prometheus registry of the git feed proxy.
// Metrics are defined in their own packages (client, cache, ratelimit, server)
// via promauto; this package serves them and documents them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every package's metrics are created on.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the source Handler serves.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - gitfeed_requests_total{outcome} (Counter): remote, cache, refetch, error
//   - gitfeed_request_duration_seconds (Histogram): client request duration
//   - gitfeed_upstream_requests_total{status} (Counter): upstream calls by status
//   - gitfeed_errors_total{kind} (Counter): io, http, validation, decode, rate_limit
//   - gitfeed_conditional_requests_total (Counter): requests sent with If-None-Match
//   - gitfeed_304_responses_total (Counter): 304 responses, synthetic ones included
//   - gitfeed_grace_short_circuits_total (Counter): 304s answered locally
//   - gitfeed_fast_cache_hits_total (Counter): request-scoped memo hits
//
// Retry Metrics (pkg/client):
//   - gitfeed_retries_total (Counter): retries after transport failures
//   - gitfeed_retry_backoff_seconds (Histogram): backoff before a retry
//   - gitfeed_retry_exhausted_total (Counter): requests that exhausted retries
//
// Cache Metrics (pkg/cache):
//   - gitfeed_cache_hits_total{backend} (Counter)
//   - gitfeed_cache_misses_total{backend} (Counter)
//   - gitfeed_cache_writes_total{backend} (Counter)
//   - gitfeed_cache_errors_total{backend, operation} (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - gitfeed_rate_limit_remaining{host} (Gauge)
//   - gitfeed_rate_limit_blocks_total{host} (Counter)
//   - gitfeed_rate_limit_throttles_total{host} (Counter)
//
// Server Metrics (internal/server):
//   - gitfeed_http_requests_total{provider, code} (Counter)
//
// Example Prometheus Queries:
//
//   # Share of conditional requests answered without upstream
//   rate(gitfeed_grace_short_circuits_total[5m]) / rate(gitfeed_conditional_requests_total[5m])
//
//   # Store error rate
//   sum(rate(gitfeed_cache_errors_total[5m])) by (operation)
//
//   # Hosts close to their quota
//   gitfeed_rate_limit_remaining < 20
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(gitfeed_request_duration_seconds_bucket[5m]))
