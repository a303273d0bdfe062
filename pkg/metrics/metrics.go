// Package metrics exposes the Prometheus registry shared by the datasource.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, collector, geocode) and registered via promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the datasource.
var Registry = prometheus.DefaultRegisterer

// Handler returns the scrape handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - datasource_rate_limit_remaining{resource} (Gauge): Requests remaining in the current window
//   - datasource_rate_limit_blocks_total{resource} (Counter): Requests blocked because the window is spent
//   - datasource_rate_limit_throttles_total{resource} (Counter): Requests delayed near the end of the window
//
// Cache Metrics (pkg/cache):
//   - datasource_cache_hits_total{namespace} (Counter): Cache hits
//   - datasource_cache_misses_total{namespace} (Counter): Cache misses
//   - datasource_cache_size_bytes{namespace} (Gauge): Bytes written
//   - datasource_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - datasource_api_requests_total{endpoint, status} (Counter)
//   - datasource_api_request_duration_seconds{endpoint} (Histogram)
//   - datasource_api_errors_total{class} (Counter): client, server, rate_limit, network
//   - datasource_api_retries_total{error_class} (Counter)
//   - datasource_api_retry_backoff_seconds{error_class} (Histogram)
//   - datasource_api_retry_exhausted_total{error_class} (Counter)
//
// Collector Metrics (pkg/collector):
//   - datasource_collector_pages_total (Counter): Page fetches issued
//   - datasource_collector_items (Histogram): Items returned per run
//   - datasource_collector_outcomes_total{outcome} (Counter)
//   - datasource_collector_duration_seconds (Histogram)
//
// Geocode Metrics (pkg/geocode):
//   - datasource_geocode_lookups_total{result} (Counter)
//
// Example Prometheus Queries:
//
//   # Runs cut short by rate limiting
//   sum(rate(datasource_collector_outcomes_total{outcome="rate_limited"}[5m]))
//
//   # Window headroom
//   datasource_rate_limit_remaining < 20
//
//   # P95 request latency
//   histogram_quantile(0.95, rate(datasource_api_request_duration_seconds_bucket[5m]))
