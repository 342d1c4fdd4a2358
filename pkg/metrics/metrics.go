// Package metrics exposes the Prometheus registry reqcache registers into.
// Metrics are defined next to the code that updates them (cache, client,
// api) and registered via promauto; this package serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer all reqcache metrics are added to.
var Registry = prometheus.DefaultRegisterer

// Gatherer collects everything in Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the gathered metrics in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - reqcache_cache_hits_total (Counter): Responses served from the response store
//   - reqcache_cache_misses_total (Counter): Resolves that went to the network
//   - reqcache_cache_evictions_total (Counter): Stale responses deleted before a lookup
//   - reqcache_inflight_waits_total (Counter): Resolves that waited on another caller's fetch
//   - reqcache_inflight_requests (Gauge): Network fetches currently outstanding
//   - reqcache_store_errors_total{store, operation} (Counter): Absorbed store failures
//   - reqcache_fetch_duration_seconds (Histogram): Network fetch duration
//
// Transport Metrics (pkg/client):
//   - reqcache_transport_requests_total{status} (Counter): Upstream requests by HTTP status
//   - reqcache_transport_request_duration_seconds (Histogram): Upstream round trip duration
//   - reqcache_transport_errors_total{class} (Counter): Errors by class (client, server, network)
//
// API Metrics (pkg/api):
//   - reqcache_api_results_total{name, outcome} (Counter): Fetch results by request name
//     and outcome (success, transport_error, invalid)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(reqcache_cache_hits_total[5m])) /
//   (sum(rate(reqcache_cache_hits_total[5m])) + sum(rate(reqcache_cache_misses_total[5m])))
//
//   # Duplicate fetches avoided
//   rate(reqcache_inflight_waits_total[5m])
//
//   # Upstream Error Rate
//   rate(reqcache_transport_errors_total[5m])
//
//   # P95 Fetch Latency
//   histogram_quantile(0.95, rate(reqcache_fetch_duration_seconds_bucket[5m]))
