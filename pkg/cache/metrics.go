package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks responses served from the response store
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqcache_cache_hits_total",
			Help: "Total number of responses served from cache",
		},
	)

	// CacheMisses tracks resolves that went to the network
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqcache_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// CacheEvictions tracks stale blobs removed before a lookup
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqcache_cache_evictions_total",
			Help: "Total number of stale responses evicted",
		},
	)

	// InFlightWaits tracks callers that waited on another caller's fetch
	InFlightWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reqcache_inflight_waits_total",
			Help: "Total number of resolves that waited on an in-flight fetch",
		},
	)

	// InFlightRequests is the number of network fetches currently outstanding
	InFlightRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reqcache_inflight_requests",
			Help: "Number of network fetches currently in flight",
		},
	)

	// StoreErrors tracks store failures absorbed by the coordinator
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reqcache_store_errors_total",
			Help: "Total number of store operation errors",
		},
		[]string{"store", "operation"}, // store: "response", "metadata"
	)

	// FetchDuration observes network fetch latency
	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reqcache_fetch_duration_seconds",
			Help:    "Network fetch duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
	)
)
