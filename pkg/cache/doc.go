// Package cache provides the caching fetch coordinator and its stores.
//
// The coordinator serves a stored response while its expiration record is
// fresh, otherwise performs the network call, stores the response together
// with an expiration record and returns the stored copy:
//
//   - Lazy eviction: a stale or unrecorded response is deleted before lookup
//   - In-flight de-duplication: one network call per Request Key at a time
//   - Store failures degrade to a network call, never to an error
//   - Prometheus metrics for observability
//
// # Basic Usage
//
//	coord, err := cache.NewCoordinator(
//		cache.NewMemoryResponseStore(),
//		cache.NewMemoryMetadataStore(),
//		transport,
//	)
//
//	req, _ := cache.NewRequest("GET", "https://example.com/todos/1", nil, nil)
//	resp, err := coord.Resolve(ctx, req, 5*time.Minute)
//
// # Request Key
//
// The key is the URL, the Vary request header value and the method
// concatenated (see RequestKey). Bodies are ignored unless the coordinator is
// built with WithKeyFunc(RequestKeyWithBody).
//
// # Stores
//
// Two stores are used: a ResponseStore for response blobs and a
// MetadataStore for {key, expires} records. They are written blob first; a
// blob without a record is treated as expired. Backends:
//
//   - MemoryResponseStore, MemoryMetadataStore (process-local)
//   - RedisResponseStore, RedisMetadataStore (go-redis)
//   - LevelDB with Responses() and Metadata() views (goleveldb)
//   - PostgresMetadataStore (pgx)
//
// # Metrics
//
//   - reqcache_cache_hits_total - Responses served from cache
//   - reqcache_cache_misses_total - Resolves that went to the network
//   - reqcache_cache_evictions_total - Stale responses deleted
//   - reqcache_inflight_waits_total - Resolves that waited on another fetch
//   - reqcache_inflight_requests - Fetches outstanding
//   - reqcache_store_errors_total{store,operation} - Absorbed store errors
//   - reqcache_fetch_duration_seconds - Network fetch latency
package cache
