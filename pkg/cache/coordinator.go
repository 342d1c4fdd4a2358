package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/reqcache/pkg/logging"
	"github.com/rs/zerolog"
)

var (
	// ErrNilTransport is returned by NewCoordinator without a transport.
	ErrNilTransport = errors.New("transport is required")

	// ErrInvalidRequest indicates a nil request or a request without URL.
	ErrInvalidRequest = errors.New("request must have a url")
)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithKeyFunc replaces RequestKey as the identity policy.
func WithKeyFunc(fn KeyFunc) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.keyFunc = fn
		}
	}
}

// WithClock replaces time.Now for expiration bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFetchTimeout bounds every network call. Zero means no bound, in which
// case a hung transport holds its key in flight until it returns.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.fetchTimeout = d }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// flight is one outstanding network fetch. done is closed once the fetch has
// settled and its result, if any, has been persisted.
type flight struct {
	done chan struct{}
	resp *Response
	err  error
}

// Coordinator decides per request whether to serve a stored response or go
// to the network, persists fetched responses with an expiration, and makes
// sure at most one fetch per Request Key is outstanding at a time.
type Coordinator struct {
	responses    ResponseStore
	metadata     MetadataStore
	transport    Transport
	keyFunc      KeyFunc
	now          func() time.Time
	fetchTimeout time.Duration
	logger       zerolog.Logger

	mu       sync.Mutex
	inflight map[string]*flight
}

// NewCoordinator creates a coordinator. Nil stores fall back to in-memory
// stores.
func NewCoordinator(responses ResponseStore, metadata MetadataStore, transport Transport, opts ...Option) (*Coordinator, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	if responses == nil {
		responses = NewMemoryResponseStore()
	}
	if metadata == nil {
		metadata = NewMemoryMetadataStore()
	}

	c := &Coordinator{
		responses: responses,
		metadata:  metadata,
		transport: transport,
		keyFunc:   RequestKey,
		now:       time.Now,
		logger:    logging.NewLogger(logging.ComponentCoordinator),
		inflight:  make(map[string]*flight),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Key returns the Request Key the coordinator uses for req.
func (c *Coordinator) Key(req *Request) string {
	return c.keyFunc(req)
}

// Resolve returns the stored response for req, or fetches, stores and
// returns it. lifetime is how long the fetched response stays fresh; zero
// stores it already expired, so only callers overlapping the fetch share it.
//
// Store failures never fail Resolve; they degrade to a network fetch.
// Transport errors are returned as is.
func (c *Coordinator) Resolve(ctx context.Context, req *Request, lifetime time.Duration) (*Response, error) {
	if req == nil || req.URL == nil {
		return nil, ErrInvalidRequest
	}
	key := c.keyFunc(req)

	for {
		// a missing record on an in-flight key is the leader between its
		// blob and metadata writes
		f := c.lookup(key)
		if f == nil {
			c.evictIfStale(ctx, key)
			f = c.lookup(key)
		}

		if f != nil {
			resp, err := c.await(ctx, key, f)
			if err != nil {
				return nil, err
			}
			if resp != nil {
				return resp, nil
			}
			continue
		}

		if resp, ok := c.match(ctx, key); ok {
			CacheHits.Inc()
			c.logger.Debug().Str("key", key).Msg("Cache hit")
			return resp, nil
		}

		f, leader := c.claim(key)
		if !leader {
			// claimed by another caller since the lookup above
			resp, err := c.await(ctx, key, f)
			if err != nil {
				return nil, err
			}
			if resp != nil {
				return resp, nil
			}
			continue
		}

		CacheMisses.Inc()
		c.logger.Debug().Str("key", key).Dur("lifetime", lifetime).Msg("Cache miss")
		return c.fetch(ctx, key, req, lifetime, f)
	}
}

// Bust deletes the stored response for req and fetches a fresh one. It
// reports whether a stored response existed.
func (c *Coordinator) Bust(ctx context.Context, req *Request, lifetime time.Duration) (bool, error) {
	if req == nil || req.URL == nil {
		return false, ErrInvalidRequest
	}
	key := c.keyFunc(req)

	deleted, err := c.responses.Delete(ctx, key)
	if err != nil {
		c.storeError("response", "delete", key, err)
		deleted = false
	}

	for {
		f, leader := c.claim(key)
		if leader {
			_, err := c.fetch(ctx, key, req, lifetime, f)
			return deleted, err
		}

		select {
		case <-f.done:
		case <-ctx.Done():
			return deleted, ctx.Err()
		}
		if f.err == nil {
			return deleted, nil
		}
	}
}

// Cached returns the stored response for req without checking expiration
// and without touching the network.
func (c *Coordinator) Cached(ctx context.Context, req *Request) (*Response, bool) {
	if req == nil || req.URL == nil {
		return nil, false
	}
	return c.match(ctx, c.keyFunc(req))
}

// Sweep evicts every stored response whose expiration record is missing or
// past. Keys with a fetch in flight are skipped. It returns the number of
// evicted responses.
func (c *Coordinator) Sweep(ctx context.Context) (int, error) {
	keys, err := c.responses.Keys(ctx)
	if err != nil {
		c.storeError("response", "keys", "", err)
		return 0, fmt.Errorf("list stored responses: %w", err)
	}

	evicted := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return evicted, err
		}
		if c.InFlight(key) {
			continue
		}
		if c.evictIfStale(ctx, key) {
			evicted++
		}
	}
	return evicted, nil
}

// InFlight reports whether a network fetch for key is outstanding.
func (c *Coordinator) InFlight(key string) bool {
	return c.lookup(key) != nil
}

// evictIfStale deletes the stored response when its expiration record is
// missing, unreadable or past, and reports whether a response was deleted.
// Keys in flight are left to their leader.
func (c *Coordinator) evictIfStale(ctx context.Context, key string) bool {
	entry, err := c.metadata.Get(ctx, key)
	switch {
	case err == nil:
		if !entry.IsExpired(c.now()) {
			return false
		}
	case errors.Is(err, ErrNotFound):
		// no record means always expired
	default:
		c.storeError("metadata", "get", key, err)
	}
	if c.InFlight(key) {
		return false
	}

	deleted, err := c.responses.Delete(ctx, key)
	if err != nil {
		c.storeError("response", "delete", key, err)
		return false
	}
	if deleted {
		CacheEvictions.Inc()
		c.logger.Debug().Str("key", key).Msg("Evicted stale response")
	}
	return deleted
}

func (c *Coordinator) match(ctx context.Context, key string) (*Response, bool) {
	resp, err := c.responses.Match(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.storeError("response", "match", key, err)
		}
		return nil, false
	}
	return resp, resp != nil
}

// await blocks until f settles or ctx is done. A nil response with a nil
// error means the caller must start over.
func (c *Coordinator) await(ctx context.Context, key string, f *flight) (*Response, error) {
	InFlightWaits.Inc()

	if resp, ok := c.match(ctx, key); ok {
		return resp, nil
	}

	c.logger.Debug().Str("key", key).Msg("Waiting for in-flight fetch")
	select {
	case <-f.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if resp, ok := c.match(ctx, key); ok {
		return resp, nil
	}
	if f.err == nil && f.resp != nil {
		// the stored copy was evicted or never written
		return f.resp.Clone(), nil
	}
	return nil, nil
}

func (c *Coordinator) lookup(key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[key]
}

// claim registers a new flight for key unless one exists. leader is true
// when the caller now owns the fetch.
func (c *Coordinator) claim(key string) (f *flight, leader bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.inflight[key]; ok {
		return existing, false
	}
	f = &flight{done: make(chan struct{})}
	c.inflight[key] = f
	InFlightRequests.Inc()
	return f, true
}

func (c *Coordinator) release(key string, f *flight) {
	c.mu.Lock()
	if c.inflight[key] == f {
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	InFlightRequests.Dec()
	close(f.done)
}

// fetch performs the network call for a claimed key, persists the result
// and releases the claim. The call runs detached from ctx cancellation so
// callers waiting on the same key are not starved by the leader giving up.
func (c *Coordinator) fetch(ctx context.Context, key string, req *Request, lifetime time.Duration, f *flight) (*Response, error) {
	defer c.release(key, f)

	expires := c.now().Add(lifetime)

	persistCtx := context.WithoutCancel(ctx)
	fetchCtx := persistCtx
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(persistCtx, c.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.transport.Send(fetchCtx, req.Clone())
	FetchDuration.Observe(time.Since(start).Seconds())
	if err == nil && resp == nil {
		err = errors.New("transport returned no response")
	}
	if err != nil {
		f.err = err
		c.logger.Error().Err(err).Str("key", key).Msg("Fetch failed")
		return nil, fmt.Errorf("fetch %s %s: %w", req.Method, req.URL, err)
	}

	if resp.StoredAt.IsZero() {
		resp.StoredAt = c.now()
	}
	f.resp = resp

	c.persist(persistCtx, key, resp, expires)

	if stored, ok := c.match(persistCtx, key); ok {
		return stored, nil
	}
	return resp.Clone(), nil
}

// persist writes the blob and then its expiration record. The record is
// only written after the blob; a blob left without a record counts as
// expired on the next lookup.
func (c *Coordinator) persist(ctx context.Context, key string, resp *Response, expires time.Time) {
	if err := c.responses.Put(ctx, key, resp); err != nil {
		c.storeError("response", "put", key, err)
		return
	}
	if err := c.metadata.Put(ctx, Entry{Key: key, Expires: expires}); err != nil {
		c.storeError("metadata", "put", key, err)
		return
	}
	c.logger.Debug().
		Str("key", key).
		Time("expires", expires).
		Int("size", resp.Size()).
		Msg("Stored response")
}

func (c *Coordinator) storeError(store, op, key string, err error) {
	StoreErrors.WithLabelValues(store, op).Inc()
	c.logger.Warn().
		Err(err).
		Str("store", store).
		Str("operation", op).
		Str("key", key).
		Msg("Cache store error")
}
