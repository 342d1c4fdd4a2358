// Package api is a registry of named requests on top of the cache
// coordinator. Each Fetch merges three levels of options (global defaults,
// the named definition, per-call overrides), builds the URL, resolves the
// request through the cache and validates the JSON body.
//
//	a, err := api.New(api.Config{
//		BaseURL:         "https://jsonplaceholder.typicode.com",
//		DefaultLifetime: time.Minute,
//		Requests: map[string]api.Definition{
//			"todo": {Path: "/todos/:id", Validator: api.JSON[Todo]()},
//		},
//	}, coordinator)
//
//	res, err := a.Fetch(ctx, "todo", api.FetchOptions{
//		PathVariables: urlbuilder.Named{"id": 1},
//	})
//
// Fetch returns an error only for configuration faults such as an unknown
// name. Network and validation failures are reported in the Result.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Sternrassler/reqcache/pkg/cache"
	"github.com/Sternrassler/reqcache/pkg/logging"
	"github.com/Sternrassler/reqcache/pkg/urlbuilder"
	"github.com/rs/zerolog"
)

var (
	// ErrUnknownRequest is returned for names missing from the registry.
	ErrUnknownRequest = errors.New("unknown request")

	// ErrUnknownCacheID is returned for cache IDs no Fetch has used.
	ErrUnknownCacheID = errors.New("unknown cache id")
)

// API resolves named requests through a cache coordinator.
type API struct {
	config      Config
	coordinator *cache.Coordinator
	logger      zerolog.Logger

	mu   sync.RWMutex
	made map[string]madeRequest
}

// madeRequest is the last request issued under a cache ID.
type madeRequest struct {
	req      *cache.Request
	lifetime time.Duration
}

// New creates an API. Every definition's path is checked against BaseURL up
// front, so a bad template fails here rather than on first Fetch.
func New(cfg Config, coordinator *cache.Coordinator) (*API, error) {
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if cfg.DefaultLifetime < 0 {
		return nil, fmt.Errorf("default lifetime must be >= 0 (got %s)", cfg.DefaultLifetime)
	}

	requests := make(map[string]Definition, len(cfg.Requests))
	for name, def := range cfg.Requests {
		if def.Path == "" {
			return nil, fmt.Errorf("request %q: path is required", name)
		}
		if def.Lifetime != nil && *def.Lifetime < 0 {
			return nil, fmt.Errorf("request %q: lifetime must be >= 0", name)
		}
		if _, err := urlbuilder.Build(def.Path, urlbuilder.Options{Base: cfg.BaseURL}); err != nil {
			return nil, fmt.Errorf("request %q: %w", name, err)
		}
		if def.Validator == nil {
			def.Validator = AnyJSON()
		}
		requests[name] = def
	}
	cfg.Requests = requests

	return &API{
		config:      cfg,
		coordinator: coordinator,
		logger:      logging.NewLogger(logging.ComponentAPI),
		made:        make(map[string]madeRequest),
	}, nil
}

// Names returns the registered request names, sorted.
func (a *API) Names() []string {
	names := make([]string, 0, len(a.config.Requests))
	for name := range a.config.Requests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Request builds the request descriptor for name without fetching it.
func (a *API) Request(name string, opts FetchOptions) (*cache.Request, error) {
	req, _, err := a.build(name, opts)
	return req, err
}

// Fetch resolves name through the cache and validates the body.
func (a *API) Fetch(ctx context.Context, name string, opts FetchOptions) (Result, error) {
	req, def, err := a.build(name, opts)
	if err != nil {
		return Result{}, err
	}

	lifetime := a.config.DefaultLifetime
	switch {
	case opts.Lifetime != nil:
		lifetime = *opts.Lifetime
	case def.Lifetime != nil:
		lifetime = *def.Lifetime
	}
	if lifetime < 0 {
		return Result{}, fmt.Errorf("request %q: lifetime must be >= 0 (got %s)", name, lifetime)
	}

	// per call, then per definition, like every other option
	cacheID := firstNonEmpty(opts.CacheID, def.CacheID)
	if cacheID == "" {
		cacheID = a.coordinator.Key(req)
	}
	a.remember(cacheID, req, lifetime)

	logger := a.logger.With().Str("name", name).Str("cache_id", cacheID).Logger()

	resp, err := a.coordinator.Resolve(ctx, req, lifetime)
	if err != nil {
		apiResultsTotal.WithLabelValues(name, outcomeTransportError).Inc()
		logger.Warn().Err(err).Msg("Fetch failed")
		return Result{
			Errors:  []string{err.Error()},
			CacheID: cacheID,
		}, nil
	}

	data, problems := def.Validator.Validate(resp.Body)
	if len(problems) > 0 {
		apiResultsTotal.WithLabelValues(name, outcomeInvalid).Inc()
		logger.Warn().Strs("errors", problems).Msg("Response failed validation")
		return Result{
			Errors:     problems,
			StatusCode: resp.StatusCode,
			CacheID:    cacheID,
		}, nil
	}

	apiResultsTotal.WithLabelValues(name, outcomeSuccess).Inc()
	return Result{
		Data:       data,
		IsSuccess:  true,
		StatusCode: resp.StatusCode,
		CacheID:    cacheID,
	}, nil
}

// CacheBust drops the stored response of the request last made under
// cacheID and fetches it again. It reports whether a stored response
// existed.
func (a *API) CacheBust(ctx context.Context, cacheID string) (bool, error) {
	m, ok := a.lookup(cacheID)
	if !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownCacheID, cacheID)
	}
	a.logger.Info().Str("cache_id", cacheID).Msg("Busting cached response")
	return a.coordinator.Bust(ctx, m.req, m.lifetime)
}

// CachedResponse returns the stored response of the request last made
// under cacheID, without checking expiry and without network access.
func (a *API) CachedResponse(ctx context.Context, cacheID string) (*cache.Response, bool) {
	m, ok := a.lookup(cacheID)
	if !ok {
		return nil, false
	}
	return a.coordinator.Cached(ctx, m.req)
}

func (a *API) remember(cacheID string, req *cache.Request, lifetime time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.made[cacheID] = madeRequest{req: req.Clone(), lifetime: lifetime}
}

func (a *API) lookup(cacheID string) (madeRequest, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.made[cacheID]
	return m, ok
}

func (a *API) build(name string, opts FetchOptions) (*cache.Request, Definition, error) {
	def, ok := a.config.Requests[name]
	if !ok {
		return nil, Definition{}, fmt.Errorf("%w: %q", ErrUnknownRequest, name)
	}

	var params urlbuilder.ParamSource
	if def.SearchParams != nil || opts.SearchParams != nil {
		params = urlbuilder.Merge(def.SearchParams, opts.SearchParams)
	}

	u, err := urlbuilder.Build(def.Path, urlbuilder.Options{
		Base:          a.config.BaseURL,
		PathVariables: mergePathVariables(def.PathVariables, opts.PathVariables),
		SearchParams:  params,
	})
	if err != nil {
		return nil, Definition{}, fmt.Errorf("request %q: %w", name, err)
	}

	body := def.Body
	if opts.Body != nil {
		body = opts.Body
	}

	method := firstNonEmpty(opts.Method, def.Method, a.config.Method, http.MethodGet)

	return &cache.Request{
		URL:    u,
		Method: strings.ToUpper(method),
		Header: mergeHeaders(a.config.Header, def.Header, opts.Header),
		Body:   append([]byte(nil), body...),
	}, def, nil
}

// mergePathVariables merges Named variables per key. Any other combination
// lets the override replace the base.
func mergePathVariables(base, override urlbuilder.PathVariables) urlbuilder.PathVariables {
	if override == nil {
		return base
	}
	b, okBase := base.(urlbuilder.Named)
	o, okOverride := override.(urlbuilder.Named)
	if !okBase || !okOverride {
		return override
	}
	merged := make(urlbuilder.Named, len(b)+len(o))
	for k, v := range b {
		merged[k] = v
	}
	for k, v := range o {
		merged[k] = v
	}
	return merged
}

// mergeHeaders overlays the header sets per key; later sets win.
func mergeHeaders(layers ...http.Header) http.Header {
	merged := http.Header{}
	for _, h := range layers {
		for k, v := range h {
			merged[http.CanonicalHeaderKey(k)] = append([]string(nil), v...)
		}
	}
	return merged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
