package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Sternrassler/reqcache/pkg/api"
	"github.com/Sternrassler/reqcache/pkg/metrics"
	"github.com/Sternrassler/reqcache/pkg/urlbuilder"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const (
	headerRequestID     = "X-Request-Id"
	headerCacheID       = "X-Cache-Id"
	headerCacheLifetime = "X-Cache-Lifetime"
)

// fetchResponse is the JSON body of GET /fetch/{name}.
type fetchResponse struct {
	Data       any      `json:"data,omitempty"`
	Errors     []string `json:"errors,omitempty"`
	IsSuccess  bool     `json:"is_success"`
	StatusCode int      `json:"status_code,omitempty"`
	CacheID    string   `json:"cache_id"`
}

type server struct {
	api    *api.API
	logger zerolog.Logger
}

// newRouter wires the proxy routes.
func newRouter(registry *api.API, logger zerolog.Logger) http.Handler {
	s := &server{api: registry, logger: logger}

	r := chi.NewRouter()
	r.Use(hlog.NewHandler(logger))
	r.Use(requestID)
	r.Use(hlog.RemoteAddrHandler("remote_addr"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	}))
	r.Use(middleware.Recoverer)

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/requests", s.handleRequests)
	r.Get("/fetch/{name}", s.handleFetch)
	r.Get("/cached", s.handleCached)
	r.Post("/bust", s.handleBust)

	return r
}

// requestID tags each request with a UUID, reusing an incoming
// X-Request-Id header.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(headerRequestID, id)

		logger := zerolog.Ctx(r.Context()).With().Str("request_id", id).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *server) handleRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"requests": s.api.Names()})
}

func (s *server) handleFetch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	opts := api.FetchOptions{CacheID: r.Header.Get(headerCacheID)}
	opts.PathVariables, opts.SearchParams = splitQuery(r.URL.RawQuery)
	if raw := r.Header.Get(headerCacheLifetime); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			http.Error(w, "invalid "+headerCacheLifetime+" header", http.StatusBadRequest)
			return
		}
		opts.Lifetime = api.Lifetime(d)
	}

	res, err := s.api.Fetch(r.Context(), name, opts)
	if err != nil {
		if errors.Is(err, api.ErrUnknownRequest) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		hlog.FromRequest(r).Error().Err(err).Str("name", name).Msg("Fetch configuration error")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if !res.IsSuccess {
		status = http.StatusBadGateway
	}
	w.Header().Set(headerCacheID, res.CacheID)
	writeJSON(w, status, fetchResponse{
		Data:       res.Data,
		Errors:     res.Errors,
		IsSuccess:  res.IsSuccess,
		StatusCode: res.StatusCode,
		CacheID:    res.CacheID,
	})
}

// handleCached writes the stored upstream response as is.
func (s *server) handleCached(w http.ResponseWriter, r *http.Request) {
	cacheID := r.URL.Query().Get("cache_id")
	if cacheID == "" {
		http.Error(w, "cache_id is required", http.StatusBadRequest)
		return
	}

	resp, ok := s.api.CachedResponse(r.Context(), cacheID)
	if !ok {
		http.Error(w, "no cached response", http.StatusNotFound)
		return
	}

	for key, values := range resp.Header {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("Failed to write response")
	}
}

func (s *server) handleBust(w http.ResponseWriter, r *http.Request) {
	cacheID := r.URL.Query().Get("cache_id")
	if cacheID == "" {
		http.Error(w, "cache_id is required", http.StatusBadRequest)
		return
	}

	deleted, err := s.api.CacheBust(r.Context(), cacheID)
	if err != nil {
		if errors.Is(err, api.ErrUnknownCacheID) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		hlog.FromRequest(r).Warn().Err(err).Str("cache_id", cacheID).Msg("Cache bust refetch failed")
		writeJSON(w, http.StatusBadGateway, map[string]any{"deleted": deleted, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// splitQuery separates ":name" keys, which fill path placeholders, from
// the search parameters passed upstream.
func splitQuery(raw string) (urlbuilder.PathVariables, urlbuilder.ParamSource) {
	if raw == "" {
		return nil, nil
	}

	var vars urlbuilder.Named
	search := urlbuilder.NewParams()
	for _, p := range urlbuilder.ParseQuery(raw).Pairs() {
		if name, ok := strings.CutPrefix(p.Key, ":"); ok && name != "" {
			if vars == nil {
				vars = urlbuilder.Named{}
			}
			vars[name] = p.Value
			continue
		}
		search.Append(p.Key, p.Value)
	}

	var pathVars urlbuilder.PathVariables
	if vars != nil {
		pathVars = vars
	}
	var params urlbuilder.ParamSource
	if search.Len() > 0 {
		params = search
	}
	return pathVars, params
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
