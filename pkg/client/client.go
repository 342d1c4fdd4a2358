// Package client provides the HTTP transport the cache coordinator uses to
// reach the network.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/reqcache/pkg/cache"
	"github.com/Sternrassler/reqcache/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// Prometheus metrics for transport operations.
var (
	transportRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqcache_transport_requests_total",
		Help: "Total upstream requests by status",
	}, []string{"status"})

	transportRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reqcache_transport_request_duration_seconds",
		Help:    "Upstream request duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	})

	transportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reqcache_transport_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})
)

// Config holds the transport configuration.
type Config struct {
	// User-Agent header sent when the request carries none
	UserAgent string

	// Accept header sent when the request carries none
	Accept string

	// Timeout bounds each HTTP round trip, zero means none
	Timeout time.Duration

	// TokenSource, when set, authorizes every request with an OAuth2 bearer token
	TokenSource oauth2.TokenSource
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(userAgent string) Config {
	return Config{
		UserAgent: userAgent,
		Accept:    "application/json",
		Timeout:   30 * time.Second,
	}
}

// HTTPTransport sends cache.Requests over net/http. It implements
// cache.Transport.
type HTTPTransport struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

var _ cache.Transport = (*HTTPTransport)(nil)

// New creates a new transport.
func New(cfg Config) (*HTTPTransport, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}

	t := &HTTPTransport{
		config: cfg,
		logger: logging.NewLogger(logging.ComponentTransport),
	}
	t.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	return t, nil
}

// Send performs req and returns the full response. Status codes >= 400 and
// network failures are returned as *StatusError.
func (t *HTTPTransport) Send(ctx context.Context, req *cache.Request) (*cache.Response, error) {
	httpReq, err := req.HTTPRequest()
	if err != nil {
		return nil, err
	}
	httpReq = httpReq.WithContext(ctx)

	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", t.config.UserAgent)
	}
	if t.config.Accept != "" && httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", t.config.Accept)
	}

	t.logger.Debug().
		Str("url", httpReq.URL.String()).
		Str("method", httpReq.Method).
		Msg("Executing upstream request")

	start := time.Now()
	httpResp, err := t.httpClient.Do(httpReq)
	transportRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		transportErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		transportRequestsTotal.WithLabelValues("network_error").Inc()
		t.logger.Error().Err(err).Str("url", httpReq.URL.String()).Msg("HTTP request failed")
		return nil, &StatusError{
			ErrorClass: ErrorClassNetwork,
			Message:    "request failed",
			Err:        err,
		}
	}

	resp, err := cache.ResponseFromHTTP(httpResp)
	if err != nil {
		transportErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		transportRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, &StatusError{
			StatusCode: httpResp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "reading body failed",
			Err:        err,
		}
	}
	transportRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if class := classifyStatus(resp.StatusCode); class != "" {
		transportErrorsTotal.WithLabelValues(string(class)).Inc()
		t.logger.Warn().
			Str("url", httpReq.URL.String()).
			Int("status", resp.StatusCode).
			Str("error_class", string(class)).
			Msg("Upstream request error")
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			ErrorClass: class,
			Message:    httpResp.Status,
			Body:       resp.Body,
		}
	}

	return resp, nil
}

// Get performs a GET request against rawURL without going through a cache.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string) (*cache.Response, error) {
	req, err := cache.NewRequest(http.MethodGet, rawURL, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return t.Send(ctx, req)
}

// SetHTTPClient sets a custom HTTP client. When a TokenSource is configured
// the client's transport is wrapped to add the bearer token; client itself
// is not modified.
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	if t.config.TokenSource == nil {
		t.httpClient = client
		return
	}
	wrapped := *client
	wrapped.Transport = &oauth2.Transport{
		Source: oauth2.ReuseTokenSource(nil, t.config.TokenSource),
		Base:   client.Transport,
	}
	t.httpClient = &wrapped
}
