package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Sternrassler/reqcache/internal/testutil"
	"github.com/Sternrassler/reqcache/pkg/cache"
	"golang.org/x/oauth2"
)

func newTestTransport(t *testing.T, cfg Config) *HTTPTransport {
	t.Helper()
	tr, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tr
}

func newRequest(t *testing.T, method, rawURL string, header http.Header, body []byte) *cache.Request {
	t.Helper()
	req, err := cache.NewRequest(method, rawURL, header, body)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name:        "valid config",
			config:      DefaultConfig("TestApp/1.0.0 (test@example.com)"),
			expectError: false,
		},
		{
			name:        "empty user agent",
			config:      Config{Timeout: time.Second},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
		{
			name:        "negative timeout",
			config:      Config{UserAgent: "TestApp/1.0.0", Timeout: -time.Second},
			expectError: true,
			errorMsg:    "timeout must be >= 0 (got -1s)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.config)
			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tr == nil {
				t.Fatal("Expected transport, got nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("TestApp/1.0.0")

	if cfg.UserAgent != "TestApp/1.0.0" {
		t.Errorf("UserAgent = %q, want TestApp/1.0.0", cfg.UserAgent)
	}
	if cfg.Accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", cfg.Accept)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.TokenSource != nil {
		t.Error("TokenSource should be nil by default")
	}
}

func TestSend_Success(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/todos/1", testutil.NewJSONResponse(`{"id":1}`))

	tr := newTestTransport(t, DefaultConfig("TestApp/1.0.0"))
	resp, err := tr.Send(context.Background(), newRequest(t, "GET", mock.URL()+"/todos/1?x=1", nil, nil))
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if string(resp.Body) != `{"id":1}` {
		t.Errorf("Body = %s, want {\"id\":1}", resp.Body)
	}
	if resp.StoredAt.IsZero() {
		t.Error("StoredAt should be set")
	}

	method, query, header, _ := mock.GetLastRequest()
	if method != "GET" || query != "x=1" {
		t.Errorf("upstream saw %s ?%s, want GET ?x=1", method, query)
	}
	if got := header.Get("User-Agent"); got != "TestApp/1.0.0" {
		t.Errorf("User-Agent = %q, want TestApp/1.0.0", got)
	}
	if got := header.Get("Accept"); got != "application/json" {
		t.Errorf("Accept = %q, want application/json", got)
	}
}

func TestSend_RequestHeadersWin(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	tr := newTestTransport(t, DefaultConfig("TestApp/1.0.0"))
	header := http.Header{
		"User-Agent": []string{"Custom/2.0"},
		"Accept":     []string{"text/plain"},
		"X-Trace":    []string{"abc"},
	}
	if _, err := tr.Send(context.Background(), newRequest(t, "GET", mock.URL()+"/", header, nil)); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	_, _, got, _ := mock.GetLastRequest()
	if got.Get("User-Agent") != "Custom/2.0" {
		t.Errorf("User-Agent = %q, want Custom/2.0", got.Get("User-Agent"))
	}
	if got.Get("Accept") != "text/plain" {
		t.Errorf("Accept = %q, want text/plain", got.Get("Accept"))
	}
	if got.Get("X-Trace") != "abc" {
		t.Errorf("X-Trace = %q, want abc", got.Get("X-Trace"))
	}
}

func TestSend_ForwardsBody(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	tr := newTestTransport(t, DefaultConfig("TestApp/1.0.0"))
	req := newRequest(t, "POST", mock.URL()+"/search", http.Header{"Content-Type": []string{"application/json"}}, []byte(`{"q":"go"}`))
	if _, err := tr.Send(context.Background(), req); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	method, _, _, body := mock.GetLastRequest()
	if method != "POST" {
		t.Errorf("method = %s, want POST", method)
	}
	if string(body) != `{"q":"go"}` {
		t.Errorf("body = %s, want {\"q\":\"go\"}", body)
	}
}

func TestSend_StatusErrors(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/missing", testutil.NewNotFoundResponse())
	mock.SetResponse("/broken", testutil.NewServerErrorResponse())

	tr := newTestTransport(t, DefaultConfig("TestApp/1.0.0"))

	tests := []struct {
		path   string
		status int
		class  ErrorClass
		body   string
	}{
		{path: "/missing", status: http.StatusNotFound, class: ErrorClassClient, body: `{"error": "Not found"}`},
		{path: "/broken", status: http.StatusInternalServerError, class: ErrorClassServer, body: `{"error": "Internal server error"}`},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := tr.Send(context.Background(), newRequest(t, "GET", mock.URL()+tt.path, nil, nil))
			if resp != nil {
				t.Errorf("Send() response = %+v, want nil", resp)
			}

			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("Send() error = %v, want *StatusError", err)
			}
			if statusErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, tt.status)
			}
			if statusErr.ErrorClass != tt.class {
				t.Errorf("ErrorClass = %q, want %q", statusErr.ErrorClass, tt.class)
			}
			if string(statusErr.Body) != tt.body {
				t.Errorf("Body = %s, want %s", statusErr.Body, tt.body)
			}
		})
	}
}

func TestSend_NetworkError(t *testing.T) {
	mock := testutil.NewMockServer()
	url := mock.URL()
	mock.Close()

	tr := newTestTransport(t, DefaultConfig("TestApp/1.0.0"))
	_, err := tr.Send(context.Background(), newRequest(t, "GET", url+"/", nil, nil))
	if err == nil {
		t.Fatal("Expected error for closed server")
	}
	if ClassOf(err) != ErrorClassNetwork {
		t.Errorf("ClassOf() = %q, want %q", ClassOf(err), ErrorClassNetwork)
	}
}

func TestSend_ContextDeadline(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/slow", testutil.NewSlowResponse(`{}`, 200*time.Millisecond))

	tr := newTestTransport(t, DefaultConfig("TestApp/1.0.0"))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Send(ctx, newRequest(t, "GET", mock.URL()+"/slow", nil, nil))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestSend_OAuth2Token(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret", TokenType: "Bearer"})
	tr := newTestTransport(t, cfg)

	if _, err := tr.Get(context.Background(), mock.URL()+"/private"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	_, _, header, _ := mock.GetLastRequest()
	if got := header.Get("Authorization"); got != "Bearer secret" {
		t.Errorf("Authorization = %q, want Bearer secret", got)
	}
}

func TestSetHTTPClient(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	tr := newTestTransport(t, DefaultConfig("TestApp/1.0.0"))
	custom := mock.Client()
	tr.SetHTTPClient(custom)
	if tr.httpClient != custom {
		t.Error("SetHTTPClient did not replace the client")
	}

	// with a token source the given client is wrapped, not modified
	cfg := DefaultConfig("TestApp/1.0.0")
	cfg.TokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"})
	authed := newTestTransport(t, cfg)
	authed.SetHTTPClient(custom)
	if authed.httpClient == custom {
		t.Error("client should be copied when wrapping")
	}
	if _, ok := custom.Transport.(*oauth2.Transport); ok {
		t.Error("caller's client transport was modified")
	}
}

func TestHTTPTransport_WithCoordinator(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/todos/1", testutil.NewJSONResponse(`{"id":1}`))

	tr := newTestTransport(t, DefaultConfig("TestApp/1.0.0"))
	c, err := cache.NewCoordinator(nil, nil, tr)
	if err != nil {
		t.Fatalf("NewCoordinator() error = %v", err)
	}

	req := newRequest(t, "GET", mock.URL()+"/todos/1", nil, nil)
	for i := 0; i < 3; i++ {
		if _, err := c.Resolve(context.Background(), req, time.Minute); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}
	if got := mock.GetPathCount("/todos/1"); got != 1 {
		t.Errorf("upstream requests = %d, want 1", got)
	}
}
