package cache

import (
	"net/http"
	"strings"
	"testing"
)

func mustRequest(t *testing.T, method, rawURL string, header http.Header, body []byte) *Request {
	t.Helper()
	req, err := NewRequest(method, rawURL, header, body)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	return req
}

func TestRequestKey(t *testing.T) {
	tests := []struct {
		name   string
		method string
		url    string
		header http.Header
		want   string
	}{
		{
			name:   "get without vary",
			method: "GET",
			url:    "https://example.com/todos/1",
			want:   "https://example.com/todos/1GET",
		},
		{
			name:   "vary value between url and method",
			method: "POST",
			url:    "https://example.com/search?q=a",
			header: http.Header{"Vary": []string{"Accept-Language"}},
			want:   "https://example.com/search?q=aAccept-LanguagePOST",
		},
		{
			name:   "empty method defaults to GET",
			method: "",
			url:    "https://example.com/",
			want:   "https://example.com/GET",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mustRequest(t, tt.method, tt.url, tt.header, nil)
			if got := RequestKey(req); got != tt.want {
				t.Errorf("RequestKey() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequestKey_DistinguishesMethodAndVary(t *testing.T) {
	get := mustRequest(t, "GET", "https://example.com/a", nil, nil)
	post := mustRequest(t, "POST", "https://example.com/a", nil, nil)
	if RequestKey(get) == RequestKey(post) {
		t.Error("keys for different methods must differ")
	}

	en := mustRequest(t, "GET", "https://example.com/a", http.Header{"Vary": []string{"en"}}, nil)
	de := mustRequest(t, "GET", "https://example.com/a", http.Header{"Vary": []string{"de"}}, nil)
	if RequestKey(en) == RequestKey(de) {
		t.Error("keys for different Vary values must differ")
	}
}

func TestRequestKey_IgnoresBodyAndOtherHeaders(t *testing.T) {
	a := mustRequest(t, "POST", "https://example.com/a", http.Header{"X-Trace": []string{"1"}}, []byte(`{"a":1}`))
	b := mustRequest(t, "POST", "https://example.com/a", http.Header{"X-Trace": []string{"2"}}, []byte(`{"b":2}`))
	if RequestKey(a) != RequestKey(b) {
		t.Errorf("RequestKey() differs: %q vs %q", RequestKey(a), RequestKey(b))
	}
}

func TestRequestKeyWithBody(t *testing.T) {
	a := mustRequest(t, "POST", "https://example.com/a", nil, []byte(`{"a":1}`))
	b := mustRequest(t, "POST", "https://example.com/a", nil, []byte(`{"b":2}`))
	if RequestKeyWithBody(a) == RequestKeyWithBody(b) {
		t.Error("keys for different bodies must differ")
	}
	if !strings.HasPrefix(RequestKeyWithBody(a), RequestKey(a)) {
		t.Error("body key should extend the plain key")
	}

	empty := mustRequest(t, "GET", "https://example.com/a", nil, nil)
	if RequestKeyWithBody(empty) != RequestKey(empty) {
		t.Error("requests without body should keep the plain key")
	}
}

// TestRequestKey_Determinism ensures same input always produces same key
func TestRequestKey_Determinism(t *testing.T) {
	req := mustRequest(t, "GET", "https://example.com/a?x=1&y=2", http.Header{"Vary": []string{"v"}}, nil)

	first := RequestKey(req)
	for i := 0; i < 10; i++ {
		if got := RequestKey(req.Clone()); got != first {
			t.Errorf("result[%d] = %v, want %v (not deterministic)", i, got, first)
		}
	}
}
