package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request describes an outgoing HTTP request. Treat it as immutable once
// built; use Clone to derive a modified copy.
type Request struct {
	URL    *url.URL
	Method string
	Header http.Header
	Body   []byte
}

// NewRequest returns a request for rawURL. An empty method means GET.
func NewRequest(method, rawURL string, header http.Header, body []byte) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse request url: %w", err)
	}
	if method == "" {
		method = http.MethodGet
	}
	if header == nil {
		header = http.Header{}
	}
	return &Request{
		URL:    u,
		Method: strings.ToUpper(method),
		Header: header,
		Body:   body,
	}, nil
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := &Request{
		Method: r.Method,
		Header: r.Header.Clone(),
	}
	if r.URL != nil {
		u := *r.URL
		c.URL = &u
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	if c.Header == nil {
		c.Header = http.Header{}
	}
	return c
}

// HTTPRequest builds a *http.Request carrying ctx-free copies of r's fields.
func (r *Request) HTTPRequest() (*http.Request, error) {
	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequest(r.Method, r.URL.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}
	req.Header = r.Header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	return req, nil
}
