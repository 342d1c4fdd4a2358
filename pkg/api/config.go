package api

import (
	"net/http"
	"time"

	"github.com/Sternrassler/reqcache/pkg/urlbuilder"
)

// Config holds the global defaults and the named requests of an API.
type Config struct {
	// BaseURL resolves relative request paths. Required unless every
	// path is absolute.
	BaseURL string

	// DefaultLifetime applies when neither the definition nor the call sets
	// one. Zero stores responses already expired.
	DefaultLifetime time.Duration

	// Method and Header are the lowest-precedence request options.
	Method string
	Header http.Header

	// Requests maps request names to their definitions.
	Requests map[string]Definition
}

// Definition is a named request template.
type Definition struct {
	// Path is the URL template, absolute or relative to BaseURL.
	Path string

	// CacheID names the made request for CacheBust and CachedResponse.
	// Empty means the Request Key.
	CacheID string

	// Lifetime overrides Config.DefaultLifetime when non-nil.
	Lifetime *time.Duration

	Method string
	Header http.Header
	Body   []byte

	PathVariables urlbuilder.PathVariables
	SearchParams  urlbuilder.ParamSource

	// Validator checks the JSON body. Nil accepts any well-formed JSON.
	Validator Validator
}

// FetchOptions are per-call overrides. Zero values inherit.
type FetchOptions struct {
	CacheID  string
	Lifetime *time.Duration

	Method string
	Header http.Header
	Body   []byte

	// PathVariables merge per key with the definition's Named variables;
	// Positional variables replace the definition's.
	PathVariables urlbuilder.PathVariables

	// SearchParams override the definition's per key.
	SearchParams urlbuilder.ParamSource
}

// Lifetime returns a pointer to d for use in Definition and FetchOptions.
func Lifetime(d time.Duration) *time.Duration {
	return &d
}

// Result is the outcome of Fetch.
type Result struct {
	// Data is the validated body, set when IsSuccess.
	Data any

	// Errors explains a failed fetch or validation.
	Errors []string

	IsSuccess bool

	// StatusCode is the upstream status when a response was obtained.
	StatusCode int

	// CacheID identifies the made request.
	CacheID string
}
