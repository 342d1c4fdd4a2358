package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// VaryHeader is the request header whose value takes part in the key.
const VaryHeader = "Vary"

// KeyFunc derives the Request Key used for all cache bookkeeping.
type KeyFunc func(req *Request) string

// RequestKey concatenates the absolute URL, the Vary header value and the
// method with no separator.
//
// Example:
//
//	https://example.com/todos/1GET
//	https://example.com/todos/1Accept-LanguagePOST
//
// The body does not take part: two requests that differ only in their body
// share one cache entry. Pathological inputs can collide, for instance a URL
// ending in text equal to another request's Vary value plus method.
func RequestKey(req *Request) string {
	var u string
	if req.URL != nil {
		u = req.URL.String()
	}
	return u + req.Header.Get(VaryHeader) + req.Method
}

// RequestKeyWithBody is RequestKey followed by the hex SHA-256 of the body
// when a body is present. Use it when non-idempotent requests with
// different payloads must not share an entry.
func RequestKeyWithBody(req *Request) string {
	key := RequestKey(req)
	if len(req.Body) == 0 {
		return key
	}
	sum := sha256.Sum256(req.Body)
	return key + ":" + hex.EncodeToString(sum[:])
}
