package cache

import (
	"time"
)

// Entry is the metadata record stored per Request Key.
type Entry struct {
	// Key is the Request Key.
	Key string `json:"key"`

	// Expires is when the stored response becomes stale.
	Expires time.Time `json:"expires"`
}

// IsExpired reports whether now is at or past Expires.
func (e Entry) IsExpired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// TTL returns the time left until expiration at now.
// Returns 0 if already expired.
func (e Entry) TTL(now time.Time) time.Duration {
	ttl := e.Expires.Sub(now)
	if ttl < 0 {
		return 0
	}
	return ttl
}
