package cache

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates a store holds nothing under the key.
	ErrNotFound = errors.New("not found")

	// ErrInvalidEntry indicates a stored value could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// ResponseStore holds response blobs addressed by Request Key.
type ResponseStore interface {
	// Put stores resp under key, replacing any previous blob.
	Put(ctx context.Context, key string, resp *Response) error

	// Match returns the blob for key or ErrNotFound.
	Match(ctx context.Context, key string) (*Response, error)

	// Delete removes the blob and reports whether one existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Keys lists the stored keys in no particular order.
	Keys(ctx context.Context) ([]string, error)
}

// MetadataStore holds expiration records addressed by Request Key.
type MetadataStore interface {
	// Get returns the entry for key or ErrNotFound.
	Get(ctx context.Context, key string) (Entry, error)

	// Put upserts entry.
	Put(ctx context.Context, entry Entry) error
}

// Transport performs the network call for a request.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}
