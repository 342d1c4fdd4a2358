package cache

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"testing"
	"time"
)

// testResponseStore runs the ResponseStore contract against store.
func testResponseStore(t *testing.T, store ResponseStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Match(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Match(missing) error = %v, want ErrNotFound", err)
	}

	resp := &Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"id":1}`),
		StoredAt:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := store.Put(ctx, "a", resp); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, "b", resp); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Match(ctx, "a")
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if got.StatusCode != resp.StatusCode {
		t.Errorf("StatusCode = %d, want %d", got.StatusCode, resp.StatusCode)
	}
	if string(got.Body) != string(resp.Body) {
		t.Errorf("Body = %s, want %s", got.Body, resp.Body)
	}
	if got.Header.Get("Content-Type") != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got.Header.Get("Content-Type"))
	}
	if !got.StoredAt.Equal(resp.StoredAt) {
		t.Errorf("StoredAt = %v, want %v", got.StoredAt, resp.StoredAt)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Keys() = %v, want [a b]", keys)
	}

	deleted, err := store.Delete(ctx, "a")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if !deleted {
		t.Error("Delete() = false, want true for stored key")
	}
	deleted, err = store.Delete(ctx, "a")
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if deleted {
		t.Error("Delete() = true, want false for missing key")
	}
	if _, err := store.Match(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Match(deleted) error = %v, want ErrNotFound", err)
	}
}

// testMetadataStore runs the MetadataStore contract against store.
func testMetadataStore(t *testing.T, store MetadataStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	expires := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Put(ctx, Entry{Key: "a", Expires: expires}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Key != "a" || !got.Expires.Equal(expires) {
		t.Errorf("Get() = %+v, want key a expiring %v", got, expires)
	}

	later := expires.Add(time.Hour)
	if err := store.Put(ctx, Entry{Key: "a", Expires: later}); err != nil {
		t.Fatalf("Put() overwrite error = %v", err)
	}
	got, err = store.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !got.Expires.Equal(later) {
		t.Errorf("Expires = %v, want %v after overwrite", got.Expires, later)
	}
}
