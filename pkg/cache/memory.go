package cache

import (
	"context"
	"sync"
)

// MemoryResponseStore is a process-local ResponseStore.
type MemoryResponseStore struct {
	mu    sync.RWMutex
	blobs map[string]*Response
}

// NewMemoryResponseStore creates an empty in-memory response store.
func NewMemoryResponseStore() *MemoryResponseStore {
	return &MemoryResponseStore{blobs: make(map[string]*Response)}
}

func (s *MemoryResponseStore) Put(_ context.Context, key string, resp *Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = resp.Clone()
	return nil
}

func (s *MemoryResponseStore) Match(_ context.Context, key string) (*Response, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp, ok := s.blobs[key]
	if !ok {
		return nil, ErrNotFound
	}
	return resp.Clone(), nil
}

func (s *MemoryResponseStore) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[key]
	delete(s.blobs, key)
	return ok, nil
}

func (s *MemoryResponseStore) Keys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		keys = append(keys, k)
	}
	return keys, nil
}

// MemoryMetadataStore is a process-local MetadataStore.
type MemoryMetadataStore struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryMetadataStore creates an empty in-memory metadata store.
func NewMemoryMetadataStore() *MemoryMetadataStore {
	return &MemoryMetadataStore{entries: make(map[string]Entry)}
}

func (s *MemoryMetadataStore) Get(_ context.Context, key string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryMetadataStore) Put(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Key] = entry
	return nil
}
