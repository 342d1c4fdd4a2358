package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB key prefixes: blobs under "e:", expiration records under "m:".
const (
	levelBlobPrefix = "e:"
	levelMetaPrefix = "m:"
)

// LevelDB is an on-disk store backing both a ResponseStore and a
// MetadataStore in one database. The two views share no write batch, so a
// blob and its record are written independently.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens or creates a database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelDB{db: db}, nil
}

// Close releases the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// Responses returns the response store view.
func (l *LevelDB) Responses() *LevelDBResponseStore {
	return &LevelDBResponseStore{db: l.db}
}

// Metadata returns the metadata store view.
func (l *LevelDB) Metadata() *LevelDBMetadataStore {
	return &LevelDBMetadataStore{db: l.db}
}

// LevelDBResponseStore implements ResponseStore on LevelDB.
type LevelDBResponseStore struct {
	db *leveldb.DB
}

func (s *LevelDBResponseStore) Put(_ context.Context, key string, resp *Response) error {
	if resp == nil {
		return fmt.Errorf("response cannot be nil")
	}
	b, err := encodeGob(resp)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	if err := s.db.Put([]byte(levelBlobPrefix+key), b, nil); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

func (s *LevelDBResponseStore) Match(_ context.Context, key string) (*Response, error) {
	b, err := s.db.Get([]byte(levelBlobPrefix+key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("leveldb get: %w", err)
	}
	var resp Response
	if err := decodeGob(b, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &resp, nil
}

func (s *LevelDBResponseStore) Delete(_ context.Context, key string) (bool, error) {
	k := []byte(levelBlobPrefix + key)
	ok, err := s.db.Has(k, nil)
	if err != nil {
		return false, fmt.Errorf("leveldb has: %w", err)
	}
	if !ok {
		return false, nil
	}
	if err := s.db.Delete(k, nil); err != nil {
		return false, fmt.Errorf("leveldb delete: %w", err)
	}
	return true, nil
}

func (s *LevelDBResponseStore) Keys(_ context.Context) ([]string, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(levelBlobPrefix)), nil)
	defer it.Release()

	var keys []string
	for it.Next() {
		keys = append(keys, string(bytes.TrimPrefix(it.Key(), []byte(levelBlobPrefix))))
	}
	if err := it.Error(); err != nil {
		return nil, fmt.Errorf("leveldb iterate: %w", err)
	}
	return keys, nil
}

// LevelDBMetadataStore implements MetadataStore on LevelDB.
type LevelDBMetadataStore struct {
	db *leveldb.DB
}

func (s *LevelDBMetadataStore) Get(_ context.Context, key string) (Entry, error) {
	b, err := s.db.Get([]byte(levelMetaPrefix+key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("leveldb get: %w", err)
	}
	var entry Entry
	if err := decodeGob(b, &entry); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return entry, nil
}

func (s *LevelDBMetadataStore) Put(_ context.Context, entry Entry) error {
	b, err := encodeGob(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := s.db.Put([]byte(levelMetaPrefix+entry.Key), b, nil); err != nil {
		return fmt.Errorf("leveldb put: %w", err)
	}
	return nil
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
