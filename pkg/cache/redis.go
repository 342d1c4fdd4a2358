package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces every key written by the Redis stores.
const DefaultRedisPrefix = "reqcache"

// RedisResponseStore keeps response blobs in Redis as JSON.
// Keys are "<prefix>:blob:<request key>".
type RedisResponseStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisResponseStore creates a Redis-backed response store.
// An empty prefix means DefaultRedisPrefix.
func NewRedisResponseStore(redisClient *redis.Client, prefix string) *RedisResponseStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisResponseStore{redis: redisClient, prefix: prefix + ":blob:"}
}

func (s *RedisResponseStore) Put(ctx context.Context, key string, resp *Response) error {
	if resp == nil {
		return fmt.Errorf("response cannot be nil")
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := s.redis.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisResponseStore) Match(ctx context.Context, key string) (*Response, error) {
	data, err := s.redis.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return &resp, nil
}

func (s *RedisResponseStore) Delete(ctx context.Context, key string) (bool, error) {
	n, err := s.redis.Del(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis del: %w", err)
	}
	return n > 0, nil
}

func (s *RedisResponseStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// RedisMetadataStore keeps Cache Entries in Redis as JSON.
// Keys are "<prefix>:meta:<request key>".
type RedisMetadataStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisMetadataStore creates a Redis-backed metadata store.
// An empty prefix means DefaultRedisPrefix.
func NewRedisMetadataStore(redisClient *redis.Client, prefix string) *RedisMetadataStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisMetadataStore{redis: redisClient, prefix: prefix + ":meta:"}
}

func (s *RedisMetadataStore) Get(ctx context.Context, key string) (Entry, error) {
	data, err := s.redis.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return entry, nil
}

func (s *RedisMetadataStore) Put(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	if err := s.redis.Set(ctx, s.prefix+entry.Key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
