package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Sternrassler/reqcache/pkg/cache"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	storeMemory  = "memory"
	storeRedis   = "redis"
	storeLevelDB = "leveldb"
)

// stores bundles the selected backends and what must be closed on exit.
type stores struct {
	responses cache.ResponseStore
	metadata  cache.MetadataStore
	closers   []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// openStores connects the configured backends. Postgres, when configured,
// replaces the metadata store of the selected backend.
func openStores(ctx context.Context, cfg Config, logger zerolog.Logger) (*stores, error) {
	s := &stores{}

	switch cfg.Store {
	case storeRedis:
		opts, err := redisOptions(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		redisClient := redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		s.closers = append(s.closers, func() { redisClient.Close() })
		s.responses = cache.NewRedisResponseStore(redisClient, cfg.RedisPrefix)
		s.metadata = cache.NewRedisMetadataStore(redisClient, cfg.RedisPrefix)
		logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis")

	case storeLevelDB:
		db, err := cache.OpenLevelDB(cfg.LevelDBPath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { db.Close() })
		s.responses = db.Responses()
		s.metadata = db.Metadata()
		logger.Info().Str("path", cfg.LevelDBPath).Msg("Opened LevelDB store")

	default:
		s.responses = cache.NewMemoryResponseStore()
		s.metadata = cache.NewMemoryMetadataStore()
		logger.Info().Msg("Using in-memory store")
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		s.closers = append(s.closers, pool.Close)

		metadata := cache.NewPostgresMetadataStore(pool, cfg.DatabaseTable)
		if err := metadata.EnsureSchema(ctx); err != nil {
			s.Close()
			return nil, err
		}
		s.metadata = metadata
		logger.Info().Str("table", cfg.DatabaseTable).Msg("Using Postgres metadata store")
	}

	return s, nil
}

// redisOptions accepts either a redis:// URL or a bare host:port.
func redisOptions(raw string) (*redis.Options, error) {
	if strings.Contains(raw, "://") {
		opts, err := redis.ParseURL(raw)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: raw}, nil
}
