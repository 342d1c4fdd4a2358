package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the proxy configuration, read from the environment.
type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	ConfigPath string `env:"CONFIG_PATH" envDefault:"reqcache.yaml"`

	// Store selects the response backend: memory, redis or leveldb
	Store       string `env:"STORE" envDefault:"memory"`
	RedisURL    string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPrefix string `env:"REDIS_PREFIX" envDefault:"reqcache"`
	LevelDBPath string `env:"LEVELDB_PATH" envDefault:"data/reqcache"`

	// DatabaseURL, when set, keeps expiration records in Postgres
	DatabaseURL   string `env:"DATABASE_URL"`
	DatabaseTable string `env:"DATABASE_TABLE" envDefault:"reqcache_entries"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	UserAgent     string        `env:"USER_AGENT" envDefault:"reqcache-proxy/0.1.0"`
	FetchTimeout  time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"5m"`

	OAuth2 OAuth2Config `envPrefix:"OAUTH2_"`
}

// OAuth2Config configures the client credentials flow for upstream calls.
type OAuth2Config struct {
	TokenURL     string   `env:"TOKEN_URL"`
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
}

// Enabled reports whether upstream requests should carry a token.
func (c OAuth2Config) Enabled() bool {
	return c.TokenURL != "" && c.ClientID != ""
}

// loadConfig parses environ, or the process environment when environ is nil.
func loadConfig(environ map[string]string) (Config, error) {
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	switch cfg.Store {
	case storeMemory, storeRedis, storeLevelDB:
	default:
		return Config{}, fmt.Errorf("STORE must be one of memory, redis, leveldb (got %q)", cfg.Store)
	}
	if cfg.FetchTimeout < 0 {
		return Config{}, fmt.Errorf("FETCH_TIMEOUT must be >= 0 (got %s)", cfg.FetchTimeout)
	}
	if cfg.OAuth2.ClientID != "" && cfg.OAuth2.TokenURL == "" {
		return Config{}, fmt.Errorf("OAUTH2_TOKEN_URL is required with OAUTH2_CLIENT_ID")
	}

	return cfg, nil
}
