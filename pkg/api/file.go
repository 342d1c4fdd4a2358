package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/Sternrassler/reqcache/pkg/urlbuilder"
	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config, read from YAML or TOML.
// Durations use time.ParseDuration syntax ("90s", "5m").
type FileConfig struct {
	BaseURL         string                 `yaml:"base_url" toml:"base_url"`
	DefaultLifetime string                 `yaml:"default_lifetime" toml:"default_lifetime"`
	Method          string                 `yaml:"method" toml:"method"`
	Headers         map[string]string      `yaml:"headers" toml:"headers"`
	Requests        map[string]FileRequest `yaml:"requests" toml:"requests"`
}

// FileRequest is the on-disk form of Definition.
type FileRequest struct {
	Path     string            `yaml:"path" toml:"path"`
	CacheID  string            `yaml:"cache_id" toml:"cache_id"`
	Lifetime string            `yaml:"lifetime" toml:"lifetime"`
	Method   string            `yaml:"method" toml:"method"`
	Headers  map[string]string `yaml:"headers" toml:"headers"`
	Body     string            `yaml:"body" toml:"body"`

	// PathVariables is a table (named) or a list (positional).
	PathVariables any `yaml:"path_variables" toml:"path_variables"`

	// SearchParams is a table or a raw query string.
	SearchParams any `yaml:"search_params" toml:"search_params"`

	// Schema names a Validator passed to Build.
	Schema string `yaml:"schema" toml:"schema"`
}

// LoadConfig reads a registry file. The format follows the extension:
// .yaml, .yml or .toml.
func LoadConfig(path string) (FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return FileConfig{}, err
	}

	var cfg FileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return FileConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(b), &cfg); err != nil {
			return FileConfig{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return FileConfig{}, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	return cfg, nil
}

// Build converts the file form into a Config. validators maps schema names
// to validators; an empty schema accepts any JSON.
func (fc FileConfig) Build(validators map[string]Validator) (Config, error) {
	cfg := Config{
		BaseURL:  fc.BaseURL,
		Method:   fc.Method,
		Header:   toHeader(fc.Headers),
		Requests: make(map[string]Definition, len(fc.Requests)),
	}

	if fc.DefaultLifetime != "" {
		d, err := time.ParseDuration(fc.DefaultLifetime)
		if err != nil {
			return Config{}, fmt.Errorf("default_lifetime: %w", err)
		}
		cfg.DefaultLifetime = d
	}

	names := make([]string, 0, len(fc.Requests))
	for name := range fc.Requests {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		r := fc.Requests[name]
		def := Definition{
			Path:    r.Path,
			CacheID: r.CacheID,
			Method:  r.Method,
			Header:  toHeader(r.Headers),
		}
		if r.Body != "" {
			def.Body = []byte(r.Body)
		}

		if r.Lifetime != "" {
			d, err := time.ParseDuration(r.Lifetime)
			if err != nil {
				return Config{}, fmt.Errorf("requests.%s.lifetime: %w", name, err)
			}
			def.Lifetime = &d
		}

		pv, err := toPathVariables(r.PathVariables)
		if err != nil {
			return Config{}, fmt.Errorf("requests.%s.path_variables: %w", name, err)
		}
		def.PathVariables = pv

		sp, err := toSearchParams(r.SearchParams)
		if err != nil {
			return Config{}, fmt.Errorf("requests.%s.search_params: %w", name, err)
		}
		def.SearchParams = sp

		if r.Schema != "" {
			v, ok := validators[r.Schema]
			if !ok {
				return Config{}, fmt.Errorf("requests.%s.schema: unknown schema %q", name, r.Schema)
			}
			def.Validator = v
		}

		cfg.Requests[name] = def
	}

	return cfg, nil
}

func toHeader(m map[string]string) http.Header {
	if len(m) == 0 {
		return nil
	}
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}

func toPathVariables(v any) (urlbuilder.PathVariables, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return urlbuilder.Named(x), nil
	case []any:
		return urlbuilder.Positional(x), nil
	default:
		return nil, fmt.Errorf("expected table or list, got %T", v)
	}
}

func toSearchParams(v any) (urlbuilder.ParamSource, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return urlbuilder.Values(x), nil
	case string:
		return urlbuilder.Query(x), nil
	default:
		return nil, fmt.Errorf("expected table or query string, got %T", v)
	}
}
