// Package logging configures the process-wide zerolog logger and hands out
// component loggers for reqcache.
//
// Call Setup once at startup, then derive one logger per component:
//
//	logging.Setup(logging.Config{Level: logging.LevelDebug, Pretty: true})
//	logger := logging.NewLogger(logging.ComponentCoordinator)
//	logger.Debug().Str("key", key).Msg("Cache hit")
//
// Levels are used as follows. Debug carries the per-request cache decisions
// (hit, miss, eviction, waits on an in-flight fetch, stored responses).
// Info is reserved for lifecycle events such as proxy startup, backend
// selection and explicit cache busts. Warn marks absorbed store failures,
// upstream error statuses and validation failures. Error marks network
// failures and fetch timeouts.
//
// Field names shared across components:
//
//	component    coordinator, transport, api, batch or proxy
//	key          request key
//	name         registry request name
//	cache_id     cache ID of a made request
//	status       upstream HTTP status
//	error_class  client, server or network
//	store        response or metadata, with operation
//	request_id   proxy request ID
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as read from configuration.
type LogLevel string

// Recognised level names. Anything else falls back to LevelInfo.
const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Values of the "component" field.
const (
	ComponentCoordinator = "coordinator"
	ComponentTransport   = "transport"
	ComponentAPI         = "api"
	ComponentBatch       = "batch"
	ComponentProxy       = "proxy"
)

var levels = map[string]zerolog.Level{
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
}

// Config selects the minimum level, the encoding and the destination.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr when nil.
	Output io.Writer
}

// DefaultConfig logs JSON at info level to stderr.
func DefaultConfig() Config {
	return Config{Level: LevelInfo, Output: os.Stderr}
}

// Setup installs a timestamped logger built from cfg as the global zerolog
// logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var out io.Writer = os.Stderr
	if cfg.Output != nil {
		out = cfg.Output
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out}
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return log.Logger
}

func parseLevel(level LogLevel) zerolog.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(string(level)))]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// NewLogger returns the global logger tagged with component. It captures
// the global logger at call time, so call it after Setup.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
