// Package logging configures zerolog for the git feed proxy and hands out
// per-component loggers.
//
// Levels used across the pipeline:
//
//	debug  conditional requests, ETags sent, TIME stamps, healthy rate limit updates
//	info   remote fetch, cache replay, refetch, grace short-circuits, startup
//	warn   store failures (uncached fallback), upstream error statuses, throttling, retries
//	error  critical rate limit blocks, startup failures
//
// Common fields: component, uri, status_code, etag, grace, elapsed, left,
// host, remaining, request_id.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel is a level name as accepted in LOG_LEVEL.
type LogLevel string

const (
	LevelDebug    LogLevel = "debug"
	LevelInfo     LogLevel = "info"
	LevelWarn     LogLevel = "warn"
	LevelError    LogLevel = "error"
	LevelDisabled LogLevel = "disabled"
)

// Component names passed to NewLogger.
const (
	ComponentClient    = "request-client"
	ComponentGrace     = "grace-period"
	ComponentCommand   = "http-command"
	ComponentRetry     = "retry"
	ComponentRateLimit = "ratelimit"
	ComponentServer    = "server"
)

// UnmarshalText accepts the known level names case-insensitively, plus
// "warning" as an alias of warn.
func (l *LogLevel) UnmarshalText(text []byte) error {
	name := LogLevel(strings.ToLower(strings.TrimSpace(string(text))))
	switch name {
	case "warning":
		name = LevelWarn
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelDisabled:
	default:
		return fmt.Errorf("unknown log level %q", string(text))
	}
	*l = name
	return nil
}

// Config holds logger configuration.
type Config struct {
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr.
	Output io.Writer

	// Service, when set, is added to every entry as "service".
	Service string
}

// DefaultConfig returns JSON logging at info level on stderr.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05.000"}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()

	log.Logger = logger
	return logger
}

// ParseLevel maps a LogLevel to zerolog. Unknown names mean info.
func ParseLevel(level LogLevel) zerolog.Level {
	var l LogLevel
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zerolog.InfoLevel
	}
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelDisabled:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger returns the global logger tagged with component.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// ForURI returns logger tagged with the upstream uri.
func ForURI(logger zerolog.Logger, uri string) zerolog.Logger {
	return logger.With().Str("uri", uri).Logger()
}
