// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger. An unknown level falls back
// to info; a nil Output writes to stderr.
func Setup(cfg Config) zerolog.Logger {
	level, err := ParseLevel(string(cfg.Level))
	if err != nil {
		level = LevelInfo
	}
	zerolog.SetGlobalLevel(zerologLevel(level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// ParseLevel validates a configured level name. "warning" is accepted as an
// alias of warn.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level %q (want debug, info, warn or error)", s)
	}
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, station id, bbox)
//   - Exploration decisions (covered, superseded, evicted regions)
//   - Remote request flow
//
// Info: Normal operation events
//   - Global refreshes (start, station count, duration)
//   - Requests that succeeded after a retry
//   - Server startup/shutdown
//
// Warn: Warning conditions that don't prevent operation
//   - Consistency warnings (metadata and payload disagree)
//   - Retry attempts
//   - Refresh stamp write failures
//
// Error: Error conditions requiring attention
//   - Failed remote requests (after retries)
//   - Storage failures surfaced to HTTP callers
//   - Configuration errors
//
// Context Fields:
//   - component: Logger owner (transit-client, cache, explore, station, proxy)
//   - cache_type / station_type: Entity kind (bike_station, subway_station, ...)
//   - id: Station or entity id
//   - bbox: Bounding box as "west,north,east,south"
//   - endpoint: Transit API path
//   - status: HTTP status code
//   - error_class: Error classification (client, server, rate_limit, network, decode)
//   - duration: Operation duration
