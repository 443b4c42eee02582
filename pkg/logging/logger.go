// Package logging configures zerolog for the bot process and hands out
// component loggers.
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
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// Component names used across the bot.
const (
	ComponentFetcher    = "fetcher"
	ComponentSource     = "catalog-source"
	ComponentCache      = "catalog-cache"
	ComponentDelivery   = "delivery"
	ComponentNavigation = "navigation"
	ComponentDispatch   = "dispatch"
	ComponentTelegram   = "telegram"
	ComponentServer     = "ops-server"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty switches from JSON lines to zerolog's console writer.
	Pretty bool

	// Output defaults to os.Stderr when nil.
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

// Setup configures the global zerolog logger and returns it.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.DurationFieldUnit = time.Millisecond

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(out).With().Timestamp().Str("service", "menu-bot").Logger()
	log.Logger = logger

	return logger
}

// ValidateLevel reports an error for level names Setup would silently
// downgrade to info.
func ValidateLevel(level string) error {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
}

func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
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
// Debug: cache hits, pacing waits, parsed user actions.
// Info: upstream fetches, cache refreshes, delivery summaries, startup/shutdown.
// Warn: retries, photo fallbacks, partial catalogs, dropped updates.
// Error: exhausted retries, failed sends after fallback, transport failures.
//
// Context Fields:
//   - endpoint: upstream resource path
//   - attempt: 1-based fetch attempt
//   - error_class: client, server, rate_limit, network, request
//   - backoff: wait before the next attempt
//   - generation: cache generation of a refresh
//   - chat_id: Telegram chat
//   - delivery_id: correlation id of one delivery run
