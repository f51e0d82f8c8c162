package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/rs/zerolog"

	"github.com/couchcryptid/biogas-sitemap/internal/config"
)

// NewLogger builds the service logger from LOG_LEVEL and LOG_FORMAT and sets
// it as the slog default. "console" writes through zerolog's ConsoleWriter;
// every other format is handled by the shared JSON/text logger.
func NewLogger(cfg *config.Config) *slog.Logger {
	if !strings.EqualFold(cfg.LogFormat, "console") {
		return sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	}
	logger := newConsoleLogger(cfg.LogLevel, os.Stdout)
	slog.SetDefault(logger)
	return logger
}

func newConsoleLogger(level string, out io.Writer) *slog.Logger {
	zl := zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
	return slog.New(&zerologHandler{zl: zl, level: consoleLevel(level)})
}

// consoleLevel accepts the same names as the shared logger.
func consoleLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
