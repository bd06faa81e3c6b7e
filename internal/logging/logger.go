package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a structured logger for one of the binaries.
// app: application name (e.g., "swire", "swireserv")
// level: one of "debug", "info", "warn", "error" (default: "info")
// format: "text" or "json" (default: "text")
func New(app, level, format string) *slog.Logger {
	return NewWriter(os.Stderr, app, level, format)
}

// NewWriter is New with an explicit destination, mainly for tests.
func NewWriter(w io.Writer, app, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(handler)

	return logger.With(
		slog.String("app", app),
		slog.Int("pid", os.Getpid()),
	)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
