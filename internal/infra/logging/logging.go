package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs slog's default logger writing to stdout at the given level.
// format is "json" (default) or "text".
func Setup(level slog.Level, format string) *slog.Logger {
	logger := New(os.Stdout, level, format)
	slog.SetDefault(logger)

	return logger
}

// New builds a logger without touching the default one.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler)
}
