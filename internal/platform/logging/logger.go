// Package logging configures the process-wide slog logger. Every record
// passes through correlation.Handler so request-scoped IDs are attached.
package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/0x-mperego/unimec-display/internal/platform/correlation"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// Setup builds a logger with New and installs it as slog's default.
func Setup(w io.Writer, level, format string) *slog.Logger {
	logger := New(w, level, format)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger without touching the default. Unknown formats fall
// back to text; at debug level the source location is included.
func New(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	}

	var h slog.Handler
	if strings.EqualFold(format, FormatJSON) {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(correlation.NewHandler(h))
}

// ParseLevel accepts slog's level syntax ("debug", "WARN", "info+2") and
// falls back to info.
func ParseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
