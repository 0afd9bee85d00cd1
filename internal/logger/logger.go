package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a structured logger wrapper around slog
type Logger struct {
	*slog.Logger
}

// New creates a JSON logger writing to stdout with the specified log level
func New(level string) *Logger {
	return NewWithFormat(os.Stdout, level, "json")
}

// NewWithFormat creates a logger writing to w. Format is "json" or "text".
func NewWithFormat(w io.Writer, level, format string) *Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if strings.EqualFold(format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops every record
func Discard() *Logger {
	return NewWithFormat(io.Discard, "error", "json")
}

// ParseLevel maps a config level name to a slog level, defaulting to info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithFields creates a child logger with additional fields
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger: l.With(fields...),
	}
}

// Component creates a child logger tagged with a component name
func (l *Logger) Component(name string) *Logger {
	return l.WithFields("component", name)
}
