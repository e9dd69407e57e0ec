// Package logger builds the slog loggers used across summbench.
//
// Output defaults to stderr so that the MCP stdio transport keeps stdout
// for protocol frames.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format defines how log records are rendered
type Format string

// Format constants
const (
	TEXT Format = "text"
	JSON Format = "json"
)

// Options holds configuration options for the logger
type Options struct {
	Level       string
	Format      Format
	Output      io.Writer
	DefaultTags map[string]interface{}
	AddSource   bool
}

// DefaultOptions returns the default logger options
func DefaultOptions() Options {
	return Options{
		Level:       "info",
		Format:      TEXT,
		Output:      os.Stderr,
		DefaultTags: map[string]interface{}{"service": "summbench"},
	}
}

// New creates a slog.Logger from the given options
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     ParseLevel(opts.Level),
		AddSource: opts.AddSource,
	}

	var handler slog.Handler
	if ParseFormat(string(opts.Format)) == JSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	logger := slog.New(handler)
	for k, v := range opts.DefaultTags {
		logger = logger.With(k, v)
	}
	return logger
}

// Setup creates a logger from opts and installs it as the slog default
func Setup(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel converts a string level to a slog.Level. Unknown values map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseFormat converts a string to a Format, defaulting to TEXT
func ParseFormat(format string) Format {
	if strings.EqualFold(strings.TrimSpace(format), string(JSON)) {
		return JSON
	}
	return TEXT
}

// Component returns logger tagged with the given component name, falling
// back to slog.Default when logger is nil.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}
