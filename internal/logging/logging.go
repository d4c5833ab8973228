// Package logging provides a shared, structured logger for the notation editor.
//
// It wraps the standard library's [log/slog] package and provides a single
// initialization point so every component shares the same handler and level.
// The level is read once from the NOTATION_LOG_LEVEL environment variable
// (debug, info, warn, error). If unset, the default level is INFO.
//
// Usage:
//
//	log := logging.New("session")
//	log.Info("switched page", "index", 2)
//	log.Warn("save page notes", "page", id, "error", err)
//
// Output goes to stderr so it never interleaves with the terminal editor
// drawn on stdout. SetOutput redirects it, which the terminal editor uses to
// keep logs in a file while it owns the screen.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	// initLogger ensures the base logger is created exactly once.
	initLogger sync.Once

	// baseLogger is shared by all components; component loggers derive from
	// it via With().
	baseLogger *slog.Logger

	// output is where the base handler writes. Guarded by outputMu so
	// SetOutput can swap it after loggers were handed out.
	outputMu sync.Mutex
	output   io.Writer = os.Stderr
)

// switchWriter forwards writes to whatever SetOutput last installed.
type switchWriter struct{}

func (switchWriter) Write(p []byte) (int, error) {
	outputMu.Lock()
	defer outputMu.Unlock()
	return output.Write(p)
}

// New returns a structured logger scoped to the given component name.
//
// If component is empty, the base logger is returned without additional
// attributes.
func New(component string) *slog.Logger {
	initLogger.Do(func() {
		baseLogger = slog.New(slog.NewTextHandler(switchWriter{}, &slog.HandlerOptions{
			Level: parseLevel(os.Getenv("NOTATION_LOG_LEVEL")),
		}))
	})
	if component == "" {
		return baseLogger
	}
	return baseLogger.With("component", component)
}

// SetOutput redirects all loggers, including ones already created.
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// parseLevel converts a human-readable log level string to a [slog.Level].
//
// Recognized values (case-insensitive, whitespace-trimmed):
//   - "debug"           → slog.LevelDebug
//   - "warn", "warning" → slog.LevelWarn
//   - "error"           → slog.LevelError
//   - anything else     → slog.LevelInfo
func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
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
