// Package logging constructs the CLI's structured logger.
package logging

import (
	"io"
	"log/slog"
)

// New creates a structured logger writing to w. Verbose enables debug-level
// output with a human-readable text handler; otherwise warnings and errors
// are emitted as JSON.
func New(w io.Writer, verbose bool) *slog.Logger {
	if verbose {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}
