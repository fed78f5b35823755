// Package logging sets up structured logging for blogc.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a logger writing to w. Dev mode logs human-readable text at
// debug level; otherwise JSON at info level.
func New(w io.Writer, devMode bool) *slog.Logger {
	if devMode {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Setup installs a stdout logger as the slog default.
func Setup(devMode bool) {
	slog.SetDefault(New(os.Stdout, devMode).With("app", "blogc"))
}
