// Package logging builds the process-wide slog logger used by the HTTP server.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	logger     *slog.Logger
	loggerOnce sync.Once
)

// ParseLevel maps debug/info/warn/error onto slog levels; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// New returns a text logger writing to w at the given level.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Init installs the process logger once; later calls are no-ops.
func Init(level string) *slog.Logger {
	loggerOnce.Do(func() {
		logger = New(os.Stderr, level)
		slog.SetDefault(logger)
	})
	return logger
}

// Logger returns the process logger, initialising it at info level if needed.
func Logger() *slog.Logger {
	return Init("info")
}
