// Package log configures the process-wide slog default shared by the
// Stagehand binaries.
package log

import (
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default logger at the given level. Binaries log JSON to
// stderr; anything unrecognized as a level falls back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(logLevel))); err != nil {
		level = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))
}

// WithModule returns the default logger tagged with the owning module.
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}
