// Package logging sets up the process-wide log/slog logger (SPEC_FULL.md
// ambient stack): a text handler to stderr, leveled via the
// OPENMETERS_LOG_LEVEL environment variable, matching the teacher's
// structured slog.Info/Debug/Warn/Error call style seen throughout
// server/internal/ws and server/internal/core.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init installs a process-wide slog.Logger built from the
// OPENMETERS_LOG_LEVEL environment variable (one of "debug", "info",
// "warn", "error"; defaults to "info" on anything else) and returns it.
// Every long-lived component logs through the logger returned here (or a
// descendant built with With), tagged with a "component" field.
func Init() *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// For returns a child logger tagged with the given component name, the
// convention every internal package uses (slog.String("component", name))
// when accepting a *slog.Logger from a caller that may pass nil.
func For(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("component", component))
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(os.Getenv("OPENMETERS_LOG_LEVEL")) {
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
