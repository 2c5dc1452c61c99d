// Package logger provides the shared slog setup and common attributes.
package logger

import (
	"log/slog"
	"os"
	"strings"

	"go.uber.org/fx"
)

// Module provides the application logger.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
)

// NewLogger builds the root *slog.Logger.
//
// The level is read from LOG_LEVEL (debug, info, warn/warning, error;
// case-insensitive, default info). When GO_ENV=production the handler
// emits JSON, otherwise human-readable text.
func NewLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if os.Getenv("GO_ENV") == "production" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

// Scope returns the component-scope attribute used across the codebase.
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error returns the canonical error attribute.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}
