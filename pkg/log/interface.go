// Package log provides the structured logging interface used across the
// training pipeline.
//
// The interface is slog-compatible (Debug/Info/Warn/Error with key-value
// fields) and is backed by zerolog. Attribute keys such as ModelNameKey and
// OperationKey keep log records uniform between packages.
//
//	logger := log.GetLoggerWithName("trainer").With(log.ModelNameKey, "knn")
//	logger.Info("fit finished", log.SamplesKey, 140, log.FeaturesKey, 8)
package log

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

// Logger defines a structured logging interface compatible with log/slog.
//
// Fields are alternating key-value pairs. Error treats a leading error value
// specially: it is attached with its stack trace.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger

	// Enabled reports whether records at level would be emitted.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts "debug", "info", "warn" or "error" (any case) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log.level", "must be one of debug, info, warn, error", s)
	}
}
