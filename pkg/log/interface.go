// Package log provides a structured logging interface for model training and
// label inference.
//
// The Logger interface is slog-compatible so callers can swap backends, while
// the default implementation writes JSON lines through zerolog. Attribute keys
// in attributes.go keep field names consistent across packages.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("cannon").With(
//	    log.EstimatorIDKey, model.ID(),
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationTrain,
//	    log.StarsKey, 1000,
//	    log.PixelsKey, 8575,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// Fields are alternating key/value pairs. With returns a child logger whose
// fields are attached to every record it emits.
type Logger interface {
	// Debug logs a debug-level message, used for per-pixel diagnostics.
	Debug(msg string, fields ...any)

	// Info logs an info-level message.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message. Optimizer stalls are reported here.
	Warn(msg string, fields ...any)

	// Error logs an error-level message. If the first field is an error
	// it is attached under ErrAttrKey together with its stack trace.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip building expensive per-pixel fields.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4 // Detailed diagnostic information
	LevelInfo  Level = 0  // General operational information
	LevelWarn  Level = 4  // Warning conditions
	LevelError Level = 8  // Error conditions
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

// LoggerProvider creates loggers. It exists so tests and applications can
// inject their own backend.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger tagged with a component name.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
