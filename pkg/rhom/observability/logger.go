// Package observability provides logging, metrics, and tracing helpers
// for rhom entity operations.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// All features are opt-in and have no-op implementations when disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds operation context to a logger.
// Returns a new logger with type, op, and id fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "User", "get", "u-1")
//	enriched.Info("loading") // includes type, op, id
func EnrichLogger(logger *slog.Logger, typeName, op, id string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("type", typeName),
		slog.String("op", op),
		slog.String("id", id),
	)
}

// LogOpStart logs the start of an entity operation.
func LogOpStart(logger *slog.Logger, typeName, op, id string) {
	if logger == nil {
		return
	}
	logger.Debug("operation starting",
		slog.String("type", typeName),
		slog.String("op", op),
		slog.String("id", id),
	)
}

// LogOpComplete logs successful operation completion.
func LogOpComplete(logger *slog.Logger, typeName, op string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("operation completed",
		slog.String("type", typeName),
		slog.String("op", op),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogOpError logs an operation that settled with a failure.
func LogOpError(logger *slog.Logger, typeName, op string, err error, durationMs float64) {
	if logger == nil || err == nil {
		return
	}
	logger.Warn("operation failed",
		slog.String("type", typeName),
		slog.String("op", op),
		slog.String("error", err.Error()),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDoubleResolve logs an attempt to settle an event that was already settled.
func LogDoubleResolve(logger *slog.Logger, typeName, op, state string) {
	if logger == nil {
		return
	}
	logger.Warn("event already resolved",
		slog.String("type", typeName),
		slog.String("op", op),
		slog.String("state", state),
	)
}

// LogNotInitialized logs use of an event that was never wired to a dispatcher.
func LogNotInitialized(logger *slog.Logger) {
	if logger == nil {
		return
	}
	logger.Error("event not initialized")
}

// LogTimeout logs an operation that no listener settled in time.
func LogTimeout(logger *slog.Logger, typeName, op string, after time.Duration) {
	if logger == nil {
		return
	}
	logger.Warn("operation timed out",
		slog.String("type", typeName),
		slog.String("op", op),
		slog.Duration("after", after),
	)
}

// LogListenerPanic logs a recovered listener panic.
func LogListenerPanic(logger *slog.Logger, hook string, value any) {
	if logger == nil {
		return
	}
	logger.Error("listener panicked",
		slog.String("hook", hook),
		slog.Any("panic", value),
	)
}

// LogPluginInstalled logs a successful plugin installation.
func LogPluginInstalled(logger *slog.Logger, typeName, plugin string) {
	if logger == nil {
		return
	}
	logger.Debug("plugin installed",
		slog.String("type", typeName),
		slog.String("plugin", plugin),
	)
}

// LogBackendError logs a non-fatal storage failure.
func LogBackendError(logger *slog.Logger, op, key string, err error) {
	if logger == nil || err == nil {
		return
	}
	logger.Warn("backend operation failed",
		slog.String("operation", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
