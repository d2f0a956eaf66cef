package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records entity operation metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordOperation records a settled operation with its duration and error status.
	RecordOperation(ctx context.Context, typeName, op string, duration time.Duration, err error)

	// RecordTimeout records an operation failed by its deadline.
	RecordTimeout(ctx context.Context, typeName, op string)

	// RecordDoubleResolve records a rejected attempt to settle an event twice.
	RecordDoubleResolve(ctx context.Context, typeName, op string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	opCount       metric.Int64Counter
	opLatency     metric.Float64Histogram
	opErrors      metric.Int64Counter
	opTimeouts    metric.Int64Counter
	doubleResolve metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("rhom")

	opCount, err := meter.Int64Counter("rhom.op.count",
		metric.WithDescription("Number of settled entity operations"),
	)
	if err != nil {
		return nil, err
	}

	opLatency, err := meter.Float64Histogram("rhom.op.latency_ms",
		metric.WithDescription("Entity operation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	opErrors, err := meter.Int64Counter("rhom.op.errors",
		metric.WithDescription("Number of failed entity operations"),
	)
	if err != nil {
		return nil, err
	}

	opTimeouts, err := meter.Int64Counter("rhom.op.timeouts",
		metric.WithDescription("Number of entity operations failed by deadline"),
	)
	if err != nil {
		return nil, err
	}

	doubleResolve, err := meter.Int64Counter("rhom.event.double_resolve",
		metric.WithDescription("Number of rejected second settle attempts"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		opCount:       opCount,
		opLatency:     opLatency,
		opErrors:      opErrors,
		opTimeouts:    opTimeouts,
		doubleResolve: doubleResolve,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func opAttrs(typeName, op string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("type", typeName),
		attribute.String("op", op),
	)
}

// RecordOperation records a settled operation.
func (m *otelMetrics) RecordOperation(ctx context.Context, typeName, op string, duration time.Duration, err error) {
	attrs := opAttrs(typeName, op)
	m.opCount.Add(ctx, 1, attrs)
	m.opLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.opErrors.Add(ctx, 1, attrs)
	}
}

// RecordTimeout records a deadline failure.
func (m *otelMetrics) RecordTimeout(ctx context.Context, typeName, op string) {
	m.opTimeouts.Add(ctx, 1, opAttrs(typeName, op))
}

// RecordDoubleResolve records a second settle attempt.
func (m *otelMetrics) RecordDoubleResolve(ctx context.Context, typeName, op string) {
	m.doubleResolve.Add(ctx, 1, opAttrs(typeName, op))
}
