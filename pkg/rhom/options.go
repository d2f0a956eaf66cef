package rhom

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/rhom/pkg/rhom/observability"
)

// Option configures a Descriptor at creation.
type Option func(*Descriptor)

// WithProperties declares the fields instances persist. Without it every
// field set on an instance is persisted.
//
// Example:
//
//	users := rhom.New("User", rhom.WithProperties("email", "name"))
func WithProperties(fields ...string) Option {
	return func(d *Descriptor) {
		d.properties = append([]string(nil), fields...)
	}
}

// WithIDGenerator sets the function that assigns ids on first save.
// Default: UUID().
func WithIDGenerator(gen IDGenerator) Option {
	return func(d *Descriptor) {
		if gen != nil {
			d.idgen = gen
		}
	}
}

// WithPrefix sets the key prefix. A ":" separator is appended when missing.
// Default: the type name followed by ":".
func WithPrefix(prefix string) Option {
	return func(d *Descriptor) {
		d.prefix = prefix
		d.prefixSet = true
	}
}

// WithOverride lets a later accessor registration replace an earlier one
// with the same name instead of failing with ErrAccessorExists.
func WithOverride(override bool) Option {
	return func(d *Descriptor) {
		d.override = override
	}
}

// WithTimeout fails any event still pending this long after dispatch.
// Default: 0 (no deadline).
//
// The deadline produces a *TimeoutError; it does not cancel listener I/O.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Descriptor) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithLogger sets the logger for the type. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(d *Descriptor) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder. Default: observability.NoopMetrics{}.
//
// Example:
//
//	users := rhom.New("User", rhom.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(d *Descriptor) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithTracing sets the span manager. Default: observability.NoopSpanManager{}.
func WithTracing(s observability.SpanManager) Option {
	return func(d *Descriptor) {
		if s != nil {
			d.spans = s
		}
	}
}
