package rhom

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/rhom/pkg/rhom/observability"
	"go.opentelemetry.io/otel/trace"
)

// Dispatcher delivers lifecycle notifications for one entity type.
//
// Listeners for a hook run in subscription order. Dispatch runs the before
// and primary phases synchronously on the calling goroutine; the after
// phase runs exactly once, after the event has settled, on whichever
// goroutine observed the settlement.
type Dispatcher struct {
	typeName string
	timeout  time.Duration
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager

	mu        sync.RWMutex
	listeners map[Hook][]Listener
}

func newDispatcher(typeName string, timeout time.Duration, logger *slog.Logger,
	metrics observability.MetricsRecorder, spans observability.SpanManager) *Dispatcher {
	return &Dispatcher{
		typeName:  typeName,
		timeout:   timeout,
		logger:    logger,
		metrics:   metrics,
		spans:     spans,
		listeners: make(map[Hook][]Listener),
	}
}

// Subscribe appends l to the listeners for hook. It panics if hook is not
// a lifecycle hook or l is nil; both are setup mistakes.
func (d *Dispatcher) Subscribe(hook Hook, l Listener) {
	if !hook.Valid() {
		panic(fmt.Sprintf("rhom: unknown hook %q", hook))
	}
	if l == nil {
		panic("rhom: nil listener")
	}
	d.mu.Lock()
	d.listeners[hook] = append(d.listeners[hook], l)
	d.mu.Unlock()
}

// Listeners returns a copy of the listeners subscribed to hook.
func (d *Dispatcher) Listeners(hook Hook) []Listener {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Listener, len(d.listeners[hook]))
	copy(out, d.listeners[hook])
	return out
}

// Dispatch runs ev through its lifecycle.
//
// Every before listener runs; the primary phase is skipped when a before
// listener already settled the event. If the event is still pending when
// the pass ends it stays pending until a listener settles it later or the
// deadline, if any, fails it with a *TimeoutError.
func (d *Dispatcher) Dispatch(ev *Event) {
	if ev.done == nil {
		ev.Failure(ErrNotInitialized)
		ev.d = d
		d.runAfter(ev)
		return
	}

	timeout := d.timeout
	if t, ok := callTimeout(ev.Context()); ok {
		timeout = t
	}

	start := time.Now()
	id := ev.id()
	ctx, span := d.spans.StartOpSpan(ev.Context(), d.typeName, string(ev.op), id)
	observability.LogOpStart(d.logger, d.typeName, string(ev.op), id)

	ev.mu.Lock()
	ev.d = d
	ev.ctx = ctx
	ev.passing = true
	ev.complete = func() { d.complete(ev, span, start) }
	ev.mu.Unlock()

	d.run(Before(ev.op), ev)
	if !ev.Handled() {
		d.run(Primary(ev.op), ev)
	}

	ev.mu.Lock()
	ev.passing = false
	settled := ev.state != Pending
	if !settled && timeout > 0 {
		ev.timer = time.AfterFunc(timeout, func() { d.expire(ev, timeout) })
	}
	ev.mu.Unlock()

	if settled {
		ev.finish()
	}
}

// run invokes the listeners for a before or primary hook. A panicking
// listener fails the event and the remaining listeners still run.
func (d *Dispatcher) run(hook Hook, ev *Event) {
	for _, l := range d.Listeners(hook) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					observability.LogListenerPanic(d.logger, string(hook), r)
					ev.Failure(&PanicError{Hook: hook, Value: r, Stack: string(debug.Stack())})
				}
			}()
			l(ev)
		}()
	}
}

func (d *Dispatcher) runAfter(ev *Event) {
	hook := After(ev.op)
	for _, l := range d.Listeners(hook) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					observability.LogListenerPanic(d.logger, string(hook), r)
				}
			}()
			l(ev)
		}()
	}
}

// complete runs once per settled event: after listeners, then
// instrumentation, then delivery to the caller's future.
func (d *Dispatcher) complete(ev *Event, span trace.Span, start time.Time) {
	ev.stopTimer()
	d.runAfter(ev)

	_, err := ev.outcome()
	elapsed := time.Since(start)
	ctx := ev.Context()
	d.metrics.RecordOperation(ctx, d.typeName, string(ev.op), elapsed, err)
	if err != nil {
		observability.LogOpError(d.logger, d.typeName, string(ev.op), err, float64(elapsed.Microseconds())/1000)
	} else {
		observability.LogOpComplete(d.logger, d.typeName, string(ev.op), float64(elapsed.Microseconds())/1000)
	}
	d.spans.EndSpanWithError(span, err)

	if ev.deliver != nil {
		ev.deliver()
	}
}

func (d *Dispatcher) expire(ev *Event, after time.Duration) {
	if ev.Failure(&TimeoutError{Type: d.typeName, Op: ev.op, After: after}) {
		observability.LogTimeout(d.logger, d.typeName, string(ev.op), after)
		d.metrics.RecordTimeout(ev.Context(), d.typeName, string(ev.op))
	}
}
