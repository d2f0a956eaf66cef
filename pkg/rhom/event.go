package rhom

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/rhom/pkg/rhom/observability"
)

// State is the outcome state of an Event.
type State int

const (
	// Pending means no listener has settled the event yet.
	Pending State = iota
	// Succeeded means Success won.
	Succeeded
	// Failed means Failure won, or the deadline passed.
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

type unresolved struct{}

func (unresolved) String() string { return "<unresolved>" }

// Unresolved is what Result reports while an event is pending.
var Unresolved any = unresolved{}

// Listener reacts to an Event. It settles the event with Success or
// Failure, or returns without settling it to observe only.
type Listener func(*Event)

// Event is one in-flight operation and its eventual outcome.
//
// An event settles exactly once. The first call to Success or Failure
// wins; later calls return false and leave the outcome unchanged. All
// methods are safe to call from any goroutine, so a listener may return
// immediately and settle the event after its I/O completes.
type Event struct {
	op     Op
	target any
	desc   *Descriptor
	ctx    context.Context

	mu     sync.Mutex
	data   any
	state  State
	result any
	err    error
	done   chan struct{}

	d         *Dispatcher
	passing   bool
	complete  func()
	afterOnce sync.Once
	timer     *time.Timer
	deliver   func()
}

// NewEvent creates a pending event for op against target, which is a
// *Descriptor for get, all and purge or an *Instance for save and delete.
//
// Descriptors and instances create their own events; NewEvent is for
// dispatching by hand and for testing listeners in isolation.
func NewEvent(ctx context.Context, op Op, target any, data any) *Event {
	if ctx == nil {
		ctx = context.Background()
	}
	ev := &Event{
		op:     op,
		target: target,
		ctx:    ctx,
		data:   data,
		done:   make(chan struct{}),
	}
	switch t := target.(type) {
	case *Descriptor:
		ev.desc = t
	case *Instance:
		if t != nil {
			ev.desc = t.desc
		}
	}
	return ev
}

// Type returns the operation.
func (e *Event) Type() Op { return e.op }

// Target returns the *Descriptor or *Instance the operation acts on.
func (e *Event) Target() any { return e.target }

// Instance returns the target instance for save and delete, or nil.
func (e *Event) Instance() *Instance {
	inst, _ := e.target.(*Instance)
	return inst
}

// Descriptor returns the entity type the event belongs to.
func (e *Event) Descriptor() *Descriptor { return e.desc }

// Context returns the context of the call that created the event.
func (e *Event) Context() context.Context {
	if e.ctx == nil {
		return context.Background()
	}
	return e.ctx
}

// Data returns the operation payload: the id (string) or ids ([]string)
// for get, and whatever a primary listener stored with SetData otherwise.
func (e *Event) Data() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.data
}

// SetData replaces the payload. Storage listeners use it to hand the
// affected ids of a purge to after listeners.
func (e *Event) SetData(v any) {
	e.mu.Lock()
	e.data = v
	e.mu.Unlock()
}

// Handled reports whether the event has settled.
func (e *Event) Handled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state != Pending
}

// State returns the current outcome state.
func (e *Event) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Result returns the success value, nil after a failure, or Unresolved
// while pending.
func (e *Event) Result() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Pending {
		return Unresolved
	}
	return e.result
}

// Err returns the failure, nil after a success, or ErrNotResolved while
// pending.
func (e *Event) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == Pending {
		return ErrNotResolved
	}
	return e.err
}

// Success settles the event with v. It returns false if the event was
// already settled, in which case nothing changes.
func (e *Event) Success(v any) bool {
	return e.settle(Succeeded, v, nil)
}

// Failure settles the event with err. It returns false if the event was
// already settled, in which case nothing changes.
func (e *Event) Failure(err error) bool {
	if err == nil {
		err = ErrNilFailure
	}
	return e.settle(Failed, nil, err)
}

func (e *Event) settle(state State, v any, err error) bool {
	e.mu.Lock()
	if e.done == nil {
		if e.state == Pending {
			e.state = Failed
			e.err = ErrNotInitialized
		}
		e.mu.Unlock()
		observability.LogNotInitialized(e.logger())
		return false
	}
	if e.state != Pending {
		prev := e.state
		e.mu.Unlock()
		observability.LogDoubleResolve(e.logger(), e.typeName(), string(e.op), prev.String())
		if e.d != nil {
			e.d.metrics.RecordDoubleResolve(e.Context(), e.typeName(), string(e.op))
		}
		return false
	}
	e.state = state
	e.result = v
	e.err = err
	close(e.done)
	finish := !e.passing && e.complete != nil
	e.mu.Unlock()

	if finish {
		e.finish()
	}
	return true
}

// outcome returns the final result and error. Only valid once settled.
func (e *Event) outcome() (any, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result, e.err
}

func (e *Event) finish() {
	e.afterOnce.Do(func() {
		if e.complete != nil {
			e.complete()
		}
	})
}

func (e *Event) stopTimer() {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()
}

func (e *Event) logger() *slog.Logger {
	if e.d != nil && e.d.logger != nil {
		return e.d.logger
	}
	if e.desc != nil && e.desc.logger != nil {
		return e.desc.logger
	}
	return slog.Default()
}

func (e *Event) typeName() string {
	if e.desc != nil {
		return e.desc.name
	}
	if e.d != nil {
		return e.d.typeName
	}
	return ""
}

// id returns the primary id this event concerns, if there is one.
func (e *Event) id() string {
	if inst := e.Instance(); inst != nil {
		return inst.ID()
	}
	if s, ok := e.Data().(string); ok {
		return s
	}
	return ""
}
