package rhom

import "fmt"

// bridge is the single point where an event's outcome reaches the caller.
// The returned future settles after the after phase has run, and each
// callback observes the same outcome exactly once.
//
// A failure handed to a callback is not reported anywhere else; the
// future still carries it for callers that wait on it.
func bridge[T any](ev *Event, cbs []Callback[T]) *Future[T] {
	f, resolve := NewFuture[T]()
	for _, cb := range cbs {
		f.Then(cb)
	}
	ev.deliver = func() {
		v, err := ev.outcome()
		if err != nil {
			var zero T
			resolve(zero, err)
			return
		}
		resolve(convert[T](ev.op, v))
	}
	return f
}

// convert narrows a listener result to the operation's result type. A nil
// result converts to the zero value, which is how get reports a miss.
func convert[T any](op Op, v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	return zero, &ResultTypeError{
		Op:   op,
		Want: fmt.Sprintf("%T", zero),
		Got:  fmt.Sprintf("%T", v),
	}
}
