package rhom

import (
	"context"
	"sync"
)

// Callback is the completion function accepted by every CRUD entry point.
// It is invoked exactly once with the same outcome the Future reports.
type Callback[T any] func(T, error)

// Future is the eventual outcome of an operation.
//
// A Future settles once. Callbacks attached with Then run in attachment
// order on the goroutine that settles it, or immediately if it already
// has.
type Future[T any] struct {
	done chan struct{}

	mu      sync.Mutex
	settled bool
	value   T
	err     error
	waiters []Callback[T]
}

// NewFuture returns a pending future and the function that settles it.
// Calls to the resolver after the first are ignored.
func NewFuture[T any]() (*Future[T], Callback[T]) {
	f := &Future[T]{done: make(chan struct{})}
	return f, f.resolve
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	f, resolve := NewFuture[T]()
	resolve(v, nil)
	return f
}

// Rejected returns a future already failed with err. Any callbacks are
// invoked synchronously before Rejected returns.
func Rejected[T any](err error, cbs ...Callback[T]) *Future[T] {
	f, resolve := NewFuture[T]()
	for _, cb := range cbs {
		f.Then(cb)
	}
	var zero T
	resolve(zero, err)
	return f
}

func (f *Future[T]) resolve(v T, err error) {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.settled = true
	f.value = v
	f.err = err
	waiters := f.waiters
	f.waiters = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range waiters {
		cb(v, err)
	}
}

// Done returns a channel closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Settled reports whether the future has settled.
func (f *Future[T]) Settled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settled
}

// Wait blocks until the future settles and returns its outcome.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// Await is Wait bounded by ctx. It returns ctx.Err() if ctx ends first;
// the operation itself keeps running.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then attaches cb and returns f. A nil cb is ignored.
func (f *Future[T]) Then(cb Callback[T]) *Future[T] {
	if cb == nil {
		return f
	}
	f.mu.Lock()
	if !f.settled {
		f.waiters = append(f.waiters, cb)
		f.mu.Unlock()
		return f
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	cb(v, err)
	return f
}

// Untyped returns a Future[any] that settles with f's outcome.
func (f *Future[T]) Untyped() *Future[any] {
	u, resolve := NewFuture[any]()
	f.Then(func(v T, err error) {
		if err != nil {
			resolve(nil, err)
			return
		}
		resolve(v, nil)
	})
	return u
}
