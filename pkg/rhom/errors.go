package rhom

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for caller-facing operations.
var (
	// ErrMissingIdentifier indicates Get was called without an id.
	// No event is created.
	ErrMissingIdentifier = errors.New("no ID provided")

	// ErrUnknownField indicates Set was called with a field the type does not declare.
	ErrUnknownField = errors.New("field not declared")

	// ErrAccessorNotFound indicates Call named an accessor no plugin registered.
	ErrAccessorNotFound = errors.New("accessor not found")
)

// Sentinel errors for type setup.
var (
	// ErrDuplicatePlugin indicates a plugin name was already registered on the type.
	ErrDuplicatePlugin = errors.New("plugin already registered")

	// ErrAccessorExists indicates an accessor name was already taken and the
	// type was not created with override enabled.
	ErrAccessorExists = errors.New("accessor already registered")
)

// Sentinel errors for event resolution.
var (
	// ErrTimeout indicates no listener settled an event before its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrNotInitialized indicates Success or Failure was called on an Event
	// that was not created through NewEvent or a Descriptor.
	ErrNotInitialized = errors.New("event not initialized")

	// ErrNotResolved is what Err reports while an event is still pending.
	ErrNotResolved = errors.New("event not yet resolved")

	// ErrResultType indicates a listener settled an event with a value of
	// the wrong type for the operation.
	ErrResultType = errors.New("unexpected result type")

	// ErrNilFailure replaces a nil error passed to Failure.
	ErrNilFailure = errors.New("listener reported failure without an error")
)

// DuplicatePluginError reports which type rejected which plugin name.
type DuplicatePluginError struct {
	// Type is the entity type name.
	Type string
	// Name is the plugin name that was already present.
	Name string
}

// Error implements the error interface.
func (e *DuplicatePluginError) Error() string {
	return fmt.Sprintf("plugin %q already registered on %s", e.Name, e.Type)
}

// Unwrap returns ErrDuplicatePlugin for errors.Is support.
func (e *DuplicatePluginError) Unwrap() error {
	return ErrDuplicatePlugin
}

// TimeoutError is the failure an event receives when its deadline passes.
type TimeoutError struct {
	// Type is the entity type name.
	Type string
	// Op is the operation that went unanswered.
	Op Op
	// After is the configured deadline.
	After time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s unresolved after %s", e.Type, e.Op, e.After)
}

// Unwrap returns ErrTimeout for errors.Is support.
func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}

// ResultTypeError reports a listener result that does not match the
// operation's return type.
type ResultTypeError struct {
	Op   Op
	Want string
	Got  string
}

// Error implements the error interface.
func (e *ResultTypeError) Error() string {
	return fmt.Sprintf("%s result: want %s, got %s", e.Op, e.Want, e.Got)
}

// Unwrap returns ErrResultType for errors.Is support.
func (e *ResultTypeError) Unwrap() error {
	return ErrResultType
}

// PanicError captures a panic raised by a before or primary listener.
// It includes the stack trace for debugging.
type PanicError struct {
	// Hook is the hook the listener was subscribed to.
	Hook Hook
	// Value is the value passed to panic().
	Value any
	// Stack is the full stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("listener on %s panicked: %v", e.Hook, e.Value)
}
