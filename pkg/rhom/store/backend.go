// Package store provides key/value persistence for rhom entity types: a
// Backend contract with in-memory and SQLite implementations, and the
// storage plugin that answers the primary lifecycle hooks.
package store

import (
	"context"
	"errors"
)

// Backend is a small key/value command set: hashes, sets and plain
// strings, addressed by string keys.
// Implementations must be safe for concurrent use.
type Backend interface {
	// HGetAll returns every field of the hash at key.
	// Returns ErrNotFound if the hash doesn't exist.
	HGetAll(ctx context.Context, key string) (map[string]any, error)

	// HSet merges fields into the hash at key, creating it if needed.
	// A nil value removes that field. The hash exists even when it ends up
	// with no fields.
	HSet(ctx context.Context, key string, fields map[string]any) error

	// SAdd adds members to the set at key.
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem removes members from the set at key.
	// Returns nil for members that aren't present.
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers returns the members of the set at key in sorted order.
	// Returns an empty slice (not error) if the set doesn't exist.
	SMembers(ctx context.Context, key string) ([]string, error)

	// GetString returns the string at key.
	// Returns ErrNotFound if it doesn't exist.
	GetString(ctx context.Context, key string) (string, error)

	// SetString stores a string at key, overwriting any previous value.
	SetString(ctx context.Context, key, value string) error

	// Del removes keys of any kind. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error

	// Keys returns every key starting with prefix, sorted.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for backend operations.
var (
	// ErrNotFound indicates a key doesn't exist.
	ErrNotFound = errors.New("key not found")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("backend closed")
)
