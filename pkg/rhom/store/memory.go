package store

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
)

// MemoryBackend is an in-memory Backend for tests and single-process use.
// Data is lost when the process exits. Field values are stored as given,
// without the JSON round trip SQLiteBackend applies. As with SQLiteBackend,
// a hash with no fields still exists until it is deleted.
type MemoryBackend struct {
	mu     sync.RWMutex
	hashes map[string]map[string]any
	sets   map[string]map[string]struct{}
	strs   map[string]string
	closed bool
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		hashes: make(map[string]map[string]any),
		sets:   make(map[string]map[string]struct{}),
		strs:   make(map[string]string),
	}
}

func (m *MemoryBackend) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.closed {
		return ErrClosed
	}
	return nil
}

// HGetAll implements Backend.
func (m *MemoryBackend) HGetAll(ctx context.Context, key string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check(ctx); err != nil {
		return nil, err
	}
	h, ok := m.hashes[key]
	if !ok {
		return nil, ErrNotFound
	}
	return maps.Clone(h), nil
}

// HSet implements Backend.
func (m *MemoryBackend) HSet(ctx context.Context, key string, fields map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx); err != nil {
		return err
	}
	h := m.hashes[key]
	if h == nil {
		h = make(map[string]any, len(fields))
		m.hashes[key] = h
	}
	for f, v := range fields {
		if v == nil {
			delete(h, f)
			continue
		}
		h[f] = v
	}
	return nil
}

// SAdd implements Backend.
func (m *MemoryBackend) SAdd(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx); err != nil {
		return err
	}
	s := m.sets[key]
	if s == nil {
		s = make(map[string]struct{}, len(members))
		m.sets[key] = s
	}
	for _, member := range members {
		s[member] = struct{}{}
	}
	return nil
}

// SRem implements Backend.
func (m *MemoryBackend) SRem(ctx context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx); err != nil {
		return err
	}
	s, ok := m.sets[key]
	if !ok {
		return nil
	}
	for _, member := range members {
		delete(s, member)
	}
	if len(s) == 0 {
		delete(m.sets, key)
	}
	return nil
}

// SMembers implements Backend.
func (m *MemoryBackend) SMembers(ctx context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check(ctx); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		out = append(out, member)
	}
	slices.Sort(out)
	return out, nil
}

// GetString implements Backend.
func (m *MemoryBackend) GetString(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check(ctx); err != nil {
		return "", err
	}
	v, ok := m.strs[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// SetString implements Backend.
func (m *MemoryBackend) SetString(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx); err != nil {
		return err
	}
	m.strs[key] = value
	return nil
}

// Del implements Backend.
func (m *MemoryBackend) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.check(ctx); err != nil {
		return err
	}
	for _, k := range keys {
		delete(m.hashes, k)
		delete(m.sets, k)
		delete(m.strs, k)
	}
	return nil
}

// Keys implements Backend.
func (m *MemoryBackend) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := m.check(ctx); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for k := range m.hashes {
		seen[k] = struct{}{}
	}
	for k := range m.sets {
		seen[k] = struct{}{}
	}
	for k := range m.strs {
		seen[k] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return out, nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.hashes = nil
	m.sets = nil
	m.strs = nil
	return nil
}

// Len returns the total number of keys across all kinds.
// Useful for testing.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hashes) + len(m.sets) + len(m.strs)
}
