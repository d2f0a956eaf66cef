package rhom

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// Instance is a live entity: an id plus field values.
//
// The id is empty until the first Save assigns one and never changes
// afterwards. When the type declares properties only those fields can be
// set. Deleting an instance removes it from storage; the value itself
// stays usable.
type Instance struct {
	desc *Descriptor

	mu     sync.RWMutex
	id     string
	fields map[string]any
}

// ID returns the identifier, or "" before the first save.
func (i *Instance) ID() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.id
}

// Key returns the storage key for the instance, or "" before the first save.
func (i *Instance) Key() string {
	id := i.ID()
	if id == "" {
		return ""
	}
	return i.desc.prefix + id
}

// Descriptor returns the instance's type.
func (i *Instance) Descriptor() *Descriptor { return i.desc }

// Get returns a field value and whether it is set.
func (i *Instance) Get(field string) (any, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	v, ok := i.fields[field]
	return v, ok
}

// Set assigns a field. It fails with ErrUnknownField when the type
// declares properties and field is not one of them.
func (i *Instance) Set(field string, v any) error {
	if !i.desc.Declares(field) {
		return fmt.Errorf("%s.%s: %w", i.desc.name, field, ErrUnknownField)
	}
	i.mu.Lock()
	i.fields[field] = v
	i.mu.Unlock()
	return nil
}

// Unset clears a field.
func (i *Instance) Unset(field string) {
	i.mu.Lock()
	delete(i.fields, field)
	i.mu.Unlock()
}

// Fields returns a copy of the fields that are set.
func (i *Instance) Fields() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return maps.Clone(i.fields)
}

// ToFieldMap returns the persisted view of the instance. With declared
// properties every declared field is present, nil when unset; otherwise
// it is a copy of all fields.
func (i *Instance) ToFieldMap() map[string]any {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.desc.properties == nil {
		out := maps.Clone(i.fields)
		if out == nil {
			out = map[string]any{}
		}
		return out
	}
	out := make(map[string]any, len(i.desc.properties))
	for _, p := range i.desc.properties {
		out[p] = i.fields[p]
	}
	return out
}

// FromFieldMap copies field values from data, skipping undeclared fields
// and nil values.
func (i *Instance) FromFieldMap(data map[string]any) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for k, v := range data {
		if v == nil || !i.desc.Declares(k) {
			continue
		}
		i.fields[k] = v
	}
}

// Save persists the instance, assigning an id first if it has none.
func (i *Instance) Save(ctx context.Context, cbs ...Callback[*Instance]) *Future[*Instance] {
	i.mu.Lock()
	if i.id == "" {
		i.id = i.desc.idgen()
	}
	i.mu.Unlock()
	return dispatch(i.desc, NewEvent(ctx, OpSave, i, nil), cbs)
}

// Delete removes the instance from storage. An instance that was never
// saved fails with ErrMissingIdentifier before any listener runs.
func (i *Instance) Delete(ctx context.Context, cbs ...Callback[bool]) *Future[bool] {
	if i.ID() == "" {
		return Rejected(ErrMissingIdentifier, cbs...)
	}
	return dispatch(i.desc, NewEvent(ctx, OpDelete, i, nil), cbs)
}
