// Package relation links instances of one type to instances of another.
//
// A to-one relation stores the target's id as a string at
// owner.Key(id+":"+name); a to-many relation stores a set of ids at the
// same key shape. Targets are always fetched through the related type's
// Get, so its caches and other plugins apply. Via chains to-one hops to
// reach instances several relations away.
//
// Each relation is a plugin on the owner type. Installing it registers
// accessors such as "getAuthor" or "addBooks" and removes the relation's
// keys when an owner is deleted or the owner type is purged.
package relation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/rhom/pkg/rhom"
	"github.com/randalmurphal/rhom/pkg/rhom/observability"
	"github.com/randalmurphal/rhom/pkg/rhom/store"
)

// ErrNoTarget is returned when a link target has no id.
var ErrNoTarget = errors.New("relation: target has no id")

// Link is the accessor argument for set, add and remove. Target is a
// *rhom.Instance or an id string; a nil Target clears a to-one relation.
type Link struct {
	Owner  *rhom.Instance
	Target any
}

// Option configures a relation.
type Option func(*base)

// WithName overrides the relation name. The default is the related type's
// name for to-one relations and its plural for to-many ones.
func WithName(name string) Option {
	return func(b *base) {
		if name != "" {
			b.name = name
		}
	}
}

type base struct {
	owner   *rhom.Descriptor
	related *rhom.Descriptor
	backend store.Backend
	name    string
}

func newBase(owner, related *rhom.Descriptor, backend store.Backend, name string, opts []Option) base {
	b := base{owner: owner, related: related, backend: backend, name: name}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Name implements rhom.Plugin.
func (b *base) Name() string { return "Relation:" + b.name }

// Relation returns the relation name.
func (b *base) Relation() string { return b.name }

// Owner returns the type the relation is installed on.
func (b *base) Owner() *rhom.Descriptor { return b.owner }

// Related returns the target type.
func (b *base) Related() *rhom.Descriptor { return b.related }

func (b *base) key(id string) string {
	return b.owner.Key(id + ":" + b.name)
}

func (b *base) accessor(verb string) string {
	return verb + strings.ToUpper(b.name[:1]) + b.name[1:]
}

// check validates the plugin before Install subscribes anything.
func (b *base) check(d *rhom.Descriptor) error {
	switch {
	case b.owner == nil || b.related == nil:
		return errors.New("relation: nil type")
	case b.backend == nil:
		return errors.New("relation: nil backend")
	case b.name == "":
		return errors.New("relation: empty name")
	case d != b.owner:
		return fmt.Errorf("relation %s: owned by %s, not %s", b.name, b.owner.Name(), d.Name())
	}
	return nil
}

// cleanup removes relation keys of deleted or purged owners.
func (b *base) cleanup(d *rhom.Descriptor) {
	d.Subscribe(rhom.After(rhom.OpDelete), func(ev *rhom.Event) {
		if ev.Err() != nil {
			return
		}
		b.drop(ev.Context(), ev.Instance().ID())
	})
	d.Subscribe(rhom.After(rhom.OpPurge), func(ev *rhom.Event) {
		if ev.Err() != nil {
			return
		}
		ids, _ := ev.Data().([]string)
		b.drop(ev.Context(), ids...)
	})
}

func (b *base) drop(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.key(id)
	}
	if err := b.backend.Del(ctx, keys...); err != nil {
		observability.LogBackendError(b.owner.Logger(), "del", keys[0], err)
	}
}

// ownerID returns the id of a saved owner.
func ownerID(inst *rhom.Instance) (string, error) {
	if inst == nil || inst.ID() == "" {
		return "", rhom.ErrMissingIdentifier
	}
	return inst.ID(), nil
}

// targetID extracts the id from a link target. A nil target yields "".
func targetID(target any) (string, error) {
	switch t := target.(type) {
	case nil:
		return "", nil
	case string:
		if t == "" {
			return "", ErrNoTarget
		}
		return t, nil
	case *rhom.Instance:
		if t == nil || t.ID() == "" {
			return "", ErrNoTarget
		}
		return t.ID(), nil
	default:
		return "", fmt.Errorf("relation: unsupported target %T", target)
	}
}

func rejectArg[T any](name string, arg any) *rhom.Future[T] {
	return rhom.Rejected[T](fmt.Errorf("relation %s: unsupported argument %T", name, arg))
}

// pending returns a future with cbs attached and its resolver.
// orBackground treats a nil ctx as context.Background().
func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

func pending[T any](cbs []rhom.Callback[T]) (*rhom.Future[T], rhom.Callback[T]) {
	f, resolve := rhom.NewFuture[T]()
	for _, cb := range cbs {
		f.Then(cb)
	}
	return f, resolve
}

// compact drops nil entries.
func compact(list []*rhom.Instance) []*rhom.Instance {
	out := make([]*rhom.Instance, 0, len(list))
	for _, inst := range list {
		if inst != nil {
			out = append(out, inst)
		}
	}
	return out
}
