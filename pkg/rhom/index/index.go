// Package index maintains secondary indexes over a store.Backend.
//
// An index on field F keeps one set per distinct value, at
// Key("ix:F:<hash>"), holding the ids of instances whose F has that
// value. Buckets are hashed, so lookups filter out collisions by
// re-checking the field on the fetched instances.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/randalmurphal/rhom/pkg/rhom"
	"github.com/randalmurphal/rhom/pkg/rhom/observability"
	"github.com/randalmurphal/rhom/pkg/rhom/store"
)

// Plugin indexes one field of one type.
type Plugin struct {
	field   string
	backend store.Backend

	mu     sync.Mutex
	desc   *rhom.Descriptor
	shadow map[string]any
}

var _ rhom.Plugin = (*Plugin)(nil)

// New returns an index on field, with buckets stored in backend.
func New(field string, backend store.Backend) *Plugin {
	return &Plugin{
		field:   field,
		backend: backend,
		shadow:  make(map[string]any),
	}
}

// Name implements rhom.Plugin.
func (p *Plugin) Name() string { return "Index:" + p.field }

// Description implements rhom.Plugin.
func (p *Plugin) Description() string { return "Secondary index on " + p.field }

// Field returns the indexed field.
func (p *Plugin) Field() string { return p.field }

// AccessorName is the accessor the index registers, e.g. "getByEmail".
func (p *Plugin) AccessorName() string {
	if p.field == "" {
		return "getBy"
	}
	return "getBy" + strings.ToUpper(p.field[:1]) + p.field[1:]
}

// Install implements rhom.Plugin.
func (p *Plugin) Install(d *rhom.Descriptor) error {
	switch {
	case p.field == "":
		return errors.New("index: empty field")
	case p.backend == nil:
		return errors.New("index: nil backend")
	case !d.Declares(p.field):
		return fmt.Errorf("index: %s.%s: %w", d.Name(), p.field, rhom.ErrUnknownField)
	}

	p.mu.Lock()
	if p.desc != nil && p.desc != d {
		p.mu.Unlock()
		return fmt.Errorf("index: already installed on %s", p.desc.Name())
	}
	p.desc = d
	p.mu.Unlock()

	if err := d.RegisterAccessor(p.AccessorName(), func(ctx context.Context, arg any) *rhom.Future[any] {
		return p.By(ctx, arg).Untyped()
	}); err != nil {
		return err
	}

	d.Subscribe(rhom.After(rhom.OpSave), p.afterSave)
	d.Subscribe(rhom.After(rhom.OpDelete), p.afterDelete)
	d.Subscribe(rhom.After(rhom.OpGet), p.afterGet)
	d.Subscribe(rhom.After(rhom.OpPurge), p.afterPurge)
	return nil
}

// bucket returns the set key holding ids whose field equals v.
func (p *Plugin) bucket(v any) string {
	sum := uint32(xxhash.Sum64String(fmt.Sprint(v)))
	return p.desc.Key(fmt.Sprintf("ix:%s:%08x", p.field, sum))
}

func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func (p *Plugin) afterSave(ev *rhom.Event) {
	if ev.Err() != nil {
		return
	}
	ctx, inst := ev.Context(), ev.Instance()
	id := inst.ID()
	value, has := inst.Get(p.field)

	p.mu.Lock()
	old, had := p.shadow[id]
	if had == has && (!has || sameValue(old, value)) {
		p.mu.Unlock()
		return
	}
	if has {
		p.shadow[id] = value
	} else {
		delete(p.shadow, id)
	}
	p.mu.Unlock()

	if had {
		p.srem(ctx, p.bucket(old), id)
	}
	if has {
		key := p.bucket(value)
		if err := p.backend.SAdd(ctx, key, id); err != nil {
			observability.LogBackendError(p.desc.Logger(), "sadd", key, err)
		}
	}
}

func (p *Plugin) afterDelete(ev *rhom.Event) {
	if ev.Err() != nil {
		return
	}
	ctx, inst := ev.Context(), ev.Instance()
	id := inst.ID()

	p.mu.Lock()
	old, had := p.shadow[id]
	delete(p.shadow, id)
	p.mu.Unlock()

	value, has := inst.Get(p.field)
	if has {
		p.srem(ctx, p.bucket(value), id)
	}
	if had && (!has || !sameValue(old, value)) {
		p.srem(ctx, p.bucket(old), id)
	}
}

func (p *Plugin) afterGet(ev *rhom.Event) {
	if ev.Err() != nil {
		return
	}
	switch res := ev.Result().(type) {
	case *rhom.Instance:
		p.record(res)
	case []*rhom.Instance:
		for _, inst := range res {
			p.record(inst)
		}
	}
}

func (p *Plugin) afterPurge(ev *rhom.Event) {
	p.mu.Lock()
	clear(p.shadow)
	p.mu.Unlock()

	ctx := ev.Context()
	prefix := p.desc.Key("ix:" + p.field + ":")
	keys, err := p.backend.Keys(ctx, prefix)
	if err != nil {
		observability.LogBackendError(p.desc.Logger(), "keys", prefix, err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := p.backend.Del(ctx, keys...); err != nil {
		observability.LogBackendError(p.desc.Logger(), "del", prefix, err)
	}
}

func (p *Plugin) record(inst *rhom.Instance) {
	if inst == nil {
		return
	}
	value, has := inst.Get(p.field)
	p.mu.Lock()
	if has {
		p.shadow[inst.ID()] = value
	} else {
		delete(p.shadow, inst.ID())
	}
	p.mu.Unlock()
}

func (p *Plugin) srem(ctx context.Context, key, id string) {
	if err := p.backend.SRem(ctx, key, id); err != nil {
		observability.LogBackendError(p.desc.Logger(), "srem", key, err)
	}
}

// By returns the instances whose field equals value, in id order.
// Ids whose instance no longer exists, or whose value has moved to
// another bucket, are removed from the bucket.
func (p *Plugin) By(ctx context.Context, value any, cbs ...rhom.Callback[[]*rhom.Instance]) *rhom.Future[[]*rhom.Instance] {
	p.mu.Lock()
	d := p.desc
	p.mu.Unlock()
	if d == nil {
		return rhom.Rejected(fmt.Errorf("index %s: not installed", p.field), cbs...)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	f, resolve := rhom.NewFuture[[]*rhom.Instance]()
	for _, cb := range cbs {
		f.Then(cb)
	}

	key := p.bucket(value)
	go func() {
		ids, err := p.backend.SMembers(ctx, key)
		if err != nil {
			resolve(nil, err)
			return
		}
		if len(ids) == 0 {
			resolve([]*rhom.Instance{}, nil)
			return
		}
		d.GetMany(ctx, ids, func(found []*rhom.Instance, err error) {
			if err != nil {
				resolve(nil, err)
				return
			}
			out := make([]*rhom.Instance, 0, len(found))
			for i, inst := range found {
				if inst == nil {
					p.srem(ctx, key, ids[i])
					continue
				}
				v, ok := inst.Get(p.field)
				switch {
				case ok && sameValue(v, value):
					out = append(out, inst)
				case !ok || p.bucket(v) != key:
					// Moved since it was indexed. Colliding values share the
					// bucket and stay.
					p.srem(ctx, key, ids[i])
				}
			}
			resolve(out, nil)
		})
	}()
	return f
}
