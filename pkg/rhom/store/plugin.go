package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/rhom/pkg/rhom"
)

// AllKey is the id whose key holds the set of every stored id of a type.
const AllKey = "all"

// Plugin answers the primary hooks of a type from a Backend.
//
// Each instance is a hash at Key(id); the set at Key("all") lists the
// stored ids. Listeners return immediately and settle the event when
// backend I/O completes.
type Plugin struct {
	backend Backend
}

var _ rhom.Plugin = (*Plugin)(nil)

// New returns a storage plugin over backend.
func New(backend Backend) *Plugin {
	return &Plugin{backend: backend}
}

// Name implements rhom.Plugin.
func (p *Plugin) Name() string { return "Store" }

// Description implements rhom.Plugin.
func (p *Plugin) Description() string { return "Key/value storage layer" }

// Backend returns the backend the plugin writes to.
func (p *Plugin) Backend() Backend { return p.backend }

// Install implements rhom.Plugin.
func (p *Plugin) Install(d *rhom.Descriptor) error {
	if p.backend == nil {
		return errors.New("store: nil backend")
	}
	p.handle(d, rhom.OpGet, p.get)
	p.handle(d, rhom.OpAll, p.all)
	p.handle(d, rhom.OpPurge, p.purge)
	p.handle(d, rhom.OpSave, p.save)
	p.handle(d, rhom.OpDelete, p.remove)
	return nil
}

func (p *Plugin) handle(d *rhom.Descriptor, op rhom.Op, fn func(*rhom.Descriptor, *rhom.Event)) {
	d.Subscribe(rhom.Primary(op), func(ev *rhom.Event) {
		if ev.Handled() {
			return
		}
		go fn(d, ev)
	})
}

// Load reads one instance, returning nil when it is not stored.
func Load(ctx context.Context, b Backend, d *rhom.Descriptor, id string) (*rhom.Instance, error) {
	raw, err := b.HGetAll(ctx, d.Key(id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d.Hydrate(id, raw), nil
}

func (p *Plugin) get(d *rhom.Descriptor, ev *rhom.Event) {
	ctx := ev.Context()
	switch data := ev.Data().(type) {
	case string:
		inst, err := Load(ctx, p.backend, d, data)
		if err != nil {
			ev.Failure(err)
			return
		}
		if inst == nil {
			ev.Success(nil)
			return
		}
		ev.Success(inst)
	case []string:
		out := make([]*rhom.Instance, len(data))
		for i, id := range data {
			inst, err := Load(ctx, p.backend, d, id)
			if err != nil {
				ev.Failure(err)
				return
			}
			out[i] = inst
		}
		ev.Success(out)
	default:
		ev.Failure(fmt.Errorf("store: unsupported get payload %T", data))
	}
}

func (p *Plugin) all(d *rhom.Descriptor, ev *rhom.Event) {
	ids, err := p.backend.SMembers(ev.Context(), d.Key(AllKey))
	if err != nil {
		ev.Failure(err)
		return
	}
	ev.Success(ids)
}

// purge hands the removed ids to after listeners through SetData.
func (p *Plugin) purge(d *rhom.Descriptor, ev *rhom.Event) {
	ctx := ev.Context()
	allKey := d.Key(AllKey)
	ids, err := p.backend.SMembers(ctx, allKey)
	if err != nil {
		ev.Failure(err)
		return
	}
	ev.SetData(ids)

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, d.Key(id))
	}
	keys = append(keys, allKey)
	if err := p.backend.Del(ctx, keys...); err != nil {
		ev.Failure(err)
		return
	}
	ev.Success(true)
}

func (p *Plugin) save(d *rhom.Descriptor, ev *rhom.Event) {
	ctx := ev.Context()
	inst := ev.Instance()
	if err := p.backend.SAdd(ctx, d.Key(AllKey), inst.ID()); err != nil {
		ev.Failure(err)
		return
	}
	if err := p.backend.HSet(ctx, inst.Key(), inst.ToFieldMap()); err != nil {
		ev.Failure(err)
		return
	}
	ev.Success(inst)
}

func (p *Plugin) remove(d *rhom.Descriptor, ev *rhom.Event) {
	ctx := ev.Context()
	inst := ev.Instance()
	if err := p.backend.SRem(ctx, d.Key(AllKey), inst.ID()); err != nil {
		ev.Failure(err)
		return
	}
	if err := p.backend.Del(ctx, inst.Key()); err != nil {
		ev.Failure(err)
		return
	}
	ev.Success(true)
}
