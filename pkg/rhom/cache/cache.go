// Package cache provides an in-process instance cache plugin.
//
// The cache answers single and list gets in the before phase, so the
// storage plugin's primary listener never runs on a hit. Entries are
// snapshots of the field map taken after a successful save or get; every
// hit hydrates a fresh instance.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/randalmurphal/rhom/pkg/rhom"
)

// Option configures a Plugin.
type Option func(*Plugin)

// WithTTL expires entries ttl after they were stored. Zero keeps entries
// until they are evicted.
func WithTTL(ttl time.Duration) Option {
	return func(p *Plugin) {
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(p *Plugin) {
		if now != nil {
			p.now = now
		}
	}
}

type entry struct {
	id      string
	fields  map[string]any
	expires time.Time
}

// Plugin caches instances by key.
type Plugin struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.Mutex
	items  map[string]entry
	served map[*rhom.Event]struct{}
}

var _ rhom.Plugin = (*Plugin)(nil)

// New returns an empty cache.
func New(opts ...Option) *Plugin {
	p := &Plugin{
		now:    time.Now,
		items:  make(map[string]entry),
		served: make(map[*rhom.Event]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements rhom.Plugin.
func (p *Plugin) Name() string { return "Cache" }

// Description implements rhom.Plugin.
func (p *Plugin) Description() string { return "In-process instance cache" }

// Install implements rhom.Plugin.
func (p *Plugin) Install(d *rhom.Descriptor) error {
	d.Subscribe(rhom.Before(rhom.OpGet), p.beforeGet)
	d.Subscribe(rhom.After(rhom.OpGet), p.afterGet)
	d.Subscribe(rhom.After(rhom.OpSave), p.afterSave)
	d.Subscribe(rhom.After(rhom.OpDelete), p.afterDelete)
	d.Subscribe(rhom.After(rhom.OpPurge), p.afterPurge)
	return nil
}

// Len returns the number of entries, expired ones included until they
// are next looked up.
func (p *Plugin) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

func (p *Plugin) beforeGet(ev *rhom.Event) {
	if ev.Handled() {
		return
	}
	d := ev.Descriptor()
	switch data := ev.Data().(type) {
	case string:
		inst := p.lookup(d, data)
		if inst == nil {
			return
		}
		p.markServed(ev)
		ev.Success(inst)
	case []string:
		if len(data) == 0 {
			return
		}
		out := make([]*rhom.Instance, len(data))
		for i, id := range data {
			if out[i] = p.lookup(d, id); out[i] == nil {
				return
			}
		}
		p.markServed(ev)
		ev.Success(out)
	}
}

func (p *Plugin) afterGet(ev *rhom.Event) {
	p.mu.Lock()
	_, served := p.served[ev]
	delete(p.served, ev)
	p.mu.Unlock()
	if served || ev.Err() != nil {
		return
	}

	switch res := ev.Result().(type) {
	case *rhom.Instance:
		p.put(res)
	case []*rhom.Instance:
		for _, inst := range res {
			p.put(inst)
		}
	}
}

func (p *Plugin) afterSave(ev *rhom.Event) {
	if ev.Err() != nil {
		return
	}
	p.put(ev.Instance())
}

func (p *Plugin) afterDelete(ev *rhom.Event) {
	inst := ev.Instance()
	if inst == nil || inst.ID() == "" {
		return
	}
	p.mu.Lock()
	delete(p.items, inst.Key())
	p.mu.Unlock()
}

func (p *Plugin) afterPurge(ev *rhom.Event) {
	prefix := ev.Descriptor().Prefix()
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.items {
		if strings.HasPrefix(key, prefix) {
			delete(p.items, key)
		}
	}
}

func (p *Plugin) markServed(ev *rhom.Event) {
	p.mu.Lock()
	p.served[ev] = struct{}{}
	p.mu.Unlock()
}

func (p *Plugin) put(inst *rhom.Instance) {
	if inst == nil || inst.ID() == "" {
		return
	}
	e := entry{id: inst.ID(), fields: inst.ToFieldMap()}
	if p.ttl > 0 {
		e.expires = p.now().Add(p.ttl)
	}
	p.mu.Lock()
	p.items[inst.Key()] = e
	p.mu.Unlock()
}

// lookup returns a fresh instance for a live entry, or nil.
func (p *Plugin) lookup(d *rhom.Descriptor, id string) *rhom.Instance {
	if id == "" {
		return nil
	}
	key := d.Key(id)
	p.mu.Lock()
	e, ok := p.items[key]
	if ok && !e.expires.IsZero() && !p.now().Before(e.expires) {
		delete(p.items, key)
		ok = false
	}
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return d.Hydrate(e.id, e.fields)
}
