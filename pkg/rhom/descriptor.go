package rhom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/randalmurphal/rhom/pkg/rhom/observability"
	"github.com/randalmurphal/rhom/pkg/rhom/registry"
)

// Descriptor is the per-type metadata and dispatch machinery shared by all
// instances of an entity type.
//
// Properties, prefix and id generator are fixed at creation. Plugins extend
// the type during setup by subscribing listeners and registering accessors.
type Descriptor struct {
	name       string
	properties []string
	declared   map[string]struct{}
	prefix     string
	prefixSet  bool
	idgen      IDGenerator
	override   bool
	timeout    time.Duration

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	plugins    *registry.Registry[string, string]
	accessors  *registry.Registry[string, Accessor]
	dispatcher *Dispatcher
}

// New creates a descriptor for the named type.
//
// Example:
//
//	users := rhom.New("User",
//	    rhom.WithProperties("email", "name"),
//	    rhom.WithTimeout(time.Second),
//	)
func New(name string, opts ...Option) *Descriptor {
	d := &Descriptor{
		name:      name,
		idgen:     UUID(),
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
		plugins:   registry.New[string, string](),
		accessors: registry.New[string, Accessor](),
	}
	for _, opt := range opts {
		opt(d)
	}

	switch {
	case !d.prefixSet:
		d.prefix = name + ":"
	case d.prefix != "" && !strings.HasSuffix(d.prefix, ":"):
		d.prefix += ":"
	}
	if d.properties != nil {
		d.declared = make(map[string]struct{}, len(d.properties))
		for _, p := range d.properties {
			d.declared[p] = struct{}{}
		}
	}
	d.dispatcher = newDispatcher(name, d.timeout, d.logger, d.metrics, d.spans)
	return d
}

var types = registry.New[string, *Descriptor]()

// Define returns the process-wide descriptor for name, creating it with
// opts on first use. Later calls return the existing descriptor and
// ignore opts.
func Define(name string, opts ...Option) *Descriptor {
	return types.GetOrCreate(name, func() *Descriptor {
		return New(name, opts...)
	})
}

// Lookup returns the process-wide descriptor created by Define.
func Lookup(name string) (*Descriptor, bool) {
	return types.Get(name)
}

// Types returns the names passed to Define, in definition order.
func Types() []string {
	return types.Keys()
}

// Name returns the type name.
func (d *Descriptor) Name() string { return d.name }

// Properties returns the declared fields, or nil if the type persists
// every field.
func (d *Descriptor) Properties() []string {
	if d.properties == nil {
		return nil
	}
	return append([]string(nil), d.properties...)
}

// Declares reports whether field may be set on instances of the type.
func (d *Descriptor) Declares(field string) bool {
	if d.declared == nil {
		return true
	}
	_, ok := d.declared[field]
	return ok
}

// Prefix returns the key prefix, including its trailing separator.
func (d *Descriptor) Prefix() string { return d.prefix }

// Timeout returns the default deadline, or 0 if there is none.
func (d *Descriptor) Timeout() time.Duration { return d.timeout }

// Logger returns the type's logger. Plugins log through it.
func (d *Descriptor) Logger() *slog.Logger { return d.logger }

// NewID returns a fresh id from the type's generator.
func (d *Descriptor) NewID() string { return d.idgen() }

// Key derives the storage key for id. An empty id is replaced with a
// fresh one.
func (d *Descriptor) Key(id string) string {
	if id == "" {
		id = d.idgen()
	}
	return d.prefix + id
}

// Dispatcher returns the type's dispatcher.
func (d *Descriptor) Dispatcher() *Dispatcher { return d.dispatcher }

// Subscribe adds a listener for hook. See Dispatcher.Subscribe.
func (d *Descriptor) Subscribe(hook Hook, l Listener) {
	d.dispatcher.Subscribe(hook, l)
}

// Get loads one instance. The future yields nil when no listener found it.
//
// An empty id fails with ErrMissingIdentifier before any listener runs;
// the callbacks are invoked before Get returns.
func (d *Descriptor) Get(ctx context.Context, id string, cbs ...Callback[*Instance]) *Future[*Instance] {
	if id == "" {
		return Rejected(ErrMissingIdentifier, cbs...)
	}
	return dispatch(d, NewEvent(ctx, OpGet, d, id), cbs)
}

// GetMany loads several instances. The result is parallel to ids, with
// nil for those not found. A nil ids slice fails with ErrMissingIdentifier.
func (d *Descriptor) GetMany(ctx context.Context, ids []string, cbs ...Callback[[]*Instance]) *Future[[]*Instance] {
	if ids == nil {
		return Rejected(ErrMissingIdentifier, cbs...)
	}
	return dispatch(d, NewEvent(ctx, OpGet, d, append([]string(nil), ids...)), cbs)
}

// All lists the ids of every stored instance.
func (d *Descriptor) All(ctx context.Context, cbs ...Callback[[]string]) *Future[[]string] {
	return dispatch(d, NewEvent(ctx, OpAll, d, nil), cbs)
}

// Purge removes every stored instance of the type.
func (d *Descriptor) Purge(ctx context.Context, cbs ...Callback[bool]) *Future[bool] {
	return dispatch(d, NewEvent(ctx, OpPurge, d, nil), cbs)
}

func dispatch[T any](d *Descriptor, ev *Event, cbs []Callback[T]) *Future[T] {
	f := bridge(ev, cbs)
	d.dispatcher.Dispatch(ev)
	return f
}

// NewInstance returns an empty instance with no id.
func (d *Descriptor) NewInstance() *Instance {
	return &Instance{desc: d, fields: make(map[string]any)}
}

// Hydrate builds an instance from stored data, copying the declared fields
// (or every field, if the type declares none). It does not dispatch.
func (d *Descriptor) Hydrate(id string, data map[string]any) *Instance {
	inst := &Instance{desc: d, id: id, fields: make(map[string]any, len(data))}
	inst.FromFieldMap(data)
	return inst
}

// HydrateMany hydrates parallel slices of ids and field maps. Positions
// whose field map is nil or missing yield a nil instance.
func (d *Descriptor) HydrateMany(ids []string, data []map[string]any) []*Instance {
	out := make([]*Instance, len(ids))
	for i, id := range ids {
		if i < len(data) && data[i] != nil {
			out[i] = d.Hydrate(id, data[i])
		}
	}
	return out
}

// RegisterPlugin records a plugin name on the type. A name that is
// already present fails with a *DuplicatePluginError and the record is
// left unchanged.
func (d *Descriptor) RegisterPlugin(name, description string) error {
	if err := d.plugins.Register(name, description); err != nil {
		return &DuplicatePluginError{Type: d.name, Name: name}
	}
	return nil
}

// Use registers and installs plugins in order, stopping at the first error.
func (d *Descriptor) Use(plugins ...Plugin) error {
	for _, p := range plugins {
		if err := d.RegisterPlugin(p.Name(), p.Description()); err != nil {
			return err
		}
		if err := p.Install(d); err != nil {
			return fmt.Errorf("install %s on %s: %w", p.Name(), d.name, err)
		}
		observability.LogPluginInstalled(d.logger, d.name, p.Name())
	}
	return nil
}

// MustUse is like Use but panics on error.
func (d *Descriptor) MustUse(plugins ...Plugin) *Descriptor {
	if err := d.Use(plugins...); err != nil {
		panic(err)
	}
	return d
}

// Plugins returns the registration records in registration order.
func (d *Descriptor) Plugins() []PluginInfo {
	var out []PluginInfo
	d.plugins.Range(func(name, desc string) bool {
		out = append(out, PluginInfo{Name: name, Description: desc})
		return true
	})
	return out
}

// HasPlugin reports whether a plugin name is registered.
func (d *Descriptor) HasPlugin(name string) bool {
	return d.plugins.Has(name)
}

// RegisterAccessor adds a named accessor. A taken name fails with
// ErrAccessorExists unless the type was created WithOverride(true).
func (d *Descriptor) RegisterAccessor(name string, fn Accessor) error {
	if d.override {
		d.accessors.Replace(name, fn)
		return nil
	}
	if err := d.accessors.Register(name, fn); err != nil {
		if errors.Is(err, registry.ErrDuplicate) {
			return fmt.Errorf("%s.%s: %w", d.name, name, ErrAccessorExists)
		}
		return err
	}
	return nil
}

// Accessor returns a registered accessor.
func (d *Descriptor) Accessor(name string) (Accessor, bool) {
	return d.accessors.Get(name)
}

// Accessors returns the registered accessor names in registration order.
func (d *Descriptor) Accessors() []string {
	return d.accessors.Keys()
}

// Call invokes the named accessor. An unknown name yields a failed future.
func (d *Descriptor) Call(ctx context.Context, name string, arg any) *Future[any] {
	fn, ok := d.accessors.Get(name)
	if !ok {
		return Rejected[any](fmt.Errorf("%s.%s: %w", d.name, name, ErrAccessorNotFound))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, arg)
}
