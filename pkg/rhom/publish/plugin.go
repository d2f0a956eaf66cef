package publish

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/randalmurphal/rhom/pkg/rhom"
)

// Option configures a Plugin.
type Option func(*Plugin)

// WithNodeID sets the node id stamped on every notice.
func WithNodeID(id string) Option {
	return func(p *Plugin) {
		if id != "" {
			p.nodeID = id
		}
	}
}

// Plugin publishes a notice after every successful save, delete and purge.
type Plugin struct {
	bus    *Bus
	nodeID string
}

var _ rhom.Plugin = (*Plugin)(nil)

// New returns a publisher on bus with a fresh node id.
func New(bus *Bus, opts ...Option) *Plugin {
	p := &Plugin{bus: bus, nodeID: uuid.NewString()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements rhom.Plugin.
func (p *Plugin) Name() string { return "Publisher" }

// Description implements rhom.Plugin.
func (p *Plugin) Description() string { return "Change notices on save, delete and purge" }

// NodeID returns the id stamped on published notices.
func (p *Plugin) NodeID() string { return p.nodeID }

// Install implements rhom.Plugin.
func (p *Plugin) Install(d *rhom.Descriptor) error {
	if p.bus == nil {
		return errors.New("publish: nil bus")
	}
	d.Subscribe(rhom.After(rhom.OpSave), func(ev *rhom.Event) {
		p.publish(ev, ev.Instance().ID(), ":save")
	})
	d.Subscribe(rhom.After(rhom.OpDelete), func(ev *rhom.Event) {
		p.publish(ev, ev.Instance().ID(), ":delete")
	})
	d.Subscribe(rhom.After(rhom.OpPurge), func(ev *rhom.Event) {
		p.publish(ev, "", "purge")
	})
	return nil
}

func (p *Plugin) publish(ev *rhom.Event, id, suffix string) {
	if ev.Err() != nil {
		return
	}
	d := ev.Descriptor()
	n := Notice{
		Channel: d.Prefix() + id + suffix,
		NodeID:  p.nodeID,
		Type:    d.Name(),
		Op:      ev.Type(),
		ID:      id,
	}
	if err := p.bus.Publish(ev.Context(), n); err != nil {
		d.Logger().Warn("notice not published",
			slog.String("channel", n.Channel),
			slog.String("error", err.Error()),
		)
	}
}
