package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/randalmurphal/rhom/pkg/rhom"
)

// Step is a relation Via can traverse: a *One or a *Many.
type Step interface {
	rhom.Plugin
	Owner() *rhom.Descriptor
	Related() *rhom.Descriptor
	Relation() string
}

// Path reaches instances through a chain of relations.
type Path struct {
	owner *rhom.Descriptor
	hops  []*One
	last  Step
	name  string
}

var _ rhom.Plugin = (*Path)(nil)

// Via chains steps starting at owner. Every step but the last must be a
// to-one relation, and each step must start where the previous one ends.
// The path is named after its last step unless WithName says otherwise.
func Via(owner *rhom.Descriptor, steps []Step, opts ...Option) (*Path, error) {
	if owner == nil {
		return nil, errors.New("relation: nil type")
	}
	if len(steps) == 0 {
		return nil, errors.New("relation: empty path")
	}
	p := &Path{owner: owner, last: steps[len(steps)-1]}
	at := owner
	for i, step := range steps {
		if step.Owner() != at {
			return nil, fmt.Errorf("relation: step %s starts at %s, not %s",
				step.Relation(), step.Owner().Name(), at.Name())
		}
		if i < len(steps)-1 {
			one, ok := step.(*One)
			if !ok {
				return nil, fmt.Errorf("relation: step %s must be to-one", step.Relation())
			}
			p.hops = append(p.hops, one)
		}
		at = step.Related()
	}

	b := base{name: p.last.Relation()}
	for _, opt := range opts {
		opt(&b)
	}
	p.name = b.name
	return p, nil
}

// Name implements rhom.Plugin.
func (p *Path) Name() string { return "Relation:" + p.name }

// Description implements rhom.Plugin.
func (p *Path) Description() string { return "Relation path " + p.name }

// Many reports whether the path ends in a to-many relation.
func (p *Path) Many() bool {
	_, ok := p.last.(*Many)
	return ok
}

// Install implements rhom.Plugin. The get accessor yields a list when
// the path ends in a to-many relation and a single instance otherwise.
func (p *Path) Install(d *rhom.Descriptor) error {
	if d != p.owner {
		return fmt.Errorf("relation %s: owned by %s, not %s", p.name, p.owner.Name(), d.Name())
	}
	b := base{name: p.name}
	return d.RegisterAccessor(b.accessor("get"), func(ctx context.Context, arg any) *rhom.Future[any] {
		inst, ok := arg.(*rhom.Instance)
		if !ok {
			return rejectArg[any](p.name, arg)
		}
		if p.Many() {
			return p.List(ctx, inst).Untyped()
		}
		return p.Get(ctx, inst).Untyped()
	})
}

// walk follows the to-one hops and returns the id the last step starts
// from, or "" when a hop is missing.
func (p *Path) walk(ctx context.Context, id string) (string, error) {
	for _, hop := range p.hops {
		next, err := hop.lookup(ctx, id)
		if err != nil || next == "" {
			return "", err
		}
		id = next
	}
	return id, nil
}

// List returns every instance at the end of the path. A missing hop
// yields an empty list.
func (p *Path) List(ctx context.Context, inst *rhom.Instance, cbs ...rhom.Callback[[]*rhom.Instance]) *rhom.Future[[]*rhom.Instance] {
	id, err := ownerID(inst)
	if err != nil {
		return rhom.Rejected(err, cbs...)
	}
	ctx = orBackground(ctx)
	f, resolve := pending(cbs)
	go func() {
		from, err := p.walk(ctx, id)
		if err != nil {
			resolve(nil, err)
			return
		}
		if from == "" {
			resolve([]*rhom.Instance{}, nil)
			return
		}
		switch last := p.last.(type) {
		case *Many:
			ids, err := last.members(ctx, from)
			if err != nil {
				resolve(nil, err)
				return
			}
			last.fetch(ctx, ids, resolve)
		case *One:
			target, err := last.lookup(ctx, from)
			if err != nil || target == "" {
				resolve([]*rhom.Instance{}, err)
				return
			}
			last.related.GetMany(ctx, []string{target}, func(found []*rhom.Instance, err error) {
				if err != nil {
					resolve(nil, err)
					return
				}
				resolve(compact(found), nil)
			})
		default:
			resolve(nil, fmt.Errorf("relation: unsupported step %T", p.last))
		}
	}()
	return f
}

// Get returns the first instance at the end of the path, or nil.
func (p *Path) Get(ctx context.Context, inst *rhom.Instance, cbs ...rhom.Callback[*rhom.Instance]) *rhom.Future[*rhom.Instance] {
	f, resolve := pending(cbs)
	p.List(ctx, inst, func(list []*rhom.Instance, err error) {
		if err != nil || len(list) == 0 {
			resolve(nil, err)
			return
		}
		resolve(list[0], nil)
	})
	return f
}
