package relation

import (
	"context"

	"github.com/jinzhu/inflection"

	"github.com/randalmurphal/rhom/pkg/rhom"
	"github.com/randalmurphal/rhom/pkg/rhom/store"
)

// Many is a to-many relation.
type Many struct {
	base
}

var _ rhom.Plugin = (*Many)(nil)

// ToMany relates each owner instance to a set of related instances. The
// default name is the plural of the related type's name.
func ToMany(owner, related *rhom.Descriptor, backend store.Backend, opts ...Option) *Many {
	name := ""
	if related != nil {
		name = inflection.Plural(related.Name())
	}
	return &Many{base: newBase(owner, related, backend, name, opts)}
}

// Description implements rhom.Plugin.
func (r *Many) Description() string { return "To-many relation " + r.name }

// Install implements rhom.Plugin.
func (r *Many) Install(d *rhom.Descriptor) error {
	if err := r.check(d); err != nil {
		return err
	}
	if err := d.RegisterAccessor(r.accessor("get"), func(ctx context.Context, arg any) *rhom.Future[any] {
		inst, ok := arg.(*rhom.Instance)
		if !ok {
			return rejectArg[any](r.name, arg)
		}
		return r.List(ctx, inst).Untyped()
	}); err != nil {
		return err
	}
	for _, m := range []struct {
		verb string
		fn   func(context.Context, *rhom.Instance, any, ...rhom.Callback[bool]) *rhom.Future[bool]
	}{
		{"add", r.Add},
		{"remove", r.Remove},
	} {
		fn := m.fn
		if err := d.RegisterAccessor(r.accessor(m.verb), func(ctx context.Context, arg any) *rhom.Future[any] {
			link, ok := arg.(Link)
			if !ok {
				return rejectArg[any](r.name, arg)
			}
			return fn(ctx, link.Owner, link.Target).Untyped()
		}); err != nil {
			return err
		}
	}
	r.cleanup(d)
	return nil
}

// TargetIDs returns the linked ids in sorted order.
func (r *Many) TargetIDs(ctx context.Context, inst *rhom.Instance) ([]string, error) {
	id, err := ownerID(inst)
	if err != nil {
		return nil, err
	}
	return r.members(orBackground(ctx), id)
}

func (r *Many) members(ctx context.Context, ownerID string) ([]string, error) {
	return r.backend.SMembers(ctx, r.key(ownerID))
}

// List returns the linked instances that still exist, ordered by id.
func (r *Many) List(ctx context.Context, inst *rhom.Instance, cbs ...rhom.Callback[[]*rhom.Instance]) *rhom.Future[[]*rhom.Instance] {
	id, err := ownerID(inst)
	if err != nil {
		return rhom.Rejected(err, cbs...)
	}
	ctx = orBackground(ctx)
	f, resolve := pending(cbs)
	go func() {
		ids, err := r.members(ctx, id)
		if err != nil {
			resolve(nil, err)
			return
		}
		r.fetch(ctx, ids, resolve)
	}()
	return f
}

func (r *Many) fetch(ctx context.Context, ids []string, resolve rhom.Callback[[]*rhom.Instance]) {
	if len(ids) == 0 {
		resolve([]*rhom.Instance{}, nil)
		return
	}
	r.related.GetMany(ctx, ids, func(found []*rhom.Instance, err error) {
		if err != nil {
			resolve(nil, err)
			return
		}
		resolve(compact(found), nil)
	})
}

// Add links target, a *rhom.Instance or id, to inst.
func (r *Many) Add(ctx context.Context, inst *rhom.Instance, target any, cbs ...rhom.Callback[bool]) *rhom.Future[bool] {
	return r.update(ctx, inst, target, r.backend.SAdd, cbs)
}

// Remove unlinks target from inst.
func (r *Many) Remove(ctx context.Context, inst *rhom.Instance, target any, cbs ...rhom.Callback[bool]) *rhom.Future[bool] {
	return r.update(ctx, inst, target, r.backend.SRem, cbs)
}

func (r *Many) update(ctx context.Context, inst *rhom.Instance, target any,
	op func(context.Context, string, ...string) error, cbs []rhom.Callback[bool],
) *rhom.Future[bool] {
	id, err := ownerID(inst)
	if err != nil {
		return rhom.Rejected(err, cbs...)
	}
	tid, err := targetID(target)
	if err == nil && tid == "" {
		err = ErrNoTarget
	}
	if err != nil {
		return rhom.Rejected(err, cbs...)
	}
	ctx = orBackground(ctx)
	f, resolve := pending(cbs)
	go func() {
		err := op(ctx, r.key(id), tid)
		resolve(err == nil, err)
	}()
	return f
}
