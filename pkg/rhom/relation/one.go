package relation

import (
	"context"
	"errors"

	"github.com/randalmurphal/rhom/pkg/rhom"
	"github.com/randalmurphal/rhom/pkg/rhom/store"
)

// One is a to-one relation.
type One struct {
	base
}

var _ rhom.Plugin = (*One)(nil)

// ToOne relates each owner instance to at most one related instance.
func ToOne(owner, related *rhom.Descriptor, backend store.Backend, opts ...Option) *One {
	name := ""
	if related != nil {
		name = related.Name()
	}
	return &One{base: newBase(owner, related, backend, name, opts)}
}

// Description implements rhom.Plugin.
func (r *One) Description() string { return "To-one relation " + r.name }

// Install implements rhom.Plugin.
func (r *One) Install(d *rhom.Descriptor) error {
	if err := r.check(d); err != nil {
		return err
	}
	if err := d.RegisterAccessor(r.accessor("get"), func(ctx context.Context, arg any) *rhom.Future[any] {
		inst, ok := arg.(*rhom.Instance)
		if !ok {
			return rejectArg[any](r.name, arg)
		}
		return r.Get(ctx, inst).Untyped()
	}); err != nil {
		return err
	}
	if err := d.RegisterAccessor(r.accessor("set"), func(ctx context.Context, arg any) *rhom.Future[any] {
		link, ok := arg.(Link)
		if !ok {
			return rejectArg[any](r.name, arg)
		}
		return r.Set(ctx, link.Owner, link.Target).Untyped()
	}); err != nil {
		return err
	}
	r.cleanup(d)
	return nil
}

// TargetID returns the linked id, or "" when nothing is linked.
func (r *One) TargetID(ctx context.Context, inst *rhom.Instance) (string, error) {
	id, err := ownerID(inst)
	if err != nil {
		return "", err
	}
	return r.lookup(orBackground(ctx), id)
}

func (r *One) lookup(ctx context.Context, ownerID string) (string, error) {
	target, err := r.backend.GetString(ctx, r.key(ownerID))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return target, err
}

// Get returns the linked instance, or nil when nothing is linked or the
// target no longer exists.
func (r *One) Get(ctx context.Context, inst *rhom.Instance, cbs ...rhom.Callback[*rhom.Instance]) *rhom.Future[*rhom.Instance] {
	id, err := ownerID(inst)
	if err != nil {
		return rhom.Rejected(err, cbs...)
	}
	ctx = orBackground(ctx)
	f, resolve := pending(cbs)
	go func() {
		target, err := r.lookup(ctx, id)
		if err != nil || target == "" {
			resolve(nil, err)
			return
		}
		r.related.Get(ctx, target, resolve)
	}()
	return f
}

// Set links inst to target, a *rhom.Instance or id. A nil target unlinks.
func (r *One) Set(ctx context.Context, inst *rhom.Instance, target any, cbs ...rhom.Callback[bool]) *rhom.Future[bool] {
	id, err := ownerID(inst)
	if err != nil {
		return rhom.Rejected(err, cbs...)
	}
	tid, err := targetID(target)
	if err != nil {
		return rhom.Rejected(err, cbs...)
	}
	ctx = orBackground(ctx)
	f, resolve := pending(cbs)
	go func() {
		if tid == "" {
			err = r.backend.Del(ctx, r.key(id))
		} else {
			err = r.backend.SetString(ctx, r.key(id), tid)
		}
		resolve(err == nil, err)
	}()
	return f
}
