/*
Package rhom provides a plugin-extensible CRUD lifecycle for entity types.

# Overview

A Descriptor describes one entity type: its declared fields, key prefix
and id generator. Every operation on the type (get, all, purge, save,
delete) becomes an Event that passes through three ordered phases:

	before<Op>   plugins may answer early, e.g. a cache hit
	<op>         the primary handler, typically storage
	after<Op>    observers react to the final outcome

Plugins never call each other. They cooperate only through the Event: the
first listener to call Success or Failure decides the outcome, and every
later attempt is a no-op.

# Basic Usage

	users := rhom.New("User", rhom.WithProperties("email", "name"))
	users.MustUse(
	    cache.New(),
	    store.New(store.NewMemoryBackend()),
	)

	u := users.NewInstance()
	_ = u.Set("email", "ada@example.com")
	if _, err := u.Save(ctx).Wait(); err != nil {
	    return err
	}

	got, err := users.Get(ctx, u.ID()).Wait()

# Results

Every entry point returns a *Future and also accepts optional callbacks.
Both observe the same outcome exactly once, after the after phase has run:

	users.Get(ctx, id, func(u *rhom.Instance, err error) {
	    // ...
	})

# Ordering

Before listeners run in subscription order, all of them, on the calling
goroutine. The primary phase runs only if the event is still pending.
Listeners doing I/O may return immediately and settle the event from
another goroutine; the after phase then runs on that goroutine. An event
nobody settles stays pending unless a deadline is configured with
WithTimeout or WithCallTimeout, in which case it fails with *TimeoutError
and the after phase still runs.

# Writing Plugins

A Plugin installs listeners and, optionally, named accessors:

	func (p *Audit) Install(d *rhom.Descriptor) error {
	    d.Subscribe(rhom.After(rhom.OpSave), func(ev *rhom.Event) {
	        if ev.Err() == nil {
	            p.record(ev.Instance())
	        }
	    })
	    return nil
	}

Primary listeners should check Handled before doing expensive work, since
a before listener may already have answered.

# Error Handling

Sentinel errors work with errors.Is:

	_, err := users.Get(ctx, "").Wait()
	if errors.Is(err, rhom.ErrMissingIdentifier) {
	    // no id given
	}

Errors a plugin passes to Failure reach the caller unchanged.
*/
package rhom
