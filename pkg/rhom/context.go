package rhom

import (
	"context"
	"time"
)

type callTimeoutKey struct{}

// WithCallTimeout returns a context that gives the operations started with
// it their own deadline, overriding the descriptor's WithTimeout. A
// non-positive d disables the deadline for those calls.
//
// Example:
//
//	ctx := rhom.WithCallTimeout(ctx, 50*time.Millisecond)
//	inst, err := users.Get(ctx, id).Wait()
func WithCallTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, callTimeoutKey{}, d)
}

func callTimeout(ctx context.Context) (time.Duration, bool) {
	if ctx == nil {
		return 0, false
	}
	d, ok := ctx.Value(callTimeoutKey{}).(time.Duration)
	return d, ok
}
