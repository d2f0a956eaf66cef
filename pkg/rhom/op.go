package rhom

import "strings"

// Op names a lifecycle operation.
type Op string

// Operations dispatched by descriptors and instances.
const (
	OpGet    Op = "get"
	OpAll    Op = "all"
	OpPurge  Op = "purge"
	OpSave   Op = "save"
	OpDelete Op = "delete"
)

var ops = []Op{OpGet, OpAll, OpPurge, OpSave, OpDelete}

// Ops returns every operation in declaration order.
func Ops() []Op {
	out := make([]Op, len(ops))
	copy(out, ops)
	return out
}

func (o Op) title() string {
	if o == "" {
		return ""
	}
	return strings.ToUpper(string(o[:1])) + string(o[1:])
}

// Hook names a point in the lifecycle that listeners subscribe to.
type Hook string

// Before returns the hook fired before the primary phase, e.g. "beforeGet".
func Before(op Op) Hook { return Hook("before" + op.title()) }

// Primary returns the hook storage plugins answer, e.g. "get".
func Primary(op Op) Hook { return Hook(op) }

// After returns the hook fired once the event is settled, e.g. "afterGet".
func After(op Op) Hook { return Hook("after" + op.title()) }

var validHooks = func() map[Hook]struct{} {
	m := make(map[Hook]struct{}, len(ops)*3)
	for _, op := range ops {
		m[Before(op)] = struct{}{}
		m[Primary(op)] = struct{}{}
		m[After(op)] = struct{}{}
	}
	return m
}()

// Valid reports whether h is one of the fifteen lifecycle hooks.
func (h Hook) Valid() bool {
	_, ok := validHooks[h]
	return ok
}
