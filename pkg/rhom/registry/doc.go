// Package registry provides a generic thread-safe registry for values indexed
// by key, with stable registration order and duplicate rejection.
//
// rhom uses it for three ledgers: the process-wide table of entity types,
// each type's plugin ledger, and each type's accessor table.
//
// # Basic Usage
//
//	r := registry.New[string, string]()
//	if err := r.Register("Cache", "Local cache"); err != nil {
//	    // registry.ErrDuplicate: the name is taken and r is unchanged
//	}
//
//	desc, ok := r.Get("Cache")
//
// Replace overwrites without complaint and is meant for tables where the
// caller has opted into overriding:
//
//	r.Replace("getByEmail", newAccessor)
//
// # Ordering
//
// Keys and Range report entries in first-registration order. Replacing a key
// keeps its original position.
//
// # Lazy Initialization
//
// GetOrCreate is atomic: the factory runs at most once per key, even under
// concurrent access.
//
//	desc := types.GetOrCreate("user", func() *Descriptor {
//	    return newDescriptor("user")
//	})
package registry
