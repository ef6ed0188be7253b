// Package decorator is the pass-through surface matching the original
// source's proc-macro crate (free_access_macros): in Rust, #[freeaccess]
// and #[write_only] expand to their annotated function body unchanged
// today — `quote! { #input }`. Go has no attribute macros, so the same
// "decorates a mutator function, currently with no semantic effect" seam
// is expressed as ordinary higher-order functions wrapping the call.
//
// Per spec.md §9's open question, the eventual semantics (automatic
// hazard-pointer staging, automatic restart on dirty) are undefined; this
// package intentionally does nothing beyond calling through, so adding
// that behaviour later doesn't require touching call sites.
package decorator

// Freeaccess wraps a mutator function that reads or writes through a
// freeaccess-managed data structure. It calls fn unchanged.
func Freeaccess(fn func()) func() {
	return func() {
		fn()
	}
}

// WriteOnly wraps a mutator function intended to run during a write-only
// period (see Allocator.BeginWriteOnly). It calls fn unchanged.
func WriteOnly(fn func() error) error {
	return fn()
}
