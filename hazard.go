package freeaccess

import "sync/atomic"

// hazardPtr is one cell of a hazard-pointer frame's linked list: either
// free (used == false) or protecting the node ptr currently points at.
type hazardPtr[T any] struct {
	used atomic.Bool
	ptr  atomic.Pointer[T]
	next atomic.Pointer[hazardPtr[T]]
}

// HazardFrame is a growable, append-only list of hazard-pointer cells. A
// goroutine stores every pointer it's currently dereferencing into one
// frame so a concurrent reclamation pass can see it as a root (spec.md
// §4, "hazard pointers").
type HazardFrame[T any] struct {
	head *hazardPtr[T]
}

// NewHazardFrame returns an empty frame with one free cell pre-allocated.
func NewHazardFrame[T any]() *HazardFrame[T] {
	return &HazardFrame[T]{head: &hazardPtr[T]{}}
}

// Store protects ptr, reusing a free cell if one exists and appending a
// new cell otherwise. ptr may be nil, in which case Roots simply won't
// report it.
func (f *HazardFrame[T]) Store(ptr *T) {
	current := f.head

	for {
		if !current.used.Load() {
			if current.used.CompareAndSwap(false, true) {
				current.ptr.Store(ptr)
				return
			}
		}

		next := current.next.Load()
		if next == nil {
			break
		}
		current = next
	}

	fresh := &hazardPtr[T]{}
	fresh.used.Store(true)
	fresh.ptr.Store(ptr)

	for {
		if current.next.CompareAndSwap(nil, fresh) {
			return
		}
		current = current.next.Load()
	}
}

// Roots returns every pointer currently protected by this frame.
func (f *HazardFrame[T]) Roots() []*T {
	var result []*T

	current := f.head
	for {
		if current.used.Load() {
			if p := current.ptr.Load(); p != nil {
				result = append(result, p)
			}
		}

		next := current.next.Load()
		if next == nil {
			break
		}
		current = next
	}

	return result
}

// Reset releases every cell in the frame back to the free pool. This has
// no analogue in the original source, which only ever grows a frame for
// the lifetime of its owning goroutine; it's added here so
// BeginWriteOnly's stale roots from a prior write-only period don't keep
// pinning nodes after a successful ValidateRead checkpoint.
func (f *HazardFrame[T]) Reset() {
	current := f.head
	for {
		current.used.Store(false)
		current.ptr.Store(nil)

		next := current.next.Load()
		if next == nil {
			return
		}
		current = next
	}
}
