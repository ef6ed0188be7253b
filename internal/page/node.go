package page

import (
	"sync/atomic"
	"unsafe"
)

// PageNode is a single arena slot: a packed marker word followed by the
// client's payload. The layout is exactly this order — the payload offset
// is a compile-time constant recovered with unsafe.Offsetof, so a pointer
// to the payload can always be walked back to its header (invariant I2/I3
// in spec.md §3).
type PageNode[T any] struct {
	marker atomic.Uint64
	data   T
}

// NewPageNode returns a zero-value node stamped with phase 0, unmarked.
func NewPageNode[T any]() *PageNode[T] {
	n := &PageNode[T]{}
	n.marker.Store(NodeMarks{Marked: false, Phase: 0}.pack())
	return n
}

// DataPtr returns a pointer to the payload. Any pointer handed to a client
// (hazard pointers, mark-stack entries, root pointers) must be one of
// these, never a pointer into the node's marker.
func (n *PageNode[T]) DataPtr() *T {
	base := uintptr(unsafe.Pointer(n)) + unsafe.Offsetof(n.data)
	return (*T)(unsafe.Pointer(base))
}

// FromDataPtr recovers the owning PageNode from a payload pointer previously
// returned by DataPtr. Calling it with any other pointer is a client
// programming error (it violates invariant I3) and its behaviour is
// undefined, exactly as in the original allocator.
func FromDataPtr[T any](ptr *T) *PageNode[T] {
	var probe PageNode[T]
	offset := unsafe.Offsetof(probe.data)
	base := uintptr(unsafe.Pointer(ptr)) - offset
	return (*PageNode[T])(unsafe.Pointer(base))
}

// LoadMarks reads the current marker.
func (n *PageNode[T]) LoadMarks() NodeMarks {
	return unpackMarks(n.marker.Load())
}

// CompareAndSwapMarks performs the update described in §4.5 step 7: move
// the marker from exactly `old` to `new`, failing if another tracer or
// clearer won the race.
func (n *PageNode[T]) CompareAndSwapMarks(old, new NodeMarks) bool {
	return n.marker.CompareAndSwap(old.pack(), new.pack())
}

// ClearMarks advances the node to an unmarked state for newPhase, provided
// the node's current phase is strictly older (invariant I5: marker phase
// is monotonically non-decreasing). A failed CAS here is benign — some
// other clearer or a concurrent tracer's write already moved the marker
// forward, and monotonicity is all that's required.
func (n *PageNode[T]) ClearMarks(newPhase uint64) {
	for {
		raw := n.marker.Load()
		current := unpackMarks(raw)
		if current.Phase >= newPhase {
			return
		}
		next := NodeMarks{Marked: false, Phase: newPhase}
		if n.marker.CompareAndSwap(raw, next.pack()) {
			return
		}
	}
}
