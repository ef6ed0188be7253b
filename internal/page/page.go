// Package page implements the node arena: fixed-size pages of PageNode
// slots, linked into a never-shrinking list, plus the cursor-based
// allocation of page indices to concurrent sweepers.
package page

import "sync/atomic"

// Page is one fixed-capacity slab of node slots.
type Page[T any] struct {
	Nodes []*PageNode[T]
	next  atomic.Pointer[Page[T]]
}

// NewPage allocates a page of size slots, each a fresh, unmarked node.
func NewPage[T any](size int) *Page[T] {
	nodes := make([]*PageNode[T], size)
	for i := range nodes {
		nodes[i] = NewPageNode[T]()
	}
	return &Page[T]{Nodes: nodes}
}

// UpdateMarks clears every node's marker to the given phase. See
// PageNode.ClearMarks for why a lost CAS race here is benign.
func (p *Page[T]) UpdateMarks(phase uint64) {
	for _, n := range p.Nodes {
		n.ClearMarks(phase)
	}
}

// List is the arena: a singly-linked, append-only list of Pages. Pages are
// never freed and the list only grows, so any goroutine may walk it at any
// time without hazard tracking (§9 "cyclic, self-referential metadata").
type List[T any] struct {
	pageSize  int
	head      *Page[T]
	pageCount atomic.Uint64
}

// NewList creates the arena with one seed page of pageSize slots.
func NewList[T any](pageSize int) *List[T] {
	head := NewPage[T](pageSize)
	l := &List[T]{pageSize: pageSize, head: head}
	l.pageCount.Store(1)
	return l
}

// PageCount reports how many pages the arena currently holds.
func (l *List[T]) PageCount() uint64 {
	return l.pageCount.Load()
}

func (l *List[T]) pageAt(index uint64) *Page[T] {
	if index >= l.pageCount.Load() {
		return nil
	}
	current := l.head
	for i := uint64(0); i < index; i++ {
		current = current.next.Load()
	}
	return current
}

// splitCursor decodes the packed (phase, index) sweep cursor: high 32 bits
// are the phase a sweep round was started in, low 32 bits are the next
// page index to hand out.
func splitCursor(raw uint64) (phase, index uint64) {
	return raw >> 32, raw & 0x00000000ffffffff
}

func packCursor(phase, index uint64) uint64 {
	return (phase << 32) | (index & 0x00000000ffffffff)
}

// NewSweepCursor returns the initial cursor value for a sweep round
// starting at phase: index 0, nothing yet handed out.
func NewSweepCursor(phase uint64) uint64 {
	return packCursor(phase, 0)
}

// SplitSweepCursor decodes a packed cursor into its embedded phase and
// next-index fields, for callers that need to compare a cursor's phase
// before deciding whether to reset it.
func SplitSweepCursor(raw uint64) (phase, index uint64) {
	return splitCursor(raw)
}

// GetPage claims the next unswept page for localPhase, or returns nil once
// the round is exhausted or the caller's phase has gone stale. Callers
// always walk forward from index 0, so the O(index) list walk in pageAt is
// amortised across one full sweep.
func (l *List[T]) GetPage(sweepCursor *atomic.Uint64, localPhase uint64) *Page[T] {
	count := l.pageCount.Load()
	for {
		old := sweepCursor.Load()
		phase, index := splitCursor(old)
		if index >= count || phase != localPhase {
			return nil
		}

		next := packCursor(phase, index+1)
		if sweepCursor.CompareAndSwap(old, next) {
			return l.pageAt(index)
		}
	}
}

// UpdateMarks walks every page in the arena and refreshes its markers to
// phase.
func (l *List[T]) UpdateMarks(phase uint64) {
	current := l.head
	for current != nil {
		current.UpdateMarks(phase)
		current = current.next.Load()
	}
}
