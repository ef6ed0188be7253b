package freeaccess

import (
	"sync/atomic"

	"github.com/Lol3rrr/free-access/internal/page"
	"github.com/Lol3rrr/free-access/internal/pool"
)

// markState reports whether markNode drained the caller's mark stack.
type markState int

const (
	markNotDone markState = iota
	markDone
)

// local is one goroutine's reclamation context: its dirty word, its two
// hazard frames, its allocation buffer, its mark stack, and the phase it
// last observed. The Allocator never mutates another goroutine's local
// except via the lock-free primitives these fields already expose;
// finish_or_progress's helping protocol relies on that.
type local[T any, PT Node[T]] struct {
	phaseIndex atomic.Uint64
	dirty      dirtyWord
	frames     [2]*HazardFrame[T]
	arb        arbiter
	alloc      *localAllocator[T]

	curTraced atomic.Pointer[T]
	markStack *MarkStack[T]
}

func newLocal[T any, PT Node[T]]() *local[T, PT] {
	return &local[T, PT]{
		frames:    [2]*HazardFrame[T]{NewHazardFrame[T](), NewHazardFrame[T]()},
		alloc:     newLocalAllocator[T](),
		markStack: NewMarkStack[T](),
	}
}

// markNode performs one step of §4.5's per-node marking algorithm against
// the top of this goroutine's mark stack.
func (l *local[T, PT]) markNode(localPhase uint64) markState {
	objPtr := l.markStack.Peek()
	if objPtr == nil {
		return markDone
	}

	objNode := page.FromDataPtr(objPtr)
	marks := objNode.LoadMarks()
	if marks.Marked || marks.Phase != localPhase {
		l.markStack.Pop()
		return markNotDone
	}

	l.curTraced.Store(objPtr)
	l.markStack.Pop()

	pushed := 0
	obj := PT(objPtr)
	for _, child := range obj.Pointers() {
		if child == nil {
			continue
		}
		l.markStack.Push(child)
		pushed++
	}

	expected := page.NodeMarks{Phase: localPhase, Marked: false}
	next := page.NodeMarks{Phase: localPhase, Marked: true}
	if objNode.CompareAndSwapMarks(expected, next) {
		return markNotDone
	}

	for i := 0; i < pushed; i++ {
		l.markStack.Pop()
	}
	return markNotDone
}

// sweepPage walks one page, recycling every unmarked node's payload into
// this goroutine's allocation buffer, overflowing full buffers into the
// global pool as it goes.
func (l *local[T, PT]) sweepPage(p *page.Page[T], globalAlloc *pool.Pool[*allocationBuffer[T]]) {
	localPhase := l.phaseIndex.Load()

	for _, node := range p.Nodes {
		marks := node.LoadMarks()
		if marks.Marked {
			continue
		}

		dataPtr := node.DataPtr()
		if _, ok := l.alloc.Insert(dataPtr); ok {
			continue
		}

		old := l.alloc.Take()
		globalAlloc.Insert(old, localPhase)
		l.alloc.Insert(dataPtr)
	}
}
