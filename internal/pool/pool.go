// Package pool implements the phase-protected pool described in
// spec.md §4.1: a never-shrinking singly-linked list of cells, each
// carrying a lease state (Empty/Accessed/Set) plus the phase it was set
// in, letting a single 64-bit phase be committed atomically with the
// payload without a double-width CAS (spec.md §9 "Phase protection
// without wide atomics").
package pool

import (
	"sync/atomic"
)

type state uint8

const (
	stateEmpty state = iota
	stateAccessed
	stateSet
)

type cell[V any] struct {
	data  V
	state atomic.Uint32
	phase atomic.Uint64
	next  atomic.Pointer[cell[V]]
}

func (c *cell[V]) loadState() state {
	return state(c.state.Load())
}

func (c *cell[V]) casState(old, new state) bool {
	return c.state.CompareAndSwap(uint32(old), uint32(new))
}

// PopError distinguishes a pool with nothing available right now (E2 in
// spec.md §7) from one whose phase has moved on under the caller (E1).
type PopError struct {
	InvalidPhase bool
}

func (e *PopError) Error() string {
	if e.InvalidPhase {
		return "pool: invalid phase"
	}
	return "pool: empty"
}

var (
	// ErrEmpty is returned by Pop when no cell currently holds data for
	// the requested phase.
	ErrEmpty = &PopError{}
	// ErrInvalidPhase is returned when the caller's phase no longer
	// matches the pool's authoritative phase.
	ErrInvalidPhase = &PopError{InvalidPhase: true}
)

// Pool is a phase-tagged, unordered stack. It provides no guarantee about
// the order elements are returned in.
type Pool[V any] struct {
	phase atomic.Uint64
	start *cell[V]
}

// New returns an empty pool at phase 0.
func New[V any]() *Pool[V] {
	return &Pool[V]{start: &cell[V]{}}
}

// UpdatePhase advances the pool's authoritative phase. It only succeeds
// when newPhase is strictly greater than the current phase (P5).
func (p *Pool[V]) UpdatePhase(newPhase uint64) bool {
	for {
		prev := p.phase.Load()
		if prev >= newPhase {
			return false
		}
		if p.phase.CompareAndSwap(prev, newPhase) {
			return true
		}
	}
}

func (p *Pool[V]) iter(visit func(*cell[V]) bool) {
	for c := p.start; c != nil; c = c.next.Load() {
		if !visit(c) {
			return
		}
	}
}

// Insert places data into the pool under phase. It fails (without
// blocking) if the pool's phase has already moved past phase — the exact
// protocol from spec.md §4.1.
func (p *Pool[V]) Insert(data V, phase uint64) bool {
	if p.phase.Load() != phase {
		return false
	}

	var tail *cell[V]
	ok := false
	p.iter(func(c *cell[V]) bool {
		tail = c
		switch c.loadState() {
		case stateEmpty:
			if !c.casState(stateEmpty, stateAccessed) {
				return true
			}
			if p.phase.Load() != phase {
				c.state.Store(uint32(stateEmpty))
				return false
			}
			c.data = data
			c.phase.Store(phase)
			c.state.Store(uint32(stateSet))
			ok = true
			return false
		case stateSet:
			if c.phase.Load() >= phase {
				return true
			}
			if !c.casState(stateSet, stateAccessed) {
				return true
			}
			if p.phase.Load() != phase {
				c.state.Store(uint32(stateSet))
				return true
			}
			c.data = data
			c.phase.Store(phase)
			c.state.Store(uint32(stateSet))
			ok = true
			return false
		default: // Accessed: someone else holds the lease, move on
			return true
		}
	})
	if ok {
		return true
	}

	next := &cell[V]{}
	next.state.Store(uint32(stateAccessed))
	next.phase.Store(phase)
	for {
		if tail.next.CompareAndSwap(nil, next) {
			if p.phase.Load() != phase {
				next.state.Store(uint32(stateEmpty))
				return false
			}
			next.data = data
			next.state.Store(uint32(stateSet))
			return true
		}
		tail = tail.next.Load()
	}
}

// Pop removes and returns some value inserted under phase, or reports
// ErrEmpty / ErrInvalidPhase.
func (p *Pool[V]) Pop(phase uint64) (V, error) {
	var zero V
	if p.phase.Load() != phase {
		return zero, ErrInvalidPhase
	}

	var result V
	var resultErr error
	found := false
	p.iter(func(c *cell[V]) bool {
		if c.loadState() != stateSet {
			return true
		}
		if !c.casState(stateSet, stateAccessed) {
			return true
		}

		poolPhase := p.phase.Load()
		nodePhase := c.phase.Load()
		if nodePhase != poolPhase {
			var empty V
			c.data = empty
			c.state.Store(uint32(stateEmpty))
			return true
		}
		if poolPhase != phase {
			c.state.Store(uint32(stateSet))
			resultErr = ErrInvalidPhase
			found = true
			return false
		}

		result = c.data
		var empty V
		c.data = empty
		c.state.Store(uint32(stateEmpty))
		found = true
		return false
	})

	if found {
		return result, resultErr
	}
	return zero, ErrEmpty
}
