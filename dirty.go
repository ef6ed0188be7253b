package freeaccess

import (
	"sync/atomic"

	"github.com/Lol3rrr/free-access/internal/phaseflag"
)

// DirtyValue is the decoded form of a goroutine's dirty word: whether a
// concurrent reclamation phase has advanced since the goroutine's last
// read-only checkpoint, and which phase it observed.
type DirtyValue struct {
	Dirty bool
	Phase uint64
}

func dirtyFromU64(raw uint64) DirtyValue {
	phase, dirty := phaseflag.Unpack(raw)
	return DirtyValue{Dirty: dirty, Phase: phase}
}

func (d DirtyValue) toU64() uint64 {
	return phaseflag.Pack(d.Phase, d.Dirty)
}

// dirtyWord is the per-goroutine dirty flag from spec.md §4: a single
// packed word a reclaiming goroutine can set (marking every other
// goroutine's in-flight read as potentially stale) without taking a lock.
type dirtyWord struct {
	raw atomic.Uint64
}

func (d *dirtyWord) get() DirtyValue {
	return dirtyFromU64(d.raw.Load())
}

// update attempts to move the word from whatever value encodes as expected
// to next, reporting whether the CAS won.
func (d *dirtyWord) update(expected uint64, next DirtyValue) bool {
	return d.raw.CompareAndSwap(expected, next.toU64())
}
