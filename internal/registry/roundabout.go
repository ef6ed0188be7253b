// Package registry provides the goroutine-keyed Local registry used to
// enumerate per-goroutine reclamation state (spec.md §9, "per-thread local
// state"). Go has no goroutine-local-storage primitive, so registration
// (rare) and enumeration (one full scan per reclamation round) are
// coordinated with Roundabout, an in-memory write-ahead log that lets many
// concurrent readers run free while serializing only against an in-flight
// write to the same lane.
package registry

import (
	"fmt"
	"math/bits"
	"strconv"
	"sync/atomic"
)

const width = 32

// Roundabout is a ring-buffer log of in-flight operations. Threads publish
// an entry describing their operation, scan the log for conflicting
// predecessors, spin until those clear, then retire their own entry.
//
// The header packs (epoch, flags, bitmap) into one atomic word: epoch is
// the next free log slot, the bitmap tracks which of the 32 slots are
// occupied, and flags are advisory bits new operations can see without
// taking a log slot. Each log entry packs (epoch, kind, lane): epoch
// orders the entry relative to others, kind selects blocking behaviour,
// and lane is the conflict key (typically a hash of whatever the op
// touches).
//
// This one structure can play mutual-exclusion lock, reader/writer lock,
// per-lane fine-grained lock, or an RCU-style fence that lets new readers
// proceed while old writers drain — which is exactly the registration
// (writer) vs. enumeration (reader) pattern the Local registry needs.
type Roundabout struct {
	header atomic.Uint64     // epoch:16 | flags:16 | bitmap:32
	log    [width]atomic.Uint64
	// Conflict overrides the default same-lane conflict test. It is
	// consulted only for same-epoch log entries that weren't already
	// resolved by kind; returning true means "still conflicts, keep
	// spinning".
	Conflict func(a, b uint32) bool
}

type lane uint16

const (
	zeroCell    lane = iota // uninitialised slot, all zero
	pendingCell             // epoch claimed, entry not yet written

	readLane // blocks on exclusive writes in the same lane
	readAll  // blocks on any exclusive write

	shWriteLane // blocks on any write in the same lane, ignores reads
	shWriteAll  // blocks on any write, ignores reads

	exWriteLane // blocks on every predecessor in the same lane
	exWriteAll  // blocks on every predecessor
)

type header struct {
	epoch  uint16
	flags  uint16
	bitmap uint32
}

func (h header) pack() uint64 {
	return (uint64(h.epoch) << 48) | (uint64(h.flags) << 32) | uint64(h.bitmap)
}

func unpackHeader(raw uint64) header {
	return header{
		epoch:  uint16(raw >> 48),
		flags:  uint16((raw >> 32) & 0xffff),
		bitmap: uint32(raw & 0xffffffff),
	}
}

type entry struct {
	epoch uint16
	kind  lane
	lane  uint32
}

func (e entry) pack() uint64 {
	return (uint64(e.epoch) << 48) | (uint64(e.kind) << 32) | uint64(e.lane)
}

func unpackEntry(raw uint64) entry {
	return entry{
		epoch: uint16(raw >> 48),
		kind:  lane(uint16((raw >> 32) & 0xffff)),
		lane:  uint32(raw & 0xffffffff),
	}
}

// slot is a claimed position on the log, returned by push and consumed by
// wait/pop.
type slot struct {
	n      int
	epoch  uint16
	flags  uint16
	kind   lane
	lane   uint32
	bitmap uint32
}

// fence is a claimed change to the header's flags, returned by setFence.
type fence struct {
	epoch    uint16
	flags    uint16
	newFlags uint16
	bitmap   uint32
}

func (rb *Roundabout) String() string {
	h := unpackHeader(rb.header.Load())
	return fmt.Sprintf("%v [%v] %v",
		strconv.FormatUint(uint64(h.bitmap), 2), h.epoch,
		strconv.FormatUint(uint64(h.flags), 2))
}

func (rb *Roundabout) push(ln uint32, kind lane) (slot, bool) {
	raw := rb.header.Load()
	h := unpackHeader(raw)

	n := int(h.epoch) % width
	bit := uint32(1) << uint(n)

	if h.bitmap&bit != 0 {
		return slot{}, false
	}

	newHeader := header{epoch: h.epoch + 1, flags: h.flags, bitmap: h.bitmap | bit}.pack()
	item := entry{epoch: h.epoch, kind: kind, lane: ln}.pack()

	if !rb.header.CompareAndSwap(raw, newHeader) {
		return slot{}, false
	}
	rb.log[n].Store(item)
	return slot{n: n, epoch: h.epoch, flags: h.flags, kind: kind, lane: ln, bitmap: h.bitmap}, true
}

func (rb *Roundabout) conflicts(r slot, other entry) bool {
	switch {
	case r.kind == exWriteAll || other.kind == exWriteAll:
		return true
	case r.kind == shWriteAll:
		return !(other.kind == readLane || other.kind == readAll)
	case r.kind == readAll:
		return other.kind == exWriteLane
	case r.kind == exWriteLane:
		if other.kind == shWriteAll || other.kind == readAll {
			return true
		}
	case r.kind == shWriteLane:
		if other.kind == shWriteAll {
			return true
		}
		if other.kind == readLane || other.kind == readAll {
			return false
		}
	case r.kind == readLane:
		if other.kind == shWriteLane || other.kind == shWriteAll || other.kind == readLane || other.kind == readAll {
			return false
		}
	}

	if rb.Conflict != nil {
		return rb.Conflict(r.lane, other.lane)
	}
	return r.lane == other.lane
}

// wait spins until every predecessor entry that conflicts with r has
// retired. It only ever inspects the 31 epochs behind r, which is exactly
// the window the allocation bitmap snapshot at push-time covers.
func (rb *Roundabout) wait(r slot) {
	if r.bitmap == 0 {
		return
	}

	epoch := r.epoch - uint16(width)
	bm := bits.RotateLeft32(r.bitmap, -r.n)

	for i := 0; i < width-1; i++ {
		epoch++
		bm >>= 1
		if bm&1 == 0 {
			continue
		}

		n := int(epoch) % width
		for {
			item := unpackEntry(rb.log[n].Load())
			if item.kind == zeroCell {
				continue
			}
			if item.epoch != epoch {
				break
			}
			if item.kind == pendingCell {
				continue
			}
			if rb.conflicts(r, item) {
				continue
			}
			break
		}
	}
}

func (rb *Roundabout) pop(r slot) {
	next := entry{epoch: r.epoch + width, kind: pendingCell}.pack()
	rb.log[r.n].Store(next)

	bit := uint64(1) << uint(r.n)
	rb.header.And(^bit)
}

func (rb *Roundabout) setFence(flags uint16) (fence, bool) {
	raw := rb.header.Load()
	h := unpackHeader(raw)

	if h.flags&flags != 0 {
		return fence{}, false
	}

	newHeader := header{epoch: h.epoch, flags: h.flags | flags, bitmap: h.bitmap}.pack()
	if !rb.header.CompareAndSwap(raw, newHeader) {
		return fence{}, false
	}
	return fence{epoch: h.epoch, flags: flags, newFlags: h.flags | flags, bitmap: h.bitmap}, true
}

func (rb *Roundabout) spinFence(s fence) {
	if s.bitmap == 0 {
		return
	}

	epoch := s.epoch - uint16(width)
	bm := bits.RotateLeft32(s.bitmap, -(int(s.epoch) % width))

	for i := 0; i < width; i++ {
		if bm&1 == 0 {
			epoch++
			bm >>= 1
			continue
		}

		n := int(epoch) % width
		for {
			item := unpackEntry(rb.log[n].Load())
			if item.kind == zeroCell {
				continue
			}
			if item.epoch == epoch {
				if item.kind == readLane || item.kind == readAll {
					break
				}
				continue
			}
			break
		}
		epoch++
		bm >>= 1
	}
}

func (rb *Roundabout) clearFence(s fence) {
	for {
		raw := rb.header.Load()
		h := unpackHeader(raw)
		newHeader := header{epoch: h.epoch, flags: h.flags ^ s.flags, bitmap: h.bitmap}.pack()
		if rb.header.CompareAndSwap(raw, newHeader) {
			return
		}
	}
}

func (rb *Roundabout) acquire(ln uint32, kind lane) slot {
	for {
		s, ok := rb.push(ln, kind)
		if ok {
			rb.wait(s)
			return s
		}
	}
}

// ExWriteAll runs fn once every other in-flight operation, of any lane,
// has retired.
func (rb *Roundabout) ExWriteAll(fn func()) {
	s := rb.acquire(0, exWriteAll)
	defer rb.pop(s)
	fn()
}

// ShWriteAll runs fn once every write operation, of any lane, has retired;
// concurrent reads are ignored.
func (rb *Roundabout) ShWriteAll(fn func()) {
	s := rb.acquire(0, shWriteAll)
	defer rb.pop(s)
	fn()
}

// ReadAll runs fn once every exclusive-write operation, of any lane, has
// retired.
func (rb *Roundabout) ReadAll(fn func()) {
	s := rb.acquire(0, readAll)
	defer rb.pop(s)
	fn()
}

// ExWriteLane runs fn once every other operation sharing ln has retired.
func (rb *Roundabout) ExWriteLane(ln uint32, fn func()) {
	s := rb.acquire(ln, exWriteLane)
	defer rb.pop(s)
	fn()
}

// ShWriteLane runs fn once every write sharing ln has retired.
func (rb *Roundabout) ShWriteLane(ln uint32, fn func()) {
	s := rb.acquire(ln, shWriteLane)
	defer rb.pop(s)
	fn()
}

// ReadLane runs fn once every exclusive write sharing ln has retired.
func (rb *Roundabout) ReadLane(ln uint32, fn func()) {
	s := rb.acquire(ln, readLane)
	defer rb.pop(s)
	fn()
}

// Fence sets flags, waits for every in-flight write predecessor to drain
// (in-flight reads are not waited for), runs fn, then clears flags. New operations that arrive while flags are set can see
// them without consuming a log slot.
func (rb *Roundabout) Fence(flags uint16, fn func(epoch, activeFlags uint16)) {
	for {
		f, ok := rb.setFence(flags)
		if !ok {
			continue
		}
		rb.spinFence(f)
		defer rb.clearFence(f)
		fn(f.epoch, f.newFlags)
		return
	}
}
