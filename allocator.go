package freeaccess

import (
	"errors"
	"sync/atomic"

	"github.com/Lol3rrr/free-access/internal/page"
	"github.com/Lol3rrr/free-access/internal/pool"
	"github.com/Lol3rrr/free-access/internal/registry"
)

// seedPageSize is the number of node slots in the arena's initial (and,
// per spec.md §5, only) page.
const seedPageSize = 256

// Box is a handle to a node payload allocated by an Allocator. It behaves
// like a plain pointer for reads and writes; it confers no free/delete
// right, since only the reclaimer ever recycles the memory it points at.
type Box[T any] struct {
	inner *T
}

// Ptr returns the underlying payload pointer.
func (b *Box[T]) Ptr() *T {
	return b.inner
}

// Stats is a read-only snapshot of the allocator's reclamation state, for
// observability only — it has no effect on reclamation semantics.
type Stats struct {
	Phase uint64
	Pages uint64
}

// Allocator is the reclaimer described in spec.md §4.6: it orchestrates
// allocation, phase advance, tracing, and sweeping for nodes of type T,
// whose pointer type PT implements Node[T]. globals is the client's root
// enumeration object.
type Allocator[T any, PT Node[T]] struct {
	phaseIndex  atomic.Uint64
	locals      *registry.Registry[local[T, PT]]
	pool        *pool.Pool[*allocationBuffer[T]]
	pages       *page.List[T]
	sweepCursor atomic.Uint64
	globals     Globals[T]
}

// New constructs an Allocator backed by a single seed page, and performs
// one initial sweep to fill the global pool before returning.
func New[T any, PT Node[T]](globals Globals[T]) *Allocator[T, PT] {
	Logger.Debug().Msg("creating new allocator")

	a := &Allocator[T, PT]{
		pool:    pool.New[*allocationBuffer[T]](),
		pages:   page.NewList[T](seedPageSize),
		globals: globals,
	}
	a.locals = registry.New[local[T, PT]](func() *local[T, PT] { return newLocal[T, PT]() })

	a.sweep()

	return a
}

// Allocate draws a free node slot, writes data into it, and returns a
// handle to it. It refills the goroutine's local buffer from the global
// pool (triggering a reclamation round, and retrying once, if the pool is
// empty) as needed.
func (a *Allocator[T, PT]) Allocate(data T) (*Box[T], error) {
	Logger.Debug().Msg("allocating")

	own := a.locals.GetOrCreate()
	if own.alloc.IsEmpty() {
		if err := a.refill(own); err != nil {
			return nil, err
		}
	}

	ptr := own.alloc.Pop()
	if ptr == nil {
		return nil, ErrPoolEmpty
	}

	*ptr = data
	return &Box[T]{inner: ptr}, nil
}

// maxPhaseResyncAttempts bounds how many times refill will resynchronise
// the goroutine's local phase and retry a pool pop before giving up. A
// goroutine only loops here because some other goroutine keeps advancing
// the global phase out from under it; after this many attempts that's no
// longer transient contention worth spinning on.
const maxPhaseResyncAttempts = 8

// refill is the resolution of spec.md §9's "out of free buffers" open
// question: on InvalidPhase it resynchronises the goroutine's local phase
// and retries, up to maxPhaseResyncAttempts times; on Empty it drives one
// reclamation round and retries once more, failing with ErrPoolEmpty only
// if that round produced nothing this goroutine could claim.
func (a *Allocator[T, PT]) refill(own *local[T, PT]) error {
	for attempt := 0; attempt < maxPhaseResyncAttempts; attempt++ {
		lPhase := own.phaseIndex.Load()
		buf, err := a.pool.Pop(lPhase)
		switch {
		case err == nil:
			own.alloc.NewBuffer(buf)
			return nil
		case errors.Is(err, pool.ErrInvalidPhase):
			own.phaseIndex.Store(a.phaseIndex.Load())
			continue
		default:
			a.ForceGC()
			buf, err = a.pool.Pop(own.phaseIndex.Load())
			switch {
			case err == nil:
				own.alloc.NewBuffer(buf)
				return nil
			case errors.Is(err, pool.ErrInvalidPhase):
				continue
			default:
				return ErrPoolEmpty
			}
		}
	}
	return ErrPhaseMismatch
}

// ForceGC runs one full reclamation round synchronously on the calling
// goroutine.
func (a *Allocator[T, PT]) ForceGC() {
	a.reclamation()
}

// Restart is the cooperative-participation hook spec.md §9 leaves
// unspecified in the original source. This resolves it as: resynchronise
// to the current global phase, help finish whatever reclamation round is
// in flight, then clear both hazard frames of any staged pointers.
func (a *Allocator[T, PT]) Restart() {
	own := a.locals.GetOrCreate()
	own.phaseIndex.Store(a.phaseIndex.Load())

	for !a.finishOrProgress() {
	}

	for _, f := range own.frames {
		f.Reset()
	}
}

// BeginWriteOnly clears the hazard frame selected by the arbiter's next()
// (current%2, which is the current frame), stages localPtrs into it, and
// attempts to enter write-only mode. It fails with
// ErrRestart if a reclamation phase advanced since the goroutine's last
// checkpoint; the caller must then re-run its read-only phase.
func (a *Allocator[T, PT]) BeginWriteOnly(localPtrs []*T) error {
	own := a.locals.GetOrCreate()

	nextArb := own.arb.next()
	frame := own.frames[nextArb]
	frame.Reset()
	for _, p := range localPtrs {
		frame.Store(p)
	}

	dirty := own.dirty.get()
	if dirty.Dirty {
		return ErrRestart
	}

	own.arb.store(nextArb)
	return nil
}

// ValidateRead reports whether the calling goroutine's in-flight reads
// are still valid, i.e. no reclamation phase has advanced since its last
// checkpoint.
func (a *Allocator[T, PT]) ValidateRead() error {
	own := a.locals.GetOrCreate()
	if own.dirty.get().Dirty {
		return ErrRestart
	}
	return nil
}

// Stats returns a read-only snapshot of the allocator's reclamation
// state. Purely descriptive: it has no effect on reclamation semantics.
func (a *Allocator[T, PT]) Stats() Stats {
	return Stats{
		Phase: a.phaseIndex.Load(),
		Pages: a.pages.PageCount(),
	}
}

func (a *Allocator[T, PT]) localRoots() []*T {
	var result []*T
	a.locals.Range(func(l *local[T, PT]) bool {
		for _, frame := range l.frames {
			for _, p := range frame.Roots() {
				if p == nil {
					continue
				}
				result = append(result, PT(p).UntagPtr())
			}
		}
		return true
	})
	return result
}

func (a *Allocator[T, PT]) globalRoots() []*T {
	return a.globals.GetGlobals()
}

func (a *Allocator[T, PT]) gatherRoots() []*T {
	result := a.localRoots()
	result = append(result, a.globalRoots()...)
	return result
}

// help pushes node onto own's mark stack so a subsequent trace loop picks
// it up. If own's phase no longer matches the global phase, the round own
// is tracing is stale, so nothing is pushed.
func (a *Allocator[T, PT]) help(own *local[T, PT], node *T) {
	if own.phaseIndex.Load() == a.phaseIndex.Load() {
		own.markStack.Push(node)
	}
}

// stalledEntry is one goroutine's snapshot taken by finishOrProgress's
// first pass.
type stalledEntry[T any, PT Node[T]] struct {
	l      *local[T, PT]
	phase  uint64
	traced *T
}

// finishOrProgress is the wait-free helping protocol from spec.md §4.6:
// any goroutine stalled mid-trace can be finished by any other goroutine
// running a trace. It returns true only once three consecutive passes
// observe nothing left to help with.
func (a *Allocator[T, PT]) finishOrProgress() bool {
	own := a.locals.GetOrCreate()
	localPhase := own.phaseIndex.Load()

	var stalled []stalledEntry[T, PT]
	progressed := false

	a.locals.Range(func(l *local[T, PT]) bool {
		traced := l.curTraced.Load()
		if traced == nil {
			return true
		}

		phase := l.phaseIndex.Load()
		stalled = append(stalled, stalledEntry[T, PT]{l: l, phase: phase, traced: traced})

		if phase == localPhase {
			marks := page.FromDataPtr(traced).LoadMarks()
			if !marks.Marked {
				a.help(own, traced)
				progressed = true
				return false
			}
		}
		return true
	})
	if progressed {
		return false
	}

	for _, st := range stalled {
		if st.phase != localPhase {
			continue
		}
		for _, node := range st.l.markStack.All() {
			marks := page.FromDataPtr(node).LoadMarks()
			if !marks.Marked {
				a.help(own, node)
				progressed = true
				break
			}
		}
		if progressed {
			break
		}
	}
	if progressed {
		return false
	}

	for _, st := range stalled {
		if st.traced != st.l.curTraced.Load() {
			return false
		}
		if st.phase != st.l.phaseIndex.Load() {
			return false
		}
	}
	return true
}

func (a *Allocator[T, PT]) trace(roots []*T) {
	Logger.Debug().Msg("tracing")

	own := a.locals.GetOrCreate()
	localPhase := own.phaseIndex.Load()

	for _, r := range roots {
		own.markStack.Push(r)
	}

	for {
		for own.markNode(localPhase) != markDone {
		}
		if a.finishOrProgress() {
			break
		}
	}
}

func (a *Allocator[T, PT]) sweep() {
	own := a.locals.GetOrCreate()
	localPhase := own.phaseIndex.Load()

	Logger.Debug().Uint64("local_phase", localPhase).Msg("sweeping")

	a.startSweepRound(localPhase)

	for {
		p := a.pages.GetPage(&a.sweepCursor, localPhase)
		if p == nil {
			Logger.Debug().Msg("sweep done")
			return
		}
		own.sweepPage(p, a.pool)
	}
}

// startSweepRound rearms the shared sweep cursor for localPhase, so
// GetPage hands out pages again instead of seeing a stale phase and
// bailing out forever. The CAS only advances the cursor's embedded phase
// forward, never back: if another goroutine already rearmed it for
// localPhase (or moved it on to a newer phase), this is a no-op, so two
// goroutines racing into the same reclamation round divide the page list
// between them via GetPage's own CAS rather than both restarting at
// index 0 and sweeping the same page twice.
func (a *Allocator[T, PT]) startSweepRound(localPhase uint64) {
	for {
		old := a.sweepCursor.Load()
		oldPhase, _ := page.SplitSweepCursor(old)
		if oldPhase >= localPhase {
			return
		}
		if a.sweepCursor.CompareAndSwap(old, page.NewSweepCursor(localPhase)) {
			return
		}
	}
}

func (a *Allocator[T, PT]) reclamation() {
	Logger.Debug().Msg("starting reclamation")

	a.initReclamation()
	a.updateMarks()
	a.clearAllocPool()

	roots := a.gatherRoots()
	a.trace(roots)
	a.sweep()
}

func (a *Allocator[T, PT]) updateMarks() {
	Logger.Debug().Msg("clearing marks")

	own := a.locals.GetOrCreate()
	localPhase := own.phaseIndex.Load()
	a.pages.UpdateMarks(localPhase)
}

func (a *Allocator[T, PT]) clearAllocPool() {
	Logger.Debug().Msg("clearing allocation pool")

	own := a.locals.GetOrCreate()
	localPhase := own.phaseIndex.Load()
	if a.pool.UpdatePhase(localPhase) {
		Logger.Debug().Msg("cleared global allocation pool")
	} else {
		Logger.Debug().Msg("could not clear global allocation pool")
	}
}

// initReclamation signals every known goroutine that a new phase has
// started by advancing the global phase counter (if it still matches the
// caller's view of it) and dirtying every goroutine whose dirty word
// lagged the previous phase.
func (a *Allocator[T, PT]) initReclamation() {
	Logger.Debug().Msg("init reclamation")

	own := a.locals.GetOrCreate()
	lPhaseIndex := own.phaseIndex.Load()
	a.phaseIndex.CompareAndSwap(lPhaseIndex, lPhaseIndex+1)

	nPhaseIndex := a.phaseIndex.Load()
	own.phaseIndex.Store(nPhaseIndex)

	a.locals.Range(func(l *local[T, PT]) bool {
		tDirty := l.dirty.get()
		if tDirty.Phase < lPhaseIndex {
			l.dirty.update(tDirty.toU64(), DirtyValue{Dirty: true, Phase: lPhaseIndex})
		}
		return true
	})
}
