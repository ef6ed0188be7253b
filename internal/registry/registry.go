package registry

import "github.com/petermattis/goid"

// Registry materializes one *E per goroutine on first touch and lets any
// goroutine enumerate every live entry — the contract spec.md §9 asks of
// "the target's standard thread-local facility plus a global registry".
// Registration takes an exclusive lane keyed by the goroutine id (so
// unrelated goroutines registering at the same time don't serialize
// against each other); enumeration takes a ReadAll slot, which only waits
// out an in-flight registration, never another read. That asymmetry is
// what lets a reclamation round walk every local's state without pausing
// every other goroutine that's merely entering the allocator for the
// first time.
type Registry[E any] struct {
	rb       Roundabout
	entries  map[int64]*E
	newEntry func() *E
}

// New returns a registry that lazily builds entries with newEntry.
func New[E any](newEntry func() *E) *Registry[E] {
	return &Registry[E]{
		entries:  make(map[int64]*E, 8),
		newEntry: newEntry,
	}
}

// GoroutineID returns the identity a call into GetOrCreate from the
// current goroutine will be keyed under.
func GoroutineID() int64 {
	return goid.Get()
}

// GetOrCreate returns the calling goroutine's entry, creating it on first
// call.
func (r *Registry[E]) GetOrCreate() *E {
	id := GoroutineID()

	var found *E
	r.rb.ReadAll(func() {
		found = r.entries[id]
	})
	if found != nil {
		return found
	}

	var entry *E
	r.rb.ExWriteLane(uint32(id), func() {
		if e, ok := r.entries[id]; ok {
			entry = e
			return
		}
		e := r.newEntry()
		r.entries[id] = e
		entry = e
	})
	return entry
}

// Range calls visit once for every registered entry, stopping early if
// visit returns false. It runs under a ReadAll slot, so it only ever waits
// out a registration already in flight.
func (r *Registry[E]) Range(visit func(*E) bool) {
	r.rb.ReadAll(func() {
		for _, e := range r.entries {
			if !visit(e) {
				return
			}
		}
	})
}
