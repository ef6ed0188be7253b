package freeaccess

import "errors"

// The substrate exposes three non-fatal failure kinds (spec.md §7). None
// of them indicate corruption; each names the recovery action the caller
// should take.
var (
	// ErrPhaseMismatch (E1) means an operation keyed on the caller's
	// local phase observed that the authoritative phase has advanced.
	// The caller should resynchronize its local phase and retry.
	// Allocate returns it if refill's resync-and-retry loop exhausts
	// maxPhaseResyncAttempts without the local and global phase
	// converging.
	ErrPhaseMismatch = errors.New("freeaccess: phase mismatch, resynchronize and retry")

	// ErrPoolEmpty (E2) means no free buffer is available from the
	// phased pool. The caller should drive (or wait for) a reclamation
	// round.
	ErrPoolEmpty = errors.New("freeaccess: allocation pool empty")

	// ErrRestart (E3) means the mutator observed dirty: an upstream
	// phase change may have invalidated its in-flight reads. The caller
	// must abandon its tentative write and return to its last clean
	// read-only point.
	ErrRestart = errors.New("freeaccess: restart required, dirty observed")
)
