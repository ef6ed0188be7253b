package pool

import "testing"

func TestPoolInsertPop(t *testing.T) {
	p := New[int]()

	if !p.Insert(13, 0) {
		t.Fatalf("insert failed")
	}
	got, err := p.Pop(0)
	if err != nil || got != 13 {
		t.Fatalf("pop = (%v, %v), want (13, nil)", got, err)
	}
}

func TestPoolInsertWrongPhase(t *testing.T) {
	p := New[int]()
	if !p.Insert(13, 0) {
		t.Fatalf("insert failed")
	}
	p.UpdatePhase(1)
	if p.Insert(13, 0) {
		t.Fatalf("insert at stale phase should fail")
	}
}

// P5: UpdatePhase(x) succeeds iff x > current; subsequent ops at y < x fail.
func TestPoolPhaseMonotonic(t *testing.T) {
	p := New[int]()

	if !p.UpdatePhase(5) {
		t.Fatalf("update to 5 should succeed from 0")
	}
	if p.UpdatePhase(5) {
		t.Fatalf("update to same phase should fail")
	}
	if p.UpdatePhase(3) {
		t.Fatalf("update to lower phase should fail")
	}
	if p.Insert(1, 3) {
		t.Fatalf("insert at stale phase 3 should fail")
	}
	if _, err := p.Pop(3); err != ErrInvalidPhase {
		t.Fatalf("pop at stale phase 3 = %v, want ErrInvalidPhase", err)
	}
}

// S5: insert at phase 0, UpdatePhase(1), pop(0) -> InvalidPhase, pop(1) -> Empty.
func TestPoolPhaseProtectedPop(t *testing.T) {
	p := New[int]()
	if !p.Insert(42, 0) {
		t.Fatalf("insert failed")
	}
	if !p.UpdatePhase(1) {
		t.Fatalf("update phase failed")
	}
	if _, err := p.Pop(0); err != ErrInvalidPhase {
		t.Fatalf("pop(0) = %v, want ErrInvalidPhase", err)
	}
	if _, err := p.Pop(1); err != ErrEmpty {
		t.Fatalf("pop(1) = %v, want ErrEmpty", err)
	}
}

// P6: every inserted value is returned by exactly one pop before Empty.
func TestPoolRoundTripMultiple(t *testing.T) {
	p := New[int]()
	values := []int{1, 2, 3, 4, 5}
	for _, v := range values {
		if !p.Insert(v, 0) {
			t.Fatalf("insert(%d) failed", v)
		}
	}

	seen := map[int]bool{}
	for {
		v, err := p.Pop(0)
		if err == ErrEmpty {
			break
		}
		if err != nil {
			t.Fatalf("unexpected pop error: %v", err)
		}
		if seen[v] {
			t.Fatalf("value %d popped twice", v)
		}
		seen[v] = true
	}
	for _, v := range values {
		if !seen[v] {
			t.Fatalf("value %d never popped", v)
		}
	}
	if _, err := p.Pop(0); err != ErrEmpty {
		t.Fatalf("pop on drained pool = %v, want ErrEmpty", err)
	}
}

func TestPoolEmpty(t *testing.T) {
	p := New[int]()
	if _, err := p.Pop(0); err != ErrEmpty {
		t.Fatalf("pop on new pool = %v, want ErrEmpty", err)
	}
}
