package freeaccess

import "testing"

func TestArbiterNextIsCurrentModTwo(t *testing.T) {
	var a arbiter

	if got := a.next(); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}

	a.store(1)
	if got := a.next(); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}

	a.store(0)
	if got := a.next(); got != 0 {
		t.Fatalf("got %d, want 0", got)
	}
}

func TestArbiterGetReflectsStore(t *testing.T) {
	var a arbiter
	a.store(1)
	if got := a.get(); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}
