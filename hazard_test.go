package freeaccess

import "testing"

func TestHazardFrameNew(t *testing.T) {
	f := NewHazardFrame[uint8]()
	if got := f.Roots(); got != nil {
		t.Fatalf("expected an empty frame to have no roots, got %v", got)
	}
}

func TestHazardFrameStoreAndRoots(t *testing.T) {
	f := NewHazardFrame[uint8]()

	a, b, c := new(uint8), new(uint8), new(uint8)
	f.Store(a)
	f.Store(b)
	f.Store(c)

	roots := f.Roots()
	if len(roots) != 3 {
		t.Fatalf("expected 3 roots, got %d", len(roots))
	}

	seen := map[*uint8]bool{}
	for _, r := range roots {
		seen[r] = true
	}
	for _, want := range []*uint8{a, b, c} {
		if !seen[want] {
			t.Fatalf("missing root %p", want)
		}
	}
}

func TestHazardFrameReset(t *testing.T) {
	f := NewHazardFrame[uint8]()
	f.Store(new(uint8))
	f.Store(new(uint8))

	f.Reset()

	if got := f.Roots(); got != nil {
		t.Fatalf("expected no roots after reset, got %v", got)
	}

	fresh := new(uint8)
	f.Store(fresh)
	roots := f.Roots()
	if len(roots) != 1 || roots[0] != fresh {
		t.Fatalf("expected reset cells to be reusable, got %v", roots)
	}
}
