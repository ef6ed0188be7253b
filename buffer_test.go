package freeaccess

import "testing"

func TestAllocationBufferNew(t *testing.T) {
	b := newAllocationBuffer[int]()
	if !b.IsEmpty() {
		t.Fatalf("expected a fresh buffer to be empty")
	}
}

func TestAllocationBufferInsertPop(t *testing.T) {
	b := newAllocationBuffer[int]()

	v := 123
	if _, ok := b.Insert(&v); !ok {
		t.Fatalf("expected insert to succeed")
	}

	got := b.Pop()
	if got != &v {
		t.Fatalf("got %p, want %p", got, &v)
	}
}

func TestAllocationBufferPopEmpty(t *testing.T) {
	b := newAllocationBuffer[int]()
	if got := b.Pop(); got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestAllocationBufferFull(t *testing.T) {
	b := newAllocationBuffer[int]()

	values := make([]int, bufferSize)
	for i := range values {
		if _, ok := b.Insert(&values[i]); !ok {
			t.Fatalf("insert %d: expected success", i)
		}
	}

	overflow := 0
	if ptr, ok := b.Insert(&overflow); ok || ptr != &overflow {
		t.Fatalf("expected insert past capacity to fail and return the pointer back")
	}
}

func TestLocalAllocatorTakeAndNewBuffer(t *testing.T) {
	a := newLocalAllocator[int]()
	if !a.IsEmpty() {
		t.Fatalf("expected a fresh allocator to be empty")
	}

	v := 7
	if _, ok := a.Insert(&v); !ok {
		t.Fatalf("expected insert to succeed")
	}

	old := a.Take()
	if !a.IsEmpty() {
		t.Fatalf("expected the allocator to be empty after Take")
	}
	if old.Pop() != &v {
		t.Fatalf("expected the taken buffer to still hold the inserted value")
	}

	fresh := newAllocationBuffer[int]()
	w := 9
	fresh.Insert(&w)
	a.NewBuffer(fresh)
	if got := a.Pop(); got != &w {
		t.Fatalf("got %p, want %p", got, &w)
	}
}
