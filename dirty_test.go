package freeaccess

import "testing"

func TestDirtyValueFromU64(t *testing.T) {
	got := dirtyFromU64(0x1201)
	want := DirtyValue{Phase: 0x12, Dirty: true}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	got = dirtyFromU64(0x2100)
	want = DirtyValue{Phase: 0x21, Dirty: false}
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestDirtyValueToU64(t *testing.T) {
	d := DirtyValue{Dirty: true, Phase: 0x12}
	if got := d.toU64(); got != 0x1201 {
		t.Fatalf("got %#x, want %#x", got, 0x1201)
	}

	d = DirtyValue{Dirty: false, Phase: 0x21}
	if got := d.toU64(); got != 0x2100 {
		t.Fatalf("got %#x, want %#x", got, 0x2100)
	}
}

func TestDirtyValueRoundTrip(t *testing.T) {
	for phase := uint64(0); phase < 300; phase++ {
		for _, dirty := range []bool{true, false} {
			v := DirtyValue{Phase: phase, Dirty: dirty}
			if got := dirtyFromU64(v.toU64()); got != v {
				t.Fatalf("round trip failed for %+v: got %+v", v, got)
			}
		}
	}
}

func TestDirtyWordUpdate(t *testing.T) {
	var d dirtyWord
	initial := d.get()
	if initial.Dirty {
		t.Fatalf("expected a fresh dirty word to start clean")
	}

	if !d.update(initial.toU64(), DirtyValue{Dirty: true, Phase: 5}) {
		t.Fatalf("expected update from the current value to succeed")
	}
	if got := d.get(); !got.Dirty || got.Phase != 5 {
		t.Fatalf("got %+v after update", got)
	}

	if d.update(initial.toU64(), DirtyValue{Dirty: true, Phase: 9}) {
		t.Fatalf("expected update keyed on a stale value to fail")
	}
}
