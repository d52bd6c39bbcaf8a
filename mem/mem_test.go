package mem

import "testing"

func TestAllocDealloc(t *testing.T) {
	fa := NewFrameAllocator(0, 3*PGSIZE)
	a, ok := fa.Alloc()
	if !ok || a != 0 {
		t.Fatalf("first alloc = %v,%v", a, ok)
	}
	b, ok := fa.Alloc()
	if !ok || b != PGSIZE {
		t.Fatalf("second alloc = %v,%v", b, ok)
	}
	if fa.Allocated() != 2 {
		t.Fatalf("allocated = %d, want 2", fa.Allocated())
	}
	fa.Dealloc(a)
	if fa.Allocated() != 1 {
		t.Fatalf("allocated after dealloc = %d, want 1", fa.Allocated())
	}
	c, ok := fa.Alloc()
	if !ok || c != a {
		t.Fatalf("recycled alloc = %v,%v, want %v", c, ok, a)
	}
}

func TestAllocExhaustion(t *testing.T) {
	fa := NewFrameAllocator(0, PGSIZE)
	if _, ok := fa.Alloc(); !ok {
		t.Fatal("expected first alloc to succeed")
	}
	if _, ok := fa.Alloc(); ok {
		t.Fatal("expected allocator to report exhaustion")
	}
}

func TestDoubleFreePanics(t *testing.T) {
	fa := NewFrameAllocator(0, PGSIZE)
	a, _ := fa.Alloc()
	fa.Dealloc(a)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	fa.Dealloc(a)
}

func TestFrameTrackerZeroed(t *testing.T) {
	fa := NewFrameAllocator(0, PGSIZE)
	ft, ok := NewFrameTracker(fa)
	if !ok {
		t.Fatal("alloc failed")
	}
	for i, b := range ft.Bytes() {
		if b != 0 {
			t.Fatalf("byte %d not zeroed", i)
		}
	}
}
