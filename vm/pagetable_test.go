package vm

import (
	"testing"

	"sv39os/config"
	"sv39os/mem"
)

func newTestAllocator() *mem.FrameAllocator {
	return mem.NewFrameAllocator(0, 64*config.PageSize)
}

func TestMapUnmapTranslate(t *testing.T) {
	fa := newTestAllocator()
	pt := NewPageTable(fa)
	vpn := VPN(0x123)
	pt.Map(vpn, 7, PTE_R|PTE_W)
	pte, ok := pt.Translate(vpn)
	if !ok {
		t.Fatal("expected mapping to be present")
	}
	if pte.PPN() != 7 {
		t.Fatalf("ppn = %v, want 7", pte.PPN())
	}
	if !pte.Readable() || !pte.Writable() || pte.Executable() {
		t.Fatalf("unexpected flags %v", pte.Flags())
	}
	pt.Unmap(vpn)
	if _, ok := pt.Translate(vpn); ok {
		t.Fatal("expected mapping to be gone after unmap")
	}
}

func TestMapTwicePanics(t *testing.T) {
	fa := newTestAllocator()
	pt := NewPageTable(fa)
	pt.Map(1, 1, PTE_R)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic remapping a mapped vpn")
		}
	}()
	pt.Map(1, 2, PTE_R)
}

func TestUnmapUnmappedPanics(t *testing.T) {
	fa := newTestAllocator()
	pt := NewPageTable(fa)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic unmapping an unmapped vpn")
		}
	}()
	pt.Unmap(5)
}

func TestFramedAreaRoundTrip(t *testing.T) {
	fa := newTestAllocator()
	ms := NewBare(fa)
	start := VA(0x1000)
	end := VA(0x3000)
	ms.InsertFramedArea(start, end, PermR|PermW|PermU)

	data := []byte("hello world")
	chunks, err := TranslatedByteBuffer(ms.pt, start, len(data))
	if err != 0 {
		t.Fatalf("translate failed: %v", err)
	}
	ub := &UserBuffer{chunks: chunks}
	if n := ub.Uiowrite(data); n != len(data) {
		t.Fatalf("wrote %d bytes, want %d", n, len(data))
	}

	chunks2, err := TranslatedByteBuffer(ms.pt, start, len(data))
	if err != 0 {
		t.Fatalf("translate failed: %v", err)
	}
	back := make([]byte, len(data))
	ub2 := &UserBuffer{chunks: chunks2}
	if n := ub2.Uioread(back); n != len(data) {
		t.Fatalf("read %d bytes, want %d", n, len(data))
	}
	if string(back) != string(data) {
		t.Fatalf("got %q, want %q", back, data)
	}
}

func TestRemoveAreaWithStartVPN(t *testing.T) {
	fa := newTestAllocator()
	ms := NewBare(fa)
	start := VA(0x1000)
	end := VA(0x2000)
	ms.InsertFramedArea(start, end, PermR|PermW|PermU)
	if err := ms.RemoveAreaWithStartVPN(start.Floor()); err != 0 {
		t.Fatalf("remove failed: %v", err)
	}
	if _, ok := ms.pt.Translate(start.Floor()); ok {
		t.Fatal("expected area's mapping to be gone")
	}
	if err := ms.RemoveAreaWithStartVPN(start.Floor()); err == 0 {
		t.Fatal("expected error removing an already-removed area")
	}
}
