// Package mem implements the kernel's physical frame allocator: a bump
// cursor over untouched memory backed by a recycle stack of freed frames.
package mem

import (
	"fmt"

	"sv39os/config"
)

// Pa_t is a physical address.
type Pa_t uintptr

// PGSIZE is the page size in bytes.
const PGSIZE = config.PageSize

// Bytepg_t is one page's worth of bytes.
type Bytepg_t [PGSIZE]uint8

// Pg2bytes reinterprets a page-sized byte slice as a Bytepg_t pointer.
func Pg2bytes(pg []uint8) *Bytepg_t {
	if len(pg) != PGSIZE {
		panic("not a page")
	}
	return (*Bytepg_t)(pg)
}

// Page_i is the allocator interface frame consumers depend on, so tests
// can substitute a bounded fake without pulling in the real allocator.
type Page_i interface {
	AllocFrame() (Pa_t, bool)
	DeallocFrame(Pa_t)
}

// FrameAllocator is a bump allocator over [current, end) with a stack of
// recycled frames consulted first. It owns no lock of its own; callers
// serialize access.
type FrameAllocator struct {
	current   Pa_t
	end       Pa_t
	recycled  []Pa_t
	allocated int
}

// NewFrameAllocator creates an allocator over the page-aligned range
// [start, end).
func NewFrameAllocator(start, end Pa_t) *FrameAllocator {
	if start%PGSIZE != 0 || end%PGSIZE != 0 {
		panic("frame range not page aligned")
	}
	return &FrameAllocator{current: start, end: end}
}

// Alloc returns a fresh frame, or false if physical memory is exhausted.
// The recycle stack is consulted before the bump cursor, matching
// frame_alloc in the allocator this is ported from.
func (fa *FrameAllocator) Alloc() (Pa_t, bool) {
	if n := len(fa.recycled); n > 0 {
		pa := fa.recycled[n-1]
		fa.recycled = fa.recycled[:n-1]
		fa.allocated++
		return pa, true
	}
	if fa.current >= fa.end {
		fmt.Printf("mem: frame allocator exhausted\n")
		return 0, false
	}
	pa := fa.current
	fa.current += PGSIZE
	fa.allocated++
	return pa, true
}

// Dealloc returns a frame to the recycle stack. It panics on a
// misaligned frame, a frame at or above the bump cursor (never
// allocated), or a double free — all kernel bugs.
func (fa *FrameAllocator) Dealloc(pa Pa_t) {
	if pa%PGSIZE != 0 {
		panic("dealloc: misaligned frame")
	}
	if pa >= fa.current {
		panic("dealloc: frame was never allocated")
	}
	for _, r := range fa.recycled {
		if r == pa {
			panic("dealloc: double free")
		}
	}
	fa.recycled = append(fa.recycled, pa)
	fa.allocated--
}

// Allocated reports the number of frames currently checked out; exposed
// as a gauge through the D_STAT device.
func (fa *FrameAllocator) Allocated() int {
	return fa.allocated
}

// AllocFrame implements Page_i.
func (fa *FrameAllocator) AllocFrame() (Pa_t, bool) { return fa.Alloc() }

// DeallocFrame implements Page_i.
func (fa *FrameAllocator) DeallocFrame(pa Pa_t) { fa.Dealloc(pa) }

// Kallocer is the single kernel-wide frame allocator instance, installed
// by InitFrameAllocator, which kernel.Init calls at boot once the memory
// layout is known.
var Kallocer *FrameAllocator

// InitFrameAllocator installs Kallocer over [start, config.MemoryEnd).
func InitFrameAllocator(start Pa_t) {
	Kallocer = NewFrameAllocator(start, Pa_t(config.MemoryEnd))
}

// FrameTracker owns exactly one physical frame's backing storage and
// zeroes it on creation. In this Go port frames are heap-allocated
// Bytepg_t values rather than slices of one flat physical array (the
// kernel and the tasks it runs share one Go process's address space);
// PPN remains the frame's identity for allocator and page-table
// bookkeeping.
type FrameTracker struct {
	PPN     Pa_t
	backing *Bytepg_t
}

// NewFrameTracker allocates a frame via fa and zeroes it.
func NewFrameTracker(fa *FrameAllocator) (*FrameTracker, bool) {
	pa, ok := fa.Alloc()
	if !ok {
		return nil, false
	}
	ft := &FrameTracker{PPN: pa, backing: new(Bytepg_t)}
	return ft, true
}

// Bytes returns the frame's backing storage.
func (ft *FrameTracker) Bytes() []uint8 {
	if ft.backing == nil {
		ft.backing = new(Bytepg_t)
	}
	return ft.backing[:]
}
