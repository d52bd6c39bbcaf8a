package vm

import (
	"debug/elf"
	"fmt"

	"sv39os/config"
	"sv39os/defs"
	"sv39os/mem"
)

// MapType distinguishes identity-mapped kernel segments (Identical, no
// frame ownership) from user segments the MapArea owns frames for
// (Framed).
type MapType int

const (
	Identical MapType = iota
	Framed
)

// MapPermission is the user-visible subset of PTE flags a MapArea is
// created with (V is always implied, G and A/D are managed internally).
type MapPermission = PTEFlags

const (
	PermR MapPermission = PTE_R
	PermW MapPermission = PTE_W
	PermX MapPermission = PTE_X
	PermU MapPermission = PTE_U
)

// MapArea is one contiguous logical segment of an address space: a VPN
// range, a mapping discipline, and — for Framed areas — the frames it
// owns, keyed by VPN so fork can walk them in order.
type MapArea struct {
	startVPN, endVPN VPN
	mapType          MapType
	perm             MapPermission
	frames           map[VPN]*mem.FrameTracker
}

func NewMapArea(start, end VA, mapType MapType, perm MapPermission) *MapArea {
	return &MapArea{
		startVPN: start.Floor(),
		endVPN:   end.Ceil(),
		mapType:  mapType,
		perm:     perm,
		frames:   make(map[VPN]*mem.FrameTracker),
	}
}

func (a *MapArea) mapOne(pt *PageTable, fa *mem.FrameAllocator, vpn VPN) {
	var ppn PPN
	switch a.mapType {
	case Identical:
		ppn = PPN(vpn)
	case Framed:
		ft, ok := mem.NewFrameTracker(fa)
		if !ok {
			panic("out of memory mapping framed area")
		}
		RegisterFrame(ft.PPN, ft.Bytes())
		a.frames[vpn] = ft
		ppn = PPN(ft.PPN) / config.PageSize
	}
	pt.Map(vpn, ppn, a.perm|PTE_V)
}

func (a *MapArea) unmapOne(pt *PageTable, vpn VPN) {
	if a.mapType == Framed {
		if ft, ok := a.frames[vpn]; ok {
			UnregisterFrame(ft.PPN)
			delete(a.frames, vpn)
		}
	}
	pt.Unmap(vpn)
}

func (a *MapArea) mapAll(pt *PageTable, fa *mem.FrameAllocator) {
	for vpn := a.startVPN; vpn < a.endVPN; vpn++ {
		a.mapOne(pt, fa, vpn)
	}
}

func (a *MapArea) unmapAll(pt *PageTable) {
	for vpn := a.startVPN; vpn < a.endVPN; vpn++ {
		a.unmapOne(pt, vpn)
	}
}

// copyFrom mirrors writing data into a freshly mapped Framed area during
// ELF loading: data is copied page by page starting at the area's first
// VPN, exactly as MapArea::copy_data does.
func (a *MapArea) copyFrom(pt *PageTable, data []byte) {
	if a.mapType != Framed {
		panic("copy_data on non-framed area")
	}
	vpn := a.startVPN
	off := 0
	for off < len(data) {
		src := data[off:]
		if len(src) > config.PageSize {
			src = src[:config.PageSize]
		}
		ft := a.frames[vpn]
		dst := ft.Bytes()
		copy(dst, src)
		off += len(src)
		vpn++
	}
}

// cloneInto duplicates this area's structure and page contents into
// another page table, used by fork (from_existed_user's per-area copy).
func (a *MapArea) cloneInto(dstPT *PageTable, srcPT *PageTable, fa *mem.FrameAllocator) *MapArea {
	n := &MapArea{startVPN: a.startVPN, endVPN: a.endVPN, mapType: a.mapType, perm: a.perm, frames: make(map[VPN]*mem.FrameTracker)}
	for vpn := a.startVPN; vpn < a.endVPN; vpn++ {
		n.mapOne(dstPT, fa, vpn)
		if a.mapType == Framed {
			srcPTE, ok := srcPT.Translate(vpn)
			if !ok {
				panic("source vpn unmapped during fork")
			}
			srcBytes := frameBytes(mem.Pa_t(srcPTE.PPN()) * config.PageSize)
			dstPTE, _ := dstPT.Translate(vpn)
			dstBytes := frameBytes(mem.Pa_t(dstPTE.PPN()) * config.PageSize)
			copy(dstBytes, srcBytes)
		}
	}
	return n
}

// MemorySet is one task's (or the kernel's) complete address space: an
// ordered list of MapAreas plus the page table backing them.
type MemorySet struct {
	pt    *PageTable
	areas []*MapArea
	fa    *mem.FrameAllocator
}

func NewBare(fa *mem.FrameAllocator) *MemorySet {
	return &MemorySet{pt: NewPageTable(fa), fa: fa}
}

func (ms *MemorySet) Token() uint64 { return ms.pt.Token() }
func (ms *MemorySet) PageTable() *PageTable { return ms.pt }

// Push maps a new area and, if data is non-nil, copies it in — insert_framed_area+push combined, matching MemorySet::push.
func (ms *MemorySet) Push(area *MapArea, data []byte) {
	area.mapAll(ms.pt, ms.fa)
	ms.areas = append(ms.areas, area)
	if data != nil {
		area.copyFrom(ms.pt, data)
	}
}

// InsertFramedArea is the common case of Push with no initial data.
func (ms *MemorySet) InsertFramedArea(start, end VA, perm MapPermission) {
	ms.Push(NewMapArea(start, end, Framed, perm), nil)
}

// RemoveAreaWithStartVPN finds the area beginning at startVPN, unmaps it,
// and drops it from the set — used by munmap.
func (ms *MemorySet) RemoveAreaWithStartVPN(startVPN VPN) defs.Err_t {
	for i, a := range ms.areas {
		if a.startVPN == startVPN {
			a.unmapAll(ms.pt)
			ms.areas = append(ms.areas[:i], ms.areas[i+1:]...)
			return 0
		}
	}
	return defs.EINVAL
}

// AreaEndVPN reports the end VPN of the area starting at startVPN, so
// munmap can reject a request whose length doesn't cover the whole area
// (partial unmapping is unsupported) before it mutates anything.
func (ms *MemorySet) AreaEndVPN(startVPN VPN) (VPN, bool) {
	for _, a := range ms.areas {
		if a.startVPN == startVPN {
			return a.endVPN, true
		}
	}
	return 0, false
}

// Overlaps reports whether [startVPN, endVPN) intersects any existing
// area, used by mmap to refuse a range that would straddle or collide
// with one already present.
func (ms *MemorySet) Overlaps(startVPN, endVPN VPN) bool {
	for _, a := range ms.areas {
		if startVPN < a.endVPN && a.startVPN < endVPN {
			return true
		}
	}
	return false
}

// RecycleDataPages releases every Framed area's frames without touching
// the page-table frames themselves, matching recycle_data_pages: a
// zombie task keeps its page table (and TRAP_CONTEXT mapping) until
// waitpid reaps it, but its data frames are freed immediately at exit.
func (ms *MemorySet) RecycleDataPages() {
	for _, a := range ms.areas {
		if a.mapType == Framed {
			for vpn, ft := range a.frames {
				UnregisterFrame(ft.PPN)
				delete(a.frames, vpn)
			}
		}
	}
}

// mapTrampoline installs the single shared trampoline page identically
// in every address space; never owned by any MapArea.
func mapTrampoline(pt *PageTable, trampolinePPN PPN) {
	pt.Map(VA(config.Trampoline).Floor(), trampolinePPN, PTE_R|PTE_X)
}

// NewKernel builds the kernel's own address space: identity maps over
// .text/.rodata/.data/.bss/the remaining physical memory, plus the MMIO
// windows from config, plus the trampoline.
func NewKernel(fa *mem.FrameAllocator, trampolinePPN PPN, textStart, textEnd, rodataStart, rodataEnd, dataStart, dataEnd, bssStart, bssEnd, physEnd VA) *MemorySet {
	ms := NewBare(fa)
	mapTrampoline(ms.pt, trampolinePPN)
	ms.Push(NewMapArea(textStart, textEnd, Identical, PermR|PermX), nil)
	ms.Push(NewMapArea(rodataStart, rodataEnd, Identical, PermR), nil)
	ms.Push(NewMapArea(dataStart, dataEnd, Identical, PermR|PermW), nil)
	ms.Push(NewMapArea(bssStart, bssEnd, Identical, PermR|PermW), nil)
	ms.Push(NewMapArea(bssEnd, physEnd, Identical, PermR|PermW), nil)
	for _, w := range config.MMIO {
		ms.Push(NewMapArea(VA(w.Start), VA(w.Start+w.Len), Identical, PermR|PermW), nil)
	}
	return ms
}

// ELFLoadResult carries what cmd/kernel needs out of FromELF besides the
// address space itself.
type ELFLoadResult struct {
	MemorySet     *MemorySet
	UserStackTop  VA
	Entry         VA
	TrapContextPA mem.Pa_t
}

// FromELF builds a fresh user address space from an ELF image: one
// Framed area per PT_LOAD segment, a guard page, a user stack, the
// trap-context page, and the shared trampoline — mirroring
// MemorySet::from_elf.
func FromELF(fa *mem.FrameAllocator, trampolinePPN PPN, elfData []byte) (*ELFLoadResult, defs.Err_t) {
	f, err := elf.NewFile(byteReaderAt(elfData))
	if err != nil {
		return nil, defs.EINVAL
	}
	if f.Class != elf.ELFCLASS64 || f.Machine != elf.EM_RISCV {
		return nil, defs.EINVAL
	}
	ms := NewBare(fa)
	mapTrampoline(ms.pt, trampolinePPN)

	var maxEnd VA
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		start := VA(prog.Vaddr)
		var perm MapPermission = PermU
		if prog.Flags&elf.PF_R != 0 {
			perm |= PermR
		}
		if prog.Flags&elf.PF_W != 0 {
			perm |= PermW
		}
		if prog.Flags&elf.PF_X != 0 {
			perm |= PermX
		}
		data := make([]byte, prog.Filesz)
		if _, err := prog.ReadAt(data, 0); err != nil {
			return nil, defs.EINVAL
		}
		area := NewMapArea(start, VA(prog.Vaddr+prog.Memsz), Framed, perm)
		ms.Push(area, data)
		if end := VA(prog.Vaddr + prog.Memsz); end > maxEnd {
			maxEnd = end
		}
	}

	maxEndVPN := maxEnd.Ceil()
	userStackBottom := VA(uint64(maxEndVPN.VA()) + config.PageSize) // guard page
	userStackTop := VA(uint64(userStackBottom) + config.UserStackSize)
	ms.Push(NewMapArea(userStackBottom, userStackTop, Framed, PermR|PermW|PermU), nil)

	tcVA := VA(config.TrapContext)
	ms.Push(NewMapArea(tcVA, tcVA+config.PageSize, Framed, PermR|PermW), nil)
	tcPTE, _ := ms.pt.Translate(tcVA.Floor())

	return &ELFLoadResult{
		MemorySet:     ms,
		UserStackTop:  userStackTop,
		Entry:         VA(f.Entry),
		TrapContextPA: mem.Pa_t(tcPTE.PPN()) * config.PageSize,
	}, 0
}

// FromExistedUser deep-copies src's structure and page contents into a
// fresh address space, including a fresh trap-context page, matching
// from_existed_user. The trampoline is remapped, not copied, since it is
// never owned by either set.
func FromExistedUser(fa *mem.FrameAllocator, trampolinePPN PPN, src *MemorySet) *MemorySet {
	ms := NewBare(fa)
	mapTrampoline(ms.pt, trampolinePPN)
	for _, a := range src.areas {
		n := a.cloneInto(ms.pt, src.pt, fa)
		ms.areas = append(ms.areas, n)
	}
	return ms
}

// TrapContextPA looks up the physical address backing this set's
// TRAP_CONTEXT page; every user address space has exactly one.
func (ms *MemorySet) TrapContextPA() mem.Pa_t {
	pte, ok := ms.pt.Translate(VA(config.TrapContext).Floor())
	if !ok {
		panic("memory set has no trap context mapped")
	}
	return mem.Pa_t(pte.PPN()) * config.PageSize
}

func byteReaderAt(b []byte) *bytesReaderAt {
	return &bytesReaderAt{b: b}
}

type bytesReaderAt struct{ b []byte }

func (r *bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || int(off) > len(r.b) {
		return 0, fmt.Errorf("out of range")
	}
	n := copy(p, r.b[off:])
	if n < len(p) {
		return n, fmt.Errorf("short read")
	}
	return n, nil
}
