// Package vm implements Sv39 page tables and the per-task memory set
// (logical segments) built on top of them.
package vm

import (
	"fmt"
	"sync"

	"sv39os/config"
	"sv39os/defs"
	"sv39os/mem"
)

const (
	vpnBits  = 9
	levelCnt = 3
)

// VPN is a virtual page number (virtual address >> 12).
type VPN uint64

// PPN is a physical page number (physical address >> 12).
type PPN uint64

// VA and PA are byte addresses; kept distinct from VPN/PPN so a shift is
// never accidentally skipped.
type VA uint64
type PA uint64

func (va VA) Floor() VPN { return VPN(va / config.PageSize) }
func (va VA) Ceil() VPN {
	if va == 0 {
		return 0
	}
	return VPN((uint64(va) + config.PageSize - 1) / config.PageSize)
}
func (va VA) PageOffset() uint64 { return uint64(va) % config.PageSize }

func (vpn VPN) VA() VA { return VA(uint64(vpn) * config.PageSize) }
func (ppn PPN) PA() PA { return PA(uint64(ppn) * config.PageSize) }
func (pa PA) PPN() PPN { return PPN(uint64(pa) / config.PageSize) }

// indexes splits a VPN into its three 9-bit Sv39 page-table indices,
// highest level first.
func (vpn VPN) indexes() [levelCnt]uint64 {
	v := uint64(vpn)
	var idx [levelCnt]uint64
	for i := levelCnt - 1; i >= 0; i-- {
		idx[i] = v & ((1 << vpnBits) - 1)
		v >>= vpnBits
	}
	return idx
}

// PTEFlags holds the low 8 flag bits of a page-table entry.
type PTEFlags uint8

const (
	PTE_V PTEFlags = 1 << 0
	PTE_R PTEFlags = 1 << 1
	PTE_W PTEFlags = 1 << 2
	PTE_X PTEFlags = 1 << 3
	PTE_U PTEFlags = 1 << 4
	PTE_G PTEFlags = 1 << 5
	PTE_A PTEFlags = 1 << 6
	PTE_D PTEFlags = 1 << 7
)

// PageTableEntry packs a PPN and flag byte the way the Sv39 hardware
// format does, even though nothing here ever hands it to real silicon.
type PageTableEntry struct {
	Bits uint64
}

func mkPTE(ppn PPN, flags PTEFlags) PageTableEntry {
	return PageTableEntry{Bits: uint64(ppn)<<10 | uint64(flags)}
}

func (pte PageTableEntry) PPN() PPN        { return PPN(pte.Bits >> 10) }
func (pte PageTableEntry) Flags() PTEFlags { return PTEFlags(pte.Bits & 0xff) }
func (pte PageTableEntry) IsValid() bool   { return pte.Flags()&PTE_V != 0 }
func (pte PageTableEntry) Readable() bool  { return pte.Flags()&PTE_R != 0 }
func (pte PageTableEntry) Writable() bool  { return pte.Flags()&PTE_W != 0 }
func (pte PageTableEntry) Executable() bool { return pte.Flags()&PTE_X != 0 }

// page is a page table's own backing store: 512 PTE slots. It is backed
// by a FrameTracker like any other kernel-owned page.
type page struct {
	entries [512]PageTableEntry
}

// PageTable owns its root frame and every intermediate frame it
// allocates for second/third-level tables; the frames a leaf PTE maps
// are owned by the MemorySet's MapArea, not by the PageTable itself.
type PageTable struct {
	mu     sync.Mutex
	root   *mem.FrameTracker
	frames []*mem.FrameTracker
	fa     *mem.FrameAllocator
	pages  map[mem.Pa_t]*page
}

func NewPageTable(fa *mem.FrameAllocator) *PageTable {
	root, ok := mem.NewFrameTracker(fa)
	if !ok {
		panic("no memory for root page table")
	}
	pt := &PageTable{root: root, fa: fa, pages: make(map[mem.Pa_t]*page)}
	pt.pages[root.PPN] = &page{}
	return pt
}

// FromToken always returns nil; it does not rebuild a PageTable from a
// satp-style token, and nothing in the tree calls it. In this port,
// address spaces are Go-heap objects, satp is simply the root frame's
// physical page number boxed into the low bits, and code that walks a
// task's page table is handed the real *PageTable directly.
func FromToken(token uint64) *PageTable {
	return nil
}

func (pt *PageTable) Token() uint64 {
	return 8<<60 | uint64(pt.root.PPN)/config.PageSize
}

func (pt *PageTable) findPTECreate(vpn VPN) *PageTableEntry {
	idx := vpn.indexes()
	ppn := pt.root.PPN
	for level := 0; level < levelCnt; level++ {
		pg := pt.pages[ppn]
		if pg == nil {
			panic("page table frame missing")
		}
		pte := &pg.entries[idx[level]]
		if level == levelCnt-1 {
			return pte
		}
		if !pte.IsValid() {
			ft, ok := mem.NewFrameTracker(pt.fa)
			if !ok {
				panic("no memory for page table frame")
			}
			pt.frames = append(pt.frames, ft)
			pt.pages[ft.PPN] = &page{}
			*pte = mkPTE(PPN(ft.PPN)/config.PageSize, PTE_V)
		}
		ppn = mem.Pa_t(pte.PPN()) * config.PageSize
	}
	panic("unreachable")
}

func (pt *PageTable) findPTE(vpn VPN) *PageTableEntry {
	idx := vpn.indexes()
	ppn := pt.root.PPN
	for level := 0; level < levelCnt; level++ {
		pg := pt.pages[ppn]
		if pg == nil {
			return nil
		}
		pte := &pg.entries[idx[level]]
		if level == levelCnt-1 {
			if !pte.IsValid() {
				return nil
			}
			return pte
		}
		if !pte.IsValid() {
			return nil
		}
		ppn = mem.Pa_t(pte.PPN()) * config.PageSize
	}
	return nil
}

// Map installs vpn -> ppn with the given flags. It panics if vpn is
// already mapped — remapping without an explicit Unmap is a kernel bug.
func (pt *PageTable) Map(vpn VPN, ppn PPN, flags PTEFlags) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pte := pt.findPTECreate(vpn)
	if pte.IsValid() {
		panic(fmt.Sprintf("vpn %#x already mapped", vpn))
	}
	*pte = mkPTE(ppn, flags|PTE_V)
}

// Unmap clears vpn's mapping. It panics if vpn was not mapped.
func (pt *PageTable) Unmap(vpn VPN) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pte := pt.findPTE(vpn)
	if pte == nil || !pte.IsValid() {
		panic(fmt.Sprintf("vpn %#x was never mapped", vpn))
	}
	*pte = PageTableEntry{}
}

// Translate returns the PTE mapping vpn, if any.
func (pt *PageTable) Translate(vpn VPN) (PageTableEntry, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pte := pt.findPTE(vpn)
	if pte == nil || !pte.IsValid() {
		return PageTableEntry{}, false
	}
	return *pte, true
}

// TranslateVA resolves a full virtual address to its physical address.
func (pt *PageTable) TranslateVA(va VA) (PA, bool) {
	pte, ok := pt.Translate(va.Floor())
	if !ok {
		return 0, false
	}
	return PA(uint64(pte.PPN())*config.PageSize + va.PageOffset()), true
}

// frameRegistry maps a frame's physical address to the byte slice
// backing it. The PageTable only knows about the frames it allocated
// itself (its intermediate tables); leaf frames live in the owning
// MapArea, so leaf lookups are routed through this registry.
var frameRegistry = struct {
	mu sync.Mutex
	m  map[mem.Pa_t][]uint8
}{m: make(map[mem.Pa_t][]uint8)}

// RegisterFrame records the byte storage backing a physical page so
// later translated-buffer lookups can find it by PPN. Called whenever a
// MapArea takes ownership of a frame.
func RegisterFrame(pa mem.Pa_t, backing []uint8) {
	frameRegistry.mu.Lock()
	frameRegistry.m[pa] = backing
	frameRegistry.mu.Unlock()
}

// UnregisterFrame drops a frame's byte storage from the registry.
func UnregisterFrame(pa mem.Pa_t) {
	frameRegistry.mu.Lock()
	delete(frameRegistry.m, pa)
	frameRegistry.mu.Unlock()
}

func frameBytes(pa mem.Pa_t) []uint8 {
	frameRegistry.mu.Lock()
	defer frameRegistry.mu.Unlock()
	return frameRegistry.m[pa]
}

// FrameBytes is frameBytes exposed for packages outside vm (proc's TCB
// needs it to reinterpret a task's TRAP_CONTEXT frame).
func FrameBytes(pa mem.Pa_t) []uint8 {
	return frameBytes(pa)
}

// TranslatedByteBuffer splits the user range [va, va+len) into one []byte
// per physical page it spans, mirroring translated_byte_buffer's
// page-at-a-time walk of a foreign address space.
func TranslatedByteBuffer(pt *PageTable, va VA, length int) ([][]byte, defs.Err_t) {
	if length < 0 {
		panic("negative length")
	}
	var out [][]byte
	start := va
	end := VA(uint64(va) + uint64(length))
	for start < end {
		startVPN := start.Floor()
		pte, ok := pt.Translate(startVPN)
		if !ok {
			return nil, defs.EINVAL
		}
		backing := frameBytes(mem.Pa_t(pte.PPN()) * config.PageSize)
		if backing == nil {
			return nil, defs.EINVAL
		}
		off := start.PageOffset()
		vpnEnd := VA((uint64(startVPN) + 1) * config.PageSize)
		var chunkEnd uint64
		if end < vpnEnd {
			chunkEnd = end.PageOffset()
		} else {
			chunkEnd = config.PageSize
		}
		out = append(out, backing[off:chunkEnd])
		start = vpnEnd
	}
	return out, 0
}

// TranslatedStr reads a NUL-terminated string out of user memory.
func TranslatedStr(pt *PageTable, va VA) (string, defs.Err_t) {
	var b []byte
	cur := va
	for {
		pa, ok := pt.TranslateVA(cur)
		if !ok {
			return "", defs.EINVAL
		}
		backing := frameBytes(mem.Pa_t(pa) / config.PageSize * config.PageSize)
		if backing == nil {
			return "", defs.EINVAL
		}
		c := backing[uint64(pa)%config.PageSize]
		if c == 0 {
			break
		}
		b = append(b, c)
		cur++
	}
	return string(b), 0
}
