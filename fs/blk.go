// Package fs implements the block cache and on-disk EasyFS layout the
// VFS layer (package vfs) builds Inode operations on top of.
package fs

import (
	"container/list"
	"fmt"
	"sync"

	"sv39os/hashtable"
	"sv39os/limits"
)

// BSIZE is the size of one disk block in bytes.
const BSIZE = 512

// NCache bounds how many blocks the cache may hold at once (spec's
// bounded LRU).
const NCache = 16

var bdevDebug = false

// Bdevcmd_t enumerates disk request types.
type Bdevcmd_t uint

const (
	BDEV_WRITE Bdevcmd_t = 1
	BDEV_READ  Bdevcmd_t = 2
)

// BlkList_t is a small ordered collection of blocks making up one disk
// request; batching of more than one block is unused by EasyFS today but
// kept for parity with the request/ack plumbing below.
type BlkList_t struct {
	l *list.List
}

func MkBlkList() *BlkList_t {
	return &BlkList_t{l: list.New()}
}

func (bl *BlkList_t) PushBack(b *Bdev_block_t) { bl.l.PushBack(b) }

func (bl *BlkList_t) Apply(f func(*Bdev_block_t)) {
	for e := bl.l.Front(); e != nil; e = e.Next() {
		f(e.Value.(*Bdev_block_t))
	}
}

// Bdev_req_t describes one request to the disk driver; AckCh is closed
// (rather than sent on) once the driver has serviced every block in Blks,
// matching a synchronous disk that never reorders requests.
type Bdev_req_t struct {
	Cmd   Bdevcmd_t
	Blks  *BlkList_t
	AckCh chan bool
}

func MkRequest(blks *BlkList_t, cmd Bdevcmd_t) *Bdev_req_t {
	return &Bdev_req_t{Blks: blks, Cmd: cmd, AckCh: make(chan bool)}
}

// Disk_i is the block device the cache reads through and writes back to.
// Start must eventually close req.AckCh; Stats reports a short
// human-readable summary used for diagnostics.
type Disk_i interface {
	Start(*Bdev_req_t) bool
	Stats() string
}

// Bdev_block_t is one cached block: its number, its dirty flag, and the
// page of bytes backing it.
type Bdev_block_t struct {
	sync.Mutex
	Block int
	Dirty bool
	Data  *[BSIZE]uint8
	disk  Disk_i
}

func mkBlock(block int, disk Disk_i) *Bdev_block_t {
	b := &Bdev_block_t{Block: block, disk: disk, Data: new([BSIZE]uint8)}
	return b
}

func (b *Bdev_block_t) readFromDisk() {
	l := MkBlkList()
	l.PushBack(b)
	req := MkRequest(l, BDEV_READ)
	if b.disk.Start(req) {
		<-req.AckCh
	}
	if bdevDebug {
		fmt.Printf("fs: read block %d\n", b.Block)
	}
}

func (b *Bdev_block_t) writeToDisk() {
	l := MkBlkList()
	l.PushBack(b)
	req := MkRequest(l, BDEV_WRITE)
	if b.disk.Start(req) {
		<-req.AckCh
	}
	b.Dirty = false
	if bdevDebug {
		fmt.Printf("fs: wrote block %d\n", b.Block)
	}
}

// BlockCache is a bounded, write-through-on-evict cache of disk blocks.
// Lookup is O(1) via a hash index; eviction is FIFO among entries with no
// outstanding reference, matching the spec's bounded-LRU description: a
// new block is never admitted past NCache without first evicting one
// unreferenced victim.
type BlockCache struct {
	mu    sync.Mutex
	disk  Disk_i
	index *hashtable.Hashtable_t
	order *list.List // FIFO of *Bdev_block_t, front = oldest
	refs  map[int]int
	elems map[int]*list.Element
	quota limits.Sysatomic_t
}

// NewBlockCache creates a cache bounded to NCache entries, backed by disk.
func NewBlockCache(disk Disk_i) *BlockCache {
	bc := &BlockCache{
		disk:  disk,
		index: hashtable.MkHash(2 * NCache),
		order: list.New(),
		refs:  make(map[int]int),
		elems: make(map[int]*list.Element),
	}
	bc.quota.Given(NCache)
	return bc
}

// Get returns the block numbered n, reading it from disk on a cache
// miss. The caller must call Put when done so the block becomes eligible
// for eviction again.
func (bc *BlockCache) Get(n int) *Bdev_block_t {
	bc.mu.Lock()
	if v, ok := bc.index.Get(n); ok {
		b := v.(*Bdev_block_t)
		bc.refs[n]++
		bc.mu.Unlock()
		return b
	}
	bc.mu.Unlock()

	b := mkBlock(n, bc.disk)
	b.readFromDisk()

	bc.mu.Lock()
	defer bc.mu.Unlock()
	if v, ok := bc.index.Get(n); ok {
		// lost a race with a concurrent Get for the same block.
		bc.refs[n]++
		return v.(*Bdev_block_t)
	}
	bc.evictLocked()
	bc.index.Set(n, b)
	bc.elems[n] = bc.order.PushBack(b)
	bc.refs[n] = 1
	if !bc.quota.Taken(1) {
		panic("block cache over quota")
	}
	return b
}

// Put releases a reference taken by Get.
func (bc *BlockCache) Put(b *Bdev_block_t) {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	bc.refs[b.Block]--
	if bc.refs[b.Block] < 0 {
		panic("fs: over-released block")
	}
}

// evictLocked evicts the oldest unreferenced block, if the cache is full.
// Called with bc.mu held.
func (bc *BlockCache) evictLocked() {
	if bc.order.Len() < NCache {
		return
	}
	for e := bc.order.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Bdev_block_t)
		if bc.refs[b.Block] > 0 {
			continue
		}
		if b.Dirty {
			b.writeToDisk()
		}
		bc.order.Remove(e)
		delete(bc.elems, b.Block)
		bc.index.Del(b.Block)
		bc.quota.Give()
		return
	}
	panic("fs: block cache full of pinned blocks")
}

// SyncAll writes back every dirty block, used at filesystem shutdown.
func (bc *BlockCache) SyncAll() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	for e := bc.order.Front(); e != nil; e = e.Next() {
		b := e.Value.(*Bdev_block_t)
		if b.Dirty {
			b.writeToDisk()
		}
	}
}

// Len reports the number of resident blocks, used by the D_STAT gauge.
func (bc *BlockCache) Len() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.order.Len()
}
