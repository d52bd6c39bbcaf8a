package fs

import (
	"fmt"
	"sync"

	"sv39os/util"
)

// EasyFS owns the on-disk layout: superblock, the two bitmaps, and the
// block cache every read/write in the system eventually goes through.
// Every allocation/deallocation runs with the filesystem mutex (mu,
// taken through Lock by the vfs caller) held first, then (via the block
// cache) the individual block's lock — the ordering the concurrency
// model requires.
type EasyFS struct {
	mu         sync.Mutex
	Cache      *BlockCache
	Super      *Superblock_t
	InodeBmp   *Bitmap
	DataBmp    *Bitmap
	dataArea0  int // first absolute block id of the data area
}

// Create lays out a fresh filesystem on disk: superblock, both bitmaps,
// and an inode area sized to hold inodeCountHint inodes, then allocates
// inode 0 as the root directory. inodeCountHint is a plain inode count,
// not a block count: the inode area is sized directly off it
// (InodesPerBlock inodes per block, rounded up), so a small hint on a
// small disk doesn't force an inode area sized in whole inode-bitmap-
// block units (4096 inodes' worth) that wouldn't fit.
func Create(disk Disk_i, totalBlocks, inodeCountHint int) *EasyFS {
	cache := NewBlockCache(disk)
	sbBlk := cache.Get(0)
	sb := &Superblock_t{Data: sbBlk.Data}

	inodeAreaBlocks := util.Roundup(inodeCountHint*DiskInodeSize, BSIZE) / BSIZE
	if inodeAreaBlocks == 0 {
		inodeAreaBlocks = 1
	}
	sb.Initialize(totalBlocks, inodeAreaBlocks)
	sbBlk.Dirty = true
	cache.Put(sbBlk)

	efs := &EasyFS{
		Cache:     cache,
		Super:     sb,
		InodeBmp:  NewBitmap(sb.FirstInodeBitmapBlock(), sb.InodeBitmapBlocks()),
		DataBmp:   NewBitmap(sb.FirstDataBitmapBlock(), sb.DataBitmapBlocks()),
		dataArea0: sb.FirstDataAreaBlock(),
	}

	// zero every non-superblock block so bitmaps and inode area start clean.
	for i := 1; i < totalBlocks; i++ {
		b := cache.Get(i)
		for j := range b.Data {
			b.Data[j] = 0
		}
		b.Dirty = true
		cache.Put(b)
	}

	rootBit := efs.InodeBmp.Alloc(cache)
	if rootBit != 0 {
		panic("root inode must be inode 0")
	}
	blockID, offset := efs.diskInodePos(0)
	b := cache.Get(blockID)
	di := &DiskInode{Type: TypeDir, Nlink: 1}
	copy(b.Data[offset:offset+DiskInodeSize], di.Marshal())
	b.Dirty = true
	cache.Put(b)

	cache.SyncAll()
	return efs
}

// Open reads an existing filesystem's superblock off disk, verifying the
// magic number.
func Open(disk Disk_i) (*EasyFS, bool) {
	cache := NewBlockCache(disk)
	sbBlk := cache.Get(0)
	sb := &Superblock_t{Data: sbBlk.Data}
	valid := sb.Valid()
	cache.Put(sbBlk)
	if !valid {
		fmt.Printf("fs: bad superblock magic\n")
		return nil, false
	}
	return &EasyFS{
		Cache:     cache,
		Super:     sb,
		InodeBmp:  NewBitmap(sb.FirstInodeBitmapBlock(), sb.InodeBitmapBlocks()),
		DataBmp:   NewBitmap(sb.FirstDataBitmapBlock(), sb.DataBitmapBlocks()),
		dataArea0: sb.FirstDataAreaBlock(),
	}, true
}

// diskInodePos computes (block_id, offset_in_block) for inode_id inside
// the inode area.
func (fs *EasyFS) diskInodePos(inodeID int) (int, int) {
	blk := fs.Super.FirstInodeAreaBlock() + inodeID/InodesPerBlock
	off := (inodeID % InodesPerBlock) * DiskInodeSize
	return blk, off
}

// ExportDiskInodePos is diskInodePos exposed for package vfs, which keeps
// an inode's (block_id, block_offset) identity alongside its inode number.
func (fs *EasyFS) ExportDiskInodePos(inodeID int) (int, int) {
	return fs.diskInodePos(inodeID)
}

// Lock / Unlock expose the filesystem-wide mutex to the vfs package,
// matching the spec's "acquire the filesystem mutex to serialize
// allocation" rule for every mutating inode operation.
func (fs *EasyFS) Lock()   { fs.mu.Lock() }
func (fs *EasyFS) Unlock() { fs.mu.Unlock() }

// AllocInode allocates a fresh inode id, or -1 if the inode bitmap is
// exhausted.
func (fs *EasyFS) AllocInode() int {
	return fs.InodeBmp.Alloc(fs.Cache)
}

// AllocData allocates one data block and returns its absolute block id,
// or -1 if the data bitmap is exhausted.
func (fs *EasyFS) AllocData() int {
	bit := fs.DataBmp.Alloc(fs.Cache)
	if bit < 0 {
		return -1
	}
	return fs.dataArea0 + bit
}

// DeallocData frees a data block previously returned by AllocData.
func (fs *EasyFS) DeallocData(blockID int) {
	b := fs.Cache.Get(blockID)
	for i := range b.Data {
		b.Data[i] = 0
	}
	b.Dirty = true
	fs.Cache.Put(b)
	fs.DataBmp.Dealloc(fs.Cache, blockID-fs.dataArea0)
}

// DeallocInode frees an inode id previously returned by AllocInode.
func (fs *EasyFS) DeallocInode(inodeID int) {
	fs.InodeBmp.Dealloc(fs.Cache, inodeID)
}

// ReadDiskInode reads inode inodeID's on-disk image and calls f with it.
func (fs *EasyFS) ReadDiskInode(inodeID int, f func(*DiskInode)) {
	blockID, off := fs.diskInodePos(inodeID)
	b := fs.Cache.Get(blockID)
	defer fs.Cache.Put(b)
	di := UnmarshalDiskInode(b.Data[off : off+DiskInodeSize])
	f(di)
}

// ModifyDiskInode reads inode inodeID, lets f mutate it, and writes it
// back, marking the block dirty.
func (fs *EasyFS) ModifyDiskInode(inodeID int, f func(*DiskInode)) {
	blockID, off := fs.diskInodePos(inodeID)
	b := fs.Cache.Get(blockID)
	defer fs.Cache.Put(b)
	di := UnmarshalDiskInode(b.Data[off : off+DiskInodeSize])
	f(di)
	copy(b.Data[off:off+DiskInodeSize], di.Marshal())
	b.Dirty = true
}

// SyncAll flushes every dirty cached block to disk.
func (fs *EasyFS) SyncAll() {
	fs.Cache.SyncAll()
}
