// Package vfs implements the named, directory-aware operations
// (find/create/link/unlink/read/write/clear/stat) syscalls use, layered
// on top of package fs's block cache and on-disk EasyFS structures.
package vfs

import (
	"sv39os/defs"
	"sv39os/fs"
	"sv39os/ustr"
)

// NameLen is the maximum filename length; DirEntry packs a NUL-terminated
// name into NameLen bytes followed by a 4-byte inode number.
const (
	NameLen  = 28
	DirentSz = NameLen + 4
)

// DirEntry is one 32-byte directory entry.
type DirEntry struct {
	Name  [NameLen]byte
	Inode uint32
}

func newDirEntry(name string, inode uint32) DirEntry {
	if len(name) >= NameLen {
		panic("name too long")
	}
	var d DirEntry
	copy(d.Name[:], name)
	d.Inode = inode
	return d
}

// nameString decodes the NUL-terminated name field via ustr, the same
// NUL-truncation helper the kernel uses for every other on-disk or
// user-supplied path it has to bound, rather than a bespoke scan here.
func (d *DirEntry) nameString() string {
	return ustr.MkUstrSlice(d.Name[:]).String()
}

func (d *DirEntry) marshal() []byte {
	buf := make([]byte, DirentSz)
	copy(buf, d.Name[:])
	buf[NameLen] = byte(d.Inode)
	buf[NameLen+1] = byte(d.Inode >> 8)
	buf[NameLen+2] = byte(d.Inode >> 16)
	buf[NameLen+3] = byte(d.Inode >> 24)
	return buf
}

func unmarshalDirEntry(buf []byte) DirEntry {
	var d DirEntry
	copy(d.Name[:], buf[:NameLen])
	d.Inode = uint32(buf[NameLen]) | uint32(buf[NameLen+1])<<8 | uint32(buf[NameLen+2])<<16 | uint32(buf[NameLen+3])<<24
	return d
}

// Inode is a VFS handle: an immutable (block_id, block_offset) identity
// plus a shared reference to the filesystem it lives in. The root inode
// (inode id 0) is the only directory this filesystem ever has.
type Inode struct {
	InodeID     int
	blockID     int
	blockOffset int
	fs          *fs.EasyFS
}

// Root returns the VFS handle for the filesystem's root directory.
func Root(f *fs.EasyFS) *Inode {
	return newInode(0, f)
}

func newInode(inodeID int, f *fs.EasyFS) *Inode {
	blockID, off := f.ExportDiskInodePos(inodeID)
	return &Inode{InodeID: inodeID, blockID: blockID, blockOffset: off, fs: f}
}

func (n *Inode) readDiskInode(f func(*fs.DiskInode)) {
	n.fs.ReadDiskInode(n.InodeID, f)
}

func (n *Inode) modifyDiskInode(f func(*fs.DiskInode)) {
	n.fs.ModifyDiskInode(n.InodeID, f)
}

// IsDir / IsFile report the inode's on-disk type.
func (n *Inode) IsDir() (b bool) {
	n.readDiskInode(func(di *fs.DiskInode) { b = di.IsDir() })
	return
}
func (n *Inode) IsFile() (b bool) {
	n.readDiskInode(func(di *fs.DiskInode) { b = di.IsFile() })
	return
}

// Nlink returns the inode's current hard-link count.
func (n *Inode) Nlink() (l uint32) {
	n.readDiskInode(func(di *fs.DiskInode) { l = di.Nlink })
	return
}

func (n *Inode) findInodeID(name string, di *fs.DiskInode) (int, bool) {
	if !di.IsDir() {
		panic("find on a non-directory")
	}
	count := int(di.Size) / DirentSz
	buf := make([]byte, DirentSz)
	for i := 0; i < count; i++ {
		if got := di.ReadAt(n.fs.Cache, i*DirentSz, buf); got != DirentSz {
			panic("short dirent read")
		}
		d := unmarshalDirEntry(buf)
		if d.nameString() == name {
			return int(d.Inode), true
		}
	}
	return 0, false
}

func (n *Inode) findEntryIndex(name string, di *fs.DiskInode) (int, bool) {
	if !di.IsDir() {
		panic("find on a non-directory")
	}
	count := int(di.Size) / DirentSz
	buf := make([]byte, DirentSz)
	for i := 0; i < count; i++ {
		di.ReadAt(n.fs.Cache, i*DirentSz, buf)
		d := unmarshalDirEntry(buf)
		if d.nameString() == name {
			return i, true
		}
	}
	return 0, false
}

// Find looks up name in the directory n and returns its inode handle.
func (n *Inode) Find(name string) (*Inode, defs.Err_t) {
	n.fs.Lock()
	defer n.fs.Unlock()
	var id int
	var ok bool
	n.readDiskInode(func(di *fs.DiskInode) { id, ok = n.findInodeID(name, di) })
	if !ok {
		return nil, defs.ENOENT
	}
	return newInode(id, n.fs), 0
}

func (n *Inode) increaseSize(newSize uint32, di *fs.DiskInode) {
	if newSize < di.Size {
		return
	}
	need := di.BlocksNumNeeded(newSize)
	blocks := make([]uint32, need)
	for i := range blocks {
		b := n.fs.AllocData()
		if b < 0 {
			panic("out of data blocks growing inode")
		}
		blocks[i] = uint32(b)
	}
	di.IncreaseSize(newSize, blocks, n.fs.Cache)
}

// Create makes a new regular file named name in directory n, failing if
// it already exists.
func (n *Inode) Create(name string) (*Inode, defs.Err_t) {
	n.fs.Lock()
	defer n.fs.Unlock()
	var exists bool
	n.readDiskInode(func(di *fs.DiskInode) { _, exists = n.findInodeID(name, di) })
	if exists {
		return nil, defs.EEXIST
	}
	newID := n.fs.AllocInode()
	if newID < 0 {
		return nil, defs.ENOSPC
	}
	n.fs.ModifyDiskInode(newID, func(di *fs.DiskInode) {
		di.Type = fs.TypeFile
		di.Nlink = 1
	})
	n.modifyDiskInode(func(di *fs.DiskInode) {
		count := int(di.Size) / DirentSz
		newSize := uint32((count + 1) * DirentSz)
		n.increaseSize(newSize, di)
		d := newDirEntry(name, uint32(newID))
		di.WriteAt(n.fs.Cache, count*DirentSz, d.marshal())
	})
	n.fs.SyncAll()
	return newInode(newID, n.fs), 0
}

// Link adds a new directory entry `newName` pointing at the inode
// currently named `old`, and bumps its link count. It rejects old==new
// before even checking whether old exists — a deliberate quirk mirrored
// from the original syscall layer.
func (n *Inode) Link(old, newName string) defs.Err_t {
	if old == newName {
		return defs.EEXIST
	}
	n.fs.Lock()
	defer n.fs.Unlock()
	var id int
	var ok bool
	n.readDiskInode(func(di *fs.DiskInode) { id, ok = n.findInodeID(old, di) })
	if !ok {
		return defs.ENOENT
	}
	n.modifyDiskInode(func(di *fs.DiskInode) {
		count := int(di.Size) / DirentSz
		newSize := uint32((count + 1) * DirentSz)
		n.increaseSize(newSize, di)
		d := newDirEntry(newName, uint32(id))
		di.WriteAt(n.fs.Cache, count*DirentSz, d.marshal())
	})
	n.fs.ModifyDiskInode(id, func(di *fs.DiskInode) { di.Nlink++ })
	n.fs.SyncAll()
	return 0
}

// swapRemove removes directory entry entryIdx by copying the last entry
// over it and shrinking the directory's size by one entry; it disturbs
// insertion order by design. It returns the inode number the removed
// entry referenced.
func (n *Inode) swapRemove(entryIdx int, di *fs.DiskInode) uint32 {
	offset := entryIdx * DirentSz
	lastOffset := int(di.Size) - DirentSz
	buf := make([]byte, DirentSz)
	di.ReadAt(n.fs.Cache, offset, buf)
	removed := unmarshalDirEntry(buf)
	di.ReadAt(n.fs.Cache, lastOffset, buf)
	di.WriteAt(n.fs.Cache, offset, buf)
	di.Size -= DirentSz
	return removed.Inode
}

// Unlink removes the directory entry named path; if the target inode's
// link count drops to zero, its data blocks and inode slot are freed.
func (n *Inode) Unlink(path string) defs.Err_t {
	n.fs.Lock()
	defer n.fs.Unlock()
	var idx int
	var ok bool
	n.readDiskInode(func(di *fs.DiskInode) { idx, ok = n.findEntryIndex(path, di) })
	if !ok {
		return defs.ENOENT
	}
	var targetID uint32
	n.modifyDiskInode(func(di *fs.DiskInode) { targetID = n.swapRemove(idx, di) })
	n.fs.ModifyDiskInode(int(targetID), func(di *fs.DiskInode) {
		di.Nlink--
		if di.Nlink == 0 {
			freed := di.ClearSize(n.fs.Cache)
			for _, blk := range freed {
				n.fs.DeallocData(int(blk))
			}
			n.fs.DeallocInode(int(targetID))
		}
	})
	n.fs.SyncAll()
	return 0
}

// Ls lists the names in directory n, in on-disk order.
func (n *Inode) Ls() []string {
	n.fs.Lock()
	defer n.fs.Unlock()
	var names []string
	n.readDiskInode(func(di *fs.DiskInode) {
		count := int(di.Size) / DirentSz
		buf := make([]byte, DirentSz)
		for i := 0; i < count; i++ {
			di.ReadAt(n.fs.Cache, i*DirentSz, buf)
			d := unmarshalDirEntry(buf)
			names = append(names, d.nameString())
		}
	})
	return names
}

// ReadAt reads from this inode's data into buf, returning bytes read.
func (n *Inode) ReadAt(offset int, buf []byte) int {
	n.fs.Lock()
	defer n.fs.Unlock()
	var got int
	n.readDiskInode(func(di *fs.DiskInode) { got = di.ReadAt(n.fs.Cache, offset, buf) })
	return got
}

// WriteAt writes buf to this inode's data at offset, growing the inode
// first if needed, and returns bytes written.
func (n *Inode) WriteAt(offset int, buf []byte) int {
	n.fs.Lock()
	defer n.fs.Unlock()
	var wrote int
	n.modifyDiskInode(func(di *fs.DiskInode) {
		n.increaseSize(uint32(offset+len(buf)), di)
		wrote = di.WriteAt(n.fs.Cache, offset, buf)
	})
	n.fs.SyncAll()
	return wrote
}

// Clear frees all of this inode's data blocks and resets its size to 0.
func (n *Inode) Clear() {
	n.fs.Lock()
	defer n.fs.Unlock()
	n.modifyDiskInode(func(di *fs.DiskInode) {
		freed := di.ClearSize(n.fs.Cache)
		for _, blk := range freed {
			n.fs.DeallocData(int(blk))
		}
	})
	n.fs.SyncAll()
}

// Stat reports inode id, type, and link count.
func (n *Inode) Stat() (ino int, isDir bool, nlink uint32) {
	n.fs.Lock()
	defer n.fs.Unlock()
	n.readDiskInode(func(di *fs.DiskInode) {
		isDir = di.IsDir()
		nlink = di.Nlink
	})
	return n.InodeID, isDir, nlink
}
