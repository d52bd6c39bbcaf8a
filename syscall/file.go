// Package syscall implements the syscall table: decoding a7/a0..a3,
// dispatching to the matching handler, and returning whatever belongs
// back in a0. It is the kernel/user boundary — every result here is a
// defs.Err_t-shaped int64, never a Go error.
package syscall

import (
	"sync"

	"sv39os/defs"
	"sv39os/stat"
	"sv39os/vfs"
)

// osInode adapts a vfs.Inode into an fd.Fdops_i: the VFS inode has no
// notion of an open file's cursor or access mode, so this is the thin
// OS-level wrapper every open() call allocates, one per open, sharing
// the underlying *vfs.Inode.
type osInode struct {
	mu               sync.Mutex
	inode            *vfs.Inode
	readable, writable bool
	offset           int
}

func newOSInode(n *vfs.Inode, readable, writable bool) *osInode {
	return &osInode{inode: n, readable: readable, writable: writable}
}

func (f *osInode) Read(dst []byte) (int, defs.Err_t) {
	if !f.readable {
		return 0, defs.EPERM
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.inode.ReadAt(f.offset, dst)
	f.offset += n
	return n, 0
}

func (f *osInode) Write(src []byte) (int, defs.Err_t) {
	if !f.writable {
		return 0, defs.EPERM
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.inode.WriteAt(f.offset, src)
	f.offset += n
	return n, 0
}

func (f *osInode) Close() defs.Err_t { return 0 }

// Reopen resets the cursor to the start, matching dup/fork's
// "duplicate as if freshly opened" semantics for this simple fs (there
// is no separate open-file-table entry to share an offset through).
func (f *osInode) Reopen() defs.Err_t {
	f.mu.Lock()
	f.offset = 0
	f.mu.Unlock()
	return 0
}

func (f *osInode) Stat() (int, bool, uint32, defs.Err_t) {
	ino, isDir, nlink := f.inode.Stat()
	return ino, isDir, nlink, 0
}

// fillStat renders an osInode's metadata into the on-wire Stat_t
// layout sys_fstat copies into user memory.
func fillStat(f *osInode, st *stat.Stat_t) {
	ino, isDir, nlink, _ := f.Stat()
	st.Wdev(0)
	st.Wino(uint64(ino))
	if isDir {
		st.Wmode(stat.ModeDir)
	} else {
		st.Wmode(stat.ModeFile)
	}
	st.Wnlink(nlink)
}
