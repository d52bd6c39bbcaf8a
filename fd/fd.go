// Package fd implements the per-task file descriptor table: an open fd
// is a permission mask plus a reference to whatever Fdops_i backs it
// (an open vfs.Inode, the console, or a pipe end).
package fd

import "sv39os/defs"

// File descriptor permission bits.
const (
	FD_READ  = 0x1
	FD_WRITE = 0x2
)

// Fdops_i is what an open file descriptor can do. Kept local (rather
// than imported from elsewhere) since this kernel has only one
// filesystem and one console, not a general vnode-switch layer.
type Fdops_i interface {
	Read(dst []byte) (int, defs.Err_t)
	Write(src []byte) (int, defs.Err_t)
	Close() defs.Err_t
	Reopen() defs.Err_t
	Stat() (ino int, isDir bool, nlink uint32, err defs.Err_t)
}

// Fd_t is one open file descriptor.
type Fd_t struct {
	Fops  Fdops_i
	Perms int
}

// Copyfd duplicates an open file descriptor by reopening its backing
// object, used by dup and fork.
func Copyfd(f *Fd_t) (*Fd_t, defs.Err_t) {
	nfd := &Fd_t{}
	*nfd = *f
	if err := nfd.Fops.Reopen(); err != 0 {
		return nil, err
	}
	return nfd, 0
}

// ClosePanic closes a descriptor the caller knows cannot fail to close
// (e.g. one held by the kernel itself, not a syscall handler).
func ClosePanic(f *Fd_t) {
	if f.Fops.Close() != 0 {
		panic("fd: close of kernel-owned descriptor failed")
	}
}

// Table is a task's sparse fd table. Index 2 (stderr) is never a
// distinct object: it is set to alias the Fd_t already installed at
// index 1 (stdout), matching this kernel's single-console design —
// there is no separate stderr stream to multiplex.
type Table struct {
	fds []*Fd_t
}

// NewTable builds an fd table with fd 0/1/2 wired to console, where fd
// 2 is the very same *Fd_t as fd 1.
func NewTable(stdin, stdout *Fd_t) *Table {
	t := &Table{fds: make([]*Fd_t, 3)}
	t.fds[0] = stdin
	t.fds[1] = stdout
	t.fds[2] = stdout
	return t
}

// Get returns the Fd_t at fd, or nil if fd is out of range or unused.
func (t *Table) Get(fdnum int) *Fd_t {
	if fdnum < 0 || fdnum >= len(t.fds) {
		return nil
	}
	return t.fds[fdnum]
}

// Alloc installs f at the lowest free descriptor number.
func (t *Table) Alloc(f *Fd_t) int {
	for i, slot := range t.fds {
		if slot == nil {
			t.fds[i] = f
			return i
		}
	}
	t.fds = append(t.fds, f)
	return len(t.fds) - 1
}

// Close clears fd's slot, returning the descriptor that was there (or
// nil if it was already empty).
func (t *Table) Close(fdnum int) *Fd_t {
	if fdnum < 0 || fdnum >= len(t.fds) {
		return nil
	}
	f := t.fds[fdnum]
	t.fds[fdnum] = nil
	return f
}

// Fork duplicates every live descriptor (fd 2's alias to fd 1 is
// preserved, not independently reopened) for a child task.
func (t *Table) Fork() (*Table, defs.Err_t) {
	nt := &Table{fds: make([]*Fd_t, len(t.fds))}
	for i, f := range t.fds {
		if f == nil {
			continue
		}
		if i == 2 && t.fds[1] == f {
			nt.fds[2] = nt.fds[1]
			continue
		}
		nf, err := Copyfd(f)
		if err != 0 {
			return nil, err
		}
		nt.fds[i] = nf
	}
	return nt, 0
}
