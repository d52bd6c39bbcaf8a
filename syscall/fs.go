package syscall

import (
	"sv39os/defs"
	"sv39os/fd"
	"sv39os/proc"
	"sv39os/stat"
)

// sysDup duplicates oldFd onto the lowest free descriptor, or returns
// -1 (EBADF) if oldFd isn't open.
func sysDup(t *proc.TCB, oldFd int) int64 {
	f := t.Fds().Get(oldFd)
	if f == nil {
		return -1
	}
	nf, err := fd.Copyfd(f)
	if err != 0 {
		return -1
	}
	return int64(t.AllocFd(nf))
}

// statDeviceName and profDeviceName are the reserved paths sysOpen
// recognizes ahead of any real directory lookup, the stand-in this
// flat filesystem has for a /dev-style device namespace: opening them
// returns the D_STAT/D_PROF synthetic devices instead of a vfs.Inode.
const (
	statDeviceName = ".stat"
	profDeviceName = ".prof"
)

// sysOpen resolves path in the root directory, honoring CREATE/TRUNC
// and the RDONLY/WRONLY/RDWR access mode, and installs the result as a
// fresh osInode-backed fd. The two reserved device names are checked
// first since they never correspond to a directory entry.
func sysOpen(ctx *Context, t *proc.TCB, pathVA uint64, flags int) int64 {
	path, err := userString(t, pathVA)
	if err != 0 {
		return -1
	}

	switch path {
	case statDeviceName:
		if ctx.Stat == nil {
			return -1
		}
		ctx.Stat.Reopen()
		return int64(t.AllocFd(&fd.Fd_t{Fops: ctx.Stat, Perms: fd.FD_READ}))
	case profDeviceName:
		if ctx.Prof == nil {
			return -1
		}
		ctx.Prof.Reopen()
		return int64(t.AllocFd(&fd.Fd_t{Fops: ctx.Prof, Perms: fd.FD_READ}))
	}

	n, ferr := ctx.Root.Find(path)
	if ferr != 0 {
		if flags&defs.O_CREATE == 0 {
			return -1
		}
		n, ferr = ctx.Root.Create(path)
		if ferr != 0 {
			return -1
		}
	} else if flags&defs.O_TRUNC != 0 {
		n.Clear()
	}

	readable := flags&defs.O_WRONLY == 0
	writable := flags&defs.O_WRONLY != 0 || flags&defs.O_RDWR != 0
	of := newOSInode(n, readable, writable)
	return int64(t.AllocFd(&fd.Fd_t{Fops: of, Perms: permsFor(readable, writable)}))
}

func permsFor(readable, writable bool) int {
	p := 0
	if readable {
		p |= fd.FD_READ
	}
	if writable {
		p |= fd.FD_WRITE
	}
	return p
}

// sysClose releases fdnum, or returns -1 if it wasn't open.
func sysClose(t *proc.TCB, fdnum int) int64 {
	f := t.Fds().Close(fdnum)
	if f == nil {
		return -1
	}
	if err := f.Fops.Close(); err != 0 {
		return -1
	}
	return 0
}

// sysRead reads up to length bytes from fdnum into the user buffer at
// bufVA.
func sysRead(t *proc.TCB, fdnum int, bufVA uint64, length int) int64 {
	f := t.Fds().Get(fdnum)
	if f == nil || f.Perms&fd.FD_READ == 0 {
		return -1
	}
	tmp := make([]byte, length)
	n, err := f.Fops.Read(tmp)
	if err != 0 {
		return -1
	}
	if err := putUserBytes(t, bufVA, tmp[:n]); err != 0 {
		return -1
	}
	return int64(n)
}

// sysWrite writes length bytes from the user buffer at bufVA to fdnum.
func sysWrite(t *proc.TCB, fdnum int, bufVA uint64, length int) int64 {
	f := t.Fds().Get(fdnum)
	if f == nil || f.Perms&fd.FD_WRITE == 0 {
		return -1
	}
	data, err := userBytes(t, bufVA, length)
	if err != 0 {
		return -1
	}
	n, werr := f.Fops.Write(data)
	if werr != 0 {
		return -1
	}
	return int64(n)
}

// sysFstat fills the Stat_t at statVA for fdnum. Matches Open
// Question (a): dev is written into the user buffer before fdnum is
// even checked, so a bad fd still leaves that partial write visible.
func sysFstat(t *proc.TCB, fdnum int, statVA uint64) int64 {
	var st stat.Stat_t
	st.Wdev(0)
	putUserBytes(t, statVA, st.Bytes())

	f := t.Fds().Get(fdnum)
	if f == nil {
		return -1
	}
	of, ok := f.Fops.(*osInode)
	if !ok {
		return -1
	}
	fillStat(of, &st)
	if err := putUserBytes(t, statVA, st.Bytes()); err != 0 {
		return -1
	}
	return 0
}

// sysLinkat adds newName as another directory entry for old, per Open
// Question (c): the syscall table reads oldpath from a1 and newpath
// from a3 (a0/a2 — the *at dirfds — are ignored, this kernel resolves
// everything against the one root directory).
func sysLinkat(ctx *Context, t *proc.TCB, oldVA, newVA uint64) int64 {
	old, err := userString(t, oldVA)
	if err != 0 {
		return -1
	}
	newName, err := userString(t, newVA)
	if err != 0 {
		return -1
	}
	if e := ctx.Root.Link(old, newName); e != 0 {
		return -1
	}
	return 0
}

// sysUnlinkat removes the directory entry at path, read from a1 (the
// dirfd in a0 is ignored, per Open Question (c)).
func sysUnlinkat(ctx *Context, t *proc.TCB, pathVA uint64) int64 {
	path, err := userString(t, pathVA)
	if err != 0 {
		return -1
	}
	if e := ctx.Root.Unlink(path); e != 0 {
		return -1
	}
	return 0
}
