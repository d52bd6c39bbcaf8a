package syscall

import (
	"sv39os/config"
	"sv39os/fs"
	"sv39os/proc"
	"sv39os/vfs"
	"sv39os/vm"
)

// sysSetPriority rejects priorities below 2 (a priority of 1 would
// starve every other task's stride comparison), otherwise installs it
// and echoes it back.
func sysSetPriority(t *proc.TCB, priority int) int64 {
	if priority < 2 {
		return -1
	}
	t.SetPriority(priority)
	return int64(priority)
}

// timeVal is the on-wire {sec, usec} pair gettimeofday copies into
// user memory, matching TimeVal's repr(C) layout.
type timeVal struct {
	Sec, Usec uint64
}

func (tv *timeVal) bytes() []byte {
	b := make([]byte, 16)
	putLE64(b[0:8], tv.Sec)
	putLE64(b[8:16], tv.Usec)
	return b
}

func putLE64(b []byte, v uint64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * uint(i)))
	}
}

// sysGetTimeOfDay writes the current wall-clock time, split into
// seconds and microseconds, at tsVA.
func sysGetTimeOfDay(t *proc.TCB, tsVA uint64) int64 {
	us := nowMicros()
	tv := timeVal{Sec: uint64(us / config.MicroPerSec), Usec: uint64(us % config.MicroPerSec)}
	if err := putUserBytes(t, tsVA, tv.bytes()); err != 0 {
		return -1
	}
	return 0
}

// sysTaskInfo copies out sys_task_info's on-wire layout: the task's
// status, its per-syscall-number tally, and milliseconds elapsed since
// it was first scheduled.
func sysTaskInfo(t *proc.TCB, tiVA uint64) int64 {
	buf := make([]byte, 4+4*config.MaxSyscallNum+8)
	putLE32(buf[0:4], uint32(proc.Running))
	counts := t.SyscallCounts()
	for i, c := range counts {
		putLE32(buf[4+4*i:8+4*i], c)
	}
	elapsed := uint64(t.ElapsedMs())
	putLE64(buf[4+4*config.MaxSyscallNum:], elapsed)
	if err := putUserBytes(t, tiVA, buf); err != 0 {
		return -1
	}
	return 0
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// sysFork clones t into a new ready task; the parent sees the child's
// pid, the child sees 0 in its own a0 (x[10]) the next time it runs.
func sysFork(t *proc.TCB) int64 {
	child, err := t.Fork()
	if err != 0 {
		return -1
	}
	child.TrapCtx().X[10] = 0
	proc.AddTask(child)
	return int64(child.Pid)
}

// readAllInode slurps an inode's entire contents, the way ufs.Read
// does, for exec/spawn's "load the whole binary" step.
func readAllInode(n *vfs.Inode) []byte {
	var out []byte
	buf := make([]byte, fs.BSIZE)
	for {
		k := n.ReadAt(len(out), buf)
		if k == 0 {
			break
		}
		out = append(out, buf[:k]...)
	}
	return out
}

// sysExec replaces t's address space in place with the ELF found at
// pathVA, resolved against the one root directory; the trap context is
// rebuilt from scratch by TCB.Exec, so this never "returns" into the
// program that called it.
func sysExec(ctx *Context, t *proc.TCB, pathVA uint64) int64 {
	path, err := userString(t, pathVA)
	if err != 0 {
		return -1
	}
	n, ferr := ctx.Root.Find(path)
	if ferr != 0 {
		return -1
	}
	if e := t.Exec(readAllInode(n)); e != 0 {
		return -1
	}
	return 0
}

// sysSpawn is fork+exec compounded: a brand-new child task running the
// ELF at pathVA, without copying the parent's address space.
func sysSpawn(ctx *Context, t *proc.TCB, pathVA uint64) int64 {
	path, err := userString(t, pathVA)
	if err != 0 {
		return -1
	}
	n, ferr := ctx.Root.Find(path)
	if ferr != 0 {
		return -1
	}
	stdin, stdout := ctx.NewStdFds()
	pid, serr := t.Spawn(readAllInode(n), stdin, stdout)
	if serr != 0 {
		return -1
	}
	return int64(pid)
}

// sysMmap builds a Framed, user-accessible mapping at [start, start+len)
// with the R/W/X bits from port (bit0=R, bit1=W, bit2=X). It refuses
// unaligned starts, a port outside [1,7], and any range overlapping an
// existing area.
func sysMmap(t *proc.TCB, start uint64, length, port int) int64 {
	if length == 0 {
		return 0
	}
	if start%config.PageSize != 0 || port&^0x7 != 0 || port&0x7 == 0 {
		return -1
	}
	ms := t.MemorySet()
	startVPN := vm.VA(start).Floor()
	endVPN := vm.VA(start + uint64(length)).Ceil()
	if ms.Overlaps(startVPN, endVPN) {
		return -1
	}
	var perm vm.MapPermission = vm.PermU
	if port&0x1 != 0 {
		perm |= vm.PermR
	}
	if port&0x2 != 0 {
		perm |= vm.PermW
	}
	if port&0x4 != 0 {
		perm |= vm.PermX
	}
	ms.InsertFramedArea(vm.VA(start), vm.VA(start+uint64(length)), perm)
	return 0
}

// sysMunmap frees the single area starting at start, refusing a start
// that isn't page aligned or a length that doesn't cover the whole
// area it falls in — this kernel only ever frees entire mmap'd areas.
func sysMunmap(t *proc.TCB, start uint64, length int) int64 {
	if start%config.PageSize != 0 {
		return -1
	}
	ms := t.MemorySet()
	startVPN := vm.VA(start).Floor()
	endVPN, ok := ms.AreaEndVPN(startVPN)
	if !ok {
		return -1
	}
	if endVPN != vm.VA(start+uint64(length)).Ceil() {
		return -1
	}
	if err := ms.RemoveAreaWithStartVPN(startVPN); err != 0 {
		return -1
	}
	return 0
}

// sysWaitpid reports -1 if t has no child matching pid at all, -2 if
// one exists but is still running, or collects the first matching
// zombie's exit code into exitCodeVA and returns its pid.
func sysWaitpid(t *proc.TCB, pid int, exitCodeVA uint64) int64 {
	childPid, code, err := proc.WaitPid(t, pid)
	if err != 0 {
		return -1
	}
	if childPid == -2 {
		return -2
	}
	if exitCodeVA != 0 {
		var b [4]byte
		putLE32(b[:], uint32(int32(code)))
		putUserBytes(t, exitCodeVA, b[:])
	}
	return int64(childPid)
}
