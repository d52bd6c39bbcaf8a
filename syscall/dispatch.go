package syscall

import (
	"fmt"

	"sv39os/defs"
	"sv39os/fd"
	"sv39os/proc"
	"sv39os/vfs"
	"sv39os/vm"
)

// Signal tells the kernel's run loop what to do with the current task
// after a syscall returns, since this port has no literal assembly
// __switch to fall straight back into from inside the handler itself.
type Signal int

const (
	Continue Signal = iota // keep running; write the return value into a0 and resume
	Yield                  // re-queue as Ready and dispatch something else
	Exited                 // task is now a Zombie; dispatch something else
)

// Context carries the kernel-global state syscalls need beyond the
// calling task: the filesystem root (the only directory this flat
// layout has), a way to mint a fresh console fd pair for spawn, and
// the two synthetic devices reachable by reserved name instead of a
// real directory entry. All three are injected by cmd/kernel rather
// than imported directly (Stat/Prof only need the fd.Fdops_i shape,
// which kernel.StatDevice/ProfDevice already satisfy) so this package
// never has to depend on the kernel package that wires it up.
type Context struct {
	Root      *vfs.Inode
	NewStdFds func() (*fd.Fd_t, *fd.Fd_t)
	Stat      fd.Fdops_i
	Prof      fd.Fdops_i
}

// Dispatch runs syscall num on behalf of t with args a0..a3 (already
// pulled out of the trap context's x10..x13), incrementing t's
// per-syscall tally first as task_info requires. It returns the value
// to write into a0 (ignored when Signal is not Continue) and the
// control signal telling the run loop what happened.
func Dispatch(ctx *Context, t *proc.TCB, num int, a0, a1, a2, a3 uint64) (int64, Signal) {
	t.IncrSyscallCount(num)

	switch num {
	case defs.SYS_DUP:
		return sysDup(t, int(a0)), Continue
	case defs.SYS_OPEN:
		return sysOpen(ctx, t, a0, int(a1)), Continue
	case defs.SYS_CLOSE:
		return sysClose(t, int(a0)), Continue
	case defs.SYS_READ:
		return sysRead(t, int(a0), a1, int(a2)), Continue
	case defs.SYS_WRITE:
		return sysWrite(t, int(a0), a1, int(a2)), Continue
	case defs.SYS_LINKAT:
		return sysLinkat(ctx, t, a1, a3), Continue
	case defs.SYS_UNLINKAT:
		return sysUnlinkat(ctx, t, a1), Continue
	case defs.SYS_FSTAT:
		return sysFstat(t, int(a0), a1), Continue
	case defs.SYS_EXIT:
		proc.Exit(t, int(int32(a0)))
		return 0, Exited
	case defs.SYS_YIELD:
		return 0, Yield
	case defs.SYS_SET_PRIO:
		return sysSetPriority(t, int(a0)), Continue
	case defs.SYS_GET_TIME:
		return sysGetTimeOfDay(t, a0), Continue
	case defs.SYS_GETPID:
		return int64(t.Pid), Continue
	case defs.SYS_MUNMAP:
		return sysMunmap(t, a0, int(a1)), Continue
	case defs.SYS_FORK:
		return sysFork(t), Continue
	case defs.SYS_EXEC:
		return sysExec(ctx, t, a0), Continue
	case defs.SYS_MMAP:
		return sysMmap(t, a0, int(a1), int(a2)), Continue
	case defs.SYS_WAITPID:
		return sysWaitpid(t, int(int32(a0)), a1), Continue
	case defs.SYS_SPAWN:
		return sysSpawn(ctx, t, a0), Continue
	case defs.SYS_TASK_INFO:
		return sysTaskInfo(t, a0), Continue
	default:
		fmt.Printf("syscall: unknown syscall %d in task %d, terminating\n", num, t.Pid)
		proc.Exit(t, -1)
		return 0, Exited
	}
}

// userBytes reads length bytes out of t's address space at va.
func userBytes(t *proc.TCB, va uint64, length int) ([]byte, defs.Err_t) {
	chunks, err := vm.TranslatedByteBuffer(t.MemorySet().PageTable(), vm.VA(va), length)
	if err != 0 {
		return nil, err
	}
	buf := make([]byte, 0, length)
	for _, c := range chunks {
		buf = append(buf, c...)
	}
	return buf, 0
}

// putUserBytes writes data into t's address space at va.
func putUserBytes(t *proc.TCB, va uint64, data []byte) defs.Err_t {
	chunks, err := vm.TranslatedByteBuffer(t.MemorySet().PageTable(), vm.VA(va), len(data))
	if err != 0 {
		return err
	}
	off := 0
	for _, c := range chunks {
		n := copy(c, data[off:])
		off += n
	}
	return 0
}

func userString(t *proc.TCB, va uint64) (string, defs.Err_t) {
	return vm.TranslatedStr(t.MemorySet().PageTable(), vm.VA(va))
}
