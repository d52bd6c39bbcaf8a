package proc

import (
	"sync"

	"sv39os/accnt"
	"sv39os/config"
	"sv39os/defs"
	"sv39os/fd"
	"sv39os/mem"
	"sv39os/trap"
	"sv39os/vm"
)

// TaskStatus is one of a task's four lifecycle states.
type TaskStatus int

const (
	UnInit TaskStatus = iota
	Ready
	Running
	Zombie
)

// Pass is a stride-scheduler pass value. BIG_STRIDE/priority is added
// to it every time the task is dispatched; comparison wraps around the
// BigStride/2 half-range so an overflowed pass still compares correctly
// against one that hasn't wrapped yet.
type Pass uint64

// Less reports whether p sorts before other under half-range wraparound
// comparison, mirroring TaskControlBlockInner's custom Ord for Pass.
func (p Pass) Less(other Pass) bool {
	if p < other {
		return other-p <= config.BigStride/2
	}
	return p-other > config.BigStride/2
}

// TCB is one task's control block: its pid, kernel stack, and the
// mutable state behind inner's lock (memory set, fd table, scheduling
// bookkeeping, family links).
type TCB struct {
	Pid         int
	KernelStack *KernelStack

	mu          sync.Mutex
	taskCtx     TaskContext
	status      TaskStatus
	memSet      *vm.MemorySet
	trapCtxPA   mem.Pa_t
	baseSize    uint64
	parent      *TCB
	children    []*TCB
	syscallCount [config.MaxSyscallNum]uint32
	acc         accnt.Accnt_t
	startNanos  int
	exitCode    int
	priority    int
	pass        Pass
	fds         *fd.Table
}

// NewTCB loads elfData as a fresh task: a new address space via
// vm.FromELF, a freshly allocated pid and kernel stack, console fds,
// and a trap context primed to start at the ELF entry point.
func NewTCB(elfData []byte, trampolinePPN vm.PPN, stdin, stdout *fd.Fd_t) (*TCB, defs.Err_t) {
	res, err := vm.FromELF(FrameAlloc, trampolinePPN, elfData)
	if err != 0 {
		return nil, err
	}
	pid := allocPid()
	ks := NewKernelStack(pid)
	t := &TCB{
		Pid:         pid,
		KernelStack: ks,
		taskCtx:     GotoTrapReturn(ks.Top()),
		status:      Ready,
		memSet:      res.MemorySet,
		trapCtxPA:   res.TrapContextPA,
		baseSize:    uint64(res.UserStackTop),
		priority:    16,
		fds:         fd.NewTable(stdin, stdout),
	}
	tc := t.trapCtx()
	*tc = *trap.AppInitContext(uint64(res.Entry), uint64(res.UserStackTop), KernelSpace.Token(), ks.Top(), 0)
	register(t)
	return t, 0
}

// trapCtx reinterprets the task's TRAP_CONTEXT physical frame as a
// *trap.TrapContext. Caller must hold t.mu.
func (t *TCB) trapCtx() *trap.TrapContext {
	return trap.FromFrame(vm.FrameBytes(t.trapCtxPA))
}

// TrapCtx exposes trapCtx for the kernel's dispatch loop.
func (t *TCB) TrapCtx() *trap.TrapContext {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trapCtx()
}

// TrapCtxPA returns the physical address of the task's TRAP_CONTEXT
// page, for a Hart implementation to activate before switching to it.
func (t *TCB) TrapCtxPA() mem.Pa_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.trapCtxPA
}

// UserSatp returns the satp value for this task's address space.
func (t *TCB) UserSatp() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.memSet.Token()
}

// IsZombie reports whether the task has exited and is waiting to be reaped.
func (t *TCB) IsZombie() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status == Zombie
}

// SetStatus transitions the task's lifecycle state.
func (t *TCB) SetStatus(s TaskStatus) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// EnsureStartTime records the task's first-scheduled instant, via the
// same Accnt_t every syscall-time accounting on this task goes through,
// if not already recorded.
func (t *TCB) EnsureStartTime() {
	t.mu.Lock()
	if t.startNanos == 0 {
		t.startNanos = t.acc.Now()
	}
	t.mu.Unlock()
}

// ElapsedMs reports milliseconds since the task was first scheduled,
// for the task_info syscall.
func (t *TCB) ElapsedMs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.startNanos == 0 {
		return 0
	}
	return t.acc.ElapsedMs(t.startNanos)
}

// Priority, SetPriority, Pass, AdvancePass, SyscallCounts,
// IncrSyscallCount, ExitCode, SetExitCode, Fds, Parent, Children,
// RemoveChild give the scheduler and syscall layer controlled access to
// the lock-protected fields.
func (t *TCB) Priority() int    { t.mu.Lock(); defer t.mu.Unlock(); return t.priority }
func (t *TCB) SetPriority(p int) {
	t.mu.Lock()
	t.priority = p
	t.mu.Unlock()
}
func (t *TCB) Pass() Pass { t.mu.Lock(); defer t.mu.Unlock(); return t.pass }
func (t *TCB) AdvancePass() {
	t.mu.Lock()
	t.pass += Pass(config.BigStride / t.priority)
	t.mu.Unlock()
}
func (t *TCB) SyscallCounts() *[config.MaxSyscallNum]uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &t.syscallCount
}
func (t *TCB) IncrSyscallCount(num int) {
	t.mu.Lock()
	if num >= 0 && num < len(t.syscallCount) {
		t.syscallCount[num]++
	}
	t.mu.Unlock()
}
func (t *TCB) ExitCode() int { t.mu.Lock(); defer t.mu.Unlock(); return t.exitCode }
func (t *TCB) SetExitCode(c int) {
	t.mu.Lock()
	t.exitCode = c
	t.mu.Unlock()
}
func (t *TCB) Fds() *fd.Table { return t.fds }
func (t *TCB) Parent() *TCB   { t.mu.Lock(); defer t.mu.Unlock(); return t.parent }
func (t *TCB) Children() []*TCB {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*TCB, len(t.children))
	copy(out, t.children)
	return out
}
func (t *TCB) RemoveChild(c *TCB) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, ch := range t.children {
		if ch == c {
			t.children = append(t.children[:i], t.children[i+1:]...)
			return
		}
	}
}
func (t *TCB) MemorySet() *vm.MemorySet { t.mu.Lock(); defer t.mu.Unlock(); return t.memSet }
func (t *TCB) TaskCtx() *TaskContext    { return &t.taskCtx }

// AllocFd installs f at the lowest free descriptor in t's fd table.
func (t *TCB) AllocFd(f *fd.Fd_t) int { return t.fds.Alloc(f) }

// Fork clones t into a new child task: a structural+content copy of
// the address space, a fresh pid/kernel stack, and a forked fd table.
func (t *TCB) Fork() (*TCB, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()

	childMS := vm.FromExistedUser(FrameAlloc, trampolinePPNOf(t.memSet), t.memSet)
	pid := allocPid()
	ks := NewKernelStack(pid)
	childFds, err := t.fds.Fork()
	if err != 0 {
		return nil, err
	}
	child := &TCB{
		Pid:         pid,
		KernelStack: ks,
		taskCtx:     GotoTrapReturn(ks.Top()),
		status:      Ready,
		memSet:      childMS,
		trapCtxPA:   childMS.TrapContextPA(),
		baseSize:    t.baseSize,
		parent:      t,
		priority:    16,
		fds:         childFds,
	}
	*child.trapCtx() = *t.trapCtx()
	child.trapCtx().KernelSp = ks.Top()
	t.children = append(t.children, child)
	register(child)
	return child, 0
}

// Exec replaces t's address space in place with a freshly loaded ELF
// image, keeping the same pid and kernel stack.
func (t *TCB) Exec(elfData []byte) defs.Err_t {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, err := vm.FromELF(FrameAlloc, trampolinePPNOf(t.memSet), elfData)
	if err != 0 {
		return err
	}
	t.memSet = res.MemorySet
	t.trapCtxPA = res.TrapContextPA
	*t.trapCtx() = *trap.AppInitContext(uint64(res.Entry), uint64(res.UserStackTop), KernelSpace.Token(), t.KernelStack.Top(), 0)
	return 0
}

// Spawn creates a brand-new child task running elfData (not a copy of
// t) and registers it with the scheduler, returning its pid.
func (t *TCB) Spawn(elfData []byte, stdin, stdout *fd.Fd_t) (int, defs.Err_t) {
	child, err := NewTCB(elfData, trampolinePPNOf(t.memSet), stdin, stdout)
	if err != 0 {
		return 0, err
	}
	t.mu.Lock()
	child.parent = t
	t.children = append(t.children, child)
	t.mu.Unlock()
	AddTask(child)
	return child.Pid, 0
}

// trampolinePPNOf recovers the physical page the trampoline is mapped
// to in ms, by translating the trampoline's own fixed VPN — every
// address space maps it identically.
func trampolinePPNOf(ms *vm.MemorySet) vm.PPN {
	pte, ok := ms.PageTable().Translate(vm.VA(config.Trampoline).Floor())
	if !ok {
		panic("proc: address space missing trampoline mapping")
	}
	return pte.PPN()
}
