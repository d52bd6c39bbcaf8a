package proc

import (
	"sync"

	"sv39os/trap"
)

// processor tracks the one task presently running on this (single,
// explicitly modeled) CPU. It replaces the teacher's runtime.Gptr/CPUHint
// goroutine-local lookup with a plain guarded field: this kernel has no
// real hardware cores to hint at, so "current task" is just state.
type processor struct {
	mu      sync.Mutex
	current *TCB
	idle    TaskContext
}

var proc_ processor

// TakeCurrentTask removes and returns the task presently bound to the
// processor, leaving it idle. Used by the scheduler loop before it goes
// looking for the next task to run.
func TakeCurrentTask() *TCB {
	proc_.mu.Lock()
	defer proc_.mu.Unlock()
	t := proc_.current
	proc_.current = nil
	return t
}

// CurrentTask returns the task presently bound to the processor without
// taking it, or nil if the processor is idle.
func CurrentTask() *TCB {
	proc_.mu.Lock()
	defer proc_.mu.Unlock()
	return proc_.current
}

// Dispatch binds t to the processor as the running task; called by the
// scheduler loop right before switching to it.
func Dispatch(t *TCB) {
	proc_.mu.Lock()
	proc_.current = t
	proc_.mu.Unlock()
	t.SetStatus(Running)
}

// IdleTaskCtx returns the processor's own scheduling context, the
// target of every GotoTrapReturn-less switch back into the dispatch
// loop once a task yields or exits.
func IdleTaskCtx() *TaskContext {
	return &proc_.idle
}

// CurrentUserSatp returns the satp token for the currently running
// task's address space; callers must only call this with a task bound.
func CurrentUserSatp() uint64 {
	t := CurrentTask()
	if t == nil {
		panic("proc: no current task")
	}
	return t.UserSatp()
}

// CurrentTrapCtx returns the currently running task's trap context.
func CurrentTrapCtx() *trap.TrapContext {
	t := CurrentTask()
	if t == nil {
		panic("proc: no current task")
	}
	return t.TrapCtx()
}

// RunTasks is the scheduler's main loop: repeatedly fetch the
// lowest-pass ready task, dispatch it, and run it to its next
// yield/exit via the supplied runOne callback (the kernel's actual
// switch-to-user-then-back-to-trap-handler sequence), mirroring
// run_tasks in task/processor.rs without a literal __switch.
func RunTasks(runOne func(t *TCB)) {
	for {
		t := FetchTask()
		if t == nil {
			return
		}
		Dispatch(t)
		runOne(t)
		proc_.mu.Lock()
		proc_.current = nil
		proc_.mu.Unlock()
	}
}
