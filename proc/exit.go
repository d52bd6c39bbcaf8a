package proc

import "sv39os/defs"

// InitTask is INITPROC: every exiting task's own children are
// reparented onto it, mirroring exit_current_and_run_next.
var InitTask *TCB

// Exit marks t a zombie carrying exitCode, frees its user data pages
// immediately, the trap-context page among them (its page table and
// kernel stack stay intact until WaitPid reaps it), and reparents t's
// own children onto InitTask.
func Exit(t *TCB, exitCode int) {
	t.mu.Lock()
	t.status = Zombie
	t.exitCode = exitCode
	children := t.children
	t.children = nil
	t.mu.Unlock()

	t.memSet.RecycleDataPages()

	if InitTask != nil && InitTask != t {
		InitTask.mu.Lock()
		for _, c := range children {
			c.mu.Lock()
			c.parent = InitTask
			c.mu.Unlock()
		}
		InitTask.children = append(InitTask.children, children...)
		InitTask.mu.Unlock()
	}
}

// WaitPid looks for a zombie child of t matching pid (-1 matches any
// child). On success it removes the child, releases its pid and
// kernel stack, and returns (childPid, exitCode, 0). It returns
// (-1, 0, ECHILD) if t has no matching child at all, or (-2, 0, 0) if
// a matching child exists but none have exited yet — the caller is
// expected to yield and poll again.
func WaitPid(t *TCB, pid int) (int, int, defs.Err_t) {
	t.mu.Lock()
	defer t.mu.Unlock()

	found := false
	for i, c := range t.children {
		if pid != -1 && c.Pid != pid {
			continue
		}
		found = true
		if c.IsZombie() {
			t.children = append(t.children[:i:i], t.children[i+1:]...)
			code := c.ExitCode()
			deallocPid(c.Pid)
			c.KernelStack.Release()
			unregister(c)
			return c.Pid, code, 0
		}
	}
	if !found {
		return -1, 0, defs.ECHILD
	}
	return -2, 0, 0
}
