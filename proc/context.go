package proc

// TaskContext is the callee-saved register set a cooperative context
// switch preserves across __switch: return address, stack pointer,
// and the twelve s-registers. Kept as plain data — this Go port
// schedules tasks by direct function calls rather than a hand-written
// assembly switch, so TaskContext documents the layout a real
// trap_return-based switch would use without executing one.
type TaskContext struct {
	RA uint64
	SP uint64
	S  [12]uint64
}

// GotoTrapReturn builds the context a freshly created or forked task
// starts in: "return" lands at trap_return with sp at the top of the
// task's kernel stack.
func GotoTrapReturn(kernelStackTop uint64) TaskContext {
	return TaskContext{SP: kernelStackTop}
}
