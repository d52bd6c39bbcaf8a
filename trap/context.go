// Package trap implements the user/kernel trap interface: the trap
// context layout and the decoding of scause into the causes cmd/kernel's
// run loop acts on (running the syscall table on a UserEnvCall, killing
// a faulting task, or rescheduling it on a timer tick).
package trap

// TrapContext is the 34-register save area (32 general-purpose
// registers plus sstatus and sepc) plus four kernel-side fields,
// mapped at config.TrapContext in every user address space.
type TrapContext struct {
	X             [32]uint64 // general-purpose registers, x[10] is a0 (syscall return/arg0)
	Sstatus       uint64
	Sepc          uint64
	KernelSatp    uint64
	KernelSp      uint64
	TrapHandlerPC uint64
}

// SetSP sets the saved stack pointer (x[2]/sp).
func (tc *TrapContext) SetSP(sp uint64) { tc.X[2] = sp }

// AppInitContext builds the initial TrapContext for a freshly loaded
// or exec'd user program: general registers zeroed, sepc at entry, sp
// at the top of the user stack, and the kernel-side fields needed to
// find our way back into the kernel on the next trap.
func AppInitContext(entry, userSP uint64, kernelSatp uint64, kernelSP uint64, trapHandlerPC uint64) *TrapContext {
	tc := &TrapContext{
		Sepc:          entry,
		KernelSatp:    kernelSatp,
		KernelSp:      kernelSP,
		TrapHandlerPC: trapHandlerPC,
	}
	tc.SetSP(userSP)
	return tc
}

// FromFrame reinterprets a raw frame of bytes (the TRAP_CONTEXT page)
// as a *TrapContext, the software analogue of trap_ctx_ppn.as_mut().
func FromFrame(frame []byte) *TrapContext {
	return (*TrapContext)(bytesAsTrapContext(frame))
}
