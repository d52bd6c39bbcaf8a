package trap

// Hart is the boundary between this kernel and the real hardware (or an
// emulator standing in for it): switching satp to a task's address
// space, resuming it at its saved TrapContext, and running until
// control traps back into supervisor mode. The __alltraps/__restore
// trampoline and the boot entry stub that would implement this for
// actual RISC-V silicon are out of scope here — only the contract is
// specified, so callers are expected to supply their own Hart.
type Hart interface {
	// RunUntilTrap activates satp and jumps to the user program via the
	// TrapContext stored at trapCtxPA, returning once a trap brings
	// control back to supervisor mode. It reports the scause and stval
	// values the trap left behind.
	RunUntilTrap(satp uint64, trapCtxPA uint64) (scause, stval uint64)
}
