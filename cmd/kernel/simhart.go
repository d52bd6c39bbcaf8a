package main

// simHart is the trap.Hart this binary wires in by default. Actually
// switching satp and resuming a user program on real RISC-V hardware
// (the __alltraps/__restore trampoline and the SBI-level boot entry)
// is outside what this port implements — spec's own boundary is the
// contract at that seam, not the hardware underneath it — so simHart
// exists to document exactly where a real implementation plugs in
// rather than to execute anything itself.
type simHart struct{}

func newSimHart() *simHart { return &simHart{} }

// RunUntilTrap panics: there is no emulated RISC-V core behind this
// binary to resume. A real deployment replaces simHart with one that
// programs satp, executes sret through the trampoline, and reports the
// scause/stval the hardware trap left behind.
func (*simHart) RunUntilTrap(satp uint64, trapCtxPA uint64) (scause, stval uint64) {
	panic("cmd/kernel: simHart has no RISC-V core to run; supply a real trap.Hart")
}
