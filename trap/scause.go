package trap

import (
	"fmt"

	"golang.org/x/arch/riscv64/riscv64asm"
)

// Cause classifies a decoded scause value into the handful of trap
// reasons this kernel cares about.
type Cause int

const (
	UserEnvCall Cause = iota
	StoreOrLoadPageFault
	IllegalInstruction
	SupervisorTimer
	Other
)

// scause's top bit marks an interrupt rather than an exception; the
// remaining bits are the cause code, matching the RISC-V privileged
// spec's encoding.
const scauseInterruptBit = uint64(1) << 63

// Supervisor-mode exception codes this kernel handles explicitly.
const (
	excStoreFault         = 7
	excStorePageFault     = 15
	excLoadPageFault      = 13
	excIllegalInstruction = 2
	excUserEnvCall        = 8
)

const intSupervisorTimer = 5

// Decode classifies a raw scause register value.
func Decode(scause uint64) Cause {
	isInterrupt := scause&scauseInterruptBit != 0
	code := scause &^ scauseInterruptBit
	if isInterrupt {
		if code == intSupervisorTimer {
			return SupervisorTimer
		}
		return Other
	}
	switch code {
	case excUserEnvCall:
		return UserEnvCall
	case excStoreFault, excStorePageFault, excLoadPageFault:
		return StoreOrLoadPageFault
	case excIllegalInstruction:
		return IllegalInstruction
	default:
		return Other
	}
}

// DisassembleIllegalInstruction decodes the 4 raw bytes at the
// faulting instruction (as captured in stval, or read from the user
// image by the caller) for the diagnostic logged before a task is
// killed with IllegalInstruction.
func DisassembleIllegalInstruction(raw []byte) string {
	inst, err := riscv64asm.Decode(raw)
	if err != nil {
		return fmt.Sprintf("<undecodable: %v>", err)
	}
	return inst.String()
}
