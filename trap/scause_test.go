package trap

import "testing"

func TestDecode(t *testing.T) {
	cases := []struct {
		scause uint64
		want   Cause
	}{
		{excUserEnvCall, UserEnvCall},
		{excStoreFault, StoreOrLoadPageFault},
		{excStorePageFault, StoreOrLoadPageFault},
		{excLoadPageFault, StoreOrLoadPageFault},
		{excIllegalInstruction, IllegalInstruction},
		{scauseInterruptBit | intSupervisorTimer, SupervisorTimer},
		{scauseInterruptBit | 1, Other},
		{99, Other},
	}
	for _, c := range cases {
		if got := Decode(c.scause); got != c.want {
			t.Errorf("Decode(%#x) = %v, want %v", c.scause, got, c.want)
		}
	}
}

func TestAppInitContext(t *testing.T) {
	tc := AppInitContext(0x1000, 0x2000, 0x3000, 0x4000, 0x5000)
	if tc.Sepc != 0x1000 || tc.X[2] != 0x2000 || tc.KernelSatp != 0x3000 || tc.KernelSp != 0x4000 || tc.TrapHandlerPC != 0x5000 {
		t.Fatalf("unexpected context: %+v", tc)
	}
}

func TestDisassembleIllegalInstruction(t *testing.T) {
	// addi x0, x0, 0 (nop), little-endian encoding.
	nop := []byte{0x13, 0x00, 0x00, 0x00}
	if got := DisassembleIllegalInstruction(nop); got == "" {
		t.Fatal("expected a non-empty disassembly of a well-formed instruction")
	}

	garbage := []byte{0xff, 0xff, 0xff, 0xff}
	if got := DisassembleIllegalInstruction(garbage); got == "" {
		t.Fatal("expected an <undecodable: ...> placeholder, not an empty string")
	}
}
