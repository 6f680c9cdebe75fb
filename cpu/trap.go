package cpu

// Trap cause codes this core can raise. Values match the standard
// RISC-V privileged architecture encoding (interrupt bit clear =
// exception); this core never sets the interrupt bit since it raises
// no interrupts of its own (no timer/external interrupt source is
// modeled).
const (
	CauseInstructionAddrMisaligned uint32 = 0
	CauseInstructionAccessFault    uint32 = 1
	CauseIllegalInstruction        uint32 = 2
	CauseBreakpoint                uint32 = 3
	CauseLoadAddrMisaligned        uint32 = 4
	CauseLoadAccessFault           uint32 = 5
	CauseStoreAddrMisaligned       uint32 = 6
	CauseStoreAccessFault          uint32 = 7
	CauseEnvironmentCallFromM      uint32 = 11
)

// Trap describes the architectural exception a Step ended with. It is
// never a Go error the host sees: it is routed through mtvec inside
// the step and reported out-of-band only for diagnostics (the GDB
// query surface, the TUI status line).
type Trap struct {
	Cause uint32
	Tval  uint32
}
