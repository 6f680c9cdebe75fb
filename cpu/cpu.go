// Package cpu implements the RV32I + Zicsr interpreter: decode,
// execute, the integer register file, the CSR file, and trap
// dispatch. It knows how to journal its own mutations (register and
// CSR writes) but leaves memory and device undo bookkeeping to the
// bus, whose Load/Store already hand back the right journal.UndoRecord
// — the CPU just appends whatever the bus gives it. The one invariant
// it enforces on every instruction is that x0 is never journaled and
// never keeps a written value.
package cpu

import (
	"redplanet/bus"
	"redplanet/journal"
)

// NumRegisters is the integer register file width.
const NumRegisters = 32

// CPU holds the architectural state of one hart: the integer register
// file, the program counter, and the CSR file, plus the collaborators
// (bus, journal) it needs to fetch/execute and to make every mutation
// reversible.
type CPU struct {
	X   [NumRegisters]uint32
	PC  uint32
	CSR *CSRFile

	Bus  *bus.Bus
	Jrnl *journal.Journal
}

// New creates a CPU with all registers zeroed, CSRs at reset value,
// and PC set to entry.
func New(b *bus.Bus, j *journal.Journal, entry uint32) *CPU {
	return &CPU{
		CSR:  NewCSRFile(),
		Bus:  b,
		Jrnl: j,
		PC:   entry,
	}
}

// UndoReg restores a register to a prior value. x0 is never touched:
// x[0] stays zero after every step.
func (c *CPU) UndoReg(index, old uint32) {
	if index == 0 {
		return
	}
	c.X[index] = old
}

// UndoCSR restores a CSR's raw value, bypassing write masking: the
// recorded Old value is already exactly what was there before.
func (c *CPU) UndoCSR(addr, old uint32) {
	c.CSR.Set(addr, old)
}

// SetPC restores the program counter. CPU is not a journal.Target by
// itself; the Target that owns the whole machine forwards its SetPC
// here, which is how RevertOne restores a frame's pc_before.
func (c *CPU) SetPC(pc uint32) {
	c.PC = pc
}

func (c *CPU) writeReg(index, value uint32) {
	if index == 0 {
		return
	}
	old := c.X[index]
	if old == value {
		return
	}
	_ = c.Jrnl.Record(journal.UndoRecord{Kind: journal.Reg, Index: index, Old: old})
	c.X[index] = value
}

func (c *CPU) writeCSRRaw(addr, value uint32) {
	old := c.CSR.Write(addr, value)
	_ = c.Jrnl.Record(journal.UndoRecord{Kind: journal.CSR, Addr: addr, Old: old})
}

// Step performs one fetch-decode-execute attempt, committing exactly
// one journal frame whether it retires normally or traps: a step is
// one attempt to fetch, decode and execute, ending either with
// successful retirement or with a trap dispatched.
func (c *CPU) Step() (*Trap, error) {
	pcBefore := c.PC
	if err := c.Jrnl.BeginFrame(pcBefore); err != nil {
		return nil, err
	}

	trap := c.execOne()
	if trap != nil {
		if err := c.Jrnl.SetTrap(journal.Trap{Cause: trap.Cause, Tval: trap.Tval}); err != nil {
			c.Jrnl.Abort()
			return nil, err
		}
	}

	for _, d := range c.CSR.IncrementCounters() {
		_ = c.Jrnl.Record(journal.UndoRecord{Kind: journal.CSR, Addr: d.Addr, Old: d.Old})
	}

	if err := c.Jrnl.Commit(c.PC); err != nil {
		return nil, err
	}
	return trap, nil
}

// execOne fetches, decodes and executes exactly one instruction,
// advancing c.PC and journaling as it goes. It returns a non-nil Trap
// if the step ended in an architectural exception.
func (c *CPU) execOne() *Trap {
	pc := c.PC
	if pc&0x3 != 0 {
		return c.raiseTrap(CauseInstructionAddrMisaligned, pc)
	}

	word, _, err := c.Bus.Load(pc, 4)
	if err != nil {
		return c.raiseTrap(CauseInstructionAccessFault, pc)
	}

	in := Decode(word)
	return c.execute(in)
}

// raiseTrap writes mcause/mtval/mepc, updates mstatus's interrupt-enable
// stack, and redirects pc to mtvec in direct mode (vectored mode is
// left unimplemented and treated as direct). It always returns a
// non-nil *Trap for the caller to attach to the frame.
func (c *CPU) raiseTrap(cause, tval uint32) *Trap {
	c.writeCSRRaw(CSRMepc, c.PC)
	c.writeCSRRaw(CSRMcause, cause)
	c.writeCSRRaw(CSRMtval, tval)

	old := c.CSR.Read(CSRMstatus)
	mie := (old >> 3) & 1
	next := old
	next &^= (1 << 7) | (1 << 3) | (3 << 11)
	next |= mie << 7  // MPIE <- MIE
	next |= 3 << 11   // MPP <- machine mode
	c.writeCSRRaw(CSRMstatus, next)

	mtvec := c.CSR.Read(CSRMtvec)
	c.PC = mtvec &^ 0x3

	return &Trap{Cause: cause, Tval: tval}
}

func (c *CPU) illegal() *Trap {
	return c.raiseTrap(CauseIllegalInstruction, c.PC)
}

// load reads width bytes at addr through the bus, journaling any undo
// record the device produced (only the UART's RHR register does).
func (c *CPU) load(addr uint32, width uint8) (uint32, error) {
	v, undo, err := c.Bus.Load(addr, width)
	if err != nil {
		return 0, err
	}
	if undo != nil {
		_ = c.Jrnl.Record(*undo)
	}
	return v, nil
}

// store writes width bytes of value at addr through the bus,
// journaling the pre-image (or device-supplied undo) it returns:
// every successful store surfaces the bytes it displaced, and the
// caller appends them as an undo record.
func (c *CPU) store(addr uint32, width uint8, value uint32) error {
	undo, err := c.Bus.Store(addr, width, value)
	if err != nil {
		return err
	}
	if undo != nil {
		_ = c.Jrnl.Record(*undo)
	}
	return nil
}

func asUint32(v int32) uint32 { return uint32(v) }

func asSigned(v uint32) int32 { return int32(v) }
