package sim

import (
	"fmt"

	"redplanet/cpu"
	"redplanet/journal"
)

// ReadRegister returns the value of general register idx (0..31) or,
// for idx == 32, the program counter — the DWARF register numbering
// the GDB remote-serial protocol uses for RV32.
func (m *Machine) ReadRegister(idx uint32) (uint32, error) {
	switch {
	case idx < 32:
		return m.CPU.X[idx], nil
	case idx == 32:
		return m.CPU.PC, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownRegister, idx)
	}
}

// WriteRegister sets general register idx or the pc (idx == 32). This
// happens outside any step, so it is journaled as a host-input event
// exactly like a UART RX push: reversible, but not counted as a step.
// A write to x0 is accepted and silently discarded, matching ordinary
// instruction semantics.
func (m *Machine) WriteRegister(idx, value uint32) error {
	switch {
	case idx == 0:
		return nil
	case idx < 32:
		old := m.CPU.X[idx]
		if old == value {
			return nil
		}
		m.CPU.X[idx] = value
		m.Journal.RecordHostInput([]journal.UndoRecord{{Kind: journal.Reg, Index: idx, Old: old}})
		return nil
	case idx == 32:
		old := m.CPU.PC
		m.CPU.PC = value
		m.Journal.RecordHostInput([]journal.UndoRecord{{Kind: journal.PC, Old: old}})
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownRegister, idx)
	}
}

// ReadMemory reads length bytes starting at addr through the bus, one
// byte at a time. A read can itself mutate state (a range overlapping
// the UART's RHR register pops bytes), so any undo records produced
// are journaled as a single host-input event, same as WriteRegister.
func (m *Machine) ReadMemory(addr, length uint32) ([]byte, error) {
	out := make([]byte, 0, length)
	var undo []journal.UndoRecord
	for i := uint32(0); i < length; i++ {
		v, rec, err := m.Bus.Load(addr+i, 1)
		if err != nil {
			return nil, err
		}
		out = append(out, byte(v))
		if rec != nil {
			undo = append(undo, *rec)
		}
	}
	if len(undo) > 0 {
		m.Journal.RecordHostInput(undo)
	}
	return out, nil
}

// WriteMemory writes data starting at addr through the bus, one byte
// at a time, journaling the whole range as a single host-input event.
func (m *Machine) WriteMemory(addr uint32, data []byte) error {
	var undo []journal.UndoRecord
	for i, b := range data {
		rec, err := m.Bus.Store(addr+uint32(i), 1, uint32(b))
		if err != nil {
			return err
		}
		if rec != nil {
			undo = append(undo, *rec)
		}
	}
	if len(undo) > 0 {
		m.Journal.RecordHostInput(undo)
	}
	return nil
}

// Dump returns a read-only, non-journaled copy of length bytes
// starting at addr within RAM. This is what the RISCOF signature
// protocol calls to pull the final memory region for comparison,
// without disturbing reversibility.
func (m *Machine) Dump(addr, length uint32) ([]byte, error) {
	if addr < RAMBase || uint64(addr)+uint64(length) > uint64(RAMBase)+uint64(m.RAM.Size()) {
		return nil, fmt.Errorf("sim: dump range [0x%08x, 0x%08x) is not within ram", addr, addr+length)
	}
	return m.RAM.RawRead(addr-RAMBase, length)
}

// SingleStep executes one step on behalf of the GDB query surface's
// single-step request. It is identical to Step but named to match the
// GDB-facing vocabulary.
func (m *Machine) SingleStep() (*cpu.Trap, error) {
	return m.Step()
}

// Interrupt is the GDB query surface's request to stop a running
// continue, identical to Pause.
func (m *Machine) Interrupt() {
	m.Pause()
}
