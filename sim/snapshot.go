package sim

// Snapshot is a read-only, non-journaled copy of the full architectural
// state, structured for byte-for-byte comparison rather than formatted
// text. It is what a reversibility property test compares before and
// after a step/reverse-step pair, and what a TUI status panel would
// render.
type Snapshot struct {
	Registers [32]uint32
	PC        uint32
	CSR       map[uint32]uint32
	RAM       []byte
	UART      UARTSnapshot
	Halted    bool
	Step      uint64
}

// UARTSnapshot mirrors devices.State without importing the devices
// package's mutex-guarded type directly into comparisons.
type UARTSnapshot struct {
	RX, TX                  []byte
	IER, ISR, LCR, MCR, SCR byte
	DLL, DLH                byte
	DLAB                    bool
}

// Snapshot captures the machine's entire architectural state: every
// register, the CSR file, a full copy of RAM, the UART's shadow
// registers and FIFOs, and the halt flag. It takes no locks on the
// stepping path itself (the caller is expected to hold the machine
// paused), matching how the journal's own undo bookkeeping assumes no
// concurrent stepping.
func (m *Machine) Snapshot() Snapshot {
	ram, _ := m.RAM.RawRead(0, m.RAM.Size())
	uartState := m.UART.State()
	return Snapshot{
		Registers: m.CPU.X,
		PC:        m.CPU.PC,
		CSR:       m.CPU.CSR.Dump(),
		RAM:       ram,
		UART: UARTSnapshot{
			RX: uartState.RX, TX: uartState.TX,
			IER: uartState.IER, ISR: uartState.ISR, LCR: uartState.LCR,
			MCR: uartState.MCR, SCR: uartState.SCR,
			DLL: uartState.DLL, DLH: uartState.DLH, DLAB: uartState.DLAB,
		},
		Halted: m.Power.Halted(),
		Step:   m.Journal.CurrentStep(),
	}
}

// StepCount reports the number of steps committed so far, i.e. the
// journal's current_step.
func (m *Machine) StepCount() uint64 {
	return m.Journal.CurrentStep()
}

// Halted reports whether the power device has latched a halt. This is
// a convenience passthrough so callers outside this package don't need
// to reach through Machine.Power directly.
func (m *Machine) Halted() bool {
	return m.Power.Halted()
}

// JournalStats exposes the journal's retained-history bookkeeping so
// an operator-facing status line can report how far back reverse-step
// can still go before ErrNoHistory.
func (m *Machine) JournalStats() Stats {
	return Stats(m.Journal.Stats())
}

// Stats mirrors journal.Stats so callers outside this package don't
// need to import the journal package just to read a status line.
type Stats struct {
	CurrentStep        uint64
	RetainedFrames     uint64
	OldestRetainedStep uint64
	MaxFrames          int
}
