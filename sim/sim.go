// Package sim wires the bus, devices, CPU and journal into one
// machine and drives it: there is exactly one hart, the run loop is a
// software fetch/decode/execute step, and every transition the driver
// makes is expressible as an undo in the journal instead of a one-way
// hardware trap into the host.
package sim

import (
	"errors"
	"fmt"
	"sync"

	"redplanet/bus"
	"redplanet/cpu"
	"redplanet/devices"
	"redplanet/journal"
)

// Memory map.
const (
	UARTBase  uint32 = 0x1000_0000
	UARTSize  uint32 = 0x8
	PowerBase uint32 = 0x0010_0000
	PowerSize uint32 = 0x4
	RAMBase   uint32 = 0x8000_0000
)

// DefaultEntry is the reset pc when the loader does not override it.
const DefaultEntry uint32 = RAMBase

// Errors returned by Machine operations.
var (
	ErrHalted           = errors.New("sim: machine is halted")
	ErrNoHistory        = journal.ErrNoHistory
	ErrDivergentGoto    = errors.New("sim: goto target unreachable, program halted first")
	ErrUnknownRegister  = errors.New("sim: unknown register index")
	ErrTerminal         = errors.New("sim: machine has quit")
)

// State is the driver's finite-state machine position.
type State uint8

const (
	Paused State = iota
	Running
	ReverseRunning
	Halted
	Terminal
)

func (s State) String() string {
	switch s {
	case Paused:
		return "paused"
	case Running:
		return "running"
	case ReverseRunning:
		return "reverse-running"
	case Halted:
		return "halted"
	case Terminal:
		return "terminal"
	default:
		return "unknown"
	}
}

// Config configures a freshly constructed Machine.
type Config struct {
	RAMSize   uint32
	Entry     uint32
	MaxFrames int
	Debug     bool
}

// Machine owns every piece of architectural state and is the single
// point of control for stepping, reversing and querying it. Its
// Breakpoints set, pause request and State are guarded by mu because
// debugger or UI goroutines arm breakpoints, call Pause and read State
// while a Continue runs (see ContinueAsync), even though the stepping
// loop itself is single-threaded cooperative.
type Machine struct {
	mu sync.Mutex

	CPU     *cpu.CPU
	Bus     *bus.Bus
	Journal *journal.Journal
	RAM     *devices.RAM
	UART    *devices.UART
	Power   *devices.Power

	state       State
	breakpoints map[uint32]struct{}
	pauseReq    bool
	debug       bool
}

// New constructs a Machine with RAM, UART and Power mapped at their
// spec-fixed addresses, reset pc at cfg.Entry (or DefaultEntry).
func New(cfg Config) *Machine {
	entry := cfg.Entry
	if entry == 0 {
		entry = DefaultEntry
	}

	b := bus.New()
	ram := devices.NewRAM(cfg.RAMSize)
	uart := devices.NewUART()
	power := devices.NewPower()

	b.Map(RAMBase, RAMBase+ram.Size(), "ram", ram)
	b.Map(UARTBase, UARTBase+UARTSize, "uart", uart)
	b.Map(PowerBase, PowerBase+PowerSize, "power", power)

	j := journal.New(cfg.MaxFrames)
	c := cpu.New(b, j, entry)

	return &Machine{
		CPU:         c,
		Bus:         b,
		Journal:     j,
		RAM:         ram,
		UART:        uart,
		Power:       power,
		state:       Paused,
		breakpoints: make(map[uint32]struct{}),
		debug:       cfg.Debug,
	}
}

func (m *Machine) logf(format string, args ...any) {
	if m.debug {
		fmt.Printf("sim: "+format+"\n", args...)
	}
}

// State reports the driver's current FSM position.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// --- journal.Target -----------------------------------------------------

func (m *Machine) UndoReg(index, old uint32) { m.CPU.UndoReg(index, old) }
func (m *Machine) UndoCSR(addr, old uint32)  { m.CPU.UndoCSR(addr, old) }
func (m *Machine) SetPC(pc uint32)           { m.CPU.SetPC(pc) }

func (m *Machine) UndoMem(addr uint32, old []byte) error {
	return m.RAM.UndoMem(addr, old)
}

func (m *Machine) UndoUartRHRPop(b byte, position int) error {
	return m.UART.UndoRHRPop(b, position)
}

func (m *Machine) UndoUartTxPush() error { return m.UART.UndoTxPush() }
func (m *Machine) UndoUartRxPush() error { return m.UART.UndoRxPush() }

func (m *Machine) UndoUartRxDrop(b byte, position int) error {
	return m.UART.UndoRxDrop(b, position)
}

// UndoDevShadow routes by slot name: the power device owns "halted",
// everything else belongs to the UART's shadow registers.
func (m *Machine) UndoDevShadow(addr uint32, slot string, old uint32) error {
	if slot == "halted" {
		return m.Power.UndoShadow(slot, old)
	}
	return m.UART.UndoShadow(slot, old)
}
