package devices

import (
	"fmt"
	"sync"

	"redplanet/bus"
	"redplanet/journal"
)

// Register offsets for the 16550 subset, relative to the UART's base
// address.
const (
	UartRegRHRTHR byte = 0 // Receiver Holding / Transmitter Holding (DLAB=0) or DLL (DLAB=1)
	UartRegIER    byte = 1 // Interrupt Enable Register (DLAB=0) or DLH (DLAB=1)
	UartRegISRFCR byte = 2 // Interrupt Status (read) / FIFO Control (write)
	UartRegLCR    byte = 3 // Line Control Register
	UartRegMCR    byte = 4 // Modem Control Register (shadow only, no modem lines modeled)
	UartRegLSR    byte = 5 // Line Status Register
	UartRegMSR    byte = 6 // Modem Status Register (shadow only)
	UartRegSCR    byte = 7 // Scratch Register
)

// LCR bits.
const (
	LCRDLAB byte = 1 << 7
)

// LSR bits: bit 0 is RX_READY, bit 5 is TX_IDLE.
const (
	LSRDataReady byte = 1 << 0
	LSRTxIdle    byte = 1 << 5
)

// ISR value reported when nothing is pending; this UART never raises
// interrupts (no interrupt controller is modeled), so it is always this.
const ISRNoInterruptPending byte = 0x01

// FIFO capacities. 16550A FIFOs are 16 bytes deep; RX overflow past
// this drops the oldest queued byte.
const (
	UartRXCapacity = 16
	UartTXCapacity = 16
)

// UART implements a 16550 register subset: an RX FIFO fed by the
// host, a TX FIFO drained by the host, and the handful of shadow
// registers (LCR/IER/FCR/divisor latch) real firmware pokes at during
// init.
type UART struct {
	mu sync.Mutex

	rx []byte // host -> guest
	tx []byte // guest -> host

	ier    byte
	isr    byte
	lcr    byte
	mcr    byte
	scr    byte
	dll    byte
	dlh    byte
	dlab   bool
}

// NewUART creates a UART with empty FIFOs and power-on register
// defaults.
func NewUART() *UART {
	return &UART{isr: ISRNoInterruptPending}
}

// Load implements bus.Device.
func (u *UART) Load(offset uint32, width uint8) (uint32, *journal.UndoRecord, error) {
	if width != 1 {
		return 0, nil, &bus.Fault{Kind: bus.FaultWidth, Addr: offset, Width: width}
	}
	u.mu.Lock()
	defer u.mu.Unlock()

	switch byte(offset) {
	case UartRegRHRTHR:
		if u.dlab {
			return uint32(u.dll), nil, nil
		}
		if len(u.rx) == 0 {
			return 0, nil, nil
		}
		b := u.rx[0]
		u.rx = u.rx[1:]
		return uint32(b), &journal.UndoRecord{Kind: journal.UartRHRPop, Byte: b, Position: 0}, nil
	case UartRegIER:
		if u.dlab {
			return uint32(u.dlh), nil, nil
		}
		return uint32(u.ier), nil, nil
	case UartRegISRFCR:
		return uint32(u.isr), nil, nil
	case UartRegLCR:
		return uint32(u.lcr), nil, nil
	case UartRegMCR:
		return uint32(u.mcr), nil, nil
	case UartRegLSR:
		return uint32(u.lsrValue()), nil, nil
	case UartRegMSR:
		return 0, nil, nil
	case UartRegSCR:
		return uint32(u.scr), nil, nil
	default:
		return 0, nil, fmt.Errorf("devices: UART unhandled read at offset 0x%x", offset)
	}
}

func (u *UART) lsrValue() byte {
	var v byte = LSRTxIdle // transmission is instantaneous from the guest's view
	if len(u.rx) > 0 {
		v |= LSRDataReady
	}
	return v
}

// Store implements bus.Device.
func (u *UART) Store(offset uint32, width uint8, value uint32) (*journal.UndoRecord, error) {
	if width != 1 {
		return nil, &bus.Fault{Kind: bus.FaultWidth, Addr: offset, Width: width}
	}
	val := byte(value)
	u.mu.Lock()
	defer u.mu.Unlock()

	switch byte(offset) {
	case UartRegRHRTHR:
		if u.dlab {
			old := u.dll
			u.dll = val
			return &journal.UndoRecord{Kind: journal.DevShadow, Addr: offset, Slot: "dll", Old: uint32(old)}, nil
		}
		if len(u.tx) >= UartTXCapacity {
			return nil, fmt.Errorf("devices: UART TX FIFO full")
		}
		u.tx = append(u.tx, val)
		return &journal.UndoRecord{Kind: journal.UartTxPush}, nil
	case UartRegIER:
		if u.dlab {
			old := u.dlh
			u.dlh = val
			return &journal.UndoRecord{Kind: journal.DevShadow, Addr: offset, Slot: "dlh", Old: uint32(old)}, nil
		}
		old := u.ier
		u.ier = val
		return &journal.UndoRecord{Kind: journal.DevShadow, Addr: offset, Slot: "ier", Old: uint32(old)}, nil
	case UartRegISRFCR:
		old := u.isr
		u.isr = ISRNoInterruptPending // FCR bits have no effect on the FIFOs; no interrupt is ever pending
		return &journal.UndoRecord{Kind: journal.DevShadow, Addr: offset, Slot: "isr", Old: uint32(old)}, nil
	case UartRegLCR:
		old := u.lcr
		u.lcr = val
		u.dlab = val&LCRDLAB != 0
		return &journal.UndoRecord{Kind: journal.DevShadow, Addr: offset, Slot: "lcr", Old: uint32(old)}, nil
	case UartRegMCR:
		old := u.mcr
		u.mcr = val
		return &journal.UndoRecord{Kind: journal.DevShadow, Addr: offset, Slot: "mcr", Old: uint32(old)}, nil
	case UartRegSCR:
		old := u.scr
		u.scr = val
		return &journal.UndoRecord{Kind: journal.DevShadow, Addr: offset, Slot: "scr", Old: uint32(old)}, nil
	case UartRegLSR, UartRegMSR:
		return nil, nil // read-only registers; writes are ignored
	default:
		return nil, fmt.Errorf("devices: UART unhandled write at offset 0x%x", offset)
	}
}

// PushRX delivers one host keystroke into the RX FIFO. This is a
// host-only operation, not a step; the caller is responsible for
// recording the returned undo records as a host-input journal event
// rather than as part of a step frame.
func (u *UART) PushRX(b byte) []journal.UndoRecord {
	u.mu.Lock()
	defer u.mu.Unlock()

	var recs []journal.UndoRecord
	if len(u.rx) >= UartRXCapacity {
		dropped := u.rx[0]
		u.rx = u.rx[1:]
		recs = append(recs, journal.UndoRecord{Kind: journal.UartRxDrop, Byte: dropped, Position: 0})
	}
	u.rx = append(u.rx, b)
	recs = append(recs, journal.UndoRecord{Kind: journal.UartRxPush, Byte: b})
	return recs
}

// DrainTX removes and returns every byte currently queued for
// transmission. Called by the host I/O bridge between steps, never
// from inside the stepping loop; the drained bytes are not journaled
// because once shown to the operator they cannot be "unsent".
func (u *UART) DrainTX() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.tx) == 0 {
		return nil
	}
	out := u.tx
	u.tx = nil
	return out
}

// RXLen reports the number of bytes currently queued for the guest to
// read, for diagnostics and tests.
func (u *UART) RXLen() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.rx)
}

// TXLen reports the number of bytes currently queued for the host to
// drain, for diagnostics and tests.
func (u *UART) TXLen() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.tx)
}

// State is a read-only, non-journaled snapshot of the UART's internal
// state, for sim.Snapshot and tests.
type State struct {
	RX                            []byte
	TX                            []byte
	IER, ISR, LCR, MCR, SCR       byte
	DLL, DLH                      byte
	DLAB                          bool
}

// State returns a copy of the UART's current internal state.
func (u *UART) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	rx := make([]byte, len(u.rx))
	copy(rx, u.rx)
	tx := make([]byte, len(u.tx))
	copy(tx, u.tx)
	return State{
		RX: rx, TX: tx,
		IER: u.ier, ISR: u.isr, LCR: u.lcr, MCR: u.mcr, SCR: u.scr,
		DLL: u.dll, DLH: u.dlh, DLAB: u.dlab,
	}
}

// --- journal.Target plumbing -------------------------------------------------

// UndoRHRPop reinserts a popped RHR byte at the head of the RX FIFO.
func (u *UART) UndoRHRPop(b byte, _ int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rx = append([]byte{b}, u.rx...)
	return nil
}

// UndoTxPush drops the most recently pushed TX byte.
func (u *UART) UndoTxPush() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.tx) == 0 {
		return fmt.Errorf("devices: UART undo TX push on empty FIFO")
	}
	u.tx = u.tx[:len(u.tx)-1]
	return nil
}

// UndoRxPush drops the most recently (host-)pushed RX byte.
func (u *UART) UndoRxPush() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(u.rx) == 0 {
		return fmt.Errorf("devices: UART undo RX push on empty FIFO")
	}
	u.rx = u.rx[:len(u.rx)-1]
	return nil
}

// UndoRxDrop reinserts a byte the RX FIFO dropped to make room for a
// host push, at the head of the FIFO.
func (u *UART) UndoRxDrop(b byte, _ int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rx = append([]byte{b}, u.rx...)
	return nil
}

// UndoShadow restores one of the UART's shadow registers by name.
func (u *UART) UndoShadow(slot string, old uint32) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	v := byte(old)
	switch slot {
	case "ier":
		u.ier = v
	case "isr":
		u.isr = v
	case "lcr":
		u.lcr = v
		u.dlab = v&LCRDLAB != 0
	case "mcr":
		u.mcr = v
	case "scr":
		u.scr = v
	case "dll":
		u.dll = v
	case "dlh":
		u.dlh = v
	default:
		return fmt.Errorf("devices: UART unknown shadow slot %q", slot)
	}
	return nil
}
