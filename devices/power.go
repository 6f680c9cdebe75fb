package devices

import (
	"sync"

	"redplanet/bus"
	"redplanet/journal"
)

// powerDownValue is the magic word that halts the simulator when
// stored to the power device.
const powerDownValue = 0x5555

// Power is the single-word halt device at 0x0010_0000. Any other
// value stored to it is ignored.
type Power struct {
	mu     sync.Mutex
	halted bool
}

// NewPower creates a Power device in its running state.
func NewPower() *Power {
	return &Power{}
}

// Halted reports whether the guest has powered itself down.
func (p *Power) Halted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.halted
}

// Load implements bus.Device. Reads are not architecturally specified
// for this device; it reads as zero. Only word-wide access is accepted.
func (p *Power) Load(offset uint32, width uint8) (uint32, *journal.UndoRecord, error) {
	if width != 4 {
		return 0, nil, &bus.Fault{Kind: bus.FaultWidth, Addr: offset, Width: width}
	}
	return 0, nil, nil
}

// Store implements bus.Device. Only word-wide access is accepted.
func (p *Power) Store(offset uint32, width uint8, value uint32) (*journal.UndoRecord, error) {
	if width != 4 {
		return nil, &bus.Fault{Kind: bus.FaultWidth, Addr: offset, Width: width}
	}
	if offset != 0 || value != powerDownValue {
		return nil, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.halted {
		return nil, nil
	}
	p.halted = true
	return &journal.UndoRecord{Kind: journal.DevShadow, Addr: offset, Slot: "halted", Old: 0}, nil
}

// UndoShadow clears the halted flag on reverse.
func (p *Power) UndoShadow(slot string, old uint32) error {
	if slot != "halted" {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.halted = old != 0
	return nil
}
