// Package bus routes loads and stores by physical address to either
// the RAM backing store or a memory-mapped device over a flat 32-bit
// physical address space. Every successful store surfaces the undo
// information the journal needs instead of being fire-and-forget.
package bus

import (
	"fmt"

	"redplanet/journal"
)

// FaultKind distinguishes why a bus access failed.
type FaultKind uint8

const (
	// FaultUnmapped means no region covers the address.
	FaultUnmapped FaultKind = iota
	// FaultWidth means the region exists but refuses this access width.
	FaultWidth
)

// Fault is returned by Load/Store when an access cannot be completed.
// The CPU turns this into an architectural trap; it is never meant to
// escape to the host.
type Fault struct {
	Kind FaultKind
	Addr uint32
	Width uint8
}

func (f *Fault) Error() string {
	switch f.Kind {
	case FaultWidth:
		return fmt.Sprintf("bus: width %d unsupported at 0x%08x", f.Width, f.Addr)
	default:
		return fmt.Sprintf("bus: unmapped address 0x%08x", f.Addr)
	}
}

// Device is anything that can be mapped onto the bus: RAM, the UART,
// the power device. offset is region-local (address - region start).
//
// Load may return a non-nil undo record when the read itself mutates
// state (the UART's RHR pop is the only such case in this module);
// pure reads return (value, nil, nil).
type Device interface {
	Load(offset uint32, width uint8) (value uint32, undo *journal.UndoRecord, err error)
	Store(offset uint32, width uint8, value uint32) (undo *journal.UndoRecord, err error)
}

type region struct {
	start, end uint32 // half-open [start, end)
	name       string
	device     Device
}

// Bus is a static, sorted set of disjoint address regions.
type Bus struct {
	regions []region
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Map registers a device over [start, end). Panics on overlap with an
// already-registered region, since the address map is fixed and
// disjoint once construction finishes.
func (b *Bus) Map(start, end uint32, name string, dev Device) {
	if end <= start {
		panic(fmt.Sprintf("bus: empty or inverted region %s [0x%08x, 0x%08x)", name, start, end))
	}
	for _, r := range b.regions {
		if start < r.end && r.start < end {
			panic(fmt.Sprintf("bus: region %s [0x%08x,0x%08x) overlaps existing region %s [0x%08x,0x%08x)",
				name, start, end, r.name, r.start, r.end))
		}
	}
	b.regions = append(b.regions, region{start: start, end: end, name: name, device: dev})
	// Keep regions sorted by start address so find() can binary search.
	for i := len(b.regions) - 1; i > 0 && b.regions[i].start < b.regions[i-1].start; i-- {
		b.regions[i], b.regions[i-1] = b.regions[i-1], b.regions[i]
	}
}

// find performs a binary search over the sorted region table.
func (b *Bus) find(addr uint32) (region, bool) {
	lo, hi := 0, len(b.regions)
	for lo < hi {
		mid := (lo + hi) / 2
		r := b.regions[mid]
		switch {
		case addr < r.start:
			hi = mid
		case addr >= r.end:
			lo = mid + 1
		default:
			return r, true
		}
	}
	return region{}, false
}

// Load reads width bytes (1, 2, or 4) at addr.
func (b *Bus) Load(addr uint32, width uint8) (uint32, *journal.UndoRecord, error) {
	r, ok := b.find(addr)
	if !ok {
		return 0, nil, &Fault{Kind: FaultUnmapped, Addr: addr, Width: width}
	}
	return r.device.Load(addr-r.start, width)
}

// Store writes width bytes (1, 2, or 4) at addr.
func (b *Bus) Store(addr uint32, width uint8, value uint32) (*journal.UndoRecord, error) {
	r, ok := b.find(addr)
	if !ok {
		return nil, &Fault{Kind: FaultUnmapped, Addr: addr, Width: width}
	}
	return r.device.Store(addr-r.start, width, value)
}

// RegionName returns the name of the region containing addr, for
// diagnostics (e.g. the GDB query surface's memory dump).
func (b *Bus) RegionName(addr uint32) (string, bool) {
	r, ok := b.find(addr)
	if !ok {
		return "", false
	}
	return r.name, true
}
