package devices

import (
	"fmt"

	"redplanet/journal"
)

// RAM is a flat, byte-addressable backing store for main memory. It
// permits misaligned loads/stores by decomposing them into individual
// byte accesses — atomicity at word granularity is not guaranteed,
// same as real RV32I implementations that allow but don't require
// misaligned access.
type RAM struct {
	bytes []byte
}

// NewRAM allocates a zeroed RAM region of the given size in bytes.
func NewRAM(size uint32) *RAM {
	return &RAM{bytes: make([]byte, size)}
}

// Size returns the RAM's capacity in bytes.
func (r *RAM) Size() uint32 {
	return uint32(len(r.bytes))
}

func (r *RAM) checkRange(offset uint32, width uint8) error {
	if uint64(offset)+uint64(width) > uint64(len(r.bytes)) {
		return fmt.Errorf("devices: RAM access out of range at offset 0x%x width %d (size %d)", offset, width, len(r.bytes))
	}
	return nil
}

// Load implements bus.Device.
func (r *RAM) Load(offset uint32, width uint8) (uint32, *journal.UndoRecord, error) {
	if err := r.checkRange(offset, width); err != nil {
		return 0, nil, err
	}
	var v uint32
	for i := uint8(0); i < width; i++ {
		v |= uint32(r.bytes[offset+uint32(i)]) << (8 * i)
	}
	return v, nil, nil
}

// Store implements bus.Device. It returns the pre-image bytes it
// displaced so the caller can journal them as a Mem undo record.
func (r *RAM) Store(offset uint32, width uint8, value uint32) (*journal.UndoRecord, error) {
	if err := r.checkRange(offset, width); err != nil {
		return nil, err
	}
	old := make([]byte, width)
	copy(old, r.bytes[offset:offset+uint32(width)])
	for i := uint8(0); i < width; i++ {
		r.bytes[offset+uint32(i)] = byte(value >> (8 * i))
	}
	return &journal.UndoRecord{Kind: journal.Mem, Addr: offset, OldBytes: old}, nil
}

// RawWrite copies data into RAM without producing an undo record. Used
// by the ELF loader for PT_LOAD segments, which are not part of any
// step and must not be reversible.
func (r *RAM) RawWrite(offset uint32, data []byte) error {
	if uint64(offset)+uint64(len(data)) > uint64(len(r.bytes)) {
		return fmt.Errorf("devices: RAM raw write out of range at offset 0x%x length %d (size %d)", offset, len(data), len(r.bytes))
	}
	copy(r.bytes[offset:], data)
	return nil
}

// RawRead returns a copy of length bytes starting at offset, without
// journaling. Used by the RISCOF signature dumper, which needs a
// read-only, unjournaled view of a memory region.
func (r *RAM) RawRead(offset, length uint32) ([]byte, error) {
	if uint64(offset)+uint64(length) > uint64(len(r.bytes)) {
		return nil, fmt.Errorf("devices: RAM raw read out of range at offset 0x%x length %d (size %d)", offset, length, len(r.bytes))
	}
	out := make([]byte, length)
	copy(out, r.bytes[offset:offset+length])
	return out, nil
}

// undoMemAt applies a Mem undo record back into this RAM. Called by
// whatever implements journal.Target when it owns this region.
func (r *RAM) undoMemAt(addr uint32, old []byte) error {
	if uint64(addr)+uint64(len(old)) > uint64(len(r.bytes)) {
		return fmt.Errorf("devices: RAM undo out of range at offset 0x%x length %d", addr, len(old))
	}
	copy(r.bytes[addr:addr+uint32(len(old))], old)
	return nil
}

// UndoMem is the exported form of undoMemAt, used directly when a
// caller already knows it is addressing RAM (e.g. the machine's
// journal.Target implementation, which routes Mem records by region).
func (r *RAM) UndoMem(addr uint32, old []byte) error {
	return r.undoMemAt(addr, old)
}
