package bus

import (
	"errors"
	"testing"

	"redplanet/journal"
)

type memDevice struct {
	bytes []byte
}

func (m *memDevice) Load(offset uint32, width uint8) (uint32, *journal.UndoRecord, error) {
	var v uint32
	for i := uint8(0); i < width; i++ {
		v |= uint32(m.bytes[offset+uint32(i)]) << (8 * i)
	}
	return v, nil, nil
}

func (m *memDevice) Store(offset uint32, width uint8, value uint32) (*journal.UndoRecord, error) {
	old := make([]byte, width)
	copy(old, m.bytes[offset:offset+uint32(width)])
	for i := uint8(0); i < width; i++ {
		m.bytes[offset+uint32(i)] = byte(value >> (8 * i))
	}
	return &journal.UndoRecord{Kind: journal.Mem, Addr: offset, OldBytes: old}, nil
}

type widthRefusingDevice struct{}

func (widthRefusingDevice) Load(offset uint32, width uint8) (uint32, *journal.UndoRecord, error) {
	if width != 1 {
		return 0, nil, &Fault{Kind: FaultWidth, Addr: offset, Width: width}
	}
	return 0, nil, nil
}

func (widthRefusingDevice) Store(offset uint32, width uint8, value uint32) (*journal.UndoRecord, error) {
	if width != 1 {
		return nil, &Fault{Kind: FaultWidth, Addr: offset, Width: width}
	}
	return nil, nil
}

func TestLoadStoreRoundTrip(t *testing.T) {
	b := New()
	dev := &memDevice{bytes: make([]byte, 16)}
	b.Map(0x1000, 0x1010, "mem", dev)

	undo, err := b.Store(0x1004, 4, 0xDEADBEEF)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if undo == nil || undo.Kind != journal.Mem {
		t.Fatalf("expected a Mem undo record, got %+v", undo)
	}

	v, _, err := b.Load(0x1004, 4)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v != 0xDEADBEEF {
		t.Fatalf("Load = 0x%x, want 0xDEADBEEF", v)
	}
}

func TestUnmappedAddressFaults(t *testing.T) {
	b := New()
	_, _, err := b.Load(0x9999, 4)
	var f *Fault
	if !errors.As(err, &f) || f.Kind != FaultUnmapped {
		t.Fatalf("Load at unmapped address: got %v, want FaultUnmapped", err)
	}
}

func TestDeviceCanRefuseWidth(t *testing.T) {
	b := New()
	b.Map(0x2000, 0x2004, "dev", widthRefusingDevice{})

	_, _, err := b.Load(0x2000, 4)
	var f *Fault
	if !errors.As(err, &f) || f.Kind != FaultWidth {
		t.Fatalf("Load with unsupported width: got %v, want FaultWidth", err)
	}

	if _, _, err := b.Load(0x2000, 1); err != nil {
		t.Fatalf("Load with supported width: %v", err)
	}
}

func TestMapRejectsOverlap(t *testing.T) {
	b := New()
	dev := &memDevice{bytes: make([]byte, 16)}
	b.Map(0x1000, 0x1010, "a", dev)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected Map to panic on overlapping region")
		}
	}()
	b.Map(0x1008, 0x1020, "b", dev)
}

func TestRoutingPicksCorrectRegion(t *testing.T) {
	b := New()
	a := &memDevice{bytes: make([]byte, 4)}
	c := &memDevice{bytes: make([]byte, 4)}
	b.Map(0x1000, 0x1004, "a", a)
	b.Map(0x2000, 0x2004, "c", c)

	if _, err := b.Store(0x1000, 1, 0xAA); err != nil {
		t.Fatalf("Store a: %v", err)
	}
	if _, err := b.Store(0x2000, 1, 0xBB); err != nil {
		t.Fatalf("Store c: %v", err)
	}
	if a.bytes[0] != 0xAA || c.bytes[0] != 0xBB {
		t.Fatalf("routed stores landed in the wrong region: a=%x c=%x", a.bytes[0], c.bytes[0])
	}
}
