package devices

import "testing"

func TestRAMStoreReturnsPreImageForUndo(t *testing.T) {
	r := NewRAM(16)
	if _, err := r.Store(0, 4, 0x11111111); err != nil {
		t.Fatalf("Store: %v", err)
	}
	undo, err := r.Store(0, 4, 0x22222222)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	want := []byte{0x11, 0x11, 0x11, 0x11}
	for i, b := range want {
		if undo.OldBytes[i] != b {
			t.Fatalf("OldBytes = %x, want %x", undo.OldBytes, want)
		}
	}

	if err := r.UndoMem(0, undo.OldBytes); err != nil {
		t.Fatalf("UndoMem: %v", err)
	}
	v, _, _ := r.Load(0, 4)
	if v != 0x11111111 {
		t.Fatalf("after undo, Load = 0x%x, want 0x11111111", v)
	}
}

func TestRAMMisalignedAccessDecomposes(t *testing.T) {
	r := NewRAM(16)
	if _, err := r.Store(1, 4, 0xAABBCCDD); err != nil {
		t.Fatalf("misaligned Store: %v", err)
	}
	v, _, err := r.Load(1, 4)
	if err != nil {
		t.Fatalf("misaligned Load: %v", err)
	}
	if v != 0xAABBCCDD {
		t.Fatalf("Load = 0x%x, want 0xAABBCCDD", v)
	}
}

func TestRAMOutOfRangeAccessErrors(t *testing.T) {
	r := NewRAM(4)
	if _, _, err := r.Load(2, 4); err == nil {
		t.Fatalf("expected out-of-range Load to error")
	}
	if _, err := r.Store(2, 4, 1); err == nil {
		t.Fatalf("expected out-of-range Store to error")
	}
}

func TestRAMRawWriteIsNotJournaled(t *testing.T) {
	r := NewRAM(16)
	if err := r.RawWrite(0, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("RawWrite: %v", err)
	}
	data, err := r.RawRead(0, 4)
	if err != nil {
		t.Fatalf("RawRead: %v", err)
	}
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("RawRead = %v, want %v", data, want)
		}
	}
}
