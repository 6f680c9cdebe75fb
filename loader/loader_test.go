package loader

import (
	"bytes"
	"encoding/binary"
	"testing"
)

const (
	elfClass32   = 1
	elfData2LSB  = 1
	elfVersion   = 1
	etExec       = 2
	emRISCV      = 243
	ptLoad       = 1
	pfXRW        = 7
	ehdrSize     = 52
	phdrSize     = 32
)

// buildELF32 assembles a minimal, valid ELF32 little-endian RISC-V
// executable with a single PT_LOAD segment containing code, so Load
// can be exercised without a real toolchain.
func buildELF32(entry, vaddr uint32, code []byte) []byte {
	var ident [16]byte
	ident[0], ident[1], ident[2], ident[3] = 0x7f, 'E', 'L', 'F'
	ident[4] = elfClass32
	ident[5] = elfData2LSB
	ident[6] = elfVersion

	var buf bytes.Buffer
	buf.Write(ident[:])
	binary.Write(&buf, binary.LittleEndian, uint16(etExec))
	binary.Write(&buf, binary.LittleEndian, uint16(emRISCV))
	binary.Write(&buf, binary.LittleEndian, uint32(elfVersion))
	binary.Write(&buf, binary.LittleEndian, uint32(entry))
	binary.Write(&buf, binary.LittleEndian, uint32(ehdrSize)) // e_phoff
	binary.Write(&buf, binary.LittleEndian, uint32(0))        // e_shoff
	binary.Write(&buf, binary.LittleEndian, uint32(0))        // e_flags
	binary.Write(&buf, binary.LittleEndian, uint16(ehdrSize))
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // e_phentsize placeholder, fixed below
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // e_phnum
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // e_shentsize
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // e_shnum
	binary.Write(&buf, binary.LittleEndian, uint16(0)) // e_shstrndx

	out := buf.Bytes()
	binary.LittleEndian.PutUint16(out[42:44], phdrSize) // fix e_phentsize

	dataOff := uint32(ehdrSize + phdrSize)
	var ph bytes.Buffer
	binary.Write(&ph, binary.LittleEndian, uint32(ptLoad))
	binary.Write(&ph, binary.LittleEndian, dataOff)       // p_offset
	binary.Write(&ph, binary.LittleEndian, vaddr)         // p_vaddr
	binary.Write(&ph, binary.LittleEndian, vaddr)         // p_paddr
	binary.Write(&ph, binary.LittleEndian, uint32(len(code))) // p_filesz
	binary.Write(&ph, binary.LittleEndian, uint32(len(code))) // p_memsz
	binary.Write(&ph, binary.LittleEndian, uint32(pfXRW))
	binary.Write(&ph, binary.LittleEndian, uint32(4096))

	full := append(out, ph.Bytes()...)
	full = append(full, code...)
	return full
}

func TestLoadParsesEntryAndSegment(t *testing.T) {
	code := []byte{0x93, 0x00, 0x10, 0x00} // addi x1, x0, 1
	raw := buildELF32(0x80000000, 0x80000000, code)

	img, err := Load(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Entry != 0x80000000 {
		t.Fatalf("Entry = 0x%x, want 0x80000000", img.Entry)
	}
	if len(img.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(img.Segments))
	}
	if img.Segments[0].Addr != 0x80000000 {
		t.Fatalf("segment addr = 0x%x, want 0x80000000", img.Segments[0].Addr)
	}
	if !bytes.Equal(img.Segments[0].Data, code) {
		t.Fatalf("segment data = %x, want %x", img.Segments[0].Data, code)
	}
}

type fakeRAM struct {
	written map[uint32][]byte
}

func (f *fakeRAM) RawWrite(offset uint32, data []byte) error {
	if f.written == nil {
		f.written = map[uint32][]byte{}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.written[offset] = cp
	return nil
}

func TestApplyToWritesRelativeToRAMBase(t *testing.T) {
	code := []byte{0x93, 0x00, 0x10, 0x00}
	raw := buildELF32(0x80000004, 0x80000000, code)
	img, err := Load(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ram := &fakeRAM{}
	entry, err := img.ApplyTo(ram, 0x80000000)
	if err != nil {
		t.Fatalf("ApplyTo: %v", err)
	}
	if entry != 0x80000004 {
		t.Fatalf("entry = 0x%x, want 0x80000004", entry)
	}
	if !bytes.Equal(ram.written[0], code) {
		t.Fatalf("ram.written[0] = %x, want %x", ram.written[0], code)
	}
}

func TestLoadRejectsNonRISCV(t *testing.T) {
	raw := buildELF32(0, 0, nil)
	raw[18] = 0x3e // e_machine low byte -> EM_X86_64, not EM_RISCV
	if _, err := Load(bytes.NewReader(raw)); err == nil {
		t.Fatalf("Load: expected error for non-RISC-V ELF, got nil")
	}
}
