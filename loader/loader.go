// Package loader ingests an RV32 little-endian ELF and turns its
// PT_LOAD segments into a raw byte image plus an entry address: ApplyTo
// copies each PT_LOAD segment to its physical address through a
// non-journaled bulk-write path and returns e_entry for the caller to
// use as the reset pc; nothing here creates a journal frame or sets a
// pc itself. The core never imports debug/elf directly; it only
// sees the two-function surface this package exposes, keeping the
// loader a thin wrapper that hands the machine plain bytes rather than
// an *elf.File.
package loader

import (
	"debug/elf"
	"fmt"
	"io"
)

// Segment is one PT_LOAD program header's contents, already sized to
// MemSize (bss padding included) and ready for a bulk, non-journaled
// write into physical memory at Addr.
type Segment struct {
	Addr uint32
	Data []byte
}

// Image is the fully-resolved load plan for one ELF binary: a set of
// segments to copy into RAM and the pc to reset to.
type Image struct {
	Entry    uint32
	Segments []Segment
}

// Load parses an RV32 little-endian ELF from r and returns its load
// image. It rejects anything that is not a 32-bit little-endian
// RISC-V executable, since this core has no other target.
func Load(r io.ReaderAt) (*Image, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("loader: not an ELF file: %w", err)
	}
	defer f.Close()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("loader: expected ELFCLASS32, got %s", f.Class)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("loader: expected little-endian ELF, got %s", f.Data)
	}
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("loader: expected EM_RISCV, got %s", f.Machine)
	}

	img := &Image{Entry: uint32(f.Entry)}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Memsz == 0 {
			continue
		}
		data := make([]byte, p.Memsz)
		if p.Filesz > 0 {
			n, err := p.ReadAt(data[:p.Filesz], 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("loader: reading PT_LOAD segment at 0x%x: %w", p.Vaddr, err)
			}
			if uint64(n) != p.Filesz {
				return nil, fmt.Errorf("loader: short read of PT_LOAD segment at 0x%x: got %d want %d", p.Vaddr, n, p.Filesz)
			}
		}
		img.Segments = append(img.Segments, Segment{Addr: uint32(p.Vaddr), Data: data})
	}
	if len(img.Segments) == 0 {
		return nil, fmt.Errorf("loader: ELF has no PT_LOAD segments")
	}
	return img, nil
}

// RawMemory is the narrow write surface the loader needs from RAM: a
// single non-journaled bulk copy, matching devices.RAM.RawWrite.
type RawMemory interface {
	RawWrite(offset uint32, data []byte) error
}

// ApplyTo copies every segment in img into mem at its physical
// address, offset by ramBase (the bus address RAM is mapped at), and
// returns the entry pc. It performs no journaling: step 0 is the
// pristine post-load state.
func (img *Image) ApplyTo(mem RawMemory, ramBase uint32) (uint32, error) {
	for _, seg := range img.Segments {
		if seg.Addr < ramBase {
			return 0, fmt.Errorf("loader: segment at 0x%08x is below RAM base 0x%08x", seg.Addr, ramBase)
		}
		if err := mem.RawWrite(seg.Addr-ramBase, seg.Data); err != nil {
			return 0, fmt.Errorf("loader: writing segment at 0x%08x: %w", seg.Addr, err)
		}
	}
	return img.Entry, nil
}
