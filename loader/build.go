package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
)

const (
	ehsize    = 64
	phentsize = 56
)

// BuildELF returns a little-endian ELF64 executable with a single
// read/execute segment holding text at vaddr.
func BuildELF(machine elf.Machine, entry, vaddr uint64, text []byte) []byte {
	var hdr elf.Header64
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	hdr.Type = uint16(elf.ET_EXEC)
	hdr.Machine = uint16(machine)
	hdr.Version = uint32(elf.EV_CURRENT)
	hdr.Entry = entry
	hdr.Phoff = ehsize
	hdr.Ehsize = ehsize
	hdr.Phentsize = phentsize
	hdr.Phnum = 1
	hdr.Shentsize = 64

	ph := elf.Prog64{
		Type:   uint32(elf.PT_LOAD),
		Flags:  uint32(elf.PF_R | elf.PF_X),
		Off:    ehsize + phentsize,
		Vaddr:  vaddr,
		Paddr:  vaddr,
		Filesz: uint64(len(text)),
		Memsz:  uint64(len(text)),
		Align:  0x1000,
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, &hdr)
	binary.Write(&buf, binary.LittleEndian, &ph)
	buf.Write(text)
	return buf.Bytes()
}
