// Package loader places a program image into a fresh address space.
package loader

import (
	"debug/elf"
	"fmt"
	"io"

	"oskern/addrspace"
	db "oskern/debug"
	"oskern/serr"
	"oskern/usermem"
	"oskern/vfs"
)

type Loader interface {
	// Load defines regions in as for the image in vn, copies the
	// image in and returns the entry point.
	Load(as addrspace.AddrSpace, vn vfs.Vnode) (addrspace.UserPtr, error)
}

// vnodeReader adapts a vnode to io.ReaderAt.
type vnodeReader struct {
	vn vfs.Vnode
}

func (r vnodeReader) ReadAt(b []byte, off int64) (int, error) {
	n := 0
	for n < len(b) {
		m, err := r.vn.Read(off+int64(n), b[n:])
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.EOF
		}
		n += m
	}
	return n, nil
}

type ELF struct {
	copier  usermem.Copier
	machine elf.Machine
}

// NewELF makes a loader for ELF executables of the given machine type;
// elf.EM_NONE accepts any.
func NewELF(copier usermem.Copier, machine elf.Machine) *ELF {
	return &ELF{copier: copier, machine: machine}
}

func perm(f elf.ProgFlag) addrspace.Tperm {
	var p addrspace.Tperm
	if f&elf.PF_R != 0 {
		p |= addrspace.PermR
	}
	if f&elf.PF_W != 0 {
		p |= addrspace.PermW
	}
	if f&elf.PF_X != 0 {
		p |= addrspace.PermX
	}
	return p
}

func (l *ELF) Load(as addrspace.AddrSpace, vn vfs.Vnode) (addrspace.UserPtr, error) {
	st, err := vn.Stat()
	if err != nil {
		return 0, err
	}
	if st.Dir {
		return 0, serr.NewErr(serr.TErrIsdir, st.Name)
	}
	f, err := elf.NewFile(io.NewSectionReader(vnodeReader{vn}, 0, st.Size))
	if err != nil {
		db.DPrintf(db.LOADER, "Load %v: %v", st.Name, err)
		return 0, serr.NewErr(serr.TErrNoExec, st.Name)
	}
	defer f.Close()

	if f.Type != elf.ET_EXEC {
		return 0, serr.NewErr(serr.TErrNoExec, fmt.Sprintf("%v type %v", st.Name, f.Type))
	}
	if l.machine != elf.EM_NONE && f.Machine != l.machine {
		return 0, serr.NewErr(serr.TErrNoExec, fmt.Sprintf("%v machine %v", st.Name, f.Machine))
	}

	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Filesz > p.Memsz {
			return 0, serr.NewErr(serr.TErrNoExec, fmt.Sprintf("%v segment filesz %d > memsz %d", st.Name, p.Filesz, p.Memsz))
		}
		vaddr := addrspace.UserPtr(p.Vaddr)
		if err := as.DefineRegion(vaddr, int(p.Memsz), perm(p.Flags)); err != nil {
			return 0, err
		}
		b := make([]byte, p.Memsz)
		if _, err := p.ReadAt(b[:p.Filesz], 0); err != nil && err != io.EOF {
			return 0, serr.NewErr(serr.TErrNoExec, fmt.Sprintf("%v segment: %v", st.Name, err))
		}
		if err := l.copier.Copyout(as, b, vaddr); err != nil {
			return 0, err
		}
		db.DPrintf(db.LOADER, "Load %v segment %v+%d %v", st.Name, vaddr, p.Memsz, p.Flags)
	}
	return addrspace.UserPtr(f.Entry), nil
}
