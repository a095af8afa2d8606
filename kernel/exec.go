package kernel

import (
	"encoding/binary"

	"oskern/addrspace"
	db "oskern/debug"
	kt "oskern/ktypes"
	"oskern/machine"
	"oskern/proc"
	"oskern/serr"
)

const PTRSZ = 8

// image is a loaded program that has not started running.
type image struct {
	as addrspace.AddrSpace
	tf machine.Trapframe
}

// load builds an address space holding the program at pn, with argv
// on its stack. On failure nothing is left allocated.
func (k *Kernel) load(pn string, argv []string) (*image, error) {
	vn, err := k.vfs.Open(pn, kt.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	as, err := k.as.Create()
	if err != nil {
		vn.DecRef()
		return nil, err
	}
	entry, err := k.loader.Load(as, vn)
	vn.DecRef()
	if err != nil {
		k.as.Destroy(as)
		return nil, err
	}
	sp, err := as.DefineStack()
	if err != nil {
		k.as.Destroy(as)
		return nil, err
	}
	uargv, sp, err := k.copyoutArgs(as, sp, argv)
	if err != nil {
		k.as.Destroy(as)
		return nil, err
	}
	img := &image{as: as}
	img.tf.A0 = uint64(len(argv))
	img.tf.A1 = uint64(uargv)
	img.tf.SP = uint64(sp)
	img.tf.EPC = uint64(entry)
	db.DPrintf(db.EXEC, "load %q argv %v entry %v", pn, argv, entry)
	return img, nil
}

func align8(p addrspace.UserPtr) addrspace.UserPtr {
	return p &^ (PTRSZ - 1)
}

// copyoutArgs lays out argv below sp: the strings, then a null
// terminated pointer array. It returns the array's address, which is
// also the new stack pointer.
func (k *Kernel) copyoutArgs(as addrspace.AddrSpace, sp addrspace.UserPtr, argv []string) (addrspace.UserPtr, addrspace.UserPtr, error) {
	ptrs := make([]byte, (len(argv)+1)*PTRSZ)
	for i := len(argv) - 1; i >= 0; i-- {
		s := append([]byte(argv[i]), 0)
		sp = align8(sp - addrspace.UserPtr(len(s)))
		if err := k.copier.Copyout(as, s, sp); err != nil {
			return 0, 0, err
		}
		binary.LittleEndian.PutUint64(ptrs[i*PTRSZ:], uint64(sp))
	}
	sp -= addrspace.UserPtr(len(ptrs))
	if err := k.copier.Copyout(as, ptrs, sp); err != nil {
		return 0, 0, err
	}
	return sp, sp, nil
}

// copyinArgs reads a null-terminated argv array from user space. The
// strings and pointers together may not exceed ArgMax bytes.
func (k *Kernel) copyinArgs(as addrspace.AddrSpace, uargv addrspace.UserPtr) ([]string, error) {
	var argv []string
	used := 0
	var b [PTRSZ]byte
	for i := 0; ; i++ {
		used += PTRSZ
		if used > k.cfg.ArgMax {
			return nil, serr.NewErr(serr.TErr2Big, len(argv))
		}
		if err := k.copier.Copyin(as, uargv+addrspace.UserPtr(i*PTRSZ), b[:]); err != nil {
			return nil, err
		}
		up := addrspace.UserPtr(binary.LittleEndian.Uint64(b[:]))
		if up == addrspace.NullPtr {
			return argv, nil
		}
		s, err := k.copier.Copyinstr(as, up, k.cfg.ArgMax-used)
		if serr.IsErrCode(err, serr.TErrNameTooLong) {
			return nil, serr.NewErr(serr.TErr2Big, len(argv))
		}
		if err != nil {
			return nil, err
		}
		used += len(s) + 1
		argv = append(argv, s)
	}
}

// Execv replaces the calling process's program. It returns only on
// failure, in which case the old program is intact.
func (k *Kernel) Execv(t *proc.Thread, pathp, argvp addrspace.UserPtr) error {
	p := t.Proc()
	as := p.GetAS()
	pn, err := k.copier.Copyinstr(as, pathp, k.cfg.PathMax)
	if err != nil {
		return err
	}
	argv, err := k.copyinArgs(as, argvp)
	if err != nil {
		return err
	}
	img, err := k.load(pn, argv)
	if err != nil {
		db.DPrintf(db.EXEC_ERR, "Execv %v %q: %v", p, pn, err)
		return err
	}
	k.stats.Execs.Inc()
	old := p.SetAS(img.as)
	k.as.Activate(img.as)
	if old != nil {
		k.as.Destroy(old)
	}
	db.DPrintf(db.EXEC, "Execv %v %q", p, pn)
	k.usermode(t, &img.tf)
	return nil
}

// Runprogram starts the program at pn in a new process, a child of
// the kernel process, with the console on descriptors 0, 1 and 2.
// argv defaults to just pn.
func (k *Kernel) Runprogram(pn string, argv []string) (kt.Tpid, error) {
	if len(argv) == 0 {
		argv = []string{pn}
	}
	kp := k.procs.KProc()
	p, err := k.procs.CreateUser(kp, pn, nil)
	if err != nil {
		return kt.NoPid, err
	}
	for _, s := range []struct {
		fd    kt.Tfd
		flags kt.Tmode
	}{
		{kt.STDIN_FILENO, kt.O_RDONLY},
		{kt.STDOUT_FILENO, kt.O_WRONLY},
		{kt.STDERR_FILENO, kt.O_WRONLY},
	} {
		if _, err := p.Files().OpenAt(k.vfs, CONSOLE, s.flags, 0, s.fd); err != nil {
			k.procs.Destroy(p)
			return kt.NoPid, err
		}
	}
	img, err := k.load(pn, argv)
	if err != nil {
		db.DPrintf(db.EXEC_ERR, "Runprogram %q: %v", pn, err)
		k.procs.Destroy(p)
		return kt.NoPid, err
	}
	p.SetAS(img.as)
	k.procs.AddChild(kp, p)
	if _, err := k.tm.Fork(pn, p, func(t *proc.Thread) {
		k.as.Activate(img.as)
		k.usermode(t, &img.tf)
	}); err != nil {
		k.procs.Destroy(p)
		return kt.NoPid, err
	}
	k.stats.Execs.Inc()
	db.DPrintf(db.EXEC, "Runprogram %q pid %v", pn, p.Pid())
	return p.Pid(), nil
}
