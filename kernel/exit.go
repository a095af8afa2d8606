package kernel

import (
	"encoding/binary"
	"fmt"
	"runtime"

	"oskern/addrspace"
	db "oskern/debug"
	kt "oskern/ktypes"
	"oskern/proc"
	"oskern/serr"
)

// Exit records code as the exit status, hands any children to the
// kernel process, frees the pid for reuse and ends the calling
// thread. The process stays a zombie until it is reaped. Exit must
// be called on a thread started by the kernel's thread manager.
func (k *Kernel) Exit(t *proc.Thread, code int) {
	p := t.Proc()
	if p == k.procs.KProc() {
		db.DFatalf("Exit from kernel thread %v", t)
	}
	p.SetExitStatus(kt.MkWaitExit(code))
	k.procs.Reparent(p)
	k.procs.ReleasePid(p)
	k.stats.Exits.Inc()
	db.DPrintf(db.PROC, "Exit %v code %d", p, code)
	runtime.Goexit()
}

// Wait waits for the child with pid to exit and reaps it, returning
// its pid and encoded status. With WNOHANG and a running child it
// returns pid 0.
func (k *Kernel) Wait(t *proc.Thread, pid kt.Tpid, options int) (kt.Tpid, int, error) {
	if options != 0 && options != kt.WNOHANG {
		return kt.NoPid, 0, serr.NewErr(serr.TErrInval, fmt.Sprintf("options %#x", options))
	}
	if !k.procs.Pids().InRange(pid) {
		return kt.NoPid, 0, serr.NewErr(serr.TErrInval, fmt.Sprintf("pid %v", pid))
	}
	p := t.Proc()
	c, ok := k.procs.FindChild(p, pid)
	if !ok {
		return kt.NoPid, 0, serr.NewErr(serr.TErrChild, pid)
	}
	status, claimed, ok := c.WaitExit(options == kt.WNOHANG)
	if !ok {
		// another thread reaped it
		return kt.NoPid, 0, serr.NewErr(serr.TErrChild, pid)
	}
	if !claimed {
		return kt.NoPid, 0, nil
	}
	k.procs.Destroy(c)
	k.stats.Reaps.Inc()
	db.DPrintf(db.WAIT, "Wait %v reaped %v status %#x", p, c, status)
	return pid, status, nil
}

// Waitpid is Wait with the status stored as a 32-bit integer at
// statusp, unless statusp is null.
func (k *Kernel) Waitpid(t *proc.Thread, pid kt.Tpid, statusp addrspace.UserPtr, options int) (kt.Tpid, error) {
	as := t.Proc().GetAS()
	var b [4]byte
	if statusp != addrspace.NullPtr {
		if err := k.copier.Copyin(as, statusp, b[:]); err != nil {
			return kt.NoPid, err
		}
	}
	rpid, status, err := k.Wait(t, pid, options)
	if err != nil {
		return kt.NoPid, err
	}
	if rpid != kt.NoPid && statusp != addrspace.NullPtr {
		binary.LittleEndian.PutUint32(b[:], uint32(int32(status)))
		if err := k.copier.Copyout(as, b[:], statusp); err != nil {
			return kt.NoPid, err
		}
	}
	return rpid, nil
}

func (k *Kernel) Getpid(t *proc.Thread) kt.Tpid {
	return t.Proc().Pid()
}

func (k *Kernel) Getppid(t *proc.Thread) kt.Tpid {
	if pp := t.Proc().Parent(); pp != nil {
		return pp.Pid()
	}
	return kt.NoPid
}
