package kernel

import (
	db "oskern/debug"
	kt "oskern/ktypes"
	"oskern/machine"
	"oskern/proc"
	"oskern/serr"
)

// Fork duplicates the calling process. The child starts from a copy
// of tf that reports success with value 0. Fork returns once the
// child holds its own copy of tf; if any step fails, everything built
// for the child is released and no pid stays allocated.
func (k *Kernel) Fork(t *proc.Thread, tf *machine.Trapframe) (kt.Tpid, error) {
	p := t.Proc()
	pid, err := k.fork(t, p, tf)
	if err != nil {
		k.stats.ForkFails.Inc()
		db.DPrintf(db.FORK_ERR, "Fork %v: %v", p, err)
		return kt.NoPid, err
	}
	k.stats.Forks.Inc()
	return pid, nil
}

func (k *Kernel) fork(t *proc.Thread, p *proc.Proc, tf *machine.Trapframe) (kt.Tpid, error) {
	as := p.GetAS()
	if as == nil {
		return kt.NoPid, serr.NewErr(serr.TErrInval, "fork without address space")
	}
	nas, err := k.as.Copy(as)
	if err != nil {
		return kt.NoPid, err
	}
	child, err := k.procs.CreateUser(p, p.Name(), p.Files().Fork())
	if err != nil {
		k.as.Destroy(nas)
		return kt.NoPid, err
	}
	child.SetAS(nas)
	k.procs.AddChild(p, child)

	started := make(chan struct{})
	if _, err := k.tm.Fork(p.Name(), child, func(ct *proc.Thread) {
		k.enterForkedProcess(ct, tf, started)
	}); err != nil {
		k.procs.Destroy(child)
		return kt.NoPid, err
	}
	<-started
	db.DPrintf(db.FORK, "Fork %v -> %v", p, child)
	return child.Pid(), nil
}

// enterForkedProcess is the first thing a forked child runs. Until it
// closes started, ptf belongs to the parent.
func (k *Kernel) enterForkedProcess(t *proc.Thread, ptf *machine.Trapframe, started chan struct{}) {
	tf := *ptf
	close(started)

	tf.V0 = 0
	tf.A3 = 0
	tf.EPC += 4
	k.as.Activate(t.Proc().GetAS())
	k.usermode(t, &tf)
}

// usermode runs t in user mode and exits the process if the program
// ever comes back.
func (k *Kernel) usermode(t *proc.Thread, tf *machine.Trapframe) {
	if err := k.mach.Enter(t, tf); err != nil {
		db.DPrintf(db.EXEC_ERR, "usermode %v: %v", t, err)
		k.Exit(t, 255)
	}
	k.Exit(t, 0)
}
