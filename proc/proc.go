package proc

import (
	"fmt"
	"sync"

	"oskern/addrspace"
	db "oskern/debug"
	"oskern/fdtable"
	"oskern/klock"
	kt "oskern/ktypes"
	"oskern/vfs"
)

type Proc struct {
	name  string
	pid   kt.Tpid
	files *fdtable.Table

	// mu protects the address space and the cwd
	mu  klock.Mutex
	as  addrspace.AddrSpace
	cwd vfs.Vnode

	// lmu protects the lifecycle fields; cond is signaled when the
	// last thread leaves.
	lmu         klock.Mutex
	cond        *sync.Cond
	parent      *Proc
	children    map[*Proc]bool
	nthreads    int
	state       Tstate
	status      int
	orphan      bool
	pidReleased bool
}

func (p *Proc) String() string {
	return fmt.Sprintf("{%v %q}", p.pid, p.name)
}

func (p *Proc) Name() string {
	return p.name
}

func (p *Proc) Pid() kt.Tpid {
	return p.pid
}

func (p *Proc) Files() *fdtable.Table {
	return p.files
}

func (p *Proc) GetAS() addrspace.AddrSpace {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.as
}

// SetAS installs as and returns the previous address space.
func (p *Proc) SetAS(as addrspace.AddrSpace) addrspace.AddrSpace {
	p.mu.Lock()
	defer p.mu.Unlock()
	old := p.as
	p.as = as
	return old
}

func (p *Proc) Cwd() vfs.Vnode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cwd
}

// SetCwd takes over the caller's reference to vn and drops the one
// held on the previous directory.
func (p *Proc) SetCwd(vn vfs.Vnode) {
	p.mu.Lock()
	old := p.cwd
	p.cwd = vn
	p.mu.Unlock()
	if old != nil {
		old.DecRef()
	}
}

func (p *Proc) Parent() *Proc {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	return p.parent
}

func (p *Proc) Children() []*Proc {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	cs := make([]*Proc, 0, len(p.children))
	for c := range p.children {
		cs = append(cs, c)
	}
	return cs
}

func (p *Proc) NumThreads() int {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	return p.nthreads
}

func (p *Proc) State() Tstate {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	return p.state
}

func (p *Proc) ExitStatus() int {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	return p.status
}

func (p *Proc) SetExitStatus(status int) {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	p.status = status
}

func (p *Proc) IsOrphan() bool {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	return p.orphan
}

func (p *Proc) PidReleased() bool {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	return p.pidReleased
}

// Caller holds lmu
func (p *Proc) claimL() bool {
	if p.state != StateZombie {
		return false
	}
	p.state = StateReaped
	return true
}

// WaitExit blocks until p has no threads left and then claims it for
// reaping. With nohang it returns at once, claimed false, if p is
// still running. Only one caller ever claims p; any other gets
// claimed false and ok false.
func (p *Proc) WaitExit(nohang bool) (status int, claimed bool, ok bool) {
	p.lmu.Lock()
	defer p.lmu.Unlock()

	for p.state == StateRunning {
		if nohang {
			return 0, false, true
		}
		db.DPrintf(db.WAIT, "WaitExit %v sleep", p)
		p.cond.Wait()
	}
	if !p.claimL() {
		return 0, false, false
	}
	db.DPrintf(db.WAIT, "WaitExit %v claimed status %d", p, p.status)
	return p.status, true, true
}
