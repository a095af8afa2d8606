package proc

import (
	"sync"

	"go.uber.org/atomic"

	"oskern/addrspace"
	"oskern/config"
	db "oskern/debug"
	"oskern/fdtable"
	kt "oskern/ktypes"
	"oskern/pidtable"
)

const (
	KernelPid  kt.Tpid = 1
	KernelName         = "[kernel]"
)

//
// Manager creates and destroys processes. It owns the pid registry
// and the kernel process, which adopts orphans.
//

type Manager struct {
	pids  *pidtable.Table[*Proc]
	kproc *Proc
	asp   addrspace.Provider
	fdp   *fdtable.Params
	tids  atomic.Uint64
}

// NewManager sets up the pid registry and the kernel process. The
// kernel cannot run without either, so failure is fatal.
func NewManager(cfg *config.Config, asp addrspace.Provider, fdp *fdtable.Params) *Manager {
	pids, err := pidtable.New[*Proc](kt.Tpid(cfg.PidMin), kt.Tpid(cfg.PidMax))
	if err != nil {
		db.DFatalf("pid table: %v", err)
	}
	if pids.InRange(KernelPid) {
		db.DFatalf("pid range [%d,%d] includes the kernel pid", cfg.PidMin, cfg.PidMax)
	}
	m := &Manager{pids: pids, asp: asp, fdp: fdp}
	kp := m.Create(KernelName)
	kp.pid = KernelPid
	kp.files = fdtable.NewTable(fdp)
	kp.initLifecycle()
	m.kproc = kp
	db.DPrintf(db.PROC, "NewManager pids [%d,%d] kproc %v", cfg.PidMin, cfg.PidMax, kp)
	return m
}

func (m *Manager) KProc() *Proc {
	return m.kproc
}

func (m *Manager) Pids() *pidtable.Table[*Proc] {
	return m.pids
}

func (m *Manager) ASProvider() addrspace.Provider {
	return m.asp
}

// Lookup returns the live process holding pid.
func (m *Manager) Lookup(pid kt.Tpid) (*Proc, bool) {
	if pid == KernelPid {
		return m.kproc, true
	}
	return m.pids.Lookup(pid)
}

// Create makes a bare process: a name and a field lock.
func (m *Manager) Create(name string) *Proc {
	return &Proc{name: name, pid: kt.NoPid}
}

func (p *Proc) initLifecycle() {
	p.cond = sync.NewCond(&p.lmu)
	p.children = make(map[*Proc]bool)
	p.state = StateRunning
}

// builder records how to undo each construction step.
type builder struct {
	undo []func()
}

func (b *builder) push(f func()) {
	b.undo = append(b.undo, f)
}

func (b *builder) unwind() {
	for i := len(b.undo) - 1; i >= 0; i-- {
		b.undo[i]()
	}
	b.undo = nil
}

// CreateUser makes a user process with a pid, a descriptor table and
// caller's cwd. If files is nil it gets a fresh table; otherwise it
// takes ownership of files, also on failure. Nothing is returned
// unless every step succeeded.
func (m *Manager) CreateUser(caller *Proc, name string, files *fdtable.Table) (*Proc, error) {
	var b builder

	p := m.Create(name)
	if files == nil {
		files = fdtable.NewTable(m.fdp)
	}
	p.files = files
	b.push(func() {
		p.files.Teardown()
		p.files = nil
	})

	p.initLifecycle()
	b.push(func() {
		p.cond = nil
		p.children = nil
	})

	pid, err := m.pids.Allocate(p)
	if err != nil {
		db.DPrintf(db.PROC_ERR, "CreateUser %q: %v", name, err)
		b.unwind()
		return nil, err
	}
	p.pid = pid

	caller.mu.Lock()
	if caller.cwd != nil {
		caller.cwd.IncRef()
		p.cwd = caller.cwd
	}
	caller.mu.Unlock()

	db.DPrintf(db.PROC, "CreateUser %v from %v", p, caller)
	return p, nil
}

func (m *Manager) NewThread(name string) *Thread {
	return &Thread{tid: kt.Ttid(m.tids.Inc()), name: name}
}

func (m *Manager) AddThread(p *Proc, t *Thread) {
	p.lmu.Lock()
	if p.state != StateRunning {
		db.DFatalf("AddThread %v to %v in state %v", t, p, p.state)
	}
	p.nthreads++
	p.lmu.Unlock()
	t.proc.Store(p)
	db.DPrintf(db.THREAD, "AddThread %v", t)
}

// RemoveThread detaches t from its process. When the last thread
// leaves, the process becomes a zombie and waiters are woken. If the
// zombie is an orphan nobody will wait for it, so RemoveThread claims
// it and reports reap; the caller must then Destroy it.
func (m *Manager) RemoveThread(t *Thread) (*Proc, bool) {
	p := t.proc.Swap(nil)
	if p == nil {
		db.DFatalf("RemoveThread %v: no process", t)
	}
	p.lmu.Lock()
	defer p.lmu.Unlock()

	if p.nthreads <= 0 {
		db.DFatalf("RemoveThread %v: %v has %d threads", t, p, p.nthreads)
	}
	p.nthreads--
	db.DPrintf(db.THREAD, "RemoveThread %v left %d", t, p.nthreads)
	if p.nthreads > 0 {
		return p, false
	}
	if p.state == StateRunning {
		p.state = StateZombie
	}
	p.cond.Broadcast()
	if p.orphan {
		return p, p.claimL()
	}
	return p, false
}

func (m *Manager) AddChild(parent, child *Proc) {
	parent.lmu.Lock()
	parent.children[child] = true
	parent.lmu.Unlock()

	child.lmu.Lock()
	child.parent = parent
	child.lmu.Unlock()
}

// FindChild returns parent's child with pid. An exited child whose pid
// has already been reused wins over the live one now holding it.
func (m *Manager) FindChild(parent *Proc, pid kt.Tpid) (*Proc, bool) {
	parent.lmu.Lock()
	defer parent.lmu.Unlock()

	var found *Proc
	for c := range parent.children {
		if c.pid != pid {
			continue
		}
		if found == nil || c.PidReleased() {
			found = c
		}
	}
	return found, found != nil
}

// Reparent hands p's children to the kernel process. Children that
// are already zombies are destroyed here; the others are reaped by
// their own last thread.
func (m *Manager) Reparent(p *Proc) {
	if p == m.kproc {
		return
	}
	p.lmu.Lock()
	kids := p.children
	p.children = make(map[*Proc]bool)
	p.lmu.Unlock()

	for c := range kids {
		m.kproc.lmu.Lock()
		m.kproc.children[c] = true
		m.kproc.lmu.Unlock()

		c.lmu.Lock()
		c.parent = m.kproc
		c.orphan = true
		reap := c.claimL()
		c.lmu.Unlock()

		db.DPrintf(db.PROC, "Reparent %v to kernel reap %v", c, reap)
		if reap {
			m.Destroy(c)
		}
	}
}

// ReleasePid returns p's pid to the registry while p lives on as a
// zombie. Destroy will not release it again.
func (m *Manager) ReleasePid(p *Proc) {
	p.lmu.Lock()
	defer p.lmu.Unlock()
	if p.pidReleased || p.pid == kt.NoPid {
		return
	}
	m.pids.Deallocate(p.pid)
	p.pidReleased = true
	db.DPrintf(db.PROC, "ReleasePid %v", p)
}

// Destroy frees p. p must have no threads, and no one else may use it
// afterwards.
func (m *Manager) Destroy(p *Proc) {
	if p == m.kproc {
		db.DFatalf("Destroy kernel process")
	}
	p.lmu.Lock()
	if p.nthreads != 0 {
		db.DFatalf("Destroy %v with %d threads", p, p.nthreads)
	}
	if p.files == nil {
		db.DFatalf("Destroy %v twice", p)
	}
	p.state = StateReaped
	parent := p.parent
	p.parent = nil
	p.lmu.Unlock()

	if parent != nil {
		parent.lmu.Lock()
		delete(parent.children, p)
		parent.lmu.Unlock()
	}

	p.SetCwd(nil)

	p.files.Teardown()
	p.files = nil

	if as := p.SetAS(nil); as != nil {
		if m.asp.Active() == as {
			m.asp.Deactivate()
		}
		m.asp.Destroy(as)
	}

	m.ReleasePid(p)

	p.lmu.Lock()
	p.cond = nil
	p.lmu.Unlock()
	db.DPrintf(db.PROC, "Destroy %v", p)
}
