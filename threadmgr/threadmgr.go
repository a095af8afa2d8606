// Package threadmgr runs kernel threads as goroutines. A thread
// belongs to a process from the moment it is forked until its body
// finishes, either by returning or through runtime.Goexit.
package threadmgr

import (
	"sync"

	"go.uber.org/atomic"

	db "oskern/debug"
	"oskern/proc"
	"oskern/serr"
)

type ThreadFn func(t *proc.Thread)

type ThreadMgr struct {
	procs   *proc.Manager
	max     int
	wg      sync.WaitGroup
	nthread atomic.Int64
	nstart  atomic.Uint64
}

func New(procs *proc.Manager, max int) *ThreadMgr {
	return &ThreadMgr{procs: procs, max: max}
}

// Fork starts fn on a new thread of p. It fails with ENPROC when the
// thread limit is reached, in which case p is left untouched.
func (tm *ThreadMgr) Fork(name string, p *proc.Proc, fn ThreadFn) (*proc.Thread, error) {
	if n := tm.nthread.Inc(); n > int64(tm.max) {
		tm.nthread.Dec()
		db.DPrintf(db.THREAD, "Fork %q: %d threads", name, n-1)
		return nil, serr.NewErr(serr.TErrNproc, "threads")
	}
	t := tm.procs.NewThread(name)
	tm.procs.AddThread(p, t)
	tm.nstart.Inc()
	tm.wg.Add(1)
	go tm.run(t, fn)
	return t, nil
}

func (tm *ThreadMgr) run(t *proc.Thread, fn ThreadFn) {
	defer tm.wg.Done()
	defer tm.exit(t)
	fn(t)
}

func (tm *ThreadMgr) exit(t *proc.Thread) {
	p, reap := tm.procs.RemoveThread(t)
	tm.nthread.Dec()
	db.DPrintf(db.THREAD, "exit %v of %v reap %v", t, p, reap)
	if reap {
		tm.procs.Destroy(p)
	}
}

// Attach binds the calling goroutine to p as a thread that the
// manager does not run; Detach undoes it.
func (tm *ThreadMgr) Attach(name string, p *proc.Proc) *proc.Thread {
	t := tm.procs.NewThread(name)
	tm.procs.AddThread(p, t)
	return t
}

func (tm *ThreadMgr) Detach(t *proc.Thread) {
	p, reap := tm.procs.RemoveThread(t)
	if reap {
		tm.procs.Destroy(p)
	}
}

// Wait blocks until every forked thread has finished.
func (tm *ThreadMgr) Wait() {
	tm.wg.Wait()
}

func (tm *ThreadMgr) NThreads() int64 {
	return tm.nthread.Load()
}

func (tm *ThreadMgr) NStarted() uint64 {
	return tm.nstart.Load()
}
