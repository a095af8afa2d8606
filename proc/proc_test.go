package proc

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oskern/addrspace/memas"
	"oskern/config"
	"oskern/fdtable"
	kt "oskern/ktypes"
	"oskern/memfs"
	"oskern/serr"
)

type tstate struct {
	*testing.T
	cfg  *config.Config
	asp  *memas.Provider
	fdp  *fdtable.Params
	fs   *memfs.FsMem
	m    *Manager
	root *memfs.Dir
}

func newTstate(t *testing.T, pidmax int) *tstate {
	ts := &tstate{T: t, cfg: config.Default()}
	ts.cfg.PidMax = pidmax
	ts.asp = memas.NewProvider(16*1024, 4096)
	ts.fdp = fdtable.NewParams(ts.cfg, memas.NewCopier())
	ts.fs = memfs.NewFsMem()
	ts.m = NewManager(ts.cfg, ts.asp, ts.fdp)
	root, err := ts.fs.Root()
	require.Nil(t, err)
	ts.root = root.(*memfs.Dir)
	ts.m.KProc().SetCwd(root)
	return ts
}

// newChild makes a running child of parent with one thread.
func (ts *tstate) newChild(parent *Proc, name string) (*Proc, *Thread) {
	p, err := ts.m.CreateUser(parent, name, nil)
	require.Nil(ts.T, err)
	as, err := ts.asp.Create()
	require.Nil(ts.T, err)
	p.SetAS(as)
	ts.m.AddChild(parent, p)
	t := ts.m.NewThread(name)
	ts.m.AddThread(p, t)
	return p, t
}

func TestKernelProc(t *testing.T) {
	ts := newTstate(t, 100)
	kp := ts.m.KProc()
	assert.Equal(t, KernelPid, kp.Pid())
	assert.Equal(t, StateRunning, kp.State())
	p, ok := ts.m.Lookup(KernelPid)
	assert.True(t, ok)
	assert.True(t, p == kp)
	assert.Equal(t, 99, ts.m.Pids().Available())
}

func TestCreateUser(t *testing.T) {
	ts := newTstate(t, 100)
	p, err := ts.m.CreateUser(ts.m.KProc(), "p", nil)
	assert.Nil(t, err)
	assert.Equal(t, kt.Tpid(2), p.Pid())
	assert.Equal(t, StateRunning, p.State())
	assert.NotNil(t, p.Files())
	assert.Nil(t, p.GetAS())
	assert.Equal(t, int64(2), ts.root.Refs())

	q, ok := ts.m.Lookup(p.Pid())
	assert.True(t, ok)
	assert.True(t, q == p)

	ts.m.Destroy(p)
	assert.Equal(t, int64(1), ts.root.Refs())
	assert.Equal(t, 99, ts.m.Pids().Available())
	assert.Equal(t, StateReaped, p.State())
}

func TestCreateUserUnwind(t *testing.T) {
	ts := newTstate(t, 2)
	ts.fs.Create("f", []byte("x"))

	p, err := ts.m.CreateUser(ts.m.KProc(), "p", nil)
	assert.Nil(t, err)

	files := fdtable.NewTable(ts.fdp)
	_, err = files.Open(ts.fs, "f", kt.O_RDONLY, 0)
	assert.Nil(t, err)
	assert.Equal(t, int64(1), ts.fdp.Stats.Live.Load())

	_, err = ts.m.CreateUser(ts.m.KProc(), "q", files)
	assert.True(t, serr.IsErrCode(err, serr.TErrNproc), "err %v", err)
	assert.Equal(t, int64(0), ts.fdp.Stats.Live.Load())
	assert.Equal(t, int64(2), ts.root.Refs())
	assert.Equal(t, 0, ts.m.Pids().Available())

	ts.m.Destroy(p)
	assert.Equal(t, 1, ts.m.Pids().Available())
}

func TestExitAndReap(t *testing.T) {
	ts := newTstate(t, 100)
	kp := ts.m.KProc()
	p, th := ts.newChild(kp, "p")
	assert.True(t, th.Proc() == p)
	assert.Equal(t, 1, p.NumThreads())
	assert.Equal(t, int64(1), ts.asp.Live())

	_, claimed, ok := p.WaitExit(true)
	assert.False(t, claimed)
	assert.True(t, ok)

	p.SetExitStatus(kt.MkWaitExit(7))
	ts.m.ReleasePid(p)
	assert.Equal(t, 99, ts.m.Pids().Available())

	q, reap := ts.m.RemoveThread(th)
	assert.True(t, q == p)
	assert.False(t, reap)
	assert.Nil(t, th.Proc())
	assert.Equal(t, StateZombie, p.State())

	c, ok := ts.m.FindChild(kp, p.Pid())
	assert.True(t, ok)
	assert.True(t, c == p)

	status, claimed, ok := p.WaitExit(false)
	assert.True(t, ok)
	assert.True(t, claimed)
	assert.Equal(t, 7, kt.WaitExitStatus(status))
	ts.m.Destroy(p)

	assert.Equal(t, int64(0), ts.asp.Live())
	assert.Equal(t, 99, ts.m.Pids().Available())
	assert.Equal(t, 0, len(kp.Children()))

	_, claimed, ok = p.WaitExit(false)
	assert.False(t, claimed)
	assert.False(t, ok)
}

func TestWaitBlocks(t *testing.T) {
	ts := newTstate(t, 100)
	p, th := ts.newChild(ts.m.KProc(), "p")

	ch := make(chan int)
	go func() {
		status, claimed, _ := p.WaitExit(false)
		assert.True(t, claimed)
		ch <- status
	}()

	select {
	case <-ch:
		assert.Fail(t, "wait returned early")
	case <-time.After(50 * time.Millisecond):
	}
	p.SetExitStatus(kt.MkWaitExit(3))
	ts.m.RemoveThread(th)
	assert.Equal(t, kt.MkWaitExit(3), <-ch)
	ts.m.Destroy(p)
}

func TestSingleReaper(t *testing.T) {
	const N = 4
	ts := newTstate(t, 100)
	p, th := ts.newChild(ts.m.KProc(), "p")

	var wg sync.WaitGroup
	var mu sync.Mutex
	nclaimed := 0
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, claimed, _ := p.WaitExit(false); claimed {
				mu.Lock()
				nclaimed++
				mu.Unlock()
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	ts.m.RemoveThread(th)
	wg.Wait()
	assert.Equal(t, 1, nclaimed)
	ts.m.Destroy(p)
}

func TestReparent(t *testing.T) {
	ts := newTstate(t, 100)
	kp := ts.m.KProc()
	parent, pth := ts.newChild(kp, "parent")
	zombie, zth := ts.newChild(parent, "zombie")
	live, lth := ts.newChild(parent, "live")

	ts.m.RemoveThread(zth)
	assert.Equal(t, StateZombie, zombie.State())

	ts.m.Reparent(parent)
	assert.Equal(t, 0, len(parent.Children()))
	assert.Equal(t, StateReaped, zombie.State())
	assert.True(t, live.IsOrphan())
	assert.True(t, live.Parent() == kp)
	assert.Equal(t, 2, len(kp.Children())) // parent and live

	p, reap := ts.m.RemoveThread(lth)
	assert.True(t, reap)
	ts.m.Destroy(p)
	assert.Equal(t, 1, len(kp.Children()))

	_, reap = ts.m.RemoveThread(pth)
	assert.False(t, reap)
	_, claimed, _ := parent.WaitExit(false)
	assert.True(t, claimed)
	ts.m.Destroy(parent)
	assert.Equal(t, 99, ts.m.Pids().Available())
	assert.Equal(t, int64(0), ts.asp.Live())
}

func TestFindChildPidReuse(t *testing.T) {
	ts := newTstate(t, 2)
	kp := ts.m.KProc()
	old, oth := ts.newChild(kp, "old")
	ts.m.ReleasePid(old)

	young, yth := ts.newChild(kp, "young")
	assert.Equal(t, old.Pid(), young.Pid())

	c, ok := ts.m.FindChild(kp, 2)
	assert.True(t, ok)
	assert.True(t, c == old)

	ts.m.RemoveThread(oth)
	_, claimed, _ := old.WaitExit(false)
	assert.True(t, claimed)
	ts.m.Destroy(old)
	assert.Equal(t, 0, ts.m.Pids().Available())

	c, ok = ts.m.FindChild(kp, 2)
	assert.True(t, ok)
	assert.True(t, c == young)
	_, ok = ts.m.FindChild(kp, 3)
	assert.False(t, ok)

	ts.m.RemoveThread(yth)
	young.WaitExit(false)
	ts.m.Destroy(young)
	assert.Equal(t, 1, ts.m.Pids().Available())
}

func TestSharedFilesOnDestroy(t *testing.T) {
	ts := newTstate(t, 100)
	ts.fs.Create("f", nil)
	kp := ts.m.KProc()
	p, th := ts.newChild(kp, "p")
	_, err := p.Files().Open(ts.fs, "f", kt.O_RDONLY, 0)
	assert.Nil(t, err)

	c, err := ts.m.CreateUser(p, "c", p.Files().Fork())
	assert.Nil(t, err)
	assert.True(t, c.Files().SharesLock(p.Files()))
	h, err := c.Files().Handle(0)
	assert.Nil(t, err)
	assert.Equal(t, 2, h.Refs())

	ts.m.Destroy(c)
	assert.Equal(t, 1, h.Refs())
	assert.Equal(t, int64(1), p.Files().LockRefs())

	ts.m.RemoveThread(th)
	p.WaitExit(false)
	ts.m.Destroy(p)
	assert.Equal(t, int64(0), ts.fdp.Stats.Live.Load())
}
