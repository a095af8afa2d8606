package threadmgr

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"oskern/addrspace/memas"
	"oskern/config"
	"oskern/fdtable"
	"oskern/proc"
	"oskern/serr"
)

func newManager(t *testing.T) *proc.Manager {
	cfg := config.Default()
	return proc.NewManager(cfg, memas.NewProvider(8192, 4096), fdtable.NewParams(cfg, memas.NewCopier()))
}

func TestForkRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t)
	tm := New(m, 4)
	p, err := m.CreateUser(m.KProc(), "p", nil)
	require.Nil(t, err)
	m.AddChild(m.KProc(), p)

	ran := make(chan *proc.Proc, 1)
	_, err = tm.Fork("t", p, func(th *proc.Thread) {
		ran <- th.Proc()
	})
	assert.Nil(t, err)
	assert.True(t, <-ran == p)
	tm.Wait()

	assert.Equal(t, int64(0), tm.NThreads())
	assert.Equal(t, proc.StateZombie, p.State())
	_, claimed, _ := p.WaitExit(false)
	assert.True(t, claimed)
	m.Destroy(p)
}

func TestGoexit(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t)
	tm := New(m, 4)
	p, err := m.CreateUser(m.KProc(), "p", nil)
	require.Nil(t, err)

	after := false
	_, err = tm.Fork("t", p, func(th *proc.Thread) {
		runtime.Goexit()
		after = true
	})
	assert.Nil(t, err)
	tm.Wait()
	assert.False(t, after)
	assert.Equal(t, 0, p.NumThreads())
	m.Destroy(p)
}

func TestLimit(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t)
	tm := New(m, 1)
	p, err := m.CreateUser(m.KProc(), "p", nil)
	require.Nil(t, err)

	block := make(chan bool)
	_, err = tm.Fork("t0", p, func(th *proc.Thread) { <-block })
	assert.Nil(t, err)
	_, err = tm.Fork("t1", p, func(th *proc.Thread) {})
	assert.True(t, serr.IsErrCode(err, serr.TErrNproc), "err %v", err)
	assert.Equal(t, 1, p.NumThreads())

	close(block)
	tm.Wait()
	assert.Equal(t, uint64(1), tm.NStarted())
	m.Destroy(p)
}

func TestOrphanReaped(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newManager(t)
	tm := New(m, 4)
	parent, err := m.CreateUser(m.KProc(), "parent", nil)
	require.Nil(t, err)
	child, err := m.CreateUser(parent, "child", nil)
	require.Nil(t, err)
	m.AddChild(parent, child)

	block := make(chan bool)
	_, err = tm.Fork("c", child, func(th *proc.Thread) { <-block })
	assert.Nil(t, err)

	m.Reparent(parent)
	close(block)
	tm.Wait()
	assert.Equal(t, proc.StateReaped, child.State())
	assert.Equal(t, 0, len(m.KProc().Children()))
	m.Destroy(parent)
	assert.Equal(t, 32767-1, m.Pids().Available())
}
