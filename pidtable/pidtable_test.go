package pidtable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kt "oskern/ktypes"
	"oskern/serr"
)

type owner struct {
	name string
}

func TestBadRange(t *testing.T) {
	_, err := New[*owner](0, 10)
	assert.True(t, serr.IsErrCode(err, serr.TErrInval))
	_, err = New[*owner](10, 9)
	assert.True(t, serr.IsErrCode(err, serr.TErrInval))
}

func TestAllocateExhaust(t *testing.T) {
	pt, err := New[*owner](2, 5)
	require.Nil(t, err)
	assert.Equal(t, 4, pt.Available())

	o := &owner{"a"}
	pids := make(map[kt.Tpid]bool)
	for i := 0; i < 4; i++ {
		pid, err := pt.Allocate(o)
		assert.Nil(t, err)
		assert.True(t, pid >= 2 && pid <= 5, "pid %v", pid)
		assert.False(t, pids[pid], "dup pid %v", pid)
		pids[pid] = true
	}
	assert.Equal(t, 0, pt.Available())

	_, err = pt.Allocate(o)
	assert.True(t, serr.IsErrCode(err, serr.TErrNproc), "err %v", err)

	pt.Deallocate(3)
	assert.Equal(t, 1, pt.Available())
	assert.Equal(t, Ready, pt.Status(3))
	pid, err := pt.Allocate(o)
	assert.Nil(t, err)
	assert.Equal(t, kt.Tpid(3), pid)
}

func TestCursorRotates(t *testing.T) {
	pt, err := New[*owner](2, 10)
	require.Nil(t, err)

	pid, err := pt.Allocate(nil)
	assert.Nil(t, err)
	assert.Equal(t, kt.Tpid(2), pid)
	pt.Deallocate(pid)

	// A freed pid is not handed out again right away.
	pid, err = pt.Allocate(nil)
	assert.Nil(t, err)
	assert.Equal(t, kt.Tpid(3), pid)
}

func TestWrap(t *testing.T) {
	pt, err := New[*owner](2, 4)
	require.Nil(t, err)

	for i := 0; i < 3; i++ {
		pid, err := pt.Allocate(nil)
		require.Nil(t, err)
		pt.Deallocate(pid)
	}
	pid, err := pt.Allocate(nil)
	assert.Nil(t, err)
	assert.Equal(t, kt.Tpid(2), pid)
}

func TestLookup(t *testing.T) {
	pt, err := New[*owner](2, 10)
	require.Nil(t, err)

	o := &owner{"x"}
	pid, err := pt.Allocate(o)
	require.Nil(t, err)

	o1, ok := pt.Lookup(pid)
	assert.True(t, ok)
	assert.Equal(t, o, o1)

	_, ok = pt.Lookup(100)
	assert.False(t, ok)

	pt.Deallocate(pid)
	_, ok = pt.Lookup(pid)
	assert.False(t, ok)
}

func TestConcurrentUnique(t *testing.T) {
	const (
		N     = 8
		NITER = 500
	)
	pt, err := New[*owner](2, 65)
	require.Nil(t, err)

	var mu sync.Mutex
	live := make(map[kt.Tpid]bool)
	var wg sync.WaitGroup
	wg.Add(N)
	for g := 0; g < N; g++ {
		go func() {
			defer wg.Done()
			held := []kt.Tpid{}
			for i := 0; i < NITER; i++ {
				if len(held) < 4 {
					pid, err := pt.Allocate(nil)
					if !assert.Nil(t, err) {
						return
					}
					mu.Lock()
					assert.False(t, live[pid], "pid %v live twice", pid)
					live[pid] = true
					mu.Unlock()
					assert.True(t, pt.InRange(pid))
					held = append(held, pid)
				} else {
					pid := held[0]
					held = held[1:]
					mu.Lock()
					delete(live, pid)
					mu.Unlock()
					pt.Deallocate(pid)
				}
			}
			for _, pid := range held {
				mu.Lock()
				delete(live, pid)
				mu.Unlock()
				pt.Deallocate(pid)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 64, pt.Available())
}
