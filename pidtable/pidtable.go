package pidtable

import (
	"fmt"

	db "oskern/debug"
	"oskern/klock"
	kt "oskern/ktypes"
	"oskern/serr"
)

//
// The pid table maps process identifiers in [min, max] to slots. A
// slot is Running iff some live process owns its pid. Allocation scans
// from a rotating cursor so recently freed pids are not immediately
// reused. The table keeps only a weak reference to the owner; zombie
// processes are tracked by their parents, not here.
//

type Tstatus uint8

const (
	Ready Tstatus = iota
	Running
)

func (s Tstatus) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	default:
		return "unknown status"
	}
}

type slot[P any] struct {
	status Tstatus
	owner  P
}

type Table[P any] struct {
	mu        klock.Mutex
	min       kt.Tpid
	max       kt.Tpid
	next      kt.Tpid
	available int
	slots     []slot[P]
}

func New[P any](min, max kt.Tpid) (*Table[P], error) {
	if min < 1 || max < min {
		return nil, serr.NewErr(serr.TErrInval, fmt.Sprintf("pid range [%v,%v]", min, max))
	}
	pt := &Table[P]{
		min:       min,
		max:       max,
		next:      min,
		available: int(max-min) + 1,
		slots:     make([]slot[P], int(max-min)+1),
	}
	return pt, nil
}

func (pt *Table[P]) idx(pid kt.Tpid) int {
	return int(pid - pt.min)
}

func (pt *Table[P]) InRange(pid kt.Tpid) bool {
	return pid >= pt.min && pid <= pt.max
}

func (pt *Table[P]) Range() (kt.Tpid, kt.Tpid) {
	return pt.min, pt.max
}

// Caller holds lock
func (pt *Table[P]) advanceL() {
	pt.next++
	if pt.next > pt.max {
		pt.next = pt.min
	}
}

// Allocate a pid for owner, or fail with ENPROC when no slot is free.
func (pt *Table[P]) Allocate(owner P) (kt.Tpid, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if pt.available == 0 {
		db.DPrintf(db.PIDTABLE, "Allocate: no pids left in [%v,%v]", pt.min, pt.max)
		return kt.NoPid, serr.NewErr(serr.TErrNproc, "pidtable")
	}
	// A free slot must exist within one full lap of the cursor.
	n := len(pt.slots)
	for i := 0; i < n; i++ {
		pid := pt.next
		pt.advanceL()
		s := &pt.slots[pt.idx(pid)]
		if s.status == Ready {
			s.status = Running
			s.owner = owner
			pt.available--
			db.DPrintf(db.PIDTABLE, "Allocate %v avail %d", pid, pt.available)
			return pid, nil
		}
	}
	db.DFatalf("Allocate: available %d but no ready slot", pt.available)
	return kt.NoPid, nil
}

// Deallocate releases pid. The caller guarantees one Deallocate per
// successful Allocate.
func (pt *Table[P]) Deallocate(pid kt.Tpid) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if !pt.InRange(pid) {
		db.DFatalf("Deallocate: pid %v out of range [%v,%v]", pid, pt.min, pt.max)
	}
	s := &pt.slots[pt.idx(pid)]
	if s.status != Running {
		db.DFatalf("Deallocate: pid %v not allocated", pid)
	}
	var zero P
	s.status = Ready
	s.owner = zero
	pt.available++
	db.DPrintf(db.PIDTABLE, "Deallocate %v avail %d", pid, pt.available)
}

// Lookup returns the live owner of pid.
func (pt *Table[P]) Lookup(pid kt.Tpid) (P, bool) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	var zero P
	if !pt.InRange(pid) {
		return zero, false
	}
	s := &pt.slots[pt.idx(pid)]
	if s.status != Running {
		return zero, false
	}
	return s.owner, true
}

func (pt *Table[P]) Status(pid kt.Tpid) Tstatus {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	if !pt.InRange(pid) {
		return Ready
	}
	return pt.slots[pt.idx(pid)].status
}

func (pt *Table[P]) Available() int {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.available
}

func (pt *Table[P]) String() string {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return fmt.Sprintf("{pids [%v,%v] next %v avail %d}", pt.min, pt.max, pt.next, pt.available)
}
