package fdtable

import (
	"fmt"

	db "oskern/debug"
	"oskern/klock"
	kt "oskern/ktypes"
	"oskern/vfs"
)

// Handle is an open file. Descriptor slots name it without owning it;
// ref counts the slots, across all processes, that do.
type Handle struct {
	mu    klock.Mutex
	name  string
	vn    vfs.Vnode
	off   int64
	mode  kt.Tmode
	ref   int
	stats *Stats
}

func newHandle(name string, vn vfs.Vnode, mode kt.Tmode, st *Stats) *Handle {
	st.Live.Inc()
	st.Opened.Inc()
	return &Handle{name: name, vn: vn, mode: mode, ref: 1, stats: st}
}

func (h *Handle) String() string {
	return fmt.Sprintf("{%q off %d %v ref %d}", h.name, h.off, h.mode, h.ref)
}

// Caller holds lock
func (h *Handle) incRefL() {
	h.ref++
}

func (h *Handle) incRef() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.incRefL()
}

// decRef drops one slot's reference; the last one releases the vnode.
// Callers must have already removed the reference from its slot.
func (h *Handle) decRef() {
	h.mu.Lock()
	h.ref--
	n := h.ref
	h.mu.Unlock()

	if n < 0 {
		db.DFatalf("decRef %v below zero", h)
	}
	if n > 0 {
		return
	}
	db.DPrintf(db.FDTABLE, "free %v", h)
	if err := h.vn.DecRef(); err != nil {
		db.DPrintf(db.FDTABLE_ERR, "free %v: vnode %v", h, err)
	}
	h.vn = nil
	h.stats.Live.Dec()
}

func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ref
}

func (h *Handle) Offset() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.off
}

func (h *Handle) Mode() kt.Tmode {
	return h.mode
}

func (h *Handle) Name() string {
	return h.name
}

func (h *Handle) Vnode() vfs.Vnode {
	return h.vn
}
