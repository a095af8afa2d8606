package fdtable

import (
	"fmt"
	"math"

	"oskern/addrspace"
	db "oskern/debug"
	"oskern/klock"
	kt "oskern/ktypes"
	"oskern/refcnt"
	"oskern/serr"
	"oskern/vfs"
)

//
// A per-process descriptor table. The table lock may be shared with
// forked relatives; it pins slot contents. Lock order is table lock,
// then handle lock, and the table lock is dropped before a handle is
// torn down or the file provider is called.
//

// Marks a slot whose open is in progress.
var reserved = &Handle{name: "reserved"}

// UserBuf names a buffer in a user address space.
type UserBuf struct {
	As  addrspace.AddrSpace
	Ptr addrspace.UserPtr
	Len int
}

type Table struct {
	params *Params
	lk     *refcnt.Shared[klock.Mutex]
	fds    []*Handle
}

func NewTable(params *Params) *Table {
	t := &Table{
		params: params,
		lk:     refcnt.NewShared(&klock.Mutex{}, nil),
	}
	t.fds = make([]*Handle, min(params.FdIncrement, params.OpenMax))
	return t
}

func (t *Table) String() string {
	t.lock()
	defer t.unlock()
	s := fmt.Sprintf("{cap %d", len(t.fds))
	for fd, h := range t.fds {
		if h != nil {
			s += fmt.Sprintf(" %d:%v", fd, h)
		}
	}
	return s + "}"
}

func (t *Table) lock() {
	t.lk.Get().Lock()
}

func (t *Table) unlock() {
	t.lk.Get().Unlock()
}

func (t *Table) validFd(fd kt.Tfd) bool {
	return fd >= 0 && int(fd) < t.params.OpenMax
}

// Grow the slot array so that fd fits. Caller holds lock.
func (t *Table) growL(fd kt.Tfd) error {
	if !t.validFd(fd) {
		return serr.NewErr(serr.TErrMfile, fd)
	}
	n := len(t.fds)
	if int(fd) < n {
		return nil
	}
	for n <= int(fd) {
		n += t.params.FdIncrement
	}
	n = min(n, t.params.OpenMax)
	fds := make([]*Handle, n)
	copy(fds, t.fds)
	db.DPrintf(db.FDTABLE, "grow %d -> %d", len(t.fds), n)
	t.fds = fds
	return nil
}

// Caller holds lock
func (t *Table) lookupL(fd kt.Tfd) (*Handle, error) {
	if fd < 0 || int(fd) >= len(t.fds) {
		return nil, serr.NewErr(serr.TErrBadFd, fd)
	}
	h := t.fds[fd]
	if h == nil || h == reserved {
		return nil, serr.NewErr(serr.TErrBadFd, fd)
	}
	return h, nil
}

// Caller holds lock
func (t *Table) allocFdL() (kt.Tfd, error) {
	for fd, h := range t.fds {
		if h == nil {
			return kt.Tfd(fd), nil
		}
	}
	fd := kt.Tfd(len(t.fds))
	if err := t.growL(fd); err != nil {
		return -1, err
	}
	return fd, nil
}

// Caller holds lock
func (t *Table) reserveL(fd kt.Tfd) error {
	if err := t.growL(fd); err != nil {
		return err
	}
	if t.fds[fd] != nil {
		if int(fd) == t.params.OpenMax-1 {
			return serr.NewErr(serr.TErrMfile, fd)
		}
		return serr.NewErr(serr.TErrBusy, fd)
	}
	t.fds[fd] = reserved
	return nil
}

// Open opens pn in the lowest free slot.
func (t *Table) Open(fs vfs.Provider, pn string, flags kt.Tmode, mode uint32) (kt.Tfd, error) {
	if flags.Access() == kt.O_ACCMODE {
		return -1, serr.NewErr(serr.TErrInval, flags)
	}
	t.lock()
	fd, err := t.allocFdL()
	if err == nil {
		t.fds[fd] = reserved
	}
	t.unlock()
	if err != nil {
		return -1, err
	}
	return t.install(fs, pn, flags, mode, fd)
}

// OpenAt opens pn in slot fd, which must be free.
func (t *Table) OpenAt(fs vfs.Provider, pn string, flags kt.Tmode, mode uint32, fd kt.Tfd) (kt.Tfd, error) {
	if flags.Access() == kt.O_ACCMODE {
		return -1, serr.NewErr(serr.TErrInval, flags)
	}
	if !t.validFd(fd) {
		return -1, serr.NewErr(serr.TErrBadFd, fd)
	}
	t.lock()
	err := t.reserveL(fd)
	t.unlock()
	if err != nil {
		return -1, err
	}
	return t.install(fs, pn, flags, mode, fd)
}

// install opens the file for the reserved slot fd and publishes it,
// or frees the slot again on failure.
func (t *Table) install(fs vfs.Provider, pn string, flags kt.Tmode, mode uint32, fd kt.Tfd) (kt.Tfd, error) {
	vn, err := fs.Open(pn, flags, mode)
	t.lock()
	defer t.unlock()
	if err != nil {
		db.DPrintf(db.FDTABLE_ERR, "Open %q %v: %v", pn, flags, err)
		t.fds[fd] = nil
		return -1, err
	}
	h := newHandle(pn, vn, flags, t.params.Stats)
	t.fds[fd] = h
	db.DPrintf(db.FDTABLE, "Open %q fd %d %v", pn, fd, h)
	return fd, nil
}

func (t *Table) Close(fd kt.Tfd) error {
	t.lock()
	h, err := t.lookupL(fd)
	if err != nil {
		t.unlock()
		return err
	}
	t.fds[fd] = nil
	t.unlock()

	db.DPrintf(db.FDTABLE, "Close fd %d %v", fd, h)
	h.decRef()
	return nil
}

// Dup2 makes newfd name the handle of oldfd, closing newfd's previous
// handle. The swap happens in one critical section; the displaced
// handle is torn down after the table lock is released.
func (t *Table) Dup2(oldfd, newfd kt.Tfd) (kt.Tfd, error) {
	if !t.validFd(oldfd) || !t.validFd(newfd) {
		return -1, serr.NewErr(serr.TErrBadFd, fmt.Sprintf("%d,%d", oldfd, newfd))
	}
	t.lock()
	h, err := t.lookupL(oldfd)
	if err != nil {
		t.unlock()
		return -1, err
	}
	if oldfd == newfd {
		t.unlock()
		return newfd, nil
	}
	if err := t.growL(newfd); err != nil {
		t.unlock()
		return -1, err
	}
	old := t.fds[newfd]
	if old == reserved {
		t.unlock()
		return -1, serr.NewErr(serr.TErrBusy, newfd)
	}
	if old == h {
		t.unlock()
		return newfd, nil
	}
	h.incRef()
	t.fds[newfd] = h
	t.unlock()

	db.DPrintf(db.FDTABLE, "Dup2 %d -> %d %v displaced %v", oldfd, newfd, h, old)
	if old != nil {
		old.decRef()
	}
	return newfd, nil
}

// lockHandle returns fd's handle locked; the table lock is dropped
// before returning.
func (t *Table) lockHandle(fd kt.Tfd) (*Handle, error) {
	t.lock()
	defer t.unlock()
	h, err := t.lookupL(fd)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	return h, nil
}

// Read moves up to ub.Len bytes from fd into user memory, a chunk at a
// time. It stops after the first short chunk. An error is returned only
// if nothing was transferred.
func (t *Table) Read(fd kt.Tfd, ub UserBuf) (int, error) {
	if ub.Len < 0 {
		return 0, serr.NewErr(serr.TErrInval, ub.Len)
	}
	h, err := t.lockHandle(fd)
	if err != nil {
		return 0, err
	}
	defer h.mu.Unlock()

	if !h.mode.CanRead() {
		return 0, serr.NewErr(serr.TErrBadFd, fmt.Sprintf("%d not readable", fd))
	}
	bp := t.params.bufs.New()
	defer t.params.bufs.Free(bp)
	buf := *bp

	tot := 0
	for tot < ub.Len {
		n := min(len(buf), ub.Len-tot)
		var m int
		m, err = h.vn.Read(h.off, buf[:n])
		if err != nil {
			break
		}
		if m > 0 {
			if err = t.params.Copier.Copyout(ub.As, buf[:m], ub.Ptr+addrspace.UserPtr(tot)); err != nil {
				break
			}
		}
		h.off += int64(m)
		tot += m
		if m < n {
			break
		}
	}
	t.params.Stats.BytesRead.Add(uint64(tot))
	db.DPrintf(db.FDTABLE, "Read fd %d %v n %d err %v", fd, h, tot, err)
	if tot == 0 && err != nil {
		return 0, err
	}
	return tot, nil
}

// Write moves up to ub.Len bytes from user memory to fd. O_APPEND
// handles write each chunk at the current end of file.
func (t *Table) Write(fd kt.Tfd, ub UserBuf) (int, error) {
	if ub.Len < 0 {
		return 0, serr.NewErr(serr.TErrInval, ub.Len)
	}
	h, err := t.lockHandle(fd)
	if err != nil {
		return 0, err
	}
	defer h.mu.Unlock()

	if !h.mode.CanWrite() {
		return 0, serr.NewErr(serr.TErrBadFd, fmt.Sprintf("%d not writable", fd))
	}
	bp := t.params.bufs.New()
	defer t.params.bufs.Free(bp)
	buf := *bp

	tot := 0
	for tot < ub.Len {
		n := min(len(buf), ub.Len-tot)
		if err = t.params.Copier.Copyin(ub.As, ub.Ptr+addrspace.UserPtr(tot), buf[:n]); err != nil {
			break
		}
		if h.mode&kt.O_APPEND != 0 {
			var st *vfs.Stat
			if st, err = h.vn.Stat(); err != nil {
				break
			}
			h.off = st.Size
		}
		var m int
		if m, err = h.vn.Write(h.off, buf[:n]); err != nil {
			break
		}
		h.off += int64(m)
		tot += m
		if m < n {
			break
		}
	}
	t.params.Stats.BytesWritten.Add(uint64(tot))
	db.DPrintf(db.FDTABLE, "Write fd %d %v n %d err %v", fd, h, tot, err)
	if tot == 0 && err != nil {
		return 0, err
	}
	return tot, nil
}

func (t *Table) Lseek(fd kt.Tfd, off int64, whence kt.Twhence) (int64, error) {
	h, err := t.lockHandle(fd)
	if err != nil {
		return -1, err
	}
	defer h.mu.Unlock()

	if !h.vn.IsSeekable() {
		return -1, serr.NewErr(serr.TErrSpipe, fd)
	}
	var base int64
	switch whence {
	case kt.SEEK_SET:
	case kt.SEEK_CUR:
		base = h.off
	case kt.SEEK_END:
		st, err := h.vn.Stat()
		if err != nil {
			return -1, err
		}
		base = st.Size
	default:
		return -1, serr.NewErr(serr.TErrInval, whence)
	}
	if off > 0 && base > math.MaxInt64-off {
		return -1, serr.NewErr(serr.TErrRange, off)
	}
	n := base + off
	if n < 0 {
		return -1, serr.NewErr(serr.TErrInval, n)
	}
	h.off = n
	db.DPrintf(db.FDTABLE, "Lseek fd %d %v", fd, h)
	return n, nil
}

// Fork returns a table for a child process. It shares this table's
// lock object and names the same handles, each with one more ref.
func (t *Table) Fork() *Table {
	t.lock()
	defer t.unlock()

	c := &Table{
		params: t.params,
		lk:     t.lk.Acquire(),
		fds:    make([]*Handle, len(t.fds)),
	}
	for fd, h := range t.fds {
		if h == nil || h == reserved {
			continue
		}
		h.incRef()
		c.fds[fd] = h
	}
	return c
}

// Teardown closes every descriptor and drops this table's hold on the
// shared lock object. Called once, when the owning process is
// destroyed or its construction is unwound.
func (t *Table) Teardown() {
	t.lock()
	fds := t.fds
	t.fds = nil
	t.unlock()

	for fd, h := range fds {
		if h == nil || h == reserved {
			continue
		}
		db.DPrintf(db.FDTABLE, "Teardown fd %d %v", fd, h)
		h.decRef()
	}
	t.lk.Release()
}

// Handle returns the handle in slot fd without taking a reference.
func (t *Table) Handle(fd kt.Tfd) (*Handle, error) {
	t.lock()
	defer t.unlock()
	return t.lookupL(fd)
}

func (t *Table) NOpen() int {
	t.lock()
	defer t.unlock()
	n := 0
	for _, h := range t.fds {
		if h != nil && h != reserved {
			n++
		}
	}
	return n
}

func (t *Table) Cap() int {
	t.lock()
	defer t.unlock()
	return len(t.fds)
}

// SharesLock reports whether t and o use the same table lock object.
func (t *Table) SharesLock(o *Table) bool {
	return t.lk == o.lk
}

func (t *Table) LockRefs() int64 {
	return t.lk.Refs()
}
