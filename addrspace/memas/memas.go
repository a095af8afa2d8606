package memas

import (
	"bytes"
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"oskern/addrspace"
	db "oskern/debug"
	"oskern/serr"
)

//
// A flat, byte-addressed user address space. Addresses below
// MinUserAddr fault, as does anything past the end of memory; the
// stack occupies the top StackSize bytes.
//

const MinUserAddr addrspace.UserPtr = 0x1000

type region struct {
	base addrspace.UserPtr
	sz   int
	perm addrspace.Tperm
}

type AddrSpace struct {
	mu        sync.Mutex
	id        uint64
	mem       []byte
	stackSz   int
	regions   []region
	destroyed bool
}

func (as *AddrSpace) String() string {
	return fmt.Sprintf("as%d", as.id)
}

func (as *AddrSpace) Id() uint64 {
	return as.id
}

func (as *AddrSpace) stackBase() addrspace.UserPtr {
	return addrspace.UserPtr(len(as.mem) - as.stackSz)
}

func (as *AddrSpace) DefineRegion(vaddr addrspace.UserPtr, sz int, perm addrspace.Tperm) error {
	as.mu.Lock()
	defer as.mu.Unlock()

	if sz < 0 || vaddr < MinUserAddr || uint64(vaddr)+uint64(sz) > uint64(as.stackBase()) {
		return serr.NewErr(serr.TErrNomem, fmt.Sprintf("region %v+%d", vaddr, sz))
	}
	as.regions = append(as.regions, region{vaddr, sz, perm})
	db.DPrintf(db.ADDRSPACE, "%v DefineRegion %v+%d %v", as, vaddr, sz, perm)
	return nil
}

// DefineStack returns the initial stack pointer.
func (as *AddrSpace) DefineStack() (addrspace.UserPtr, error) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.regions = append(as.regions, region{as.stackBase(), as.stackSz, addrspace.PermR | addrspace.PermW})
	return addrspace.UserPtr(len(as.mem)), nil
}

// Caller holds lock
func (as *AddrSpace) rangeL(p addrspace.UserPtr, n int) ([]byte, error) {
	sz := uint64(len(as.mem))
	if as.destroyed || n < 0 || p < MinUserAddr || uint64(p) > sz || uint64(n) > sz-uint64(p) {
		return nil, serr.NewErr(serr.TErrFault, p)
	}
	return as.mem[p : uint64(p)+uint64(n)], nil
}

type Provider struct {
	mu      sync.Mutex
	memSz   int
	stackSz int
	active  *AddrSpace
	ids     atomic.Uint64
	live    atomic.Int64
}

func NewProvider(memSz, stackSz int) *Provider {
	return &Provider{memSz: memSz, stackSz: stackSz}
}

func (p *Provider) newAddrSpace() *AddrSpace {
	as := &AddrSpace{
		id:      p.ids.Inc(),
		mem:     make([]byte, p.memSz),
		stackSz: p.stackSz,
	}
	p.live.Inc()
	return as
}

func (p *Provider) Create() (addrspace.AddrSpace, error) {
	as := p.newAddrSpace()
	db.DPrintf(db.ADDRSPACE, "Create %v", as)
	return as, nil
}

func (p *Provider) Copy(old addrspace.AddrSpace) (addrspace.AddrSpace, error) {
	o, ok := old.(*AddrSpace)
	if !ok || o == nil {
		return nil, serr.NewErr(serr.TErrInval, "copy of non-user address space")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.destroyed {
		return nil, serr.NewErr(serr.TErrInval, o)
	}
	as := p.newAddrSpace()
	copy(as.mem, o.mem)
	as.regions = append(as.regions, o.regions...)
	db.DPrintf(db.ADDRSPACE, "Copy %v -> %v", o, as)
	return as, nil
}

func (p *Provider) Destroy(as addrspace.AddrSpace) {
	a := as.(*AddrSpace)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		db.DFatalf("Destroy %v twice", a)
	}
	a.destroyed = true
	a.mem = nil
	p.live.Dec()
	db.DPrintf(db.ADDRSPACE, "Destroy %v", a)
}

func (p *Provider) Activate(as addrspace.AddrSpace) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if as == nil {
		return
	}
	p.active = as.(*AddrSpace)
}

func (p *Provider) Deactivate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = nil
}

func (p *Provider) Active() addrspace.AddrSpace {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return nil
	}
	return p.active
}

// Live is the number of address spaces created and not yet destroyed.
func (p *Provider) Live() int64 {
	return p.live.Load()
}

type Copier struct{}

func NewCopier() *Copier {
	return &Copier{}
}

func userAS(as addrspace.AddrSpace) (*AddrSpace, error) {
	a, ok := as.(*AddrSpace)
	if !ok || a == nil {
		return nil, serr.NewErr(serr.TErrFault, "no user address space")
	}
	return a, nil
}

func (c *Copier) Copyin(as addrspace.AddrSpace, src addrspace.UserPtr, dst []byte) error {
	a, err := userAS(as)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	b, err := a.rangeL(src, len(dst))
	if err != nil {
		return err
	}
	copy(dst, b)
	return nil
}

func (c *Copier) Copyout(as addrspace.AddrSpace, src []byte, dst addrspace.UserPtr) error {
	a, err := userAS(as)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	b, err := a.rangeL(dst, len(src))
	if err != nil {
		return err
	}
	copy(b, src)
	return nil
}

func (c *Copier) Copyinstr(as addrspace.AddrSpace, src addrspace.UserPtr, max int) (string, error) {
	a, err := userAS(as)
	if err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, err := a.rangeL(src, 1); err != nil {
		return "", err
	}
	n := max
	if avail := uint64(len(a.mem)) - uint64(src); avail < uint64(n) {
		n = int(avail)
	}
	b := a.mem[src : uint64(src)+uint64(n)]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i]), nil
	}
	if n < max {
		return "", serr.NewErr(serr.TErrFault, src)
	}
	return "", serr.NewErr(serr.TErrNameTooLong, src)
}
