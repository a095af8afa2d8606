package vfs

import (
	"strings"

	db "oskern/debug"
	kt "oskern/ktypes"
)

// Mux resolves device names ("con:") itself and hands every other
// path to a backing file system.
type Mux struct {
	devs map[string]Vnode
	fs   Provider
}

func NewMux(fs Provider) *Mux {
	return &Mux{devs: make(map[string]Vnode), fs: fs}
}

func (m *Mux) AddDevice(name string, vn Vnode) {
	m.devs[name] = vn
}

func (m *Mux) Open(pn string, flags kt.Tmode, mode uint32) (Vnode, error) {
	if i := strings.IndexByte(pn, ':'); i >= 0 {
		if vn, ok := m.devs[pn[:i+1]]; ok {
			db.DPrintf(db.KERNEL, "Open device %v %v", pn, flags)
			vn.IncRef()
			return vn, nil
		}
	}
	return m.fs.Open(pn, flags, mode)
}

func (m *Mux) Root() (Vnode, error) {
	return m.fs.Root()
}
