// Package vfs declares the file provider the descriptor layer sits on.
// A Vnode is reference counted: Open returns a new reference and
// DecRef releases it.
package vfs

import (
	"fmt"

	kt "oskern/ktypes"
)

type Stat struct {
	Name string
	Size int64
	Dir  bool
}

func (st *Stat) String() string {
	return fmt.Sprintf("{%v sz %d dir %v}", st.Name, st.Size, st.Dir)
}

type Vnode interface {
	// Read and Write move at most len(b) bytes at off. A short count
	// with a nil error means end of file or backpressure.
	Read(off int64, b []byte) (int, error)
	Write(off int64, b []byte) (int, error)
	Stat() (*Stat, error)
	IsSeekable() bool
	IncRef()
	DecRef() error
}

type Provider interface {
	Open(pn string, flags kt.Tmode, mode uint32) (Vnode, error)
	Root() (Vnode, error)
}
