//go:build linux
// +build linux

// Package uxfs is a file provider backed by a directory on the host.
package uxfs

import (
	"fmt"
	"path/filepath"

	"go.uber.org/atomic"
	"golang.org/x/sys/unix"

	db "oskern/debug"
	kt "oskern/ktypes"
	"oskern/serr"
	"oskern/vfs"
)

type FsUx struct {
	root string
}

func NewFsUx(root string) (*FsUx, error) {
	var st unix.Stat_t
	if err := unix.Stat(root, &st); err != nil {
		return nil, serr.UxErrnoToErr(err, root)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFDIR {
		return nil, serr.NewErr(serr.TErrNotDir, root)
	}
	return &FsUx{root: root}, nil
}

// host resolves pn inside the root; ".." cannot climb out of it.
func (fs *FsUx) host(pn string) string {
	return filepath.Join(fs.root, filepath.Clean("/"+pn))
}

// O_APPEND is left to the descriptor layer, which tracks offsets
// itself and uses positional I/O.
func uxFlags(m kt.Tmode) int {
	f := unix.O_CLOEXEC
	switch m.Access() {
	case kt.O_WRONLY:
		f |= unix.O_WRONLY
	case kt.O_RDWR:
		f |= unix.O_RDWR
	default:
		f |= unix.O_RDONLY
	}
	if m&kt.O_CREAT != 0 {
		f |= unix.O_CREAT
	}
	if m&kt.O_EXCL != 0 {
		f |= unix.O_EXCL
	}
	if m&kt.O_TRUNC != 0 {
		f |= unix.O_TRUNC
	}
	if m&kt.O_NOCTTY != 0 {
		f |= unix.O_NOCTTY
	}
	return f
}

func (fs *FsUx) Open(pn string, flags kt.Tmode, mode uint32) (vfs.Vnode, error) {
	path := fs.host(pn)
	db.DPrintf(db.UXFS, "Open %v flags %v ux %#x", path, flags, uxFlags(flags))
	fd, err := unix.Open(path, uxFlags(flags), mode)
	if err != nil {
		db.DPrintf(db.UXFS, "Open %v err %v", path, err)
		return nil, serr.UxErrnoToErr(err, pn)
	}
	f := &File{fd: fd, name: pn}
	f.refs.Store(1)
	return f, nil
}

func (fs *FsUx) Root() (vfs.Vnode, error) {
	return fs.Open("/", kt.O_RDONLY, 0)
}

type File struct {
	fd   int
	name string
	refs atomic.Int64
}

func (f *File) String() string {
	return fmt.Sprintf("{%v fd %d refs %d}", f.name, f.fd, f.refs.Load())
}

func (f *File) Read(off int64, b []byte) (int, error) {
	n, err := unix.Pread(f.fd, b, off)
	if err != nil {
		return 0, serr.UxErrnoToErr(err, f.name)
	}
	return n, nil
}

func (f *File) Write(off int64, b []byte) (int, error) {
	n, err := unix.Pwrite(f.fd, b, off)
	if err != nil {
		return 0, serr.UxErrnoToErr(err, f.name)
	}
	return n, nil
}

func (f *File) fstat() (*unix.Stat_t, error) {
	var st unix.Stat_t
	if err := unix.Fstat(f.fd, &st); err != nil {
		return nil, serr.UxErrnoToErr(err, f.name)
	}
	return &st, nil
}

func (f *File) Stat() (*vfs.Stat, error) {
	st, err := f.fstat()
	if err != nil {
		return nil, err
	}
	return &vfs.Stat{
		Name: filepath.Base(f.name),
		Size: st.Size,
		Dir:  st.Mode&unix.S_IFMT == unix.S_IFDIR,
	}, nil
}

// Pipes, sockets and devices on the host are streams.
func (f *File) IsSeekable() bool {
	st, err := f.fstat()
	if err != nil {
		return false
	}
	m := st.Mode & unix.S_IFMT
	return m == unix.S_IFREG || m == unix.S_IFDIR
}

func (f *File) IncRef() {
	f.refs.Inc()
}

func (f *File) DecRef() error {
	if n := f.refs.Dec(); n > 0 {
		return nil
	} else if n < 0 {
		db.DFatalf("DecRef %v", f)
	}
	db.DPrintf(db.UXFS, "Close %v", f)
	if err := unix.Close(f.fd); err != nil {
		return serr.UxErrnoToErr(err, f.name)
	}
	return nil
}

func (f *File) Refs() int64 {
	return f.refs.Load()
}
