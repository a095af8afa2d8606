package memfs

import (
	"fmt"
	"sync"

	"go.uber.org/atomic"

	"oskern/serr"
	"oskern/vfs"
)

type File struct {
	mu   sync.Mutex
	name string
	data []byte
	refs atomic.Int64
}

func newFile(name string) *File {
	return &File{name: name}
}

func (f *File) String() string {
	return fmt.Sprintf("{%v refs %d}", f.name, f.refs.Load())
}

func (f *File) truncate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data = f.data[:0]
}

func (f *File) contents() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := make([]byte, len(f.data))
	copy(b, f.data)
	return b
}

func (f *File) Read(off int64, b []byte) (int, error) {
	if off < 0 {
		return 0, serr.NewErr(serr.TErrInval, off)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if off >= int64(len(f.data)) {
		return 0, nil
	}
	return copy(b, f.data[off:]), nil
}

func (f *File) Write(off int64, b []byte) (int, error) {
	if off < 0 {
		return 0, serr.NewErr(serr.TErrInval, off)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if end := off + int64(len(b)); end > int64(len(f.data)) {
		if end > int64(cap(f.data)) {
			d := make([]byte, end, 2*end)
			copy(d, f.data)
			f.data = d
		} else {
			// capacity may still hold truncated bytes
			old := len(f.data)
			f.data = f.data[:end]
			clear(f.data[old:])
		}
	}
	return copy(f.data[off:], b), nil
}

func (f *File) Stat() (*vfs.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &vfs.Stat{Name: f.name, Size: int64(len(f.data))}, nil
}

func (f *File) IsSeekable() bool {
	return true
}

func (f *File) IncRef() {
	f.refs.Inc()
}

func (f *File) DecRef() error {
	if f.refs.Dec() < 0 {
		return serr.NewErr(serr.TErrInval, fmt.Sprintf("DecRef %v", f.name))
	}
	return nil
}

func (f *File) Refs() int64 {
	return f.refs.Load()
}

// Dir is the root directory; it holds no data of its own.
type Dir struct {
	refs atomic.Int64
}

func newDir() *Dir {
	return &Dir{}
}

func (d *Dir) Read(off int64, b []byte) (int, error) {
	return 0, serr.NewErr(serr.TErrIsdir, "/")
}

func (d *Dir) Write(off int64, b []byte) (int, error) {
	return 0, serr.NewErr(serr.TErrIsdir, "/")
}

func (d *Dir) Stat() (*vfs.Stat, error) {
	return &vfs.Stat{Name: "/", Dir: true}, nil
}

func (d *Dir) IsSeekable() bool {
	return true
}

func (d *Dir) IncRef() {
	d.refs.Inc()
}

func (d *Dir) DecRef() error {
	d.refs.Dec()
	return nil
}

func (d *Dir) Refs() int64 {
	return d.refs.Load()
}
