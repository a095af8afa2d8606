package memfs

import (
	"path"
	"sync"

	db "oskern/debug"
	kt "oskern/ktypes"
	"oskern/serr"
	"oskern/vfs"
)

//
// An in-memory file system with a single flat directory. Files live
// until removed, independent of how many vnode references are open.
//

type FsMem struct {
	mu    sync.Mutex
	root  *Dir
	files map[string]*File
}

func NewFsMem() *FsMem {
	return &FsMem{
		root:  newDir(),
		files: make(map[string]*File),
	}
}

func clean(pn string) string {
	return path.Clean("/" + pn)[1:]
}

func (fs *FsMem) Root() (vfs.Vnode, error) {
	fs.root.IncRef()
	return fs.root, nil
}

func (fs *FsMem) Open(pn string, flags kt.Tmode, mode uint32) (vfs.Vnode, error) {
	name := clean(pn)
	db.DPrintf(db.MEMFS, "Open %q %v mode %o", name, flags, mode)
	if name == "" {
		if flags.Access() != kt.O_RDONLY {
			return nil, serr.NewErr(serr.TErrIsdir, pn)
		}
		return fs.Root()
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	f, ok := fs.files[name]
	if ok {
		if flags&kt.O_CREAT != 0 && flags&kt.O_EXCL != 0 {
			return nil, serr.NewErr(serr.TErrExists, pn)
		}
	} else {
		if flags&kt.O_CREAT == 0 {
			return nil, serr.NewErr(serr.TErrNotfound, pn)
		}
		f = newFile(name)
		fs.files[name] = f
	}
	if flags&kt.O_TRUNC != 0 {
		f.truncate()
	}
	f.IncRef()
	return f, nil
}

// Create makes (or replaces the contents of) a file.
func (fs *FsMem) Create(pn string, data []byte) {
	vn, err := fs.Open(pn, kt.O_CREAT|kt.O_TRUNC|kt.O_WRONLY, 0644)
	if err != nil {
		db.DFatalf("Create %v: %v", pn, err)
	}
	f := vn.(*File)
	f.Write(0, data)
	f.DecRef()
}

func (fs *FsMem) ReadFile(pn string) ([]byte, error) {
	f, ok := fs.Lookup(pn)
	if !ok {
		return nil, serr.NewErr(serr.TErrNotfound, pn)
	}
	return f.contents(), nil
}

func (fs *FsMem) Remove(pn string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name := clean(pn)
	if _, ok := fs.files[name]; !ok {
		return serr.NewErr(serr.TErrNotfound, pn)
	}
	delete(fs.files, name)
	return nil
}

// Lookup returns the file for pn without taking a reference.
func (fs *FsMem) Lookup(pn string) (*File, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	f, ok := fs.files[clean(pn)]
	return f, ok
}
