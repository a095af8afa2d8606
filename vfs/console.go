package vfs

import (
	"io"
	"sync"

	"go.uber.org/atomic"
)

// Console is the "con:" device: a non-seekable character device over
// a reader and a writer. Offsets are ignored.
type Console struct {
	mu   sync.Mutex
	in   io.Reader
	out  io.Writer
	refs atomic.Int64
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

func (c *Console) Read(off int64, b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.in == nil {
		return 0, nil
	}
	n, err := c.in.Read(b)
	if err == io.EOF {
		return n, nil
	}
	return n, err
}

func (c *Console) Write(off int64, b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.out == nil {
		return len(b), nil
	}
	return c.out.Write(b)
}

func (c *Console) Stat() (*Stat, error) {
	return &Stat{Name: "con:"}, nil
}

func (c *Console) IsSeekable() bool {
	return false
}

func (c *Console) IncRef() {
	c.refs.Inc()
}

func (c *Console) DecRef() error {
	c.refs.Dec()
	return nil
}

func (c *Console) Refs() int64 {
	return c.refs.Load()
}
