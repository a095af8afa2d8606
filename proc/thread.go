package proc

import (
	"fmt"

	"go.uber.org/atomic"

	kt "oskern/ktypes"
)

type Thread struct {
	tid  kt.Ttid
	name string
	proc atomic.Pointer[Proc]
}

func (t *Thread) String() string {
	return fmt.Sprintf("{t%d %q %v}", t.tid, t.name, t.proc.Load())
}

func (t *Thread) Tid() kt.Ttid {
	return t.tid
}

func (t *Thread) Name() string {
	return t.name
}

// Proc returns the process t belongs to, or nil once it has been
// detached from it.
func (t *Thread) Proc() *Proc {
	return t.proc.Load()
}
