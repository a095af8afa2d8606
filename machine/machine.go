// Package machine is the user-mode side of the kernel: the register
// set saved at a trap and the means of entering user mode with it.
package machine

import (
	"fmt"
	"sync"

	db "oskern/debug"
	"oskern/proc"
	"oskern/serr"
)

// Trapframe holds the registers the syscall path reads and writes:
// the call number and result in V0, arguments in A0-A3, the error
// flag in A3, the stack pointer and the program counter.
type Trapframe struct {
	V0  uint64
	V1  uint64
	A0  uint64
	A1  uint64
	A2  uint64
	A3  uint64
	SP  uint64
	EPC uint64
}

func (tf *Trapframe) String() string {
	return fmt.Sprintf("{v0 %#x a0 %#x a1 %#x a2 %#x a3 %#x sp %#x epc %#x}",
		tf.V0, tf.A0, tf.A1, tf.A2, tf.A3, tf.SP, tf.EPC)
}

type Machine interface {
	// Enter runs t in user mode starting from tf. It returns when the
	// program stops running without exiting.
	Enter(t *proc.Thread, tf *Trapframe) error
}

// A Program is user code for a GoMachine. It traps into the kernel
// by calling the kernel's syscall entry with its trapframe.
type Program func(t *proc.Thread, tf *Trapframe)

// GoMachine runs Go functions as user code. Each is registered at a
// program counter; Enter runs the one registered at tf.EPC.
type GoMachine struct {
	mu    sync.Mutex
	progs map[uint64]Program
}

func NewGoMachine() *GoMachine {
	return &GoMachine{progs: make(map[uint64]Program)}
}

func (m *GoMachine) Register(pc uint64, prog Program) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progs[pc] = prog
}

func (m *GoMachine) Enter(t *proc.Thread, tf *Trapframe) error {
	m.mu.Lock()
	prog, ok := m.progs[tf.EPC]
	m.mu.Unlock()
	if !ok {
		return serr.NewErr(serr.TErrFault, fmt.Sprintf("pc %#x", tf.EPC))
	}
	db.DPrintf(db.EXEC, "Enter %v %v", t, tf)
	prog(t, tf)
	return nil
}
