package main

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"oskern/addrspace"
	"oskern/kernel"
	kt "oskern/ktypes"
	"oskern/machine"
	"oskern/proc"
	"oskern/usermem"
)

const (
	textBase = 0x10000
	dataBase = 0x20000
	NCHILD   = 3
)

type program struct {
	pn    string
	entry uint64
}

// demo holds the user programs run at boot. They are Go functions on
// the Go machine and reach the kernel only through Syscall.
type demo struct {
	k     *kernel.Kernel
	cp    usermem.Copier
	mach  *machine.GoMachine
	pc    uint64
	progs []program
}

func newDemo(cp usermem.Copier, mach *machine.GoMachine) *demo {
	d := &demo{cp: cp, mach: mach, pc: textBase}
	d.add("/bin/dup", d.dup)
	d.add("/bin/fork", d.fork)
	return d
}

func (d *demo) programs() []program {
	return d.progs
}

func (d *demo) register(body func(u *user)) uint64 {
	d.pc += 0x10
	pc := d.pc
	d.mach.Register(pc, func(t *proc.Thread, tf *machine.Trapframe) {
		body(&user{d: d, t: t, tf: tf, brk: dataBase})
	})
	return pc
}

func (d *demo) add(pn string, body func(u *user)) {
	d.progs = append(d.progs, program{pn, d.register(body)})
}

type user struct {
	d   *demo
	t   *proc.Thread
	tf  *machine.Trapframe
	brk addrspace.UserPtr
}

func (u *user) sys(num uint64, args ...uint64) (uint64, error) {
	u.tf.V0 = num
	for i, r := range []*uint64{&u.tf.A0, &u.tf.A1, &u.tf.A2, &u.tf.A3} {
		*r = 0
		if i < len(args) {
			*r = args[i]
		}
	}
	u.d.k.Syscall(u.t, u.tf)
	if u.tf.A3 != 0 {
		return 0, fmt.Errorf("syscall %d: errno %d", num, u.tf.V0)
	}
	return u.tf.V0, nil
}

func (u *user) put(b []byte) addrspace.UserPtr {
	p := u.brk
	u.brk += addrspace.UserPtr((len(b) + 7) &^ 7)
	if err := u.d.cp.Copyout(u.t.Proc().GetAS(), b, p); err != nil {
		u.fail(err)
	}
	return p
}

func (u *user) printf(format string, v ...interface{}) {
	b := []byte(fmt.Sprintf(format, v...))
	u.sys(kernel.SYS_write, uint64(kt.STDOUT_FILENO), uint64(u.put(b)), uint64(len(b)))
}

func (u *user) fail(err error) {
	u.printf("%v: %v\n", u.t.Name(), err)
	u.sys(kernel.SYS_exit, 1)
}

func (u *user) must(r uint64, err error) uint64 {
	if err != nil {
		u.fail(err)
	}
	return r
}

// dup writes two records, duplicates the descriptor twice, closes two
// of the three and reads everything back through the last one.
func (d *demo) dup(u *user) {
	b1 := bytes.Repeat([]byte("abcdefghi"), 5)
	b2 := bytes.Repeat([]byte("012345678"), 5)

	pn := u.put([]byte("a.txt\x00"))
	fd := u.must(u.sys(kernel.SYS_open, uint64(pn), uint64(kt.O_CREAT|kt.O_TRUNC|kt.O_RDWR), 0644))
	u.must(u.sys(kernel.SYS_write, fd, uint64(u.put(b1)), uint64(len(b1))))
	u.must(u.sys(kernel.SYS_write, fd, uint64(u.put(b2)), uint64(len(b2))))
	fd1 := u.must(u.sys(kernel.SYS_dup2, fd, fd+1))
	fd2 := u.must(u.sys(kernel.SYS_dup2, fd, fd+2))
	u.must(u.sys(kernel.SYS_close, fd))
	u.must(u.sys(kernel.SYS_close, fd1))
	u.must(u.sys(kernel.SYS_lseek, fd2, 0, uint64(kt.SEEK_SET)))

	buf := u.put(make([]byte, len(b1)+len(b2)))
	n := u.must(u.sys(kernel.SYS_read, fd2, uint64(buf), uint64(len(b1)+len(b2))))
	got := make([]byte, n)
	if err := u.d.cp.Copyin(u.t.Proc().GetAS(), buf, got); err != nil {
		u.fail(err)
	}
	if !bytes.Equal(got, append(b1, b2...)) {
		u.printf("dup: read back %q\n", got)
		u.sys(kernel.SYS_exit, 1)
	}
	u.printf("dup: read back %d bytes intact\n", n)
}

// fork starts NCHILD children and reaps them in order.
func (d *demo) fork(u *user) {
	child := d.register(func(u *user) {
		pid := u.must(u.sys(kernel.SYS_getpid))
		ppid := u.must(u.sys(kernel.SYS_getppid))
		u.printf("child %d of %d\n", pid, ppid)
		u.sys(kernel.SYS_exit, pid%100)
	})

	var pids []uint64
	for i := 0; i < NCHILD; i++ {
		u.tf.EPC = child - 4
		pids = append(pids, u.must(u.sys(kernel.SYS_fork)))
	}
	statusp := u.put(make([]byte, 4))
	for _, pid := range pids {
		u.must(u.sys(kernel.SYS_waitpid, pid, uint64(statusp), 0))
		var b [4]byte
		if err := u.d.cp.Copyin(u.t.Proc().GetAS(), statusp, b[:]); err != nil {
			u.fail(err)
		}
		u.printf("reaped %d status %d\n", pid, kt.WaitExitStatus(int(binary.LittleEndian.Uint32(b[:]))))
	}
}
