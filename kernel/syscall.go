package kernel

import (
	"oskern/addrspace"
	db "oskern/debug"
	kt "oskern/ktypes"
	"oskern/machine"
	"oskern/proc"
	"oskern/serr"
)

// System call numbers, passed in V0.
const (
	SYS_fork = iota
	SYS_execv
	SYS_exit
	SYS_waitpid
	SYS_getpid
	SYS_getppid
	SYS_open
	SYS_close
	SYS_read
	SYS_write
	SYS_lseek
	SYS_dup2
)

var names = map[uint64]string{
	SYS_fork:    "fork",
	SYS_execv:   "execv",
	SYS_exit:    "exit",
	SYS_waitpid: "waitpid",
	SYS_getpid:  "getpid",
	SYS_getppid: "getppid",
	SYS_open:    "open",
	SYS_close:   "close",
	SYS_read:    "read",
	SYS_write:   "write",
	SYS_lseek:   "lseek",
	SYS_dup2:    "dup2",
}

// Syscall handles a trap from user mode. On return V0 holds the result
// and A3 is 0, or V0 holds an errno and A3 is 1; EPC points past the
// trapping instruction. exit and a successful execv do not return.
func (k *Kernel) Syscall(t *proc.Thread, tf *machine.Trapframe) {
	callno := tf.V0
	k.stats.Syscalls.Inc()
	db.DPrintf(db.SYSCALL, "%v %v %v", t, names[callno], tf)

	var r uint64
	var err error
	switch callno {
	case SYS_fork:
		var pid kt.Tpid
		pid, err = k.Fork(t, tf)
		r = uint64(pid)
	case SYS_execv:
		err = k.Execv(t, addrspace.UserPtr(tf.A0), addrspace.UserPtr(tf.A1))
	case SYS_exit:
		k.Exit(t, int(int32(tf.A0)))
	case SYS_waitpid:
		var pid kt.Tpid
		pid, err = k.Waitpid(t, kt.Tpid(int32(tf.A0)), addrspace.UserPtr(tf.A1), int(tf.A2))
		r = uint64(pid)
	case SYS_getpid:
		r = uint64(k.Getpid(t))
	case SYS_getppid:
		r = uint64(k.Getppid(t))
	case SYS_open:
		var fd kt.Tfd
		fd, err = k.Open(t, addrspace.UserPtr(tf.A0), kt.Tmode(tf.A1), uint32(tf.A2))
		r = uint64(fd)
	case SYS_close:
		err = k.Close(t, kt.Tfd(int32(tf.A0)))
	case SYS_read:
		var n int
		n, err = k.Read(t, kt.Tfd(int32(tf.A0)), addrspace.UserPtr(tf.A1), int(int32(tf.A2)))
		r = uint64(n)
	case SYS_write:
		var n int
		n, err = k.Write(t, kt.Tfd(int32(tf.A0)), addrspace.UserPtr(tf.A1), int(int32(tf.A2)))
		r = uint64(n)
	case SYS_lseek:
		var off int64
		off, err = k.Lseek(t, kt.Tfd(int32(tf.A0)), int64(tf.A1), kt.Twhence(int32(tf.A2)))
		r = uint64(off)
	case SYS_dup2:
		var fd kt.Tfd
		fd, err = k.Dup2(t, kt.Tfd(int32(tf.A0)), kt.Tfd(int32(tf.A1)))
		r = uint64(fd)
	default:
		err = serr.NewErr(serr.TErrNosys, callno)
	}

	if err != nil {
		db.DPrintf(db.SYSCALL, "%v %v err %v", t, names[callno], err)
		tf.V0 = uint64(serr.Errno(err))
		tf.A3 = 1
	} else {
		tf.V0 = r
		tf.A3 = 0
	}
	tf.EPC += 4
}
