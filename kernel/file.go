package kernel

import (
	"oskern/addrspace"
	db "oskern/debug"
	"oskern/fdtable"
	kt "oskern/ktypes"
	"oskern/proc"
)

func (k *Kernel) Open(t *proc.Thread, pathp addrspace.UserPtr, flags kt.Tmode, mode uint32) (kt.Tfd, error) {
	p := t.Proc()
	pn, err := k.copier.Copyinstr(p.GetAS(), pathp, k.cfg.PathMax)
	if err != nil {
		return -1, err
	}
	fd, err := p.Files().Open(k.vfs, pn, flags, mode)
	if err != nil {
		db.DPrintf(db.SYSCALL, "%v Open %q: %v", p, pn, err)
		return -1, err
	}
	return fd, nil
}

func (k *Kernel) Close(t *proc.Thread, fd kt.Tfd) error {
	return t.Proc().Files().Close(fd)
}

func (k *Kernel) Read(t *proc.Thread, fd kt.Tfd, buf addrspace.UserPtr, n int) (int, error) {
	p := t.Proc()
	return p.Files().Read(fd, fdtable.UserBuf{As: p.GetAS(), Ptr: buf, Len: n})
}

func (k *Kernel) Write(t *proc.Thread, fd kt.Tfd, buf addrspace.UserPtr, n int) (int, error) {
	p := t.Proc()
	return p.Files().Write(fd, fdtable.UserBuf{As: p.GetAS(), Ptr: buf, Len: n})
}

func (k *Kernel) Lseek(t *proc.Thread, fd kt.Tfd, off int64, whence kt.Twhence) (int64, error) {
	return t.Proc().Files().Lseek(fd, off, whence)
}

func (k *Kernel) Dup2(t *proc.Thread, oldfd, newfd kt.Tfd) (kt.Tfd, error) {
	return t.Proc().Files().Dup2(oldfd, newfd)
}
