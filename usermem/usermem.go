// Package usermem declares the user-memory copy primitives. The kernel
// never hands user pointers to a file provider; data always passes
// through a kernel buffer via a Copier.
package usermem

import (
	"oskern/addrspace"
)

type Copier interface {
	// Copyin copies len(dst) bytes from user address src.
	Copyin(as addrspace.AddrSpace, src addrspace.UserPtr, dst []byte) error
	// Copyout copies src to user address dst.
	Copyout(as addrspace.AddrSpace, src []byte, dst addrspace.UserPtr) error
	// Copyinstr copies a NUL-terminated string of at most max bytes,
	// terminator included.
	Copyinstr(as addrspace.AddrSpace, src addrspace.UserPtr, max int) (string, error)
}
