// Package addrspace declares the address-space collaborator: user
// address spaces are created, copied on fork, activated on the current
// CPU and destroyed when their process is reaped.
package addrspace

import (
	"fmt"
)

type UserPtr uint64

const NullPtr UserPtr = 0

func (p UserPtr) String() string {
	return fmt.Sprintf("0x%x", uint64(p))
}

type Tperm uint8

const (
	PermR Tperm = 1 << iota
	PermW
	PermX
)

type AddrSpace interface {
	DefineRegion(vaddr UserPtr, sz int, perm Tperm) error
	DefineStack() (UserPtr, error)
}

type Provider interface {
	Create() (AddrSpace, error)
	Copy(old AddrSpace) (AddrSpace, error)
	Destroy(as AddrSpace)
	Activate(as AddrSpace)
	Deactivate()
	Active() AddrSpace
}
