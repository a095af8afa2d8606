package loader

import (
	"debug/elf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oskern/addrspace"
	"oskern/addrspace/memas"
	kt "oskern/ktypes"
	"oskern/memfs"
	"oskern/serr"
)

const (
	VADDR = 0x2000
	ENTRY = 0x2010
)

type Tstate struct {
	*testing.T
	fs  *memfs.FsMem
	asp *memas.Provider
	cp  *memas.Copier
	ld  *ELF
}

func newTstate(t *testing.T) *Tstate {
	ts := &Tstate{T: t, fs: memfs.NewFsMem(), asp: memas.NewProvider(64*1024, 4096), cp: memas.NewCopier()}
	ts.ld = NewELF(ts.cp, elf.EM_MIPS)
	return ts
}

func (ts *Tstate) load(pn string) (addrspace.AddrSpace, addrspace.UserPtr, error) {
	vn, err := ts.fs.Open(pn, kt.O_RDONLY, 0)
	require.Nil(ts.T, err)
	defer vn.DecRef()
	as, err := ts.asp.Create()
	require.Nil(ts.T, err)
	entry, err := ts.ld.Load(as, vn)
	return as, entry, err
}

func TestLoad(t *testing.T) {
	ts := newTstate(t)
	text := []byte("\x01\x02\x03\x04 program text")
	ts.fs.Create("prog", BuildELF(elf.EM_MIPS, ENTRY, VADDR, text))

	as, entry, err := ts.load("prog")
	assert.Nil(t, err)
	assert.Equal(t, addrspace.UserPtr(ENTRY), entry)
	b := make([]byte, len(text))
	assert.Nil(t, ts.cp.Copyin(as, VADDR, b))
	assert.Equal(t, text, b)
}

func TestNotELF(t *testing.T) {
	ts := newTstate(t)
	ts.fs.Create("junk", []byte("#!/bin/sh\necho hi\n"))
	_, _, err := ts.load("junk")
	assert.True(t, serr.IsErrCode(err, serr.TErrNoExec), "err %v", err)
}

func TestWrongMachine(t *testing.T) {
	ts := newTstate(t)
	ts.fs.Create("x86", BuildELF(elf.EM_X86_64, ENTRY, VADDR, []byte("text")))
	_, _, err := ts.load("x86")
	assert.True(t, serr.IsErrCode(err, serr.TErrNoExec), "err %v", err)

	ts.ld = NewELF(ts.cp, elf.EM_NONE)
	_, _, err = ts.load("x86")
	assert.Nil(t, err)
}

func TestBadSegment(t *testing.T) {
	ts := newTstate(t)
	ts.fs.Create("low", BuildELF(elf.EM_MIPS, 0x10, 0x10, []byte("text")))
	_, _, err := ts.load("low")
	assert.True(t, serr.IsErrCode(err, serr.TErrNomem), "err %v", err)
}

func TestDir(t *testing.T) {
	ts := newTstate(t)
	root, err := ts.fs.Root()
	require.Nil(t, err)
	as, err := ts.asp.Create()
	require.Nil(t, err)
	_, err = ts.ld.Load(as, root)
	assert.True(t, serr.IsErrCode(err, serr.TErrIsdir), "err %v", err)
}
