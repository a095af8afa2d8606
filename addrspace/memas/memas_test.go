package memas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oskern/addrspace"
	"oskern/serr"
)

const (
	MEMSZ   = 64 * 1024
	STACKSZ = 8 * 1024
)

func TestCopyinout(t *testing.T) {
	p := NewProvider(MEMSZ, STACKSZ)
	c := NewCopier()
	as, err := p.Create()
	require.Nil(t, err)

	err = c.Copyout(as, []byte("hello\x00"), 0x2000)
	assert.Nil(t, err)
	b := make([]byte, 5)
	err = c.Copyin(as, 0x2000, b)
	assert.Nil(t, err)
	assert.Equal(t, "hello", string(b))

	s, err := c.Copyinstr(as, 0x2000, 64)
	assert.Nil(t, err)
	assert.Equal(t, "hello", s)

	_, err = c.Copyinstr(as, 0x2000, 3)
	assert.True(t, serr.IsErrCode(err, serr.TErrNameTooLong), "err %v", err)

	err = c.Copyin(as, 0, b)
	assert.True(t, serr.IsErrCode(err, serr.TErrFault))
	err = c.Copyout(as, b, MEMSZ-2)
	assert.True(t, serr.IsErrCode(err, serr.TErrFault))

	// no terminator before the end of memory
	err = c.Copyout(as, []byte("xy"), MEMSZ-2)
	assert.Nil(t, err)
	_, err = c.Copyinstr(as, MEMSZ-2, 64)
	assert.True(t, serr.IsErrCode(err, serr.TErrFault))
}

func TestWrapAround(t *testing.T) {
	p := NewProvider(MEMSZ, STACKSZ)
	c := NewCopier()
	as, err := p.Create()
	require.Nil(t, err)

	top := ^addrspace.UserPtr(0)
	b := make([]byte, 16)
	err = c.Copyout(as, b, top-7)
	assert.True(t, serr.IsErrCode(err, serr.TErrFault), "err %v", err)
	err = c.Copyin(as, top-7, b)
	assert.True(t, serr.IsErrCode(err, serr.TErrFault), "err %v", err)
	_, err = c.Copyinstr(as, top, 64)
	assert.True(t, serr.IsErrCode(err, serr.TErrFault), "err %v", err)
	_, err = c.Copyinstr(as, MEMSZ, 64)
	assert.True(t, serr.IsErrCode(err, serr.TErrFault), "err %v", err)
}

func TestCopyIsIndependent(t *testing.T) {
	p := NewProvider(MEMSZ, STACKSZ)
	c := NewCopier()
	as, err := p.Create()
	require.Nil(t, err)
	err = c.Copyout(as, []byte("parent"), 0x3000)
	require.Nil(t, err)

	as1, err := p.Copy(as)
	require.Nil(t, err)
	assert.Equal(t, int64(2), p.Live())

	err = c.Copyout(as1, []byte("child!"), 0x3000)
	require.Nil(t, err)

	b := make([]byte, 6)
	c.Copyin(as, 0x3000, b)
	assert.Equal(t, "parent", string(b))
	c.Copyin(as1, 0x3000, b)
	assert.Equal(t, "child!", string(b))

	p.Destroy(as)
	p.Destroy(as1)
	assert.Equal(t, int64(0), p.Live())

	_, err = p.Copy(as)
	assert.True(t, serr.IsErrCode(err, serr.TErrInval))
}

func TestRegions(t *testing.T) {
	p := NewProvider(MEMSZ, STACKSZ)
	as, err := p.Create()
	require.Nil(t, err)

	err = as.DefineRegion(0x1000, 0x1000, addrspace.PermR|addrspace.PermX)
	assert.Nil(t, err)
	err = as.DefineRegion(MEMSZ-STACKSZ-10, 100, addrspace.PermR)
	assert.True(t, serr.IsErrCode(err, serr.TErrNomem))

	sp, err := as.DefineStack()
	assert.Nil(t, err)
	assert.Equal(t, addrspace.UserPtr(MEMSZ), sp)
}

func TestActivate(t *testing.T) {
	p := NewProvider(MEMSZ, STACKSZ)
	as, _ := p.Create()
	assert.Nil(t, p.Active())
	p.Activate(as)
	assert.Equal(t, as, p.Active())
	p.Deactivate()
	assert.Nil(t, p.Active())
}
