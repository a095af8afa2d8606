package serr

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestErrno(t *testing.T) {
	assert.Equal(t, unix.EBADF, Errno(NewErr(TErrBadFd, 3)))
	assert.Equal(t, unix.EAGAIN, Errno(NewErr(TErrNproc, "fork")))
	assert.Equal(t, unix.ENOSYS, Errno(NewErr(TErrNosys, 99)))
	assert.Equal(t, unix.EPERM, Errno(NewErrError(unix.EPERM)))
	assert.Equal(t, unix.EIO, Errno(fmt.Errorf("boom")))
}

func TestWrapped(t *testing.T) {
	err := fmt.Errorf("open: %w", NewErr(TErrMfile, "x"))
	assert.True(t, IsErrCode(err, TErrMfile))
	assert.False(t, IsErrCode(err, TErrBadFd))
	assert.Equal(t, unix.EMFILE, Errno(err))
}

func TestUxErrnoToErr(t *testing.T) {
	_, err := os.Open("/does/not/exist")
	e := UxErrnoToErr(err, "exist")
	assert.Equal(t, TErrNotfound, e.Code())
	assert.Equal(t, TErrError, UxErrnoToErr(fmt.Errorf("x"), "y").Code())
	assert.Equal(t, TErrIO, UxErrnoToErr(unix.EIO, "y").Code())
}
