// Package ktypes holds the small value types shared across the kernel's
// packages: identifiers, open flags, seek and wait constants.
package ktypes

import (
	"fmt"
	"strconv"
)

type Tpid int32
type Ttid uint64
type Tfd int32
type Toffset int64

const NoPid Tpid = 0

func (pid Tpid) String() string {
	return strconv.Itoa(int(pid))
}

// Open flags
type Tmode uint32

const (
	O_RDONLY  Tmode = 0
	O_WRONLY  Tmode = 1
	O_RDWR    Tmode = 2
	O_ACCMODE Tmode = 3
	O_CREAT   Tmode = 4
	O_EXCL    Tmode = 8
	O_TRUNC   Tmode = 16
	O_APPEND  Tmode = 32
	O_NOCTTY  Tmode = 64
)

func (m Tmode) Access() Tmode {
	return m & O_ACCMODE
}

func (m Tmode) CanRead() bool {
	return m.Access() == O_RDONLY || m.Access() == O_RDWR
}

func (m Tmode) CanWrite() bool {
	return m.Access() == O_WRONLY || m.Access() == O_RDWR
}

func (m Tmode) String() string {
	s := "?"
	switch m.Access() {
	case O_RDONLY:
		s = "r"
	case O_WRONLY:
		s = "w"
	case O_RDWR:
		s = "rw"
	}
	if m&O_APPEND != 0 {
		s += "a"
	}
	return fmt.Sprintf("m %v", s)
}

// Whence values for lseek
type Twhence int

const (
	SEEK_SET Twhence = 0
	SEEK_CUR Twhence = 1
	SEEK_END Twhence = 2
)

// Options for waitpid
const (
	WNOHANG   = 1
	WUNTRACED = 2
)

// Standard descriptors set up for programs started from the kernel menu
const (
	STDIN_FILENO  Tfd = 0
	STDOUT_FILENO Tfd = 1
	STDERR_FILENO Tfd = 2
)

// Wait status encoding, as seen by user programs
func MkWaitExit(code int) int {
	return (code & 0xff) << 2
}

func WaitExitStatus(status int) int {
	return (status >> 2) & 0xff
}
