// Package serr defines the kernel's error codes. Every code has a POSIX
// errno counterpart, which is what the syscall layer hands back to user
// programs.
package serr

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

type Terror uint32

const (
	TErrNoError Terror = iota
	TErrBadFd          // EBADF
	TErrMfile          // EMFILE
	TErrNomem          // ENOMEM
	TErrNproc          // ENPROC
	TErrInval          // EINVAL
	TErrSpipe          // ESPIPE
	TErrRange          // ERANGE
	TErrBusy           // EBUSY
	TErrChild          // ECHILD
	TErrFault          // EFAULT
	TErrNotfound       // ENOENT
	TErrExists         // EEXIST
	TErrNameTooLong    // ENAMETOOLONG
	TErr2Big           // E2BIG
	TErrNoExec         // ENOEXEC
	TErrIsdir          // EISDIR
	TErrNotDir         // ENOTDIR
	TErrIO             // EIO
	TErrNosys          // ENOSYS
	TErrError          // wraps a go error
)

var errnos = map[Terror]unix.Errno{
	TErrBadFd:       unix.EBADF,
	TErrMfile:       unix.EMFILE,
	TErrNomem:       unix.ENOMEM,
	TErrNproc:       unix.EAGAIN, // linux has no ENPROC
	TErrInval:       unix.EINVAL,
	TErrSpipe:       unix.ESPIPE,
	TErrRange:       unix.ERANGE,
	TErrBusy:        unix.EBUSY,
	TErrChild:       unix.ECHILD,
	TErrFault:       unix.EFAULT,
	TErrNotfound:    unix.ENOENT,
	TErrExists:      unix.EEXIST,
	TErrNameTooLong: unix.ENAMETOOLONG,
	TErr2Big:        unix.E2BIG,
	TErrNoExec:      unix.ENOEXEC,
	TErrIsdir:       unix.EISDIR,
	TErrNotDir:      unix.ENOTDIR,
	TErrIO:          unix.EIO,
	TErrNosys:       unix.ENOSYS,
	TErrError:       unix.EIO,
}

func (err Terror) String() string {
	switch err {
	case TErrNoError:
		return "No error"
	case TErrBadFd:
		return "bad file descriptor"
	case TErrMfile:
		return "too many open files"
	case TErrNomem:
		return "out of memory"
	case TErrNproc:
		return "too many processes"
	case TErrInval:
		return "invalid argument"
	case TErrSpipe:
		return "illegal seek"
	case TErrRange:
		return "result too large"
	case TErrBusy:
		return "device or resource busy"
	case TErrChild:
		return "no child process"
	case TErrFault:
		return "bad address"
	case TErrNotfound:
		return "file not found"
	case TErrExists:
		return "file exists"
	case TErrNameTooLong:
		return "name too long"
	case TErr2Big:
		return "argument list too long"
	case TErrNoExec:
		return "exec format error"
	case TErrIsdir:
		return "is a directory"
	case TErrNotDir:
		return "not a directory"
	case TErrIO:
		return "input/output error"
	case TErrNosys:
		return "function not implemented"
	case TErrError:
		return "error"
	default:
		return "unknown error"
	}
}

// Errno returns the POSIX error number for err.
func (err Terror) Errno() unix.Errno {
	if e, ok := errnos[err]; ok {
		return e
	}
	return unix.EIO
}

type Err struct {
	ErrCode Terror
	Obj     string
	Err     error
}

func NewErr(code Terror, obj interface{}) *Err {
	return &Err{code, fmt.Sprintf("%v", obj), nil}
}

func NewErrError(error error) *Err {
	return &Err{TErrError, "", error}
}

func (err *Err) Code() Terror {
	return err.ErrCode
}

func (err *Err) Unwrap() error { return err.Err }

func (err *Err) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("{Err: %q Obj: %q (%v)}", err.ErrCode, err.Obj, err.Err)
	}
	return fmt.Sprintf("{Err: %q Obj: %q}", err.ErrCode, err.Obj)
}

func (err *Err) String() string {
	return err.Error()
}

func IsErr(error error) (*Err, bool) {
	var err *Err
	if errors.As(error, &err) {
		return err, true
	}
	return nil, false
}

func IsErrCode(error error, code Terror) bool {
	if err, ok := IsErr(error); ok {
		return err.ErrCode == code
	}
	return false
}

// Errno maps any error to the errno reported to user programs.
func Errno(error error) unix.Errno {
	if err, ok := IsErr(error); ok {
		if err.ErrCode == TErrError {
			var en unix.Errno
			if errors.As(err.Err, &en) {
				return en
			}
		}
		return err.ErrCode.Errno()
	}
	var en unix.Errno
	if errors.As(error, &en) {
		return en
	}
	return unix.EIO
}

// UxErrnoToErr converts a host errno into the matching kernel error.
func UxErrnoToErr(error error, obj interface{}) *Err {
	var en unix.Errno
	if !errors.As(error, &en) {
		return &Err{TErrError, fmt.Sprintf("%v", obj), error}
	}
	for code, e := range errnos {
		if e == en && code != TErrError && code != TErrNproc {
			return NewErr(code, obj)
		}
	}
	return &Err{TErrError, fmt.Sprintf("%v", obj), error}
}
