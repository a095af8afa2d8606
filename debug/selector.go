package debug

type Tselector string

// ALWAYS
const (
	ALWAYS Tselector = "ALWAYS"
	ERROR  Tselector = "ERROR"
	NEVER  Tselector = "NEVER"
)

// ERR
const (
	ERR Tselector = "_ERR"
)

// Tests
const (
	TEST  Tselector = "TEST"
	TEST1 Tselector = "TEST1"
)

// Boot and configuration
const (
	KERNEL     Tselector = "KERNEL"
	KERNEL_ERR Tselector = KERNEL + ERR
	CONFIG     Tselector = "CONFIG"
)

// Processes
const (
	PIDTABLE  Tselector = "PIDTABLE"
	PROC      Tselector = "PROC"
	PROC_ERR  Tselector = PROC + ERR
	THREAD    Tselector = "THREAD"
	FORK      Tselector = "FORK"
	FORK_ERR  Tselector = FORK + ERR
	WAIT      Tselector = "WAIT"
	EXEC      Tselector = "EXEC"
	EXEC_ERR  Tselector = EXEC + ERR
	SYSCALL   Tselector = "SYSCALL"
	ADDRSPACE Tselector = "ADDRSPACE"
)

// Files
const (
	FDTABLE     Tselector = "FDTABLE"
	FDTABLE_ERR Tselector = FDTABLE + ERR
	REFCNT      Tselector = "REFCNT"
	MEMFS       Tselector = "MEMFS"
	UXFS        Tselector = "UXFS"
	LOADER      Tselector = "LOADER"
)
