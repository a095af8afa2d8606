package proc

type Tstate uint8

const (
	StateRunning Tstate = iota + 1
	StateZombie
	StateReaped // claimed by a reaper; destruction follows
)

func (st Tstate) String() string {
	switch st {
	case StateRunning:
		return "RUNNING"
	case StateZombie:
		return "ZOMBIE"
	case StateReaped:
		return "REAPED"
	default:
		return "unknown state"
	}
}
