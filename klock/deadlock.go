//go:build deadlock

package klock

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

type Mutex = deadlock.Mutex

func init() {
	deadlock.Opts.DeadlockTimeout = 10 * time.Second
}
