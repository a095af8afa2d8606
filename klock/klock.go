//go:build !deadlock

// Package klock provides the mutex used for all kernel locks. Building
// with -tags deadlock swaps in a lock-order checking implementation.
package klock

import (
	"sync"
)

type Mutex = sync.Mutex
