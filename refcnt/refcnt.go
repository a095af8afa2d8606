package refcnt

import (
	"fmt"

	"go.uber.org/atomic"

	db "oskern/debug"
)

//
// Shared is a payload owned jointly by several holders. Each holder
// calls Release once; the last release runs the release function.
// The descriptor-table lock shared by a process and its forked
// children is held this way.
//

type Shared[T any] struct {
	n       atomic.Int64
	v       *T
	release func(*T)
}

func NewShared[T any](v *T, release func(*T)) *Shared[T] {
	s := &Shared[T]{v: v, release: release}
	s.n.Store(1)
	return s
}

func (s *Shared[T]) Get() *T {
	return s.v
}

func (s *Shared[T]) Acquire() *Shared[T] {
	n := s.n.Inc()
	if n <= 1 {
		db.DFatalf("Acquire on released %p", s)
	}
	db.DPrintf(db.REFCNT, "Acquire %p n %d", s, n)
	return s
}

// Release drops one reference and reports whether it was the last.
func (s *Shared[T]) Release() bool {
	n := s.n.Dec()
	db.DPrintf(db.REFCNT, "Release %p n %d", s, n)
	if n < 0 {
		db.DFatalf("Release %p below zero", s)
	}
	if n > 0 {
		return false
	}
	if s.release != nil {
		s.release(s.v)
	}
	s.v = nil
	return true
}

func (s *Shared[T]) Refs() int64 {
	return s.n.Load()
}

func (s *Shared[T]) String() string {
	return fmt.Sprintf("{n %d %v}", s.n.Load(), s.v)
}
