// Package freelist recycles fixed-size objects, such as the kernel's
// bounce buffers for file I/O.
package freelist

import (
	"sync"
)

type FreeList[T any] struct {
	mu       sync.Mutex
	newT     func() *T
	freelist []*T
	nNew     int
}

// NewFreeList keeps at most sz free objects; newT makes fresh ones
// when the list is empty.
func NewFreeList[T any](sz int, newT func() *T) *FreeList[T] {
	if newT == nil {
		newT = func() *T { return new(T) }
	}
	return &FreeList[T]{newT: newT, freelist: make([]*T, 0, sz)}
}

func (fl *FreeList[T]) Len() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return len(fl.freelist)
}

// NNew is the number of objects allocated because the list was empty.
func (fl *FreeList[T]) NNew() int {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.nNew
}

func (fl *FreeList[T]) New() *T {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	index := len(fl.freelist) - 1
	if index < 0 {
		fl.nNew += 1
		return fl.newT()
	}
	e := fl.freelist[index]
	fl.freelist = fl.freelist[:index]
	return e
}

func (fl *FreeList[T]) Free(e *T) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if len(fl.freelist) < cap(fl.freelist) {
		fl.freelist = append(fl.freelist, e)
	}
}
