package rcu

import (
	"sync/atomic"
)

// Snapshot holds an immutable value that readers load without locking and
// writers replace wholesale. Callers must never mutate a value after storing it.
type Snapshot[T any] struct {
	ptr atomic.Pointer[T]
}

func NewSnapshot[T any](init *T) *Snapshot[T] {
	s := &Snapshot[T]{}
	s.ptr.Store(init)
	return s
}

// Load returns the current value.
func (s *Snapshot[T]) Load() *T {
	return s.ptr.Load()
}

// Replace publishes next and returns the value it replaced.
func (s *Snapshot[T]) Replace(next *T) *T {
	return s.ptr.Swap(next)
}
