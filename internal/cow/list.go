package cow

import (
	"sync"
	"sync/atomic"
)

// List is a copy-on-write sequence.
//
// Writers serialize on mu, build a fresh backing slice and publish it with a
// single pointer swap. Readers load the current slice without locking, so a
// snapshot taken before a mutation is never affected by it.
// Elements are compared by ==, duplicates are rejected.
type List[T comparable] struct {
	mu    sync.Mutex
	items atomic.Pointer[[]T]
}

// Snapshot returns the current backing slice. Callers must not modify it.
func (l *List[T]) Snapshot() []T {
	p := l.items.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (l *List[T]) Len() int { return len(l.Snapshot()) }

func (l *List[T]) Contains(v T) bool {
	for _, it := range l.Snapshot() {
		if it == v {
			return true
		}
	}
	return false
}

// Add appends v unless it is already present. Reports whether the list changed.
func (l *List[T]) Add(v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.Snapshot()
	for _, it := range cur {
		if it == v {
			return false
		}
	}
	next := make([]T, len(cur), len(cur)+1)
	copy(next, cur)
	next = append(next, v)
	l.items.Store(&next)
	return true
}

// Remove deletes v. Reports whether the list changed.
func (l *List[T]) Remove(v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.Snapshot()
	idx := -1
	for i, it := range cur {
		if it == v {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	next := make([]T, 0, len(cur)-1)
	next = append(next, cur[:idx]...)
	next = append(next, cur[idx+1:]...)
	l.items.Store(&next)
	return true
}

// Clear removes every element and returns what was there.
func (l *List[T]) Clear() []T {
	l.mu.Lock()
	defer l.mu.Unlock()

	cur := l.Snapshot()
	empty := []T{}
	l.items.Store(&empty)
	return cur
}
