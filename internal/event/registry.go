// Package event provides the observer registry shared by calls, peers,
// conferences and the coordinator.
package event

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"callcore/internal/cow"
)

type observer[E any] struct {
	id uint64
	fn func(E)
}

// Registry is a copy-on-write set of observers for events of type E.
// The zero value is ready to use.
//
// Fire iterates a snapshot taken when it starts: observers that subscribe or
// unsubscribe during delivery do not affect the event being delivered.
// A panicking observer is logged and skipped; it never stops delivery to the
// observers after it and never escapes Fire.
type Registry[E any] struct {
	observers cow.List[*observer[E]]
	nextID    atomic.Uint64

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is idempotent and safe to call from within fn.
func (r *Registry[E]) Subscribe(fn func(E)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	o := &observer[E]{id: r.nextID.Add(1), fn: fn}
	r.observers.Add(o)
	return func() { r.observers.Remove(o) }
}

// Len returns the number of registered observers.
func (r *Registry[E]) Len() int { return r.observers.Len() }

// Fire delivers ev to every observer registered when the call started.
func (r *Registry[E]) Fire(ev E) {
	for _, o := range r.observers.Snapshot() {
		r.deliver(o, ev)
	}
}

func (r *Registry[E]) deliver(o *observer[E], ev E) {
	defer func() {
		if p := recover(); p != nil {
			r.logger().Error("observer failed",
				"observer", o.id,
				"event", fmt.Sprintf("%T", ev),
				"panic", fmt.Sprint(p),
			)
		}
	}()
	o.fn(ev)
}

func (r *Registry[E]) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
