package telephony

import (
	"sync"

	"callcore/internal/cow"
	"callcore/internal/event"
)

// Registry is the feed of signaling providers available to the process.
type Registry interface {
	Providers() []Provider
	OnProviderChange(fn func(ProviderEvent)) (unsubscribe func())
}

type ProviderChange int

const (
	ProviderRegistered ProviderChange = iota
	ProviderUnregistered
)

func (k ProviderChange) String() string {
	if k == ProviderRegistered {
		return "registered"
	}
	return "unregistered"
}

type ProviderEvent struct {
	Provider Provider
	Kind     ProviderChange
}

// MemoryRegistry is an in-process Registry.
type MemoryRegistry struct {
	mu        sync.Mutex
	providers cow.List[Provider]
	observers event.Registry[ProviderEvent]
}

func NewMemoryRegistry() *MemoryRegistry { return &MemoryRegistry{} }

func (r *MemoryRegistry) Providers() []Provider { return r.providers.Snapshot() }

// Provider looks a provider up by account id.
func (r *MemoryRegistry) Provider(accountID string) (Provider, bool) {
	for _, p := range r.providers.Snapshot() {
		if p.AccountID() == accountID {
			return p, true
		}
	}
	return nil, false
}

// Register adds p. It reports false if p or another provider with the same
// account id is already registered.
func (r *MemoryRegistry) Register(p Provider) bool {
	r.mu.Lock()
	if _, dup := r.Provider(p.AccountID()); dup || !r.providers.Add(p) {
		r.mu.Unlock()
		return false
	}
	r.mu.Unlock()

	r.observers.Fire(ProviderEvent{Provider: p, Kind: ProviderRegistered})
	return true
}

func (r *MemoryRegistry) Unregister(p Provider) bool {
	if !r.providers.Remove(p) {
		return false
	}
	r.observers.Fire(ProviderEvent{Provider: p, Kind: ProviderUnregistered})
	return true
}

func (r *MemoryRegistry) OnProviderChange(fn func(ProviderEvent)) func() {
	return r.observers.Subscribe(fn)
}

// WatchCalls calls fn for every call announced by any current or future
// provider with telephony support. The returned function stops watching.
func WatchCalls(reg Registry, fn func(CallEvent)) (stop func()) {
	var mu sync.Mutex
	subs := make(map[Provider]func())
	stopped := false

	watch := func(p Provider) {
		ops, ok := TelephonyOf(p)
		if !ok {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if stopped {
			return
		}
		if _, ok := subs[p]; ok {
			return
		}
		subs[p] = ops.OnCall(fn)
	}
	unwatch := func(p Provider) {
		mu.Lock()
		unsub := subs[p]
		delete(subs, p)
		mu.Unlock()
		if unsub != nil {
			unsub()
		}
	}

	// Subscribe first so a provider registered during the scan is not lost.
	unsubReg := reg.OnProviderChange(func(ev ProviderEvent) {
		switch ev.Kind {
		case ProviderRegistered:
			watch(ev.Provider)
		case ProviderUnregistered:
			unwatch(ev.Provider)
		}
	})
	for _, p := range reg.Providers() {
		watch(p)
	}

	return func() {
		unsubReg()
		mu.Lock()
		stopped = true
		all := subs
		subs = make(map[Provider]func())
		mu.Unlock()
		for _, unsub := range all {
			unsub()
		}
	}
}

// EachActiveCall calls fn for every call currently active on a provider in
// reg. Pair it with WatchCalls to cover calls that predate the watcher.
func EachActiveCall(reg Registry, fn func(CallEvent)) {
	for _, p := range reg.Providers() {
		ops, ok := TelephonyOf(p)
		if !ok {
			continue
		}
		for _, call := range ops.ActiveCalls() {
			fn(CallEvent{Provider: p, Call: call})
		}
	}
}
