package telephony

import (
	"context"
	"testing"

	"callcore/internal/calls"
	"callcore/internal/event"
)

type stubProvider struct {
	account string
	active  []*calls.Call
	calls   event.Registry[CallEvent]
}

func (p *stubProvider) AccountID() string { return p.account }
func (p *stubProvider) Protocol() string  { return "stub" }

func (p *stubProvider) PutOnHold(ctx context.Context, peer *calls.Peer) error { return nil }
func (p *stubProvider) Hangup(ctx context.Context, peer *calls.Peer, code int, reason string) error {
	return nil
}
func (p *stubProvider) OnCall(fn func(CallEvent)) func() { return p.calls.Subscribe(fn) }
func (p *stubProvider) ActiveCalls() []*calls.Call      { return p.active }

func (p *stubProvider) announce(c *calls.Call) {
	p.calls.Fire(CallEvent{Provider: p, Call: c})
}

type presenceless struct{ account string }

func (p presenceless) AccountID() string { return p.account }
func (p presenceless) Protocol() string  { return "none" }

func TestMemoryRegistry_RegisterUnregister(t *testing.T) {
	reg := NewMemoryRegistry()
	var kinds []ProviderChange
	reg.OnProviderChange(func(ev ProviderEvent) { kinds = append(kinds, ev.Kind) })

	p := &stubProvider{account: "alice"}
	if !reg.Register(p) || reg.Register(p) {
		t.Fatalf("expected exactly one effective register")
	}
	if reg.Register(&stubProvider{account: "alice"}) {
		t.Fatalf("expected duplicate account rejected")
	}
	if got, ok := reg.Provider("alice"); !ok || got != p {
		t.Fatalf("expected lookup by account")
	}
	if !reg.Unregister(p) || reg.Unregister(p) {
		t.Fatalf("expected exactly one effective unregister")
	}
	if len(kinds) != 2 || kinds[0] != ProviderRegistered || kinds[1] != ProviderUnregistered {
		t.Fatalf("unexpected events %v", kinds)
	}
}

func TestWatchCalls_CurrentAndFutureProviders(t *testing.T) {
	reg := NewMemoryRegistry()
	early := &stubProvider{account: "early"}
	reg.Register(early)
	reg.Register(presenceless{account: "no-telephony"})

	var seen []string
	stop := WatchCalls(reg, func(ev CallEvent) { seen = append(seen, ev.Call.ID()) })

	late := &stubProvider{account: "late"}
	reg.Register(late)

	early.announce(calls.NewCall(calls.CallOptions{ID: "c1"}))
	late.announce(calls.NewCall(calls.CallOptions{ID: "c2"}))

	reg.Unregister(late)
	late.announce(calls.NewCall(calls.CallOptions{ID: "c3"}))

	stop()
	early.announce(calls.NewCall(calls.CallOptions{ID: "c4"}))

	if len(seen) != 2 || seen[0] != "c1" || seen[1] != "c2" {
		t.Fatalf("unexpected calls %v", seen)
	}
}

func TestEachActiveCall(t *testing.T) {
	reg := NewMemoryRegistry()
	a := &stubProvider{account: "a", active: []*calls.Call{calls.NewCall(calls.CallOptions{ID: "a1"})}}
	b := &stubProvider{account: "b", active: []*calls.Call{calls.NewCall(calls.CallOptions{ID: "b1"})}}
	reg.Register(a)
	reg.Register(presenceless{account: "no-telephony"})
	reg.Register(b)

	seen := map[string]Provider{}
	EachActiveCall(reg, func(ev CallEvent) { seen[ev.Call.ID()] = ev.Provider })
	if len(seen) != 2 || seen["a1"] != Provider(a) || seen["b1"] != Provider(b) {
		t.Fatalf("unexpected replay %v", seen)
	}
}

func TestCapabilities(t *testing.T) {
	if _, ok := TelephonyOf(&stubProvider{}); !ok {
		t.Fatalf("expected telephony capability")
	}
	if _, ok := PresenceOf(&stubProvider{}); ok {
		t.Fatalf("stub has no presence capability")
	}
	in := CallEvent{Call: calls.NewCall(calls.CallOptions{Direction: calls.DirectionIncoming})}
	if !in.Incoming() {
		t.Fatalf("expected incoming")
	}
}
