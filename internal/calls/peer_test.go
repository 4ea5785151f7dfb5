package calls

import (
	"sync"
	"testing"
	"time"
)

func fixedClock(ts ...time.Time) func() time.Time {
	i := 0
	return func() time.Time {
		t := ts[i]
		if i < len(ts)-1 {
			i++
		}
		return t
	}
}

func TestPeer_SetStateSameStateIsNoop(t *testing.T) {
	p := NewPeer("p1", "sip:alice@example.com")
	var events []PeerStateEvent
	p.OnStateChange(func(ev PeerStateEvent) { events = append(events, ev) })

	p.SetState(PeerConnecting, "", NoReasonCode)
	p.SetState(PeerConnecting, "again", 183)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Old != PeerUnknown || events[0].New != PeerConnecting {
		t.Fatalf("unexpected transition %s -> %s", events[0].Old, events[0].New)
	}
}

func TestPeer_TransitionFromObserverIsDeliveredInOrder(t *testing.T) {
	p := NewPeer("p1", "sip:alice@example.com")
	p.OnStateChange(func(ev PeerStateEvent) {
		if ev.New == PeerConnected {
			p.SetState(PeerDisconnected, "bye", NoReasonCode)
		}
	})
	var seen []PeerState
	p.OnStateChange(func(ev PeerStateEvent) { seen = append(seen, ev.New) })

	p.SetState(PeerConnected, "", NoReasonCode)

	if len(seen) != 2 || seen[0] != PeerConnected || seen[1] != PeerDisconnected {
		t.Fatalf("expected Connected then Disconnected, got %v", seen)
	}
	if p.State() != PeerDisconnected {
		t.Fatalf("expected Disconnected, got %s", p.State())
	}
}

func TestPeer_ConcurrentTransitionsFormAChain(t *testing.T) {
	p := NewPeer("p1", "sip:alice@example.com")

	var mu sync.Mutex
	last := PeerUnknown
	var broken []PeerStateEvent
	p.OnStateChange(func(ev PeerStateEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Old != last {
			broken = append(broken, ev)
		}
		last = ev.New
	})

	states := []PeerState{PeerConnecting, PeerAlerting, PeerConnected, PeerOnHoldLocal}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				p.SetState(states[(g+i)%len(states)], "", NoReasonCode)
			}
		}(g)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(broken) != 0 {
		t.Fatalf("events delivered out of order: %+v", broken[0])
	}
	if last != p.State() {
		t.Fatalf("last delivered %s, current %s", last, p.State())
	}
}

func TestPeer_StateEventCarriesReason(t *testing.T) {
	p := NewPeer("p1", "sip:alice@example.com")
	var got PeerStateEvent
	p.OnStateChange(func(ev PeerStateEvent) { got = ev })

	p.SetState(PeerBusy, "Busy Here", 486)

	if got.Reason != "Busy Here" || got.ReasonCode != 486 || got.Peer != p {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestPeer_HoldRoundTripKeepsDurationStart(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	p := NewPeer("p1", "sip:alice@example.com")
	p.clock = fixedClock(t0, t0.Add(time.Minute), t0.Add(2*time.Minute))

	p.SetState(PeerConnected, "", NoReasonCode)
	if !p.DurationStart().Equal(t0) {
		t.Fatalf("expected duration start %v, got %v", t0, p.DurationStart())
	}

	p.SetState(PeerOnHoldLocal, "", NoReasonCode)
	p.SetState(PeerConnected, "", NoReasonCode)
	p.SetState(PeerOnHoldMutual, "", NoReasonCode)
	p.SetState(PeerConnected, "", NoReasonCode)

	if !p.DurationStart().Equal(t0) {
		t.Fatalf("duration start moved to %v", p.DurationStart())
	}
}

func TestPeer_DurationStartSetOnlyOnce(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	p := NewPeer("p1", "sip:alice@example.com")
	p.clock = fixedClock(t0, t0.Add(time.Hour))

	p.SetState(PeerConnected, "", NoReasonCode)
	p.SetState(PeerReferred, "", NoReasonCode)
	p.SetState(PeerConnected, "", NoReasonCode)

	if !p.DurationStart().Equal(t0) {
		t.Fatalf("expected first connect time, got %v", p.DurationStart())
	}
}

func TestPeer_ConferenceMembersIdempotent(t *testing.T) {
	p := NewPeer("p1", "sip:focus@example.com")
	var events []ConferenceMemberEvent
	p.OnMemberChange(func(ev ConferenceMemberEvent) { events = append(events, ev) })

	m := NewConferenceMember("sip:bob@example.com", "Bob")
	if !p.AddConferenceMember(m) {
		t.Fatalf("expected add")
	}
	if p.AddConferenceMember(m) {
		t.Fatalf("expected duplicate add to be a no-op")
	}
	if got, ok := p.ConferenceMember("sip:bob@example.com"); !ok || got != m {
		t.Fatalf("lookup by address failed")
	}
	if !p.RemoveConferenceMember(m) || p.RemoveConferenceMember(m) {
		t.Fatalf("expected exactly one effective remove")
	}

	if len(events) != 2 || events[0].Kind != MemberAdded || events[1].Kind != MemberRemoved {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestPeer_ConferenceFocusFiresOnlyOnFlip(t *testing.T) {
	p := NewPeer("p1", "sip:focus@example.com")
	var props []PeerPropertyEvent
	p.OnPropertyChange(func(ev PeerPropertyEvent) { props = append(props, ev) })

	p.SetConferenceFocus(false)
	p.SetConferenceFocus(true)
	p.SetConferenceFocus(true)

	if len(props) != 1 || props[0].Property != PeerPropertyConferenceFocus || props[0].New != true {
		t.Fatalf("unexpected property events %+v", props)
	}
}

func TestPeer_LeavingFocusDropsRoster(t *testing.T) {
	p := NewPeer("p1", "sip:focus@example.com")
	p.SetConferenceFocus(true)
	p.AddConferenceMember(NewConferenceMember("sip:a@example.com", "A"))
	p.AddConferenceMember(NewConferenceMember("sip:b@example.com", "B"))

	var removed int
	p.OnMemberChange(func(ev ConferenceMemberEvent) {
		if ev.Kind == MemberRemoved {
			removed++
		}
	})
	p.SetConferenceFocus(false)

	if removed != 2 || p.ConferenceMemberCount() != 0 {
		t.Fatalf("expected roster cleared, removed=%d left=%d", removed, p.ConferenceMemberCount())
	}
}

func TestConferenceMember_SettersFireOnChange(t *testing.T) {
	m := NewConferenceMember("sip:a@example.com", "A")
	if m.AudioSSRC() != UnsetSSRC || m.State() != MemberUnknown {
		t.Fatalf("unexpected defaults")
	}
	var events []MemberPropertyEvent
	m.OnPropertyChange(func(ev MemberPropertyEvent) { events = append(events, ev) })

	m.SetAudioSSRC(1234)
	m.SetAudioSSRC(1234)
	m.SetState(MemberConnected)
	m.SetVideoStatus(MediaSendRecv)

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Property != MemberPropertyAudioSSRC || events[0].Old != UnsetSSRC || events[0].New != int64(1234) {
		t.Fatalf("unexpected ssrc event %+v", events[0])
	}
}
