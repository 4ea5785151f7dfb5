package calls

import (
	"sync"
	"testing"
)

func TestConference_FocusRule(t *testing.T) {
	conf := NewConference(false)
	if conf.IsConferenceFocus() {
		t.Fatalf("empty conference is not a focus")
	}

	c1 := newTestCall("c1")
	conf.AddCall(c1)
	if conf.IsConferenceFocus() {
		t.Fatalf("one call with no peers is not a focus")
	}

	p1 := NewPeer("p1", "sip:a@example.com")
	p2 := NewPeer("p2", "sip:b@example.com")
	c1.AddPeer(p1)
	if conf.IsConferenceFocus() {
		t.Fatalf("one call with one peer is not a focus")
	}
	c1.AddPeer(p2)
	if !conf.IsConferenceFocus() {
		t.Fatalf("one call with two peers is a focus")
	}
	c1.RemovePeer(p2)
	if conf.IsConferenceFocus() {
		t.Fatalf("expected focus cleared after second peer left")
	}

	c2 := newTestCall("c2")
	conf.AddCall(c2)
	if !conf.IsConferenceFocus() {
		t.Fatalf("two calls make a focus")
	}
	conf.RemoveCall(c2)
	if conf.IsConferenceFocus() {
		t.Fatalf("expected focus cleared after second call left")
	}
}

func TestConference_FocusEventsOnlyOnFlip(t *testing.T) {
	conf := NewConference(false)
	var flips []bool
	conf.OnCallChange(func(ev ConferenceEvent) {
		if ev.Kind == ConferenceFocusChanged {
			flips = append(flips, ev.Focus)
		}
	})

	conf.AddCall(newTestCall("c1"))
	c2 := newTestCall("c2")
	conf.AddCall(c2)
	conf.AddCall(newTestCall("c3"))
	conf.RemoveCall(c2)

	if len(flips) != 1 || !flips[0] {
		t.Fatalf("expected a single raise, got %v", flips)
	}
}

func TestConference_AddRemoveIdempotent(t *testing.T) {
	conf := NewConference(false)
	c := newTestCall("c1")
	var kinds []ConferenceChange
	conf.OnCallChange(func(ev ConferenceEvent) {
		if ev.Kind != ConferenceFocusChanged {
			kinds = append(kinds, ev.Kind)
		}
	})

	if !conf.AddCall(c) || conf.AddCall(c) {
		t.Fatalf("expected exactly one effective add")
	}
	if !conf.RemoveCall(c) || conf.RemoveCall(c) {
		t.Fatalf("expected exactly one effective remove")
	}
	if len(kinds) != 2 || kinds[0] != ConferenceCallAdded || kinds[1] != ConferenceCallRemoved {
		t.Fatalf("unexpected events %v", kinds)
	}
}

func TestConference_RemoveCallIgnoresForeignCall(t *testing.T) {
	a := NewConference(false)
	b := NewConference(false)
	c := newTestCall("c1")
	b.AddCall(c)

	if a.RemoveCall(c) {
		t.Fatalf("removing a non-member must be a no-op")
	}
	if c.Conference() != b {
		t.Fatalf("call must stay in its conference")
	}
}

func TestConference_ForwardsPeerAndMemberEvents(t *testing.T) {
	conf := NewConference(false)
	c1 := newTestCall("c1")
	c2 := newTestCall("c2")
	existing := NewPeer("p0", "sip:focus@example.com")
	c1.AddPeer(existing)
	conf.AddCall(c1)
	conf.AddCall(c2)

	var peerEvents []CallPeerEvent
	var memberEvents []ConferenceMemberEvent
	conf.OnPeerChange(func(ev CallPeerEvent) { peerEvents = append(peerEvents, ev) })
	conf.OnMemberChange(func(ev ConferenceMemberEvent) { memberEvents = append(memberEvents, ev) })

	p := NewPeer("p1", "sip:b@example.com")
	c2.AddPeer(p)
	existing.AddConferenceMember(NewConferenceMember("sip:m1@example.com", "M1"))
	p.AddConferenceMember(NewConferenceMember("sip:m2@example.com", "M2"))

	if len(peerEvents) != 1 || peerEvents[0].Call != c2 || peerEvents[0].Peer != p {
		t.Fatalf("unexpected peer events %+v", peerEvents)
	}
	if len(memberEvents) != 2 {
		t.Fatalf("expected member events from both calls, got %d", len(memberEvents))
	}

	conf.RemoveCall(c2)
	p.AddConferenceMember(NewConferenceMember("sip:m3@example.com", "M3"))
	if len(memberEvents) != 2 {
		t.Fatalf("detached call must not be forwarded")
	}
}

func TestConference_EndedCallIsRemoved(t *testing.T) {
	conf := NewConference(false)
	c1 := newTestCall("c1")
	c2 := newTestCall("c2")
	conf.AddCall(c1)
	conf.AddCall(c2)

	c1.SetState(CallEnded, nil)

	if conf.Contains(c1) || conf.CallCount() != 1 {
		t.Fatalf("expected ended call removed")
	}
}

func TestConference_ConcurrentMovesKeepSingleMembership(t *testing.T) {
	a := NewConference(false)
	b := NewConference(false)
	c := newTestCall("c1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if (i+j)%2 == 0 {
					c.SetConference(a)
				} else {
					c.SetConference(b)
				}
			}
		}(i)
	}
	wg.Wait()

	inA, inB := a.Contains(c), b.Contains(c)
	if inA == inB {
		t.Fatalf("call must be in exactly one aggregate: a=%v b=%v", inA, inB)
	}
	want := a
	if inB {
		want = b
	}
	if c.Conference() != want {
		t.Fatalf("call reference disagrees with membership")
	}
}
