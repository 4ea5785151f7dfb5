package calls

import (
	"sync"

	"callcore/internal/cow"
	"callcore/internal/event"
)

// Conference groups calls that are treated as one multi-party session.
//
// It has no identity beyond the pointer and lives as long as some Call
// references it. Observers of a Conference see the peer and roster activity
// of every member call as a single stream.
type Conference struct {
	mixingBridge bool

	calls cow.List[*Call]

	mu      sync.Mutex
	focus   bool
	watches map[*Call]*callWatch

	callObservers   event.Registry[ConferenceEvent]
	peerObservers   event.Registry[CallPeerEvent]
	memberObservers event.Registry[ConferenceMemberEvent]
}

type callWatch struct {
	unsubscribe []func()
	peers       map[*Peer]func()
}

// NewConference returns an empty aggregate. mixingBridge is fixed for its
// lifetime.
func NewConference(mixingBridge bool) *Conference {
	return &Conference{
		mixingBridge: mixingBridge,
		watches:      make(map[*Call]*callWatch),
	}
}

func (cf *Conference) UsesMixingBridge() bool { return cf.mixingBridge }
func (cf *Conference) Calls() []*Call         { return cf.calls.Snapshot() }
func (cf *Conference) CallCount() int         { return cf.calls.Len() }
func (cf *Conference) Contains(c *Call) bool  { return cf.calls.Contains(c) }

// Peers returns the peers of every member call.
func (cf *Conference) Peers() []*Peer {
	var out []*Peer
	for _, c := range cf.calls.Snapshot() {
		out = append(out, c.Peers()...)
	}
	return out
}

func (cf *Conference) PeerCount() int {
	n := 0
	for _, c := range cf.calls.Snapshot() {
		n += c.PeerCount()
	}
	return n
}

// IsConferenceFocus reports whether the local side mixes for several
// parties: two or more calls, or one call with two or more peers.
func (cf *Conference) IsConferenceFocus() bool {
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return cf.focus
}

// AddCall moves c into this aggregate. It reports false if c already was a
// member.
func (cf *Conference) AddCall(c *Call) bool {
	if c == nil {
		return false
	}
	return c.moveTo(cf, nil)
}

// RemoveCall detaches c if it is a member of this aggregate.
func (cf *Conference) RemoveCall(c *Call) bool {
	if c == nil {
		return false
	}
	return c.moveTo(nil, cf)
}

func (cf *Conference) OnCallChange(fn func(ConferenceEvent)) func() {
	return cf.callObservers.Subscribe(fn)
}

func (cf *Conference) OnPeerChange(fn func(CallPeerEvent)) func() {
	return cf.peerObservers.Subscribe(fn)
}

func (cf *Conference) OnMemberChange(fn func(ConferenceMemberEvent)) func() {
	return cf.memberObservers.Subscribe(fn)
}

// attach records membership and starts forwarding. It is called by the
// Call with its conference mutex held; events go out later via callAdded.
func (cf *Conference) attach(c *Call) bool {
	cf.mu.Lock()
	defer cf.mu.Unlock()

	if !cf.calls.Add(c) {
		return false
	}
	w := &callWatch{peers: make(map[*Peer]func())}
	cf.watches[c] = w
	// Subscribe before taking the peer snapshot so no addition is missed.
	w.unsubscribe = append(w.unsubscribe,
		c.OnPeerChange(cf.onCallPeer),
		c.OnStateChange(cf.onCallState),
	)
	for _, p := range c.Peers() {
		cf.watchPeerLocked(w, p)
	}
	return true
}

func (cf *Conference) detach(c *Call) bool {
	cf.mu.Lock()
	if !cf.calls.Remove(c) {
		cf.mu.Unlock()
		return false
	}
	w := cf.watches[c]
	delete(cf.watches, c)
	cf.mu.Unlock()

	if w != nil {
		for _, unsub := range w.unsubscribe {
			unsub()
		}
		for _, unsub := range w.peers {
			unsub()
		}
	}
	return true
}

func (cf *Conference) watchPeerLocked(w *callWatch, p *Peer) {
	if _, ok := w.peers[p]; ok {
		return
	}
	w.peers[p] = p.OnMemberChange(cf.memberObservers.Fire)
}

func (cf *Conference) callAdded(c *Call) {
	cf.updateFocus()
	cf.callObservers.Fire(ConferenceEvent{Conference: cf, Kind: ConferenceCallAdded, Call: c})
}

func (cf *Conference) callRemoved(c *Call) {
	cf.updateFocus()
	cf.callObservers.Fire(ConferenceEvent{Conference: cf, Kind: ConferenceCallRemoved, Call: c})
}

func (cf *Conference) onCallPeer(ev CallPeerEvent) {
	cf.mu.Lock()
	w := cf.watches[ev.Call]
	if w == nil {
		cf.mu.Unlock()
		return
	}
	var unsub func()
	switch ev.Kind {
	case PeerAdded:
		cf.watchPeerLocked(w, ev.Peer)
	case PeerRemoved:
		unsub = w.peers[ev.Peer]
		delete(w.peers, ev.Peer)
	}
	cf.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	cf.updateFocus()
	cf.peerObservers.Fire(ev)
}

func (cf *Conference) onCallState(ev CallStateEvent) {
	if ev.New == CallEnded {
		cf.RemoveCall(ev.Call)
	}
}

// updateFocus recomputes the focus flag from the current members. The flag
// is raised as soon as the members justify it and lowered only when the
// recomputed value is false. The snapshot is taken under mu so the last
// writer always stores a value derived from the latest membership.
func (cf *Conference) updateFocus() {
	cf.mu.Lock()
	calls := cf.calls.Snapshot()
	var focus bool
	switch len(calls) {
	case 0:
		focus = false
	case 1:
		focus = calls[0].PeerCount() >= 2
	default:
		focus = true
	}
	if cf.focus == focus {
		cf.mu.Unlock()
		return
	}
	cf.focus = focus
	cf.mu.Unlock()

	cf.callObservers.Fire(ConferenceEvent{Conference: cf, Kind: ConferenceFocusChanged, Focus: focus})
}
