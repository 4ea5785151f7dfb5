package calls

import (
	"sync"
	"time"

	"callcore/internal/cow"
	"callcore/internal/event"
)

// Peer is the state machine of one remote party in a Call.
//
// SetState never fails: a transition to the current state is absorbed, since
// signaling stacks can legitimately report the same state twice.
type Peer struct {
	id      string
	address string
	clock   func() time.Time

	mu            sync.Mutex
	call          *Call
	state         PeerState
	displayName   string
	focus         bool
	mute          bool
	durationStart time.Time

	// pending holds state events not yet delivered. One caller at a time
	// drains it, so observers see transitions in the order they happened.
	pending     []PeerStateEvent
	dispatching bool

	members cow.List[*ConferenceMember]

	stateObservers    event.Registry[PeerStateEvent]
	propertyObservers event.Registry[PeerPropertyEvent]
	memberObservers   event.Registry[ConferenceMemberEvent]
}

// NewPeer returns a peer in state PeerUnknown. id must be stable for the
// remote party for the lifetime of the call.
func NewPeer(id, address string) *Peer {
	return &Peer{id: id, address: address, clock: time.Now, state: PeerUnknown}
}

func (p *Peer) ID() string      { return p.id }
func (p *Peer) Address() string { return p.address }

// Call returns the call the peer was added to, or nil.
func (p *Peer) Call() *Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.call
}

func (p *Peer) bindCall(c *Call) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.call == nil {
		p.call = c
	}
}

func (p *Peer) State() PeerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// DurationStart is when the peer first became Connected, zero if never.
// Returning from hold does not move it.
func (p *Peer) DurationStart() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.durationStart
}

// SetState moves the peer to state s and notifies observers.
// reasonCode is NoReasonCode when the protocol supplied none.
//
// Events are delivered in transition order. A transition made while another
// one is being delivered, from an observer or another goroutine, is queued
// and delivered by the caller already dispatching.
func (p *Peer) SetState(s PeerState, reason string, reasonCode int) {
	p.mu.Lock()
	old := p.state
	if old == s {
		p.mu.Unlock()
		return
	}
	p.state = s
	if s == PeerConnected && !old.IsOnHold() && p.durationStart.IsZero() {
		p.durationStart = p.clock()
	}
	p.pending = append(p.pending, PeerStateEvent{
		Peer:       p,
		Old:        old,
		New:        s,
		Reason:     reason,
		ReasonCode: reasonCode,
	})
	if p.dispatching {
		p.mu.Unlock()
		return
	}
	p.dispatching = true
	p.mu.Unlock()

	p.dispatchState()
}

func (p *Peer) dispatchState() {
	for {
		p.mu.Lock()
		if len(p.pending) == 0 {
			p.dispatching = false
			p.mu.Unlock()
			return
		}
		ev := p.pending[0]
		p.pending = p.pending[1:]
		p.mu.Unlock()

		p.stateObservers.Fire(ev)
	}
}

func (p *Peer) DisplayName() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.displayName
}

func (p *Peer) SetDisplayName(name string) {
	p.mu.Lock()
	old := p.displayName
	if old == name {
		p.mu.Unlock()
		return
	}
	p.displayName = name
	p.mu.Unlock()
	p.propertyObservers.Fire(PeerPropertyEvent{Peer: p, Property: PeerPropertyDisplayName, Old: old, New: name})
}

func (p *Peer) IsMute() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mute
}

func (p *Peer) SetMute(mute bool) {
	p.mu.Lock()
	if p.mute == mute {
		p.mu.Unlock()
		return
	}
	p.mute = mute
	p.mu.Unlock()
	p.propertyObservers.Fire(PeerPropertyEvent{Peer: p, Property: PeerPropertyMute, Old: !mute, New: mute})
}

func (p *Peer) IsConferenceFocus() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.focus
}

// SetConferenceFocus fires an event only when the flag flips. Leaving focus
// drops the member roster.
func (p *Peer) SetConferenceFocus(focus bool) {
	p.mu.Lock()
	if p.focus == focus {
		p.mu.Unlock()
		return
	}
	p.focus = focus
	p.mu.Unlock()

	p.propertyObservers.Fire(PeerPropertyEvent{Peer: p, Property: PeerPropertyConferenceFocus, Old: !focus, New: focus})
	if !focus {
		p.clearConferenceMembers()
	}
}

// ConferenceMembers returns a stable snapshot of the roster.
func (p *Peer) ConferenceMembers() []*ConferenceMember {
	return p.members.Snapshot()
}

func (p *Peer) ConferenceMemberCount() int { return p.members.Len() }

// ConferenceMember looks a member up by address.
func (p *Peer) ConferenceMember(address string) (*ConferenceMember, bool) {
	for _, m := range p.members.Snapshot() {
		if m.Address() == address {
			return m, true
		}
	}
	return nil, false
}

// AddConferenceMember is a no-op, with no event, if m is already present.
func (p *Peer) AddConferenceMember(m *ConferenceMember) bool {
	if m == nil || !p.members.Add(m) {
		return false
	}
	p.memberObservers.Fire(ConferenceMemberEvent{Peer: p, Member: m, Kind: MemberAdded})
	return true
}

// RemoveConferenceMember is a no-op, with no event, if m is absent.
func (p *Peer) RemoveConferenceMember(m *ConferenceMember) bool {
	if m == nil || !p.members.Remove(m) {
		return false
	}
	p.memberObservers.Fire(ConferenceMemberEvent{Peer: p, Member: m, Kind: MemberRemoved})
	return true
}

func (p *Peer) clearConferenceMembers() {
	for _, m := range p.members.Clear() {
		p.memberObservers.Fire(ConferenceMemberEvent{Peer: p, Member: m, Kind: MemberRemoved})
	}
}

func (p *Peer) OnStateChange(fn func(PeerStateEvent)) func() {
	return p.stateObservers.Subscribe(fn)
}

func (p *Peer) OnPropertyChange(fn func(PeerPropertyEvent)) func() {
	return p.propertyObservers.Subscribe(fn)
}

func (p *Peer) OnMemberChange(fn func(ConferenceMemberEvent)) func() {
	return p.memberObservers.Subscribe(fn)
}
