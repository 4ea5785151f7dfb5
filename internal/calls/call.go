package calls

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"callcore/internal/cow"
	"callcore/internal/event"

	"github.com/google/uuid"
)

// ErrNoConference is raised (as a panic) when a call's conference factory
// returns nil. Every call must belong to exactly one aggregate, and nothing
// local can repair a factory that cannot provide one.
var ErrNoConference = errors.New("calls: conference factory returned nil")

// Direction tells who initiated a call.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// CallOptions are fixed for the lifetime of a call.
type CallOptions struct {
	// ID is the signaling session id. A UUID is generated when empty.
	ID        string
	AccountID string
	Direction Direction

	AutoAnswer        bool
	DefaultEncryption bool
	SIPZRTPAttribute  bool

	// NewConference builds the private aggregate on first access.
	// Defaults to a non-mixing Conference.
	NewConference func() *Conference

	Logger *slog.Logger
}

// Call is one signaling session and the peers taking part in it.
//
// A Call always resolves to exactly one Conference. One-to-one calls own a
// private aggregate of size one; joining a real conference re-points that
// reference through SetConference.
type Call struct {
	id                string
	accountID         string
	direction         Direction
	created           time.Time
	defaultEncryption bool
	sipZRTPAttribute  bool
	newConference     func() *Conference
	log               *slog.Logger

	autoAnswer atomic.Bool

	mu    sync.Mutex
	state CallState

	confMu     sync.Mutex
	conference *Conference

	peerMu   sync.Mutex
	peers    cow.List[*Peer]
	peerSubs map[*Peer]func()

	stateObservers      event.Registry[CallStateEvent]
	peerObservers       event.Registry[CallPeerEvent]
	conferenceObservers event.Registry[CallConferenceEvent]
}

// NewCall returns a call in state CallInitializing with no peers.
func NewCall(opts CallOptions) *Call {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	newConf := opts.NewConference
	if newConf == nil {
		newConf = func() *Conference { return NewConference(false) }
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	c := &Call{
		id:                id,
		accountID:         opts.AccountID,
		direction:         opts.Direction,
		created:           time.Now(),
		defaultEncryption: opts.DefaultEncryption,
		sipZRTPAttribute:  opts.SIPZRTPAttribute,
		newConference:     newConf,
		log:               log.With("call_id", id),
		state:             CallInitializing,
		peerSubs:          make(map[*Peer]func()),
	}
	c.autoAnswer.Store(opts.AutoAnswer)
	return c
}

func (c *Call) ID() string               { return c.id }
func (c *Call) AccountID() string        { return c.accountID }
func (c *Call) Direction() Direction     { return c.direction }
func (c *Call) CreatedAt() time.Time     { return c.created }
func (c *Call) DefaultEncryption() bool  { return c.defaultEncryption }
func (c *Call) SIPZRTPAttribute() bool   { return c.sipZRTPAttribute }
func (c *Call) AutoAnswer() bool         { return c.autoAnswer.Load() }
func (c *Call) SetAutoAnswer(v bool)     { c.autoAnswer.Store(v) }
func (c *Call) Peers() []*Peer           { return c.peers.Snapshot() }
func (c *Call) PeerCount() int           { return c.peers.Len() }
func (c *Call) HasPeer(p *Peer) bool     { return c.peers.Contains(p) }

func (c *Call) State() CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Peer looks a peer up by id.
func (c *Call) Peer(id string) (*Peer, bool) {
	for _, p := range c.peers.Snapshot() {
		if p.ID() == id {
			return p, true
		}
	}
	return nil, false
}

// AddPeer appends p. Adding a peer twice is a no-op without an event.
// It never changes the call state by itself.
func (c *Call) AddPeer(p *Peer) bool {
	if p == nil {
		return false
	}
	c.peerMu.Lock()
	if !c.peers.Add(p) {
		c.peerMu.Unlock()
		return false
	}
	p.bindCall(c)
	c.peerSubs[p] = p.OnStateChange(c.onPeerState)
	c.peerMu.Unlock()

	c.peerObservers.Fire(CallPeerEvent{Call: c, Peer: p, Kind: PeerAdded})
	return true
}

// RemovePeer drops p and its conference roster. Removing an absent peer is a
// no-op without an event. It never changes the call state by itself.
func (c *Call) RemovePeer(p *Peer) bool {
	if p == nil {
		return false
	}
	c.peerMu.Lock()
	if !c.peers.Remove(p) {
		c.peerMu.Unlock()
		return false
	}
	unsub := c.peerSubs[p]
	delete(c.peerSubs, p)
	c.peerMu.Unlock()

	if unsub != nil {
		unsub()
	}
	p.clearConferenceMembers()
	c.peerObservers.Fire(CallPeerEvent{Call: c, Peer: p, Kind: PeerRemoved})
	return true
}

// onPeerState moves the call forward when a peer connects, and ends it when
// its last peer leaves.
func (c *Call) onPeerState(ev PeerStateEvent) {
	switch {
	case ev.New == PeerConnected:
		c.SetState(CallInProgress, &ev)
	case ev.New.IsTerminal():
		if c.RemovePeer(ev.Peer) && c.PeerCount() == 0 {
			c.SetState(CallEnded, &ev)
		}
	}
}

// SetState moves the call to s. Equal, backward and post-Ended transitions
// are ignored. Entering CallEnded always detaches the call from its
// conference, even if an observer fails.
func (c *Call) SetState(s CallState, cause *PeerStateEvent) {
	c.mu.Lock()
	old := c.state
	if old == s {
		c.mu.Unlock()
		return
	}
	if old == CallEnded || s < old {
		c.mu.Unlock()
		c.log.Debug("ignoring call state transition", "from", old.String(), "to", s.String())
		return
	}
	c.state = s
	c.mu.Unlock()

	if s == CallEnded {
		defer c.SetConference(nil)
	}
	c.stateObservers.Fire(CallStateEvent{Call: c, Old: old, New: s, Cause: cause})
}

// Conference returns the call's aggregate, creating a private one on first
// access. An ended call is never re-attached: it returns nil once detached.
// It panics with ErrNoConference if the factory returns nil.
func (c *Call) Conference() *Conference {
	c.confMu.Lock()
	if conf := c.conference; conf != nil {
		c.confMu.Unlock()
		return conf
	}
	// The state is set before the detach runs, so an ended call seen here
	// is already detached or about to be.
	if c.State() == CallEnded {
		c.confMu.Unlock()
		return nil
	}
	conf := c.newConference()
	if conf == nil {
		c.confMu.Unlock()
		panic(ErrNoConference)
	}
	c.conference = conf
	added := conf.attach(c)
	c.confMu.Unlock()

	if added {
		conf.callAdded(c)
	}
	c.conferenceObservers.Fire(CallConferenceEvent{Call: c, New: conf})
	return conf
}

// CurrentConference returns the call's aggregate without creating one.
func (c *Call) CurrentConference() *Conference {
	c.confMu.Lock()
	defer c.confMu.Unlock()
	return c.conference
}

// SetConference moves the call into conf, leaving its previous aggregate.
// A nil conf only detaches. Moves of one call are serialized, so the call is
// never a member of two aggregates at once.
func (c *Call) SetConference(conf *Conference) {
	c.moveTo(conf, nil)
}

// moveTo re-points the conference reference. When only is set the move
// happens only if the current aggregate is only.
func (c *Call) moveTo(conf, only *Conference) bool {
	c.confMu.Lock()
	old := c.conference
	if old == conf || (only != nil && old != only) {
		c.confMu.Unlock()
		return false
	}
	c.conference = conf
	var removed, added bool
	if old != nil {
		removed = old.detach(c)
	}
	if conf != nil {
		added = conf.attach(c)
	}
	c.confMu.Unlock()

	if removed {
		old.callRemoved(c)
	}
	if added {
		conf.callAdded(c)
	}
	c.conferenceObservers.Fire(CallConferenceEvent{Call: c, Old: old, New: conf})
	return true
}

func (c *Call) OnStateChange(fn func(CallStateEvent)) func() {
	return c.stateObservers.Subscribe(fn)
}

func (c *Call) OnPeerChange(fn func(CallPeerEvent)) func() {
	return c.peerObservers.Subscribe(fn)
}

func (c *Call) OnConferenceChange(fn func(CallConferenceEvent)) func() {
	return c.conferenceObservers.Subscribe(fn)
}
