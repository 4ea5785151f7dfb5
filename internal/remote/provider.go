package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"callcore/internal/calls"
	"callcore/internal/event"
	"callcore/internal/presence"
	"callcore/internal/telephony"

	"github.com/google/uuid"
)

var (
	ErrNoSignalingStack   = errors.New("remote: no signaling stack is listening")
	ErrDuplicateCall      = errors.New("remote: call already exists")
	ErrUnsupportedStatus  = errors.New("remote: status not supported")
	ErrPeerNotInCall      = errors.New("remote: peer does not belong to a call")
	ErrSinkNotConfigured  = errors.New("remote: command sink not configured")
	ErrStoreNotConfigured = errors.New("remote: presence store not configured")
)

// Options configure a Provider. AccountID and Sink are required.
type Options struct {
	AccountID string
	Protocol  string
	Sink      CommandSink
	Presence  PresenceStore

	// Supported lists the statuses the account can publish. Defaults to
	// presence.Standard.
	Supported []presence.Status

	// MixingBridge makes new calls' private conferences use a mixing bridge.
	MixingBridge bool

	Logger *slog.Logger
}

// PeerSpec describes a peer to create with a call.
type PeerSpec struct {
	ID          string `json:"id"`
	Address     string `json:"address"`
	DisplayName string `json:"display_name,omitempty"`
}

// Provider is a telephony.Provider backed by an out-of-process stack.
type Provider struct {
	account      string
	protocol     string
	sink         CommandSink
	store        PresenceStore
	supported    []presence.Status
	mixingBridge bool
	log          *slog.Logger
	clock        func() time.Time

	mu     sync.Mutex
	calls  map[string]*calls.Call
	status presence.Status

	callObservers     event.Registry[telephony.CallEvent]
	presenceObservers event.Registry[telephony.PresenceEvent]
}

var (
	_ telephony.TelephonyOperations = (*Provider)(nil)
	_ telephony.PresenceOperations  = (*Provider)(nil)
)

func NewProvider(opts Options) (*Provider, error) {
	if opts.AccountID == "" {
		return nil, errors.New("remote: account id is required")
	}
	if opts.Sink == nil {
		return nil, ErrSinkNotConfigured
	}
	protocol := opts.Protocol
	if protocol == "" {
		protocol = "sip"
	}
	supported := opts.Supported
	if len(supported) == 0 {
		supported = presence.Standard
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		account:      opts.AccountID,
		protocol:     protocol,
		sink:         opts.Sink,
		store:        opts.Presence,
		supported:    append([]presence.Status(nil), supported...),
		mixingBridge: opts.MixingBridge,
		log:          log.With("account", opts.AccountID),
		clock:        time.Now,
		calls:        make(map[string]*calls.Call),
		status:       presence.StatusOnline,
	}, nil
}

func (p *Provider) AccountID() string { return p.account }
func (p *Provider) Protocol() string  { return p.protocol }

// LoadStatus restores the last stored status, if any.
func (p *Provider) LoadStatus(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	st, ok, err := p.store.Load(ctx, p.account)
	if err != nil || !ok {
		return err
	}
	p.setStatus(st)
	return nil
}

// CreateCall registers a call reported by the signaling stack and announces
// it to call observers.
func (p *Provider) CreateCall(id string, dir calls.Direction, peers []PeerSpec) (*calls.Call, error) {
	mixing := p.mixingBridge
	call := calls.NewCall(calls.CallOptions{
		ID:            id,
		AccountID:     p.account,
		Direction:     dir,
		NewConference: func() *calls.Conference { return calls.NewConference(mixing) },
		Logger:        p.log,
	})

	p.mu.Lock()
	if _, ok := p.calls[call.ID()]; ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCall, call.ID())
	}
	p.calls[call.ID()] = call
	p.mu.Unlock()

	call.OnStateChange(func(ev calls.CallStateEvent) {
		if ev.New == calls.CallEnded {
			p.mu.Lock()
			delete(p.calls, ev.Call.ID())
			p.mu.Unlock()
		}
	})
	for _, spec := range peers {
		call.AddPeer(newPeer(spec))
	}

	p.log.Info("call created", "call_id", call.ID(), "direction", string(dir), "peers", len(peers))
	p.callObservers.Fire(telephony.CallEvent{Provider: p, Call: call})
	return call, nil
}

func newPeer(spec PeerSpec) *calls.Peer {
	id := spec.ID
	if id == "" {
		id = uuid.NewString()
	}
	peer := calls.NewPeer(id, spec.Address)
	if spec.DisplayName != "" {
		peer.SetDisplayName(spec.DisplayName)
	}
	return peer
}

// AddPeer adds a peer to an existing call.
func (p *Provider) AddPeer(callID string, spec PeerSpec) (*calls.Peer, error) {
	call, ok := p.Call(callID)
	if !ok {
		return nil, fmt.Errorf("remote: call %s not found", callID)
	}
	peer := newPeer(spec)
	call.AddPeer(peer)
	return peer, nil
}

func (p *Provider) Call(id string) (*calls.Call, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.calls[id]
	return c, ok
}

func (p *Provider) ActiveCalls() []*calls.Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*calls.Call, 0, len(p.calls))
	for _, c := range p.calls {
		out = append(out, c)
	}
	return out
}

func (p *Provider) OnCall(fn func(telephony.CallEvent)) func() {
	return p.callObservers.Subscribe(fn)
}

// PutOnHold asks the stack to hold peer and marks the peer held locally once
// the command is out.
func (p *Provider) PutOnHold(ctx context.Context, peer *calls.Peer) error {
	if err := p.send(ctx, CommandHold, peer, calls.NoReasonCode, ""); err != nil {
		return err
	}
	switch peer.State() {
	case calls.PeerOnHoldRemote:
		peer.SetState(calls.PeerOnHoldMutual, "", calls.NoReasonCode)
	case calls.PeerOnHoldLocal, calls.PeerOnHoldMutual:
	default:
		peer.SetState(calls.PeerOnHoldLocal, "", calls.NoReasonCode)
	}
	return nil
}

// Hangup asks the stack to end peer's leg. The resulting state change is
// reported back by the stack.
func (p *Provider) Hangup(ctx context.Context, peer *calls.Peer, reasonCode int, reason string) error {
	return p.send(ctx, CommandHangup, peer, reasonCode, reason)
}

func (p *Provider) send(ctx context.Context, kind CommandKind, peer *calls.Peer, code int, reason string) error {
	call := peer.Call()
	if call == nil {
		return ErrPeerNotInCall
	}
	cmd := Command{
		ID:         uuid.NewString(),
		Kind:       kind,
		AccountID:  p.account,
		CallID:     call.ID(),
		PeerID:     peer.ID(),
		ReasonCode: code,
		Reason:     reason,
		IssuedAt:   p.clock().UTC(),
	}
	if err := p.sink.Send(ctx, cmd); err != nil {
		return fmt.Errorf("%s %s: %w", kind, peer.ID(), err)
	}
	p.log.Debug("command sent", "kind", string(kind), "call_id", cmd.CallID, "peer_id", cmd.PeerID)
	return nil
}

func (p *Provider) Status() presence.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Provider) SupportedStatuses() []presence.Status {
	return append([]presence.Status(nil), p.supported...)
}

// PublishStatus stores s and makes it the account's current status.
func (p *Provider) PublishStatus(ctx context.Context, s presence.Status, message string) error {
	if !presence.Supports(p.supported, s) {
		return fmt.Errorf("%w: %s", ErrUnsupportedStatus, s.Name)
	}
	if p.store == nil {
		return ErrStoreNotConfigured
	}
	if err := p.store.Save(ctx, p.account, s, message); err != nil {
		return fmt.Errorf("save presence: %w", err)
	}
	p.setStatus(s)
	return nil
}

func (p *Provider) setStatus(s presence.Status) {
	p.mu.Lock()
	old := p.status
	p.status = s
	p.mu.Unlock()
	if old != s {
		p.presenceObservers.Fire(telephony.PresenceEvent{Provider: p, Old: old, New: s})
	}
}

func (p *Provider) OnStatusChange(fn func(telephony.PresenceEvent)) func() {
	return p.presenceObservers.Subscribe(fn)
}
