package telephony

import (
	"context"

	"callcore/internal/calls"
	"callcore/internal/presence"
)

// ReasonBusyHere is the reason code sent when an incoming call is rejected
// because the callee is busy.
const ReasonBusyHere = 486

// Provider is a registered signaling account.
//
// Rules:
// - Protocol stacks live behind this boundary; the core never speaks a wire format.
// - Optional capabilities are discovered with type assertions, see
//   TelephonyOf and PresenceOf.
type Provider interface {
	AccountID() string
	Protocol() string
}

// TelephonyOperations is the call-control capability of a provider.
type TelephonyOperations interface {
	PutOnHold(ctx context.Context, p *calls.Peer) error
	Hangup(ctx context.Context, p *calls.Peer, reasonCode int, reason string) error

	// OnCall registers for calls the provider creates or receives.
	OnCall(fn func(CallEvent)) (unsubscribe func())
	ActiveCalls() []*calls.Call
}

// PresenceOperations is the presence capability of a provider.
type PresenceOperations interface {
	Status() presence.Status
	SupportedStatuses() []presence.Status
	PublishStatus(ctx context.Context, s presence.Status, message string) error
	OnStatusChange(fn func(PresenceEvent)) (unsubscribe func())
}

// CallEvent announces a call that appeared on a provider.
type CallEvent struct {
	Provider Provider
	Call     *calls.Call
}

// Incoming reports whether the remote side initiated the call.
func (e CallEvent) Incoming() bool {
	return e.Call != nil && e.Call.Direction() == calls.DirectionIncoming
}

// PresenceEvent reports a change of a provider's own status.
type PresenceEvent struct {
	Provider Provider
	Old      presence.Status
	New      presence.Status
}

// TelephonyOf returns p's call-control capability, if any.
func TelephonyOf(p Provider) (TelephonyOperations, bool) {
	ops, ok := p.(TelephonyOperations)
	return ops, ok
}

// PresenceOf returns p's presence capability, if any.
func PresenceOf(p Provider) (PresenceOperations, bool) {
	ops, ok := p.(PresenceOperations)
	return ops, ok
}
