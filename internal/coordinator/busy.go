package coordinator

import (
	"sync"

	"callcore/internal/calls"
	"callcore/internal/telephony"
)

const (
	RejectCallWaiting  = "call_waiting_disabled"
	RejectDoNotDisturb = "do_not_disturb"
)

// busyReason decides whether an incoming call must be turned away before it
// is tracked.
func (c *Coordinator) busyReason(ev telephony.CallEvent) (string, bool) {
	if c.settings == nil {
		return "", false
	}
	if c.settings.CallWaitingDisabled() && c.anyOtherInProgress(ev.Call) {
		return RejectCallWaiting, true
	}
	if c.settings.RejectCallsOnDND(ev.Call.AccountID()) {
		if ops, ok := telephony.PresenceOf(ev.Provider); ok && ops.Status().IsBusy() {
			return RejectDoNotDisturb, true
		}
	}
	return "", false
}

func (c *Coordinator) anyOtherInProgress(call *calls.Call) bool {
	for _, tc := range c.snapshot() {
		if tc.call != call && tc.call.State() == calls.CallInProgress {
			return true
		}
	}
	return false
}

// rejectedCall is an incoming call turned away as busy. Peers the stack adds
// to it later get the same busy hangup until the call ends.
type rejectedCall struct {
	mu     sync.Mutex
	hungUp map[*calls.Peer]bool

	unsubscribe []func()
}

// reject hangs up every peer of the call with a busy reason, including peers
// added after the rejection. The call is never tracked.
func (c *Coordinator) reject(ev telephony.CallEvent, reason string) {
	call := ev.Call
	rc := &rejectedCall{hungUp: make(map[*calls.Peer]bool)}

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	if _, ok := c.rejected[call]; ok {
		c.mu.Unlock()
		return
	}
	c.rejected[call] = rc
	c.mu.Unlock()

	log := c.log.With("call_id", call.ID(), "account", call.AccountID(), "reason", reason)
	c.metrics.Rejected(reason)

	ops, ok := telephony.TelephonyOf(ev.Provider)
	if !ok {
		log.Warn("cannot reject call: provider has no telephony support")
	}
	hangup := func(p *calls.Peer) {
		rc.mu.Lock()
		done := rc.hungUp[p]
		rc.hungUp[p] = true
		rc.mu.Unlock()
		if done || ops == nil {
			return
		}
		if err := ops.Hangup(c.context(), p, telephony.ReasonBusyHere, "Busy Here"); err != nil {
			log.Error("busy hangup failed", "peer_id", p.ID(), "err", err)
		}
	}

	unsubPeers := call.OnPeerChange(func(e calls.CallPeerEvent) {
		if e.Kind == calls.PeerAdded {
			hangup(e.Peer)
		}
	})
	unsubState := call.OnStateChange(func(e calls.CallStateEvent) {
		if e.New == calls.CallEnded {
			c.forgetRejected(call, rc)
		}
	})

	c.mu.Lock()
	current := c.rejected[call] == rc
	if current {
		rc.unsubscribe = []func(){unsubPeers, unsubState}
	}
	c.mu.Unlock()
	if !current {
		unsubPeers()
		unsubState()
		return
	}

	for _, p := range call.Peers() {
		hangup(p)
	}
	log.Info("incoming call rejected as busy")
	c.record(Action{
		Kind:      ActionBusyReject,
		AccountID: call.AccountID(),
		CallID:    call.ID(),
		Detail:    reason,
	})
	if call.State() == calls.CallEnded {
		c.forgetRejected(call, rc)
	}
}

func (c *Coordinator) forgetRejected(call *calls.Call, rc *rejectedCall) {
	c.mu.Lock()
	if c.rejected[call] != rc {
		c.mu.Unlock()
		return
	}
	delete(c.rejected, call)
	unsubs := rc.unsubscribe
	rc.unsubscribe = nil
	c.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}
}

// isRejected reports whether call was turned away and has not ended yet.
func (c *Coordinator) isRejected(call *calls.Call) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rejected[call]
	return ok
}
