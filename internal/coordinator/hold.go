package coordinator

import (
	"callcore/internal/calls"
	"callcore/internal/telephony"
)

// holdOthers puts every other in-progress call on hold unless it shares the
// conference of the call that just became active.
func (c *Coordinator) holdOthers(active *trackedCall) {
	conf := active.call.Conference()
	if conf == nil {
		// Ended while activating.
		return
	}
	for _, tc := range c.snapshot() {
		if tc == active || tc.call.State() != calls.CallInProgress {
			continue
		}
		if tc.call.Conference() == conf {
			continue
		}
		c.holdCall(tc)
	}
}

// holdCall holds each live peer of tc. A failure on one peer does not stop
// the others.
func (c *Coordinator) holdCall(tc *trackedCall) {
	log := c.log.With("call_id", tc.call.ID(), "account", tc.call.AccountID())
	ops, ok := telephony.TelephonyOf(tc.provider)
	if !ok {
		log.Warn("cannot hold call: provider has no telephony support")
		return
	}
	ctx := c.context()
	for _, p := range tc.call.Peers() {
		st := p.State()
		if st.IsTerminal() || st.IsOnHold() {
			continue
		}
		a := Action{AccountID: tc.call.AccountID(), CallID: tc.call.ID(), PeerID: p.ID()}
		if err := ops.PutOnHold(ctx, p); err != nil {
			log.Error("hold failed", "peer_id", p.ID(), "err", err)
			c.metrics.HoldFailed()
			a.Kind, a.Err = ActionHoldFailed, err
			c.record(a)
			continue
		}
		log.Info("peer put on hold", "peer_id", p.ID())
		c.metrics.Held()
		a.Kind = ActionHold
		c.record(a)
	}
}
