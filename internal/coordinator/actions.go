package coordinator

import "context"

type ActionKind string

const (
	ActionHold            ActionKind = "hold"
	ActionHoldFailed      ActionKind = "hold_failed"
	ActionBusyReject      ActionKind = "busy_reject"
	ActionPresencePublish ActionKind = "presence_publish"
	ActionPresenceRestore ActionKind = "presence_restore"
)

// Action describes one side effect the coordinator performed or attempted.
type Action struct {
	Kind      ActionKind
	AccountID string
	CallID    string
	PeerID    string
	Detail    string
	Err       error
}

// ActionLog receives every Action. Implementations must not block for long;
// failures are logged and otherwise ignored.
type ActionLog interface {
	LogAction(ctx context.Context, a Action) error
}

type nopActions struct{}

func (nopActions) LogAction(context.Context, Action) error { return nil }

func (c *Coordinator) record(a Action) {
	if err := c.actions.LogAction(c.context(), a); err != nil {
		c.log.Warn("action log failed", "kind", string(a.Kind), "err", err)
	}
}
