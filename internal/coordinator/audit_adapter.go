package coordinator

import (
	"context"

	"callcore/internal/audit"
)

// AuditAdapter writes coordinator actions to the shared audit.Service.
type AuditAdapter struct {
	Audit *audit.Service
}

var actionTypes = map[ActionKind]audit.EventType{
	ActionHold:            audit.EventTypeHold,
	ActionHoldFailed:      audit.EventTypeHoldFailed,
	ActionBusyReject:      audit.EventTypeBusyReject,
	ActionPresencePublish: audit.EventTypePresencePublish,
	ActionPresenceRestore: audit.EventTypePresenceRestore,
}

func (a AuditAdapter) LogAction(ctx context.Context, act Action) error {
	if a.Audit == nil {
		return nil
	}
	e := audit.Event{
		AccountID: act.AccountID,
		Type:      actionTypes[act.Kind],
		CallID:    act.CallID,
		PeerID:    act.PeerID,
		Message:   act.Detail,
	}
	if act.Err != nil {
		e.Error = act.Err.Error()
	}
	return a.Audit.Append(ctx, e)
}
