package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - account_id is required; every policy action belongs to one account.
// - audit is best-effort; callers never block call handling on it.
type Event struct {
	ID        string    `json:"id" db:"id"`
	AccountID string    `json:"account_id" db:"account_id"`
	Type      EventType `json:"type" db:"type"`

	// Target identifiers, depending on the event type.
	CallID string `json:"call_id,omitempty" db:"call_id"`
	PeerID string `json:"peer_id,omitempty" db:"peer_id"`

	// ActorUserID is set for actions requested through the API.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// Message is a short human-readable description for operators.
	Message string `json:"message,omitempty" db:"message"`
	Error   string `json:"error,omitempty" db:"error"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeHold            EventType = "hold"
	EventTypeHoldFailed      EventType = "hold_failed"
	EventTypeBusyReject      EventType = "busy_reject"
	EventTypePresencePublish EventType = "presence_publish"
	EventTypePresenceRestore EventType = "presence_restore"
	EventTypePolicyUpdate    EventType = "policy_update"
)

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	AccountID string
	Type      EventType
	Limit     int
}

func (f Filter) matches(e Event) bool {
	if f.AccountID != "" && e.AccountID != f.AccountID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	return true
}
