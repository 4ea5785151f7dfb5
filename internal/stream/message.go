// Package stream pushes call activity to websocket observers.
package stream

import "time"

type MessageType string

const (
	TypeCallCreated      MessageType = "call_created"
	TypeCallState        MessageType = "call_state"
	TypePeerAdded        MessageType = "peer_added"
	TypePeerRemoved      MessageType = "peer_removed"
	TypePeerState        MessageType = "peer_state"
	TypeConferenceChange MessageType = "conference_changed"
	TypeMemberAdded      MessageType = "member_added"
	TypeMemberRemoved    MessageType = "member_removed"
)

// Message is the JSON frame sent to observers.
type Message struct {
	Type       MessageType `json:"type"`
	AccountID  string      `json:"account_id"`
	CallID     string      `json:"call_id"`
	PeerID     string      `json:"peer_id,omitempty"`
	Member     string      `json:"member,omitempty"`
	Old        string      `json:"old,omitempty"`
	New        string      `json:"new,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	ReasonCode *int        `json:"reason_code,omitempty"`
	Conference int         `json:"conference_calls,omitempty"`
	Time       time.Time   `json:"time"`
}
