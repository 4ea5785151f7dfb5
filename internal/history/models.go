// Package history keeps a record of every finished call.
package history

import "time"

// Record is one finished call. Records are append-only.
type Record struct {
	CallID    string  `json:"call_id" db:"call_id"`
	AccountID string  `json:"account_id" db:"account_id"`
	Direction string  `json:"direction" db:"direction"`
	Outcome   Outcome `json:"outcome" db:"outcome"`

	// Peers lists the remote addresses in the order they joined.
	Peers []string `json:"peers"`

	StartedAt   time.Time `json:"started_at" db:"started_at"`
	ConnectedAt time.Time `json:"connected_at,omitempty" db:"connected_at"`
	EndedAt     time.Time `json:"ended_at" db:"ended_at"`

	// DurationSeconds counts from the first connect; zero if never connected.
	DurationSeconds int `json:"duration" db:"duration"`

	// Reason and ReasonCode come from the last peer that left.
	Reason     string `json:"reason,omitempty" db:"reason"`
	ReasonCode int    `json:"reason_code" db:"reason_code"`
}

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomeBusy      Outcome = "busy"
	OutcomeNoAnswer  Outcome = "no_answer"
)

// Query filters List results. AccountID is required.
type Query struct {
	AccountID string
	From      time.Time
	To        time.Time
	Limit     int
}

func (q Query) matches(r Record) bool {
	if r.AccountID != q.AccountID {
		return false
	}
	if !q.From.IsZero() && r.EndedAt.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && !r.EndedAt.Before(q.To) {
		return false
	}
	return true
}

// Summary aggregates the records of one account.
type Summary struct {
	AccountID string `json:"account_id"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	FailedCalls    int `json:"failed_calls"`
	BusyCalls      int `json:"busy_calls"`
	NoAnswerCalls  int `json:"no_answer_calls"`
	IncomingCalls  int `json:"incoming_calls"`
	OutgoingCalls  int `json:"outgoing_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}
