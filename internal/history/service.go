package history

import (
	"context"
	"errors"

	"callcore/internal/calls"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

var errRepoNotConfigured = errors.New("history: repository not configured")

func (s *Service) List(ctx context.Context, q Query) ([]Record, error) {
	if q.AccountID == "" {
		return nil, ErrInvalidQuery
	}
	if !q.From.IsZero() && !q.To.IsZero() && !q.To.After(q.From) {
		return nil, ErrInvalidQuery
	}
	if s.repo == nil {
		return nil, errRepoNotConfigured
	}
	return s.repo.List(ctx, q)
}

// Summary aggregates every record matching q; q.Limit is ignored.
func (s *Service) Summary(ctx context.Context, q Query) (Summary, error) {
	q.Limit = 0
	rows, err := s.List(ctx, q)
	if err != nil {
		return Summary{}, err
	}

	out := Summary{AccountID: q.AccountID}
	for _, r := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += r.DurationSeconds
		switch r.Outcome {
		case OutcomeCompleted:
			out.CompletedCalls++
		case OutcomeFailed:
			out.FailedCalls++
		case OutcomeBusy:
			out.BusyCalls++
		case OutcomeNoAnswer:
			out.NoAnswerCalls++
		}
		if r.Direction == string(calls.DirectionIncoming) {
			out.IncomingCalls++
		} else {
			out.OutgoingCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}
