package history

import (
	"context"
	"errors"
	"sync"
)

var ErrInvalidQuery = errors.New("history: invalid query")

// Repository stores call records.
//
// It MUST be append-only, and List MUST filter by account.
type Repository interface {
	Append(ctx context.Context, r Record) error
	List(ctx context.Context, q Query) ([]Record, error)
}

// MemoryRepo is an in-memory Repository for tests and deployments without a
// database.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Peers = append([]string(nil), rec.Peers...)
	r.records = append(r.records, rec)
	return nil
}

// List returns matching records, most recently ended first.
func (r *MemoryRepo) List(ctx context.Context, q Query) ([]Record, error) {
	if q.AccountID == "" {
		return nil, ErrInvalidQuery
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, 0)
	for i := len(r.records) - 1; i >= 0; i-- {
		if !q.matches(r.records[i]) {
			continue
		}
		out = append(out, r.records[i])
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}
