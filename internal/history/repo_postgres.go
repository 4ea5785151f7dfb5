package history

import (
	"context"
	"database/sql"
	"time"

	"callcore/pkg/utils"
)

// Schema creates the history tables. Peers live in their own table so the
// call row stays fixed-width.
const Schema = `
CREATE TABLE IF NOT EXISTS call_history (
	call_id      TEXT PRIMARY KEY,
	account_id   TEXT NOT NULL,
	direction    TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	connected_at TIMESTAMPTZ,
	ended_at     TIMESTAMPTZ NOT NULL,
	duration     INT NOT NULL DEFAULT 0,
	reason       TEXT NOT NULL DEFAULT '',
	reason_code  INT NOT NULL DEFAULT -1
);
CREATE INDEX IF NOT EXISTS call_history_account_ended ON call_history (account_id, ended_at DESC);
CREATE TABLE IF NOT EXISTS call_history_peers (
	call_id  TEXT NOT NULL REFERENCES call_history (call_id),
	position INT NOT NULL,
	address  TEXT NOT NULL,
	PRIMARY KEY (call_id, position)
);
`

// PostgresRepo stores records through database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

// EnsureSchema creates the tables if they are missing.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Append inserts the call row and its peers in one transaction. Appending a
// call id twice keeps the first record.
func (r *PostgresRepo) Append(ctx context.Context, rec Record) error {
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const insertCall = `
INSERT INTO call_history (call_id, account_id, direction, outcome, started_at, connected_at, ended_at, duration, reason, reason_code)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (call_id) DO NOTHING
`
		res, err := tx.ExecContext(ctx, insertCall,
			rec.CallID,
			rec.AccountID,
			rec.Direction,
			string(rec.Outcome),
			rec.StartedAt,
			nullTime(rec.ConnectedAt),
			rec.EndedAt,
			rec.DurationSeconds,
			rec.Reason,
			rec.ReasonCode,
		)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return err
		}

		const insertPeer = `
INSERT INTO call_history_peers (call_id, position, address)
VALUES ($1, $2, $3)
`
		for i, addr := range rec.Peers {
			if _, err := tx.ExecContext(ctx, insertPeer, rec.CallID, i, addr); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *PostgresRepo) List(ctx context.Context, q Query) ([]Record, error) {
	if q.AccountID == "" {
		return nil, ErrInvalidQuery
	}
	// LIMIT NULL means no limit.
	limit := sql.NullInt64{Int64: int64(q.Limit), Valid: q.Limit > 0}
	const query = `
WITH h AS (
	SELECT call_id, account_id, direction, outcome, started_at, connected_at, ended_at, duration, reason, reason_code
	FROM call_history
	WHERE account_id = $1
	  AND ($2::timestamptz IS NULL OR ended_at >= $2)
	  AND ($3::timestamptz IS NULL OR ended_at < $3)
	ORDER BY ended_at DESC
	LIMIT $4
)
SELECT h.call_id, h.account_id, h.direction, h.outcome, h.started_at, h.connected_at, h.ended_at, h.duration, h.reason, h.reason_code, p.address
FROM h
LEFT JOIN call_history_peers p ON p.call_id = h.call_id
ORDER BY h.ended_at DESC, h.call_id, p.position
`
	rows, err := r.db.QueryContext(ctx, query, q.AccountID, nullTime(q.From), nullTime(q.To), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var (
			rec       Record
			outcome   string
			connected sql.NullTime
			address   sql.NullString
		)
		if err := rows.Scan(
			&rec.CallID,
			&rec.AccountID,
			&rec.Direction,
			&outcome,
			&rec.StartedAt,
			&connected,
			&rec.EndedAt,
			&rec.DurationSeconds,
			&rec.Reason,
			&rec.ReasonCode,
			&address,
		); err != nil {
			return nil, err
		}
		rec.Outcome = Outcome(outcome)
		rec.ConnectedAt = connected.Time
		out = appendRow(out, rec, address)
	}
	return out, rows.Err()
}

// appendRow folds one joined row into out. Rows of one call are adjacent.
func appendRow(out []Record, rec Record, address sql.NullString) []Record {
	if n := len(out); n > 0 && out[n-1].CallID == rec.CallID {
		if address.Valid {
			out[n-1].Peers = append(out[n-1].Peers, address.String)
		}
		return out
	}
	if address.Valid {
		rec.Peers = []string{address.String}
	}
	return append(out, rec)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
