package estimator

import (
	"context"
	"database/sql"
)

// PGHistory stores samples in the processing_history table.
type PGHistory struct {
	DB *sql.DB
}

// NewPGHistory constructs a Postgres-backed history.
func NewPGHistory(db *sql.DB) *PGHistory {
	return &PGHistory{DB: db}
}

func (h *PGHistory) All(ctx context.Context) ([]Sample, error) {
	rows, err := h.DB.QueryContext(ctx, `
SELECT text_length, observed_ms FROM processing_history ORDER BY text_length`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var s Sample
		if err := rows.Scan(&s.TextLength, &s.ObservedMs); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (h *PGHistory) Put(ctx context.Context, s Sample) error {
	_, err := h.DB.ExecContext(ctx, `
INSERT INTO processing_history (text_length, observed_ms, recorded_at) VALUES ($1, $2, now())
ON CONFLICT (text_length) DO UPDATE SET observed_ms = EXCLUDED.observed_ms, recorded_at = now()`,
		s.TextLength, s.ObservedMs)
	return err
}
