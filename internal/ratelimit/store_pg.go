package ratelimit

import (
	"context"
	"database/sql"
	"errors"

	"review-backend/internal/shared/storage/db"
)

// PGStore keeps rate-limit state in the rate_limits table.
type PGStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed rate-limit store.
func NewPGStore(database *sql.DB) *PGStore {
	return &PGStore{DB: database}
}

func (s *PGStore) Get(ctx context.Context, userID string) (State, bool, error) {
	var st State
	err := s.DB.QueryRowContext(ctx, `
SELECT attempt_count, window_start FROM rate_limits WHERE user_id = $1`, userID).Scan(&st.AttemptCount, &st.WindowStart)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return State{}, false, nil
		}
		return State{}, false, err
	}
	return st, true, nil
}

// Update locks the user's row for the duration of fn. A missing row cannot be
// locked, so concurrent first checks both write; the upsert keeps that safe.
func (s *PGStore) Update(ctx context.Context, userID string, fn UpdateFunc) error {
	return db.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		var cur State
		exists := true
		err := tx.QueryRowContext(ctx, `
SELECT attempt_count, window_start FROM rate_limits WHERE user_id = $1 FOR UPDATE`, userID).Scan(&cur.AttemptCount, &cur.WindowStart)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			exists = false
		}

		next, write := fn(cur, exists)
		if !write {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO rate_limits (user_id, attempt_count, window_start) VALUES ($1, $2, $3)
ON CONFLICT (user_id) DO UPDATE SET attempt_count = EXCLUDED.attempt_count, window_start = EXCLUDED.window_start`,
			userID, next.AttemptCount, next.WindowStart)
		return err
	})
}
