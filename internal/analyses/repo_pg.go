package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `user_id, file_name, status, score, potential_improvements, potential_references,
       process_time_seconds, course_id, updated_at`

// Get returns the record for (userID, fileName).
func (r *PGRepo) Get(ctx context.Context, userID, fileName string) (Record, error) {
	row := r.DB.QueryRowContext(ctx, `
SELECT `+selectColumns+`
FROM analyses WHERE user_id = $1 AND file_name = $2`, userID, fileName)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return rec, nil
}

// Put upserts rec on (user_id, file_name).
func (r *PGRepo) Put(ctx context.Context, rec Record) error {
	if err := validate(rec); err != nil {
		return err
	}
	rec = normalize(rec, time.Now())

	improvements, err := json.Marshal(rec.PotentialImprovements)
	if err != nil {
		return fmt.Errorf("encode improvements: %w", err)
	}
	references, err := json.Marshal(rec.References)
	if err != nil {
		return fmt.Errorf("encode references: %w", err)
	}

	_, err = r.DB.ExecContext(ctx, `
INSERT INTO analyses (user_id, file_name, status, score, potential_improvements, potential_references,
                      process_time_seconds, course_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (user_id, file_name) DO UPDATE SET
    status = EXCLUDED.status,
    score = EXCLUDED.score,
    potential_improvements = EXCLUDED.potential_improvements,
    potential_references = EXCLUDED.potential_references,
    process_time_seconds = EXCLUDED.process_time_seconds,
    course_id = CASE WHEN EXCLUDED.course_id = '' THEN analyses.course_id ELSE EXCLUDED.course_id END,
    updated_at = EXCLUDED.updated_at`,
		rec.UserID, rec.FileName, rec.Status, rec.Score, improvements, references,
		rec.ProcessTimeSeconds, rec.CourseID, rec.Timestamp)
	return err
}

// Delete removes the record for (userID, fileName).
func (r *PGRepo) Delete(ctx context.Context, userID, fileName string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM analyses WHERE user_id = $1 AND file_name = $2`, userID, fileName)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByUser returns every record of userID, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT `+selectColumns+`
FROM analyses WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var rec Record
	var improvements, references []byte
	if err := s.Scan(&rec.UserID, &rec.FileName, &rec.Status, &rec.Score, &improvements, &references,
		&rec.ProcessTimeSeconds, &rec.CourseID, &rec.Timestamp); err != nil {
		return Record{}, err
	}
	if len(improvements) > 0 {
		if err := json.Unmarshal(improvements, &rec.PotentialImprovements); err != nil {
			return Record{}, fmt.Errorf("decode improvements: %w", err)
		}
	}
	if len(references) > 0 {
		if err := json.Unmarshal(references, &rec.References); err != nil {
			return Record{}, fmt.Errorf("decode references: %w", err)
		}
	}
	return rec, nil
}
