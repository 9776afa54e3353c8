package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"review-backend/internal/shared/storage/db"
)

// PGQueue stores items for one partition in the queue_items table. Receive
// leases the oldest visible row with FOR UPDATE SKIP LOCKED so concurrent
// consumers never take the same item.
type PGQueue struct {
	DB        *sql.DB
	Partition int
	Lease     time.Duration

	now func() time.Time
}

// NewPGQueue constructs a PGQueue for partition.
func NewPGQueue(database *sql.DB, partition int, lease time.Duration) *PGQueue {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &PGQueue{DB: database, Partition: partition, Lease: lease, now: time.Now}
}

func (q *PGQueue) Send(ctx context.Context, body []byte) error {
	_, err := q.DB.ExecContext(ctx, `
INSERT INTO queue_items (id, partition, body, enqueued_at)
VALUES ($1, $2, $3, $4)`, uuid.NewString(), q.Partition, string(body), q.now().UTC())
	return err
}

func (q *PGQueue) Receive(ctx context.Context) (*Delivery, error) {
	now := q.now().UTC()
	leaseUntil := now.Add(q.Lease)

	var (
		id       string
		body     []byte
		attempts int
		found    bool
	)
	err := db.WithTx(ctx, q.DB, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
SELECT id, body, attempts
FROM queue_items
WHERE partition = $1 AND (leased_until IS NULL OR leased_until <= $2)
ORDER BY enqueued_at
LIMIT 1
FOR UPDATE SKIP LOCKED`, q.Partition, now)
		if err := row.Scan(&id, &body, &attempts); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		found = true
		attempts++
		_, err := tx.ExecContext(ctx, `
UPDATE queue_items SET leased_until = $2, attempts = $3 WHERE id = $1`, id, leaseUntil, attempts)
		return err
	})
	if err != nil || !found {
		return nil, err
	}

	return NewDelivery(id, body, attempts,
		func(ctx context.Context) error { return q.commit(ctx, id, leaseUntil) },
		func(ctx context.Context) error { return q.release(ctx, id, leaseUntil) },
	), nil
}

func (q *PGQueue) commit(ctx context.Context, id string, lease time.Time) error {
	res, err := q.DB.ExecContext(ctx, `DELETE FROM queue_items WHERE id = $1 AND leased_until = $2`, id, lease)
	return checkLeased(res, err)
}

func (q *PGQueue) release(ctx context.Context, id string, lease time.Time) error {
	res, err := q.DB.ExecContext(ctx, `UPDATE queue_items SET leased_until = NULL WHERE id = $1 AND leased_until = $2`, id, lease)
	return checkLeased(res, err)
}

func checkLeased(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUnknownItem
	}
	return nil
}
