package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownItem is returned when committing or releasing an item that is no
// longer leased by the caller.
var ErrUnknownItem = errors.New("queue: unknown or expired item")

type memItem struct {
	id          string
	body        []byte
	attempts    int
	leasedUntil time.Time
}

// MemoryQueue is an in-process Queue with leases. Items whose lease expires
// are delivered again.
type MemoryQueue struct {
	mu    sync.Mutex
	items []*memItem
	lease time.Duration
	now   func() time.Time
}

// NewMemoryQueue constructs a MemoryQueue. A non-positive lease defaults to five minutes.
func NewMemoryQueue(lease time.Duration) *MemoryQueue {
	if lease <= 0 {
		lease = 5 * time.Minute
	}
	return &MemoryQueue{lease: lease, now: time.Now}
}

func (q *MemoryQueue) Send(ctx context.Context, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(body))
	copy(buf, body)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, &memItem{id: uuid.NewString(), body: buf})
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for _, it := range q.items {
		if it.leasedUntil.After(now) {
			continue
		}
		it.attempts++
		it.leasedUntil = now.Add(q.lease)
		id, lease := it.id, it.leasedUntil
		return NewDelivery(id, it.body, it.attempts,
			func(context.Context) error { return q.commit(id, lease) },
			func(context.Context) error { return q.release(id, lease) },
		), nil
	}
	return nil, nil
}

// Len returns the number of items not yet committed.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MemoryQueue) commit(id string, lease time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.id == id && it.leasedUntil.Equal(lease) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return nil
		}
	}
	return ErrUnknownItem
}

func (q *MemoryQueue) release(id string, lease time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if it.id == id && it.leasedUntil.Equal(lease) {
			it.leasedUntil = time.Time{}
			return nil
		}
	}
	return ErrUnknownItem
}
