package queue

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
)

// ErrNoPartitions is returned by a Router with no queues.
var ErrNoPartitions = errors.New("queue: no partitions configured")

// Queue is a durable at-least-once work queue. Receive returns (nil, nil)
// when nothing is available. A received item stays invisible to other
// consumers until it is committed, released or its lease expires.
type Queue interface {
	Send(ctx context.Context, body []byte) error
	Receive(ctx context.Context) (*Delivery, error)
}

// Delivery is one received item.
type Delivery struct {
	ID       string
	Body     []byte
	Attempts int

	commit  func(ctx context.Context) error
	release func(ctx context.Context) error
}

// NewDelivery is used by backends to bind acknowledgement callbacks.
func NewDelivery(id string, body []byte, attempts int, commit, release func(ctx context.Context) error) *Delivery {
	return &Delivery{ID: id, Body: body, Attempts: attempts, commit: commit, release: release}
}

// Commit removes the item from the queue for good.
func (d *Delivery) Commit(ctx context.Context) error {
	if d.commit == nil {
		return nil
	}
	return d.commit(ctx)
}

// Release returns the item to the queue for redelivery.
func (d *Delivery) Release(ctx context.Context) error {
	if d.release == nil {
		return nil
	}
	return d.release(ctx)
}

// Router spreads requests over partitions by user id. A user's items always
// land on the same partition.
type Router struct {
	Queues []Queue
}

// Partition returns the index of the queue that owns userID.
func (r *Router) Partition(userID string) int {
	if len(r.Queues) == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(r.Queues)))
}

// Send encodes msg and enqueues it on the owning partition.
func (r *Router) Send(ctx context.Context, msg SubmissionRequest) (int, error) {
	if len(r.Queues) == 0 {
		return 0, ErrNoPartitions
	}
	body, err := EncodeMessage(msg)
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}
	p := r.Partition(msg.UserID)
	if err := r.Queues[p].Send(ctx, body); err != nil {
		return p, fmt.Errorf("enqueue partition %d: %w", p, err)
	}
	return p, nil
}
