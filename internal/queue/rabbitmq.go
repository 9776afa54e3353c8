package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"review-backend/internal/shared/telemetry"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
}

// RabbitQueue is a Queue over one durable RabbitMQ queue. Receive polls with
// basic.get without auto-ack; Commit acks and Release nacks with requeue.
type RabbitQueue struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	channel amqpChannel
	name    string
}

// NewRabbitQueue dials url and declares the durable queue name.
func NewRabbitQueue(url, name string) (*RabbitQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq declare %s: %w", name, err)
	}
	telemetry.Info("queue.rabbitmq.ready", map[string]any{"queue": name})
	return &RabbitQueue{conn: conn, channel: ch, name: name}, nil
}

func newRabbitQueue(ch amqpChannel, name string) *RabbitQueue {
	return &RabbitQueue{channel: ch, name: name}
}

func (r *RabbitQueue) Send(ctx context.Context, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.channel.PublishWithContext(ctx, "", r.name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

func (r *RabbitQueue) Receive(ctx context.Context) (*Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	msg, ok, err := r.channel.Get(r.name, false)
	r.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq get: %w", err)
	}
	if !ok {
		return nil, nil
	}
	attempts := 1
	if msg.Redelivered {
		attempts = 2
	}
	return NewDelivery(msg.MessageId, msg.Body, attempts,
		func(context.Context) error { return msg.Ack(false) },
		func(context.Context) error { return msg.Nack(false, true) },
	), nil
}

// Close closes the underlying connection.
func (r *RabbitQueue) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
