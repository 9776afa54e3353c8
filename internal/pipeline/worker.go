package pipeline

import (
	"context"
	"time"

	"review-backend/internal/queue"
	"review-backend/internal/shared/metrics"
	"review-backend/internal/shared/telemetry"
	"review-backend/internal/workerproc"
)

// DefaultBackoff is the pause after an empty or failed poll.
const DefaultBackoff = 3 * time.Second

// Worker drains one partition serially.
type Worker struct {
	Queue     queue.Queue
	Processor workerproc.Processor
	Partition int
	Backoff   time.Duration
}

// Run polls until ctx is cancelled. Cancellation is only observed between
// items; an item already received is processed to completion.
func (w *Worker) Run(ctx context.Context) error {
	backoff := w.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	telemetry.Info("pipeline.worker.started", map[string]any{"partition": w.Partition, "backoff_ms": backoff.Milliseconds()})

	for {
		if ctx.Err() != nil {
			telemetry.Info("pipeline.worker.stopped", map[string]any{"partition": w.Partition})
			return nil
		}
		if !w.poll(ctx) {
			sleep(ctx, backoff)
		}
	}
}

// poll handles at most one item and reports whether one was received.
func (w *Worker) poll(ctx context.Context) bool {
	d, err := w.Queue.Receive(ctx)
	if err != nil {
		if ctx.Err() == nil {
			telemetry.Error("pipeline.queue.receive_failed", map[string]any{"partition": w.Partition, "error": sanitizeError(err)})
		}
		return false
	}
	if d == nil {
		metrics.IncQueueEmptyPoll(w.Partition)
		return false
	}
	w.handle(context.WithoutCancel(ctx), d)
	return true
}

func (w *Worker) handle(ctx context.Context, d *queue.Delivery) {
	metrics.IncAnalysisJobsReceived()
	body := string(d.Body)
	fields := map[string]any{
		"partition": w.Partition,
		"item_id":   d.ID,
		"attempts":  d.Attempts,
	}

	msg, meta, err := workerproc.ParseMessage(body)
	if err != nil {
		fields["body_len"] = meta.BodyLen
		if meta.BodySHA != "" {
			fields["body_sha256"] = meta.BodySHA
		}
		fields["error"] = err.Error()
		telemetry.Error("pipeline.item.unrecoverable", fields)
		if w.commit(ctx, d, fields) {
			metrics.IncAnalysisJobsDeletedUnrecoverable()
		}
		return
	}

	fields["user_id"] = msg.UserID
	fields["request_id"] = msg.RequestID
	telemetry.Info("pipeline.item.received", fields)

	if err := workerproc.HandleMessage(workerproc.WithParsedMessage(ctx, msg), w.Processor, body); err != nil {
		fields["error"] = sanitizeError(err)
		telemetry.Error("pipeline.item.failed", fields)
		metrics.IncAnalysisJobsFailed()
		if relErr := d.Release(ctx); relErr != nil {
			fields["error"] = sanitizeError(relErr)
			telemetry.Error("pipeline.item.release_failed", fields)
		}
		return
	}

	if w.commit(ctx, d, fields) {
		telemetry.Info("pipeline.item.completed", fields)
		metrics.IncAnalysisJobsCompleted()
	}
}

func (w *Worker) commit(ctx context.Context, d *queue.Delivery, fields map[string]any) bool {
	if err := d.Commit(ctx); err != nil {
		f := withFields(fields, map[string]any{"error": sanitizeError(err)})
		telemetry.Error("pipeline.item.commit_failed", f)
		return false
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
