package notification

import (
	"context"
	"log/slog"
	"time"
)

// Publisher is the broker side of the worker, satisfied by KafkaPublisher.
type Publisher interface {
	Publish(ctx context.Context, row OutboxRow) error
}

// Worker drains the outbox on an interval. Rows publish at-least-once: a
// crash between Publish and MarkPublished re-publishes on restart, which
// downstream consumers must tolerate.
type Worker struct {
	store     OutboxStore
	publisher Publisher
	logger    *slog.Logger
	metrics   *Metrics
	interval  time.Duration
	batchSize int
}

// NewWorker builds an outbox worker.
func NewWorker(store OutboxStore, publisher Publisher, logger *slog.Logger, metrics *Metrics, interval time.Duration, batchSize int) *Worker {
	return &Worker{
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox drain failed", "error", err)
			}
		}
	}
}

// drain publishes one batch. Publish failures stop the batch so ordering per
// recipient holds; published rows before the failure are still marked.
func (w *Worker) drain(ctx context.Context) error {
	rows, err := w.store.Pending(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	var published []int64
	var publishErr error
	for _, row := range rows {
		if err := w.publisher.Publish(ctx, row); err != nil {
			publishErr = err
			break
		}
		published = append(published, row.ID)
		w.metrics.incPublished(string(row.Kind))
	}

	if len(published) > 0 {
		if err := w.store.MarkPublished(ctx, published, time.Now().UTC()); err != nil {
			return err
		}
	}
	return publishErr
}
