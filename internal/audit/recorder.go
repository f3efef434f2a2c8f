// Package audit writes append-only log rows describing every entity mutation.
// Services track changes on the unit of work during a transaction; after the
// commit, the runner hands them to the Recorder, which dispatches each change
// to the strategy registered for its entity type. Adding an audited entity
// means writing one strategy and registering it here; nothing else changes.
package audit

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ruminster/internal/platform/uow"
)

// Strategy writes log rows for one entity type. Implementations snapshot the
// entity's post-mutation state; the entity value is the same pointer the
// service mutated, so IDs assigned during the transaction are visible.
type Strategy interface {
	EntityType() string
	Log(ctx context.Context, entity any, operation string) error
}

// Recorder dispatches committed changes to per-entity-type strategies.
type Recorder struct {
	strategies map[string]Strategy
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder builds a Recorder with the given strategies registered.
func NewRecorder(logger *slog.Logger, strategies []Strategy, opts ...Option) *Recorder {
	r := &Recorder{
		strategies: make(map[string]Strategy, len(strategies)),
		logger:     logger,
		tracer:     otel.Tracer("ruminster/audit"),
	}
	for _, s := range strategies {
		r.strategies[s.EntityType()] = s
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Flush writes log rows for every change, in tracking order. The first
// strategy failure aborts the flush so the caller's transaction rolls back
// whole; partial audit trails are worse than absent ones.
func (r *Recorder) Flush(ctx context.Context, changes []uow.Change) error {
	ctx, span := r.tracer.Start(ctx, "audit.Flush",
		trace.WithAttributes(attribute.Int("audit.changes", len(changes))))
	defer span.End()

	for _, change := range changes {
		strategy, ok := r.strategies[change.EntityType]
		if !ok {
			// Untracked entity types are fine; only registered ones log.
			r.logger.DebugContext(ctx, "no audit strategy for entity type",
				"entity_type", change.EntityType,
			)
			continue
		}
		if err := strategy.Log(ctx, change.Entity, change.Operation); err != nil {
			r.metrics.incFlushFailures()
			span.RecordError(err)
			return fmt.Errorf("audit log %s (%s): %w", change.EntityType, change.Operation, err)
		}
		r.metrics.incRowsWritten(change.EntityType)
	}
	return nil
}
