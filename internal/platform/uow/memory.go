package uow

import (
	"context"
	"log/slog"
	"sync"

	dErrors "ruminster/pkg/domain-errors"
)

// MemoryRunner mirrors PostgresRunner for unit tests: a coarse lock instead
// of a database transaction, with the same accumulate-then-flush contract.
type MemoryRunner struct {
	mu      sync.Mutex
	flusher Flusher
	logger  *slog.Logger
}

// NewMemoryRunner builds an in-memory runner.
func NewMemoryRunner(flusher Flusher, logger *slog.Logger) *MemoryRunner {
	return &MemoryRunner{flusher: flusher, logger: logger}
}

// RunInTx runs fn under the runner's lock with a fresh unit of work in its
// context, then flushes the accumulated changes. Memory stores have no
// rollback; fn failures leave their writes behind, which unit tests accept.
func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u := &UnitOfWork{}
	if err := fn(With(ctx, u)); err != nil {
		return err
	}

	if r.flusher != nil && len(u.Changes()) > 0 {
		if err := r.flusher.Flush(ctx, u.Changes()); err != nil {
			r.logger.ErrorContext(ctx, "audit flush failed", "error", err, "changes", len(u.Changes()))
		}
	}
	return nil
}
