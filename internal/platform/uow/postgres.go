package uow

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	dErrors "ruminster/pkg/domain-errors"
	"ruminster/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

// PostgresRunner runs units of work on a postgres database. The transaction
// travels through the context (pkg/platform/tx) so stores join it without
// knowing about the runner.
type PostgresRunner struct {
	db      *sql.DB
	flusher Flusher
	logger  *slog.Logger
	timeout time.Duration
}

// NewPostgresRunner builds a runner. The flusher may be nil, in which case
// changes are accumulated and dropped (useful for tooling that bypasses
// audit logging on purpose).
func NewPostgresRunner(db *sql.DB, flusher Flusher, logger *slog.Logger) *PostgresRunner {
	return &PostgresRunner{db: db, flusher: flusher, logger: logger, timeout: defaultTxTimeout}
}

// RunInTx opens a transaction, runs fn with the transaction and a fresh
// unit of work in its context, and commits. After a successful commit the
// accumulated changes are flushed in a second transaction; a flush failure is
// logged but never surfaced to the caller, because the mutation it describes
// has already committed.
func (r *PostgresRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "begin transaction")
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	u := &UnitOfWork{}
	txCtx := With(tx.WithTx(ctx, sqlTx), u)

	if err := fn(txCtx); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "commit transaction")
	}

	r.flush(ctx, u.Changes())
	return nil
}

// flush writes the audit rows in their own transaction, after the primary
// commit. Errors here are terminal for the log rows only.
func (r *PostgresRunner) flush(ctx context.Context, changes []Change) {
	if r.flusher == nil || len(changes) == 0 {
		return
	}

	logTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.logger.ErrorContext(ctx, "audit flush: begin transaction failed", "error", err)
		return
	}
	defer func() {
		_ = logTx.Rollback()
	}()

	if err := r.flusher.Flush(tx.WithTx(ctx, logTx), changes); err != nil {
		r.logger.ErrorContext(ctx, "audit flush failed", "error", err, "changes", len(changes))
		return
	}
	if err := logTx.Commit(); err != nil {
		r.logger.ErrorContext(ctx, "audit flush: commit failed", "error", err, "changes", len(changes))
	}
}
