// Package uow runs mutations inside a unit of work: one database transaction
// plus an accumulator of pending entity changes. After the transaction
// commits, the accumulated changes are handed to a Flusher (the audit
// recorder) in a separate transaction, so a logging failure can never roll
// back the mutation it describes.
package uow

import "context"

// Change is one entity mutation observed during a unit of work. The entity is
// captured by reference, so by flush time it carries its post-mutation state
// including any IDs assigned late in the transaction.
type Change struct {
	EntityType string
	Operation  string
	Entity     any
}

// UnitOfWork accumulates changes for the transaction it is scoped to.
// It is not safe for concurrent use; a unit of work belongs to one request.
type UnitOfWork struct {
	changes []Change
}

// Track records an entity mutation for post-commit logging.
func (u *UnitOfWork) Track(entityType, operation string, entity any) {
	u.changes = append(u.changes, Change{
		EntityType: entityType,
		Operation:  operation,
		Entity:     entity,
	})
}

// Changes returns the accumulated changes in tracking order.
func (u *UnitOfWork) Changes() []Change {
	return u.changes
}

type uowKey struct{}

// With stores a unit of work in the context.
func With(ctx context.Context, u *UnitOfWork) context.Context {
	return context.WithValue(ctx, uowKey{}, u)
}

// From extracts the unit of work from the context, or nil when the operation
// runs outside a runner (reads never carry one).
func From(ctx context.Context) *UnitOfWork {
	if u, ok := ctx.Value(uowKey{}).(*UnitOfWork); ok {
		return u
	}
	return nil
}

// Track is a convenience for services: it records the change on the context's
// unit of work, silently doing nothing when none is present.
func Track(ctx context.Context, entityType, operation string, entity any) {
	if u := From(ctx); u != nil {
		u.Track(entityType, operation, entity)
	}
}

// Runner executes fn inside a unit of work.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Flusher receives the committed changes of a unit of work. Implementations
// write audit log rows; the runner guarantees Flush runs after the primary
// transaction has committed.
type Flusher interface {
	Flush(ctx context.Context, changes []Change) error
}
