// Package service orchestrates relation lifecycle operations. Mutations run
// inside a unit of work; every state change is tracked for the audit
// recorder, and propose/accept enqueue a notification for the counterparty.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ruminster/internal/notification"
	"ruminster/internal/platform/uow"
	"ruminster/internal/relation/models"
	"ruminster/internal/relation/store"
	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
	"ruminster/pkg/platform/sentinel"
	"ruminster/pkg/requestcontext"
)

// Service orchestrates relation proposals and transitions.
type Service struct {
	relations   store.Store
	runner      uow.Runner
	notifier    notification.Sender
	logger      *slog.Logger
	metrics     *Metrics
	maxPageSize int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithNotifier attaches a notification sender for propose/accept events.
func WithNotifier(sender notification.Sender) Option {
	return func(s *Service) { s.notifier = sender }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithMaxPageSize sets the operator-configured cap on listing page sizes.
func WithMaxPageSize(n int) Option {
	return func(s *Service) { s.maxPageSize = n }
}

// New constructs a Service.
func New(relations store.Store, runner uow.Runner, opts ...Option) *Service {
	s := &Service{
		relations:   relations,
		runner:      runner,
		logger:      slog.Default(),
		maxPageSize: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Propose creates a pending relation from the authenticated user to receiver.
func (s *Service) Propose(ctx context.Context, receiver id.UserID, relType id.RelationType) (*models.UserRelation, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	rel, err := models.NewUserRelation(id.NewRelationID(), actor, receiver, relType, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.relations.Create(ctx, rel); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "a relation of this type already exists between these users")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create relation")
		}
		uow.Track(ctx, models.EntityType, models.OpPropose, rel)
		s.notify(ctx, notification.KindRelationProposed, rel.ReceiverID, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.incProposed(rel.Type.String())
	s.logger.InfoContext(ctx, "relation proposed",
		"relation_id", rel.ID,
		"relation_type", rel.Type,
		"request_id", requestcontext.RequestID(ctx),
	)
	return rel, nil
}

// Accept transitions a pending relation to accepted. Receiver only.
func (s *Service) Accept(ctx context.Context, relationID id.RelationID) (*models.UserRelation, error) {
	rel, err := s.transition(ctx, relationID, models.OpAccept,
		(*models.UserRelation).CanAccept,
		(*models.UserRelation).ApplyAccept,
		s.relations.MarkAccepted,
	)
	if err != nil {
		return nil, err
	}
	s.metrics.incAccepted(rel.Type.String())
	return rel, nil
}

// Reject transitions a pending relation to rejected. Receiver only.
func (s *Service) Reject(ctx context.Context, relationID id.RelationID) (*models.UserRelation, error) {
	rel, err := s.transition(ctx, relationID, models.OpReject,
		(*models.UserRelation).CanReject,
		(*models.UserRelation).ApplyReject,
		s.relations.MarkRejected,
	)
	if err != nil {
		return nil, err
	}
	s.metrics.incRejected(rel.Type.String())
	return rel, nil
}

// Remove soft-deletes a relation. Either party, any non-deleted state.
func (s *Service) Remove(ctx context.Context, relationID id.RelationID) error {
	rel, err := s.transition(ctx, relationID, models.OpRemove,
		(*models.UserRelation).CanRemove,
		(*models.UserRelation).ApplyRemove,
		s.relations.MarkDeleted,
	)
	if err != nil {
		return err
	}
	s.metrics.incRemoved(rel.Type.String())
	return nil
}

// transition is the shared load/validate/apply/persist path for state
// changes. The store's conditional write re-checks the precondition at commit
// time; losing that race surfaces as Conflict.
func (s *Service) transition(
	ctx context.Context,
	relationID id.RelationID,
	operation string,
	can func(*models.UserRelation, id.UserID) error,
	apply func(*models.UserRelation, id.UserID, time.Time),
	persist func(context.Context, *models.UserRelation) error,
) (*models.UserRelation, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	var rel *models.UserRelation
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		rel, err = s.load(ctx, relationID)
		if err != nil {
			return err
		}
		if err := can(rel, actor); err != nil {
			return err
		}
		apply(rel, actor, requestcontext.Now(ctx))

		if err := persist(ctx, rel); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConflict, "relation was modified concurrently")
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "relation not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update relation")
		}

		uow.Track(ctx, models.EntityType, operation, rel)
		if operation == models.OpAccept {
			s.notify(ctx, notification.KindRelationAccepted, rel.SenderID, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "relation updated",
		"relation_id", rel.ID,
		"operation", operation,
		"request_id", requestcontext.RequestID(ctx),
	)
	return rel, nil
}

// Get returns a relation visible to the authenticated user.
func (s *Service) Get(ctx context.Context, relationID id.RelationID) (*models.UserRelation, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	rel, err := s.load(ctx, relationID)
	if err != nil {
		return nil, err
	}
	if rel.IsDeleted {
		return nil, dErrors.New(dErrors.CodeNotFound, "relation not found")
	}
	if !rel.Involves(actor) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not a party to this relation")
	}
	return rel, nil
}

// List returns the authenticated user's relations, filtered and paginated.
func (s *Service) List(ctx context.Context, q models.ListQuery) ([]*models.UserRelation, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	if q.Type != "" && !q.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid relation type filter: "+q.Type.String())
	}
	q.Page = id.NormalizePage(q.Page.Offset, q.Page.Limit, s.maxPageSize)
	if !store.ValidSort(q.Sort) {
		// Tolerant sort handling: fall back to the default order, but leave a
		// trace of the rejected expression.
		s.logger.WarnContext(ctx, "unrecognized sort expression, using default order",
			"sort", q.Sort,
			"request_id", requestcontext.RequestID(ctx),
		)
		q.Sort = ""
	}

	rels, err := s.relations.List(ctx, actor, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list relations")
	}
	return rels, nil
}

func (s *Service) load(ctx context.Context, relationID id.RelationID) (*models.UserRelation, error) {
	rel, err := s.relations.FindByID(ctx, relationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "relation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relation")
	}
	return rel, nil
}

func (s *Service) actor(ctx context.Context) (id.UserID, error) {
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

// notify enqueues a notification inside the current transaction. A failed
// enqueue is logged, not fatal: the relation change matters more than the
// ping about it.
func (s *Service) notify(ctx context.Context, kind notification.Kind, recipient id.UserID, rel *models.UserRelation) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Notification{
		Kind:        kind,
		RecipientID: recipient,
		Params: map[string]string{
			"relation_id":   rel.ID.String(),
			"relation_type": rel.Type.String(),
			"sender_id":     rel.SenderID.String(),
			"receiver_id":   rel.ReceiverID.String(),
		},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue relation notification",
			"error", err,
			"kind", kind,
			"relation_id", rel.ID,
		)
	}
}
