// Package service orchestrates the rumination lifecycle. Mutations run
// inside a unit of work and every state change is tracked for the audit
// recorder; reads resolve visibility from the viewer's accepted relations.
package service

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ruminster/internal/platform/uow"
	"ruminster/internal/rumination/models"
	"ruminster/internal/rumination/store"
	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
	"ruminster/pkg/platform/sentinel"
	pstrings "ruminster/pkg/platform/strings"
	"ruminster/pkg/requestcontext"
)

// Service orchestrates rumination writes and visibility-gated reads.
type Service struct {
	entries     store.Store
	relations   store.RelationReader
	runner      uow.Runner
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
	maxPageSize int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
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
func New(entries store.Store, relations store.RelationReader, runner uow.Runner, opts ...Option) *Service {
	s := &Service{
		entries:     entries,
		relations:   relations,
		runner:      runner,
		logger:      slog.Default(),
		tracer:      otel.Tracer("ruminster/rumination"),
		maxPageSize: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores a new rumination for the authenticated user. Audience types
// are deduplicated; an empty set means the entry is public once published.
func (s *Service) Create(ctx context.Context, content string, published bool, audienceTypes []string) (*models.Rumination, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	entry, err := models.NewRumination(id.NewRuminationID(), actor, content, published, now)
	if err != nil {
		return nil, err
	}

	types, err := parseAudienceTypes(audienceTypes)
	if err != nil {
		return nil, err
	}
	for _, t := range types {
		a, err := models.NewAudience(entry.ID, t, actor, now)
		if err != nil {
			return nil, err
		}
		entry.Audiences = append(entry.Audiences, a)
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.entries.Create(ctx, entry); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create rumination")
		}
		uow.Track(ctx, models.EntityType, models.OpCreate, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.incCreated(visibilityLabel(entry))
	s.logger.InfoContext(ctx, "rumination created",
		"rumination_id", entry.ID,
		"published", entry.IsPublished,
		"audiences", len(entry.Audiences),
		"request_id", requestcontext.RequestID(ctx),
	)
	return entry, nil
}

// UpdateContent replaces the body of an entry. Owner only.
func (s *Service) UpdateContent(ctx context.Context, ruminationID id.RuminationID, content string) (*models.Rumination, error) {
	return s.mutate(ctx, ruminationID, models.OpUpdate,
		func(entry *models.Rumination, actor id.UserID) error {
			return entry.ApplyContent(content, actor, requestcontext.Now(ctx))
		})
}

// SetPublished publishes or unpublishes an entry. Owner only.
func (s *Service) SetPublished(ctx context.Context, ruminationID id.RuminationID, published bool) (*models.Rumination, error) {
	operation := models.OpPublish
	if !published {
		operation = models.OpUnpublish
	}
	return s.mutate(ctx, ruminationID, operation,
		func(entry *models.Rumination, actor id.UserID) error {
			entry.ApplyPublished(published, actor, requestcontext.Now(ctx))
			return nil
		})
}

// Delete soft-deletes an entry. Owner only, terminal.
func (s *Service) Delete(ctx context.Context, ruminationID id.RuminationID) error {
	_, err := s.mutateWith(ctx, ruminationID, models.OpDelete, s.entries.MarkDeleted,
		func(entry *models.Rumination, actor id.UserID) error {
			entry.ApplyDelete(actor, requestcontext.Now(ctx))
			return nil
		})
	if err != nil {
		return err
	}
	s.metrics.incDeleted()
	return nil
}

// ReplaceAudiences reconciles the entry's live audience set against the
// requested types: missing ones are added, unlisted ones are soft-deleted.
// Owner only.
func (s *Service) ReplaceAudiences(ctx context.Context, ruminationID id.RuminationID, audienceTypes []string) (*models.Rumination, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	requested, err := parseAudienceTypes(audienceTypes)
	if err != nil {
		return nil, err
	}

	var entry *models.Rumination
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.load(ctx, ruminationID)
		if err != nil {
			return err
		}
		if err := entry.CanModify(actor); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		want := make(map[id.RelationType]bool, len(requested))
		for _, t := range requested {
			want[t] = true
		}

		var next []*models.Audience
		for _, a := range entry.Audiences {
			if want[a.Type] {
				delete(want, a.Type)
				next = append(next, a)
				continue
			}
			a.ApplyDelete(actor, now)
			if err := s.audienceWrite(s.entries.MarkAudienceDeleted(ctx, a)); err != nil {
				return err
			}
		}
		for t := range want {
			a, err := models.NewAudience(entry.ID, t, actor, now)
			if err != nil {
				return err
			}
			if err := s.audienceWrite(s.entries.AddAudience(ctx, a)); err != nil {
				return err
			}
			next = append(next, a)
		}
		entry.Audiences = next

		entry.Touch(actor, now)
		if err := s.persist(s.entries.UpdateEntry(ctx, entry)); err != nil {
			return err
		}
		uow.Track(ctx, models.EntityType, models.OpReplaceAudiences, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.incAudiencesReplaced()
	s.logger.InfoContext(ctx, "rumination audiences replaced",
		"rumination_id", entry.ID,
		"audiences", len(entry.Audiences),
		"request_id", requestcontext.RequestID(ctx),
	)
	return entry, nil
}

// Get returns one entry if the viewer may see it. Unpublished and deleted
// entries read as not found for everyone but the owner.
func (s *Service) Get(ctx context.Context, ruminationID id.RuminationID) (*models.Rumination, error) {
	viewer, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "rumination.Get",
		trace.WithAttributes(attribute.String("rumination.id", ruminationID.String())))
	defer span.End()

	entry, err := s.load(ctx, ruminationID)
	if err != nil {
		return nil, err
	}
	visible, err := s.visibleTo(ctx, entry, viewer)
	if err != nil {
		return nil, err
	}
	if !visible {
		// Existence is not disclosed to viewers outside the audience.
		return nil, dErrors.New(dErrors.CodeNotFound, "rumination not found")
	}
	return entry, nil
}

// visibleTo resolves one entry against the viewer's accepted relations with
// the owner.
func (s *Service) visibleTo(ctx context.Context, entry *models.Rumination, viewer id.UserID) (bool, error) {
	if entry.IsDeleted {
		return false, nil
	}
	if entry.OwnerID == viewer {
		return true, nil
	}
	if !entry.IsPublished {
		return false, nil
	}
	if entry.IsPublic() {
		return true, nil
	}
	types, err := s.relations.AcceptedTypesBetween(ctx, viewer, entry.OwnerID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve viewer relations")
	}
	for _, t := range entry.LiveAudienceTypes() {
		if types[t] {
			return true, nil
		}
	}
	return false, nil
}

// Mine lists the authenticated user's own entries, drafts included.
func (s *Service) Mine(ctx context.Context, q models.OwnQuery) ([]*models.Rumination, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	q.Page = id.NormalizePage(q.Page.Offset, q.Page.Limit, s.maxPageSize)
	q.Sort = s.sortOrDefault(ctx, q.Sort)

	entries, err := s.entries.ListByOwner(ctx, actor, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list ruminations")
	}
	return entries, nil
}

// PublicFeed lists published entries with no audience restriction. No
// authentication required.
func (s *Service) PublicFeed(ctx context.Context, q models.FeedQuery) ([]*models.Rumination, error) {
	q.Page = id.NormalizePage(q.Page.Offset, q.Page.Limit, s.maxPageSize)
	q.Sort = s.sortOrDefault(ctx, q.Sort)

	entries, err := s.entries.PublicFeed(ctx, q)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list public feed")
	}
	return entries, nil
}

// Feed lists every published entry the authenticated viewer may see: their
// own, public ones, and gated ones shared through an accepted relation.
func (s *Service) Feed(ctx context.Context, q models.FeedQuery) ([]*models.Rumination, error) {
	viewer, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}
	q.Page = id.NormalizePage(q.Page.Offset, q.Page.Limit, s.maxPageSize)
	q.Sort = s.sortOrDefault(ctx, q.Sort)

	ctx, span := s.tracer.Start(ctx, "rumination.Feed",
		trace.WithAttributes(attribute.String("viewer.id", viewer.String())))
	defer span.End()

	entries, err := s.entries.VisibleFeed(ctx, viewer, q)
	if err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list feed")
	}
	span.SetAttributes(attribute.Int("feed.entries", len(entries)))
	s.metrics.observeFeedSize(len(entries))
	return entries, nil
}

// mutate is the shared owner-gated load/apply/persist path for entry
// mutations.
func (s *Service) mutate(
	ctx context.Context,
	ruminationID id.RuminationID,
	operation string,
	apply func(*models.Rumination, id.UserID) error,
) (*models.Rumination, error) {
	return s.mutateWith(ctx, ruminationID, operation, s.entries.UpdateEntry, apply)
}

func (s *Service) mutateWith(
	ctx context.Context,
	ruminationID id.RuminationID,
	operation string,
	persist func(context.Context, *models.Rumination) error,
	apply func(*models.Rumination, id.UserID) error,
) (*models.Rumination, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	var entry *models.Rumination
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		entry, err = s.load(ctx, ruminationID)
		if err != nil {
			return err
		}
		if err := entry.CanModify(actor); err != nil {
			return err
		}
		if err := apply(entry, actor); err != nil {
			return err
		}
		if err := s.persist(persist(ctx, entry)); err != nil {
			return err
		}
		uow.Track(ctx, models.EntityType, operation, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "rumination updated",
		"rumination_id", entry.ID,
		"operation", operation,
		"request_id", requestcontext.RequestID(ctx),
	)
	return entry, nil
}

// persist translates storage sentinels for entry writes. Losing the
// conditional write means a concurrent delete got there first.
func (s *Service) persist(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, "rumination was modified concurrently")
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "rumination not found")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update rumination")
	}
}

func (s *Service) audienceWrite(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sentinel.ErrConflict), errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, "rumination audiences were modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update rumination audiences")
	}
}

func (s *Service) load(ctx context.Context, ruminationID id.RuminationID) (*models.Rumination, error) {
	entry, err := s.entries.FindByID(ctx, ruminationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "rumination not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load rumination")
	}
	return entry, nil
}

func (s *Service) actor(ctx context.Context) (id.UserID, error) {
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

// sortOrDefault drops an unparseable sort expression before it reaches the
// store, logging the rejected value. The result falls back to the default
// ordering rather than failing the request.
func (s *Service) sortOrDefault(ctx context.Context, expr string) string {
	if store.ValidSort(expr) {
		return expr
	}
	s.logger.WarnContext(ctx, "unrecognized sort expression, using default order",
		"sort", expr,
		"request_id", requestcontext.RequestID(ctx),
	)
	return ""
}

func parseAudienceTypes(raw []string) ([]id.RelationType, error) {
	cleaned := pstrings.DedupeAndTrimLower(raw)
	types := make([]id.RelationType, 0, len(cleaned))
	for _, v := range cleaned {
		t, err := id.ParseRelationType(v)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func visibilityLabel(entry *models.Rumination) string {
	if entry.IsPublic() {
		return "public"
	}
	return "gated"
}
