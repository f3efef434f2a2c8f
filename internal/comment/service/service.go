// Package service orchestrates threaded comments on ruminations. A viewer
// may comment exactly where they may read; mutations run inside a unit of
// work and are tracked for the audit recorder.
package service

import (
	"context"
	"errors"
	"log/slog"

	"ruminster/internal/comment/models"
	"ruminster/internal/comment/store"
	"ruminster/internal/identity"
	"ruminster/internal/notification"
	"ruminster/internal/platform/uow"
	rummodels "ruminster/internal/rumination/models"
	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
	"ruminster/pkg/platform/sentinel"
	"ruminster/pkg/requestcontext"
)

// EntryReader resolves the rumination a comment targets, applying the
// caller's visibility. The rumination service implements it.
type EntryReader interface {
	Get(ctx context.Context, ruminationID id.RuminationID) (*rummodels.Rumination, error)
}

// Service orchestrates comment writes and thread reads.
type Service struct {
	comments    store.Store
	entries     EntryReader
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

// WithNotifier attaches a notification sender for comment events.
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
func New(comments store.Store, entries EntryReader, runner uow.Runner, opts ...Option) *Service {
	s := &Service{
		comments:    comments,
		entries:     entries,
		runner:      runner,
		logger:      slog.Default(),
		maxPageSize: 50,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add creates a comment, or a reply when parentID is set. The author must be
// able to see the rumination; an invisible one reads as not found.
func (s *Service) Add(ctx context.Context, ruminationID id.RuminationID, parentID *id.CommentID, content string) (*models.Comment, error) {
	author, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	entry, err := s.entries.Get(ctx, ruminationID)
	if err != nil {
		return nil, err
	}

	var parent *models.Comment
	if parentID != nil {
		parent, err = s.load(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		if parent.IsDeleted {
			return nil, dErrors.New(dErrors.CodeNotFound, "comment not found")
		}
		if parent.RuminationID != ruminationID {
			return nil, dErrors.New(dErrors.CodeValidation, "parent comment belongs to a different rumination")
		}
	}

	comment, err := models.NewComment(id.NewCommentID(), ruminationID, parentID, author, content, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.comments.Create(ctx, comment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create comment")
		}
		uow.Track(ctx, models.EntityType, models.OpCreate, comment)

		if entry.OwnerID != author {
			s.notify(ctx, notification.KindRuminationCommented, entry.OwnerID, comment)
		}
		if parent != nil && parent.AuthorID != author && parent.AuthorID != entry.OwnerID {
			s.notify(ctx, notification.KindCommentReplied, parent.AuthorID, comment)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.incCreated(comment.IsReply())
	s.logger.InfoContext(ctx, "comment created",
		"comment_id", comment.ID,
		"rumination_id", ruminationID,
		"reply", comment.IsReply(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return comment, nil
}

// Edit replaces a comment's body. Author only.
func (s *Service) Edit(ctx context.Context, commentID id.CommentID, content string) (*models.Comment, error) {
	return s.mutate(ctx, commentID, models.OpUpdate, s.comments.UpdateEntry,
		(*models.Comment).CanModify,
		func(c *models.Comment, actor id.UserID) error {
			return c.ApplyContent(content, actor, requestcontext.Now(ctx))
		})
}

// Delete soft-deletes a comment. Author or moderator, terminal. Replies stay
// in place.
func (s *Service) Delete(ctx context.Context, commentID id.CommentID) error {
	can := (*models.Comment).CanModify
	if identity.HasRole(requestcontext.Roles(ctx), identity.RoleModerator) {
		can = canModerate
	}

	_, err := s.mutate(ctx, commentID, models.OpDelete, s.comments.MarkDeleted, can,
		func(c *models.Comment, actor id.UserID) error {
			c.ApplyDelete(actor, requestcontext.Now(ctx))
			return nil
		})
	if err != nil {
		return err
	}
	s.metrics.incDeleted()
	return nil
}

// canModerate is the moderator's delete gate: any live comment, regardless of
// author. A deleted one still reads as not found.
func canModerate(c *models.Comment, _ id.UserID) error {
	if c.IsDeleted {
		return dErrors.New(dErrors.CodeNotFound, "comment not found")
	}
	return nil
}

// ListForRumination returns a rumination's live comments in thread order.
// The caller must be able to see the rumination.
func (s *Service) ListForRumination(ctx context.Context, ruminationID id.RuminationID, page id.Page) ([]*models.Comment, error) {
	if _, err := s.entries.Get(ctx, ruminationID); err != nil {
		return nil, err
	}
	page = id.NormalizePage(page.Offset, page.Limit, s.maxPageSize)

	comments, err := s.comments.ListByRumination(ctx, ruminationID, page)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list comments")
	}
	return comments, nil
}

func (s *Service) mutate(
	ctx context.Context,
	commentID id.CommentID,
	operation string,
	persist func(context.Context, *models.Comment) error,
	can func(*models.Comment, id.UserID) error,
	apply func(*models.Comment, id.UserID) error,
) (*models.Comment, error) {
	actor, err := s.actor(ctx)
	if err != nil {
		return nil, err
	}

	var comment *models.Comment
	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		comment, err = s.load(ctx, commentID)
		if err != nil {
			return err
		}
		if err := can(comment, actor); err != nil {
			return err
		}
		if err := apply(comment, actor); err != nil {
			return err
		}

		if err := persist(ctx, comment); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConflict, "comment was modified concurrently")
			}
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "comment not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update comment")
		}
		uow.Track(ctx, models.EntityType, operation, comment)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "comment updated",
		"comment_id", comment.ID,
		"operation", operation,
		"request_id", requestcontext.RequestID(ctx),
	)
	return comment, nil
}

func (s *Service) load(ctx context.Context, commentID id.CommentID) (*models.Comment, error) {
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "comment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load comment")
	}
	return comment, nil
}

func (s *Service) actor(ctx context.Context) (id.UserID, error) {
	actor := requestcontext.UserID(ctx)
	if actor.IsNil() {
		return id.UserID{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return actor, nil
}

// notify enqueues a notification inside the current transaction. A failed
// enqueue is logged, not fatal.
func (s *Service) notify(ctx context.Context, kind notification.Kind, recipient id.UserID, c *models.Comment) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Send(ctx, notification.Notification{
		Kind:        kind,
		RecipientID: recipient,
		Params: map[string]string{
			"comment_id":    c.ID.String(),
			"rumination_id": c.RuminationID.String(),
			"author_id":     c.AuthorID.String(),
		},
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to enqueue comment notification",
			"error", err,
			"kind", kind,
			"comment_id", c.ID,
		)
	}
}
