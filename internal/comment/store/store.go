package store

import (
	"context"

	"ruminster/internal/comment/models"
	id "ruminster/pkg/domain"
)

// Store is the comment persistence port. Implementations return
// pkg/platform/sentinel errors; the service layer translates them to domain
// codes.
//
// UpdateEntry and MarkDeleted are conditional on the row still being live
// and return sentinel.ErrInvalidState when the precondition fails.
type Store interface {
	Create(ctx context.Context, c *models.Comment) error
	FindByID(ctx context.Context, commentID id.CommentID) (*models.Comment, error)
	UpdateEntry(ctx context.Context, c *models.Comment) error
	MarkDeleted(ctx context.Context, c *models.Comment) error

	// ListByRumination returns the live comments of one rumination in
	// thread order, oldest first.
	ListByRumination(ctx context.Context, ruminationID id.RuminationID, page id.Page) ([]*models.Comment, error)

	// SearchVisible returns live comments matching needle whose rumination
	// the viewer may see.
	SearchVisible(ctx context.Context, viewer id.UserID, needle string, page id.Page) ([]*models.Comment, error)
}

// LogStore appends audit snapshots.
type LogStore interface {
	AppendLog(ctx context.Context, log *models.CommentLog) error
}

// VisibilityResolver answers whether a viewer may see one rumination. The
// in-memory store searches through it; the postgres store joins the
// rumination and relation tables directly instead.
type VisibilityResolver interface {
	VisibleTo(ctx context.Context, viewer id.UserID, ruminationID id.RuminationID) (bool, error)
}
