package models

import (
	"time"

	id "ruminster/pkg/domain"
)

// CommentLog is one append-only audit row: a snapshot of the comment after
// a mutation.
type CommentLog struct {
	CommentID    id.CommentID    `json:"comment_id"`
	Operation    string          `json:"operation"`
	RuminationID id.RuminationID `json:"rumination_id"`
	ParentID     *id.CommentID   `json:"parent_id,omitempty"`
	AuthorID     id.UserID       `json:"author_id"`
	Content      string          `json:"content"`
	IsDeleted    bool            `json:"is_deleted"`
	CreatedBy    id.UserID       `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewCommentLog snapshots a comment after a mutation.
func NewCommentLog(c *Comment, operation string) *CommentLog {
	return &CommentLog{
		CommentID:    c.ID,
		Operation:    operation,
		RuminationID: c.RuminationID,
		ParentID:     c.ParentID,
		AuthorID:     c.AuthorID,
		Content:      c.Content,
		IsDeleted:    c.IsDeleted,
		CreatedBy:    c.UpdatedBy,
		CreatedAt:    c.UpdatedAt,
	}
}
