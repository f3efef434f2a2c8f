package models

import (
	"strings"
	"time"

	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

// EntityType is the audit registry key for comments.
const EntityType = "comment"

// Operation names recorded on comment audit rows.
const (
	OpCreate = "comment.create"
	OpUpdate = "comment.update"
	OpDelete = "comment.delete"
)

// MaxContentLength bounds comment bodies.
const MaxContentLength = 2000

// Comment is one threaded reply on a rumination. A nil ParentID means a
// top-level comment; replies carry their parent's ID. Soft-deleted comments
// stay in place so threads keep their shape.
type Comment struct {
	ID           id.CommentID    `json:"id"`
	RuminationID id.RuminationID `json:"rumination_id"`
	ParentID     *id.CommentID   `json:"parent_id,omitempty"`
	AuthorID     id.UserID       `json:"author_id"`
	Content      string          `json:"content"`
	IsDeleted    bool            `json:"is_deleted"`

	id.AuditFields
}

// NewComment constructs a comment by author on the given rumination.
func NewComment(commentID id.CommentID, ruminationID id.RuminationID, parentID *id.CommentID, author id.UserID, content string, now time.Time) (*Comment, error) {
	if author.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "comment requires an author")
	}
	if ruminationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "comment requires a rumination")
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	return &Comment{
		ID:           commentID,
		RuminationID: ruminationID,
		ParentID:     parentID,
		AuthorID:     author,
		Content:      content,
		AuditFields:  id.NewAuditFields(author, now),
	}, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return dErrors.New(dErrors.CodeValidation, "comment content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return dErrors.New(dErrors.CodeValidation, "comment content is too long")
	}
	return nil
}

// IsReply reports whether the comment has a parent.
func (c *Comment) IsReply() bool {
	return c.ParentID != nil
}

// CanModify checks whether actor may mutate the comment.
func (c *Comment) CanModify(actor id.UserID) error {
	if c.IsDeleted {
		return dErrors.New(dErrors.CodeNotFound, "comment not found")
	}
	if actor != c.AuthorID {
		return dErrors.New(dErrors.CodeForbidden, "only the author can modify a comment")
	}
	return nil
}

// ApplyContent updates the body. Call CanModify first.
func (c *Comment) ApplyContent(content string, actor id.UserID, now time.Time) error {
	if err := validateContent(content); err != nil {
		return err
	}
	c.Content = content
	c.Touch(actor, now)
	return nil
}

// ApplyDelete soft-deletes the comment. Call CanModify first. Terminal.
func (c *Comment) ApplyDelete(actor id.UserID, now time.Time) {
	c.IsDeleted = true
	c.Touch(actor, now)
}
