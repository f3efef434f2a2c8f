// Package notification delivers user-facing notifications through a
// transactional outbox. The Sender writes an outbox row inside the caller's
// transaction; the outbox worker publishes pending rows to Kafka and marks
// them published. Delivery mechanics past the broker belong to a downstream
// consumer.
package notification

import (
	"context"
	"time"

	id "ruminster/pkg/domain"
)

// Kind identifies the notification template.
type Kind string

const (
	KindRelationProposed    Kind = "relation.proposed"
	KindRelationAccepted    Kind = "relation.accepted"
	KindRuminationCommented Kind = "rumination.commented"
	KindCommentReplied      Kind = "comment.replied"
)

// Notification is a templated payload addressed to one user.
type Notification struct {
	Kind        Kind              `json:"kind"`
	RecipientID id.UserID         `json:"recipient_id"`
	Params      map[string]string `json:"params"`
}

// Sender enqueues a notification. Implementations must be transactional with
// the caller's mutation: if the mutation rolls back, so does the
// notification.
//
//go:generate mockgen -source=notification.go -destination=mocks/mocks.go -package=mocks Sender
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// OutboxRow is one pending or published outbox entry.
type OutboxRow struct {
	ID          int64
	Kind        Kind
	RecipientID id.UserID
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// OutboxStore persists and drains the outbox.
type OutboxStore interface {
	Sender

	// Pending returns up to limit unpublished rows, oldest first.
	Pending(ctx context.Context, limit int) ([]OutboxRow, error)

	// MarkPublished stamps rows as published.
	MarkPublished(ctx context.Context, ids []int64, now time.Time) error
}
