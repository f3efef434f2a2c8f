package models

import (
	"time"

	id "ruminster/pkg/domain"
)

// RelationLog is one append-only audit row: a snapshot of the relation's
// state after a mutation, tagged with the operation that caused it. The
// actor and timestamp come from the entity's updater fields, so the log row
// always matches the state it describes.
type RelationLog struct {
	RelationID id.RelationID   `json:"relation_id"`
	Operation  string          `json:"operation"`
	SenderID   id.UserID       `json:"sender_id"`
	ReceiverID id.UserID       `json:"receiver_id"`
	Type       id.RelationType `json:"relation_type"`
	IsAccepted bool            `json:"is_accepted"`
	IsRejected bool            `json:"is_rejected"`
	IsDeleted  bool            `json:"is_deleted"`
	CreatedBy  id.UserID       `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewRelationLog snapshots a relation after a mutation.
func NewRelationLog(r *UserRelation, operation string) *RelationLog {
	return &RelationLog{
		RelationID: r.ID,
		Operation:  operation,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Type:       r.Type,
		IsAccepted: r.IsAccepted,
		IsRejected: r.IsRejected,
		IsDeleted:  r.IsDeleted,
		CreatedBy:  r.UpdatedBy,
		CreatedAt:  r.UpdatedAt,
	}
}
