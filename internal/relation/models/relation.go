package models

import (
	"time"

	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

// EntityType is the audit registry key for relations.
const EntityType = "user_relation"

// Operation names recorded on relation audit rows.
const (
	OpPropose = "relation.propose"
	OpAccept  = "relation.accept"
	OpReject  = "relation.reject"
	OpRemove  = "relation.remove"
)

// UserRelation is a directed relationship request from sender to receiver.
// Once accepted it is bidirectionally effective for visibility purposes.
//
// Invariants:
//   - Sender and receiver are distinct
//   - Accepted and rejected are mutually exclusive over the record's lifetime
//   - Accepted or rejected is only ever reached from pending
//   - Soft-delete is terminal; re-establishing a connection means a new record
//
// State transitions are receiver-only for accept and reject; either party may
// soft-delete. The service loads the row, validates with CanX, applies with
// ApplyX, and persists through a conditional write so the precondition is
// re-checked at commit time (two concurrent accept/reject calls race
// otherwise).
type UserRelation struct {
	ID         id.RelationID   `json:"id"`
	SenderID   id.UserID       `json:"sender_id"`
	ReceiverID id.UserID       `json:"receiver_id"`
	Type       id.RelationType `json:"relation_type"`
	IsAccepted bool            `json:"is_accepted"`
	IsRejected bool            `json:"is_rejected"`
	IsDeleted  bool            `json:"is_deleted"`

	id.AuditFields
}

// NewUserRelation constructs a pending relation proposed by sender.
func NewUserRelation(relationID id.RelationID, sender, receiver id.UserID, relType id.RelationType, now time.Time) (*UserRelation, error) {
	if sender.IsNil() || receiver.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "relation requires both sender and receiver")
	}
	if sender == receiver {
		return nil, dErrors.New(dErrors.CodeConflict, "cannot propose a relation to yourself")
	}
	if !relType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid relation type: "+relType.String())
	}
	return &UserRelation{
		ID:          relationID,
		SenderID:    sender,
		ReceiverID:  receiver,
		Type:        relType,
		AuditFields: id.NewAuditFields(sender, now),
	}, nil
}

// IsPending reports whether the relation awaits the receiver's decision.
func (r *UserRelation) IsPending() bool {
	return !r.IsAccepted && !r.IsRejected && !r.IsDeleted
}

// Involves reports whether the user is either party.
func (r *UserRelation) Involves(userID id.UserID) bool {
	return r.SenderID == userID || r.ReceiverID == userID
}

// CounterpartyOf returns the other party of the relation, if userID is one.
func (r *UserRelation) CounterpartyOf(userID id.UserID) (id.UserID, bool) {
	switch userID {
	case r.SenderID:
		return r.ReceiverID, true
	case r.ReceiverID:
		return r.SenderID, true
	}
	return id.UserID{}, false
}

// CanAccept checks whether actor may accept the relation.
// Use with ApplyAccept so the precondition check and the mutation stay separate.
func (r *UserRelation) CanAccept(actor id.UserID) error {
	if r.IsDeleted {
		return dErrors.New(dErrors.CodeNotFound, "relation not found")
	}
	if actor != r.ReceiverID {
		return dErrors.New(dErrors.CodeForbidden, "only the receiver can accept a relation")
	}
	if r.IsRejected {
		return dErrors.New(dErrors.CodeForbidden, "a rejected relation cannot be accepted")
	}
	if r.IsAccepted {
		return dErrors.New(dErrors.CodeInvariantViolation, "relation is already accepted")
	}
	return nil
}

// ApplyAccept transitions the relation to accepted.
// Call CanAccept first to validate the transition.
func (r *UserRelation) ApplyAccept(actor id.UserID, now time.Time) {
	r.IsAccepted = true
	r.Touch(actor, now)
}

// CanReject checks whether actor may reject the relation.
func (r *UserRelation) CanReject(actor id.UserID) error {
	if r.IsDeleted {
		return dErrors.New(dErrors.CodeNotFound, "relation not found")
	}
	if actor != r.ReceiverID {
		return dErrors.New(dErrors.CodeForbidden, "only the receiver can reject a relation")
	}
	if r.IsAccepted {
		return dErrors.New(dErrors.CodeForbidden, "an accepted relation must be deleted, not rejected")
	}
	if r.IsRejected {
		return dErrors.New(dErrors.CodeInvariantViolation, "relation is already rejected")
	}
	return nil
}

// ApplyReject transitions the relation to rejected.
// Call CanReject first to validate the transition.
func (r *UserRelation) ApplyReject(actor id.UserID, now time.Time) {
	r.IsRejected = true
	r.Touch(actor, now)
}

// CanRemove checks whether actor may soft-delete the relation.
// Either party may remove, from any non-deleted state.
func (r *UserRelation) CanRemove(actor id.UserID) error {
	if r.IsDeleted {
		return dErrors.New(dErrors.CodeNotFound, "relation not found")
	}
	if !r.Involves(actor) {
		return dErrors.New(dErrors.CodeForbidden, "only a party to the relation can remove it")
	}
	return nil
}

// ApplyRemove soft-deletes the relation. Terminal.
func (r *UserRelation) ApplyRemove(actor id.UserID, now time.Time) {
	r.IsDeleted = true
	r.Touch(actor, now)
}
