package models

import (
	"time"

	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

// Audience is one gating entry: "viewers related to the owner by this type
// may see the rumination". Soft-deleted entries no longer gate but keep
// their creation timestamps for history.
type Audience struct {
	ID           id.AudienceID   `json:"id"`
	RuminationID id.RuminationID `json:"rumination_id"`
	Type         id.RelationType `json:"relation_type"`
	IsDeleted    bool            `json:"is_deleted"`

	id.AuditFields
}

// NewAudience constructs a live audience entry.
func NewAudience(ruminationID id.RuminationID, relType id.RelationType, actor id.UserID, now time.Time) (*Audience, error) {
	if !relType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "invalid audience relation type: "+relType.String())
	}
	return &Audience{
		ID:           id.NewAudienceID(),
		RuminationID: ruminationID,
		Type:         relType,
		AuditFields:  id.NewAuditFields(actor, now),
	}, nil
}

// ApplyDelete soft-deletes the entry.
func (a *Audience) ApplyDelete(actor id.UserID, now time.Time) {
	a.IsDeleted = true
	a.Touch(actor, now)
}
