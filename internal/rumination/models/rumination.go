package models

import (
	"strings"
	"time"

	id "ruminster/pkg/domain"
	dErrors "ruminster/pkg/domain-errors"
)

// EntityType is the audit registry key for ruminations.
const EntityType = "rumination"

// Operation names recorded on rumination audit rows.
const (
	OpCreate           = "rumination.create"
	OpUpdate           = "rumination.update"
	OpPublish          = "rumination.publish"
	OpUnpublish        = "rumination.unpublish"
	OpDelete           = "rumination.delete"
	OpReplaceAudiences = "rumination.replace_audiences"
)

// MaxContentLength bounds rumination bodies.
const MaxContentLength = 10000

// Rumination is a journal entry. Visibility follows the audience set: an
// empty (or fully soft-deleted) audience means fully public once published;
// a non-empty audience restricts the entry to viewers sharing an accepted
// relation of a listed type with the owner.
//
// Audiences holds the live (non-deleted) entries when loaded through the
// store; audit snapshots read the set from here.
type Rumination struct {
	ID          id.RuminationID `json:"id"`
	OwnerID     id.UserID       `json:"owner_id"`
	Content     string          `json:"content"`
	IsPublished bool            `json:"is_published"`
	IsDeleted   bool            `json:"is_deleted"`
	Audiences   []*Audience     `json:"audiences,omitempty"`

	id.AuditFields
}

// NewRumination constructs a rumination owned by owner.
func NewRumination(ruminationID id.RuminationID, owner id.UserID, content string, published bool, now time.Time) (*Rumination, error) {
	if owner.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "rumination requires an owner")
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	return &Rumination{
		ID:          ruminationID,
		OwnerID:     owner,
		Content:     content,
		IsPublished: published,
		AuditFields: id.NewAuditFields(owner, now),
	}, nil
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return dErrors.New(dErrors.CodeValidation, "rumination content cannot be empty")
	}
	if len(content) > MaxContentLength {
		return dErrors.New(dErrors.CodeValidation, "rumination content is too long")
	}
	return nil
}

// IsPublic reports whether the entry has no live audience entries and is
// therefore visible to anyone once published.
func (r *Rumination) IsPublic() bool {
	for _, a := range r.Audiences {
		if !a.IsDeleted {
			return false
		}
	}
	return true
}

// LiveAudienceTypes returns the non-deleted audience types.
func (r *Rumination) LiveAudienceTypes() []id.RelationType {
	var types []id.RelationType
	for _, a := range r.Audiences {
		if !a.IsDeleted {
			types = append(types, a.Type)
		}
	}
	return types
}

// CanModify checks whether actor may mutate the entry.
func (r *Rumination) CanModify(actor id.UserID) error {
	if r.IsDeleted {
		return dErrors.New(dErrors.CodeNotFound, "rumination not found")
	}
	if actor != r.OwnerID {
		return dErrors.New(dErrors.CodeForbidden, "only the owner can modify a rumination")
	}
	return nil
}

// ApplyContent updates the body. Call CanModify first.
func (r *Rumination) ApplyContent(content string, actor id.UserID, now time.Time) error {
	if err := validateContent(content); err != nil {
		return err
	}
	r.Content = content
	r.Touch(actor, now)
	return nil
}

// ApplyPublished flips the published flag. Call CanModify first.
func (r *Rumination) ApplyPublished(published bool, actor id.UserID, now time.Time) {
	r.IsPublished = published
	r.Touch(actor, now)
}

// ApplyDelete soft-deletes the entry. Call CanModify first. Terminal.
func (r *Rumination) ApplyDelete(actor id.UserID, now time.Time) {
	r.IsDeleted = true
	r.Touch(actor, now)
}
