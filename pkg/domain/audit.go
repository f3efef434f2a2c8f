package domain

import "time"

// AuditFields is embedded by every persisted entity. Log rows derive their
// actor and timestamp from UpdatedBy/UpdatedAt, so mutations must Touch
// before the snapshot is taken.
type AuditFields struct {
	CreatedBy UserID    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedBy UserID    `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAuditFields stamps a freshly created entity.
func NewAuditFields(actor UserID, now time.Time) AuditFields {
	return AuditFields{
		CreatedBy: actor,
		CreatedAt: now,
		UpdatedBy: actor,
		UpdatedAt: now,
	}
}

// Touch stamps a mutation.
func (a *AuditFields) Touch(actor UserID, now time.Time) {
	a.UpdatedBy = actor
	a.UpdatedAt = now
}
