package models

import (
	"time"

	id "ruminster/pkg/domain"
)

// RuminationLog is one append-only audit row: a snapshot of the entry's
// state after a mutation, including its live audience types at that moment.
type RuminationLog struct {
	RuminationID id.RuminationID `json:"rumination_id"`
	Operation    string          `json:"operation"`
	OwnerID      id.UserID       `json:"owner_id"`
	Content      string          `json:"content"`
	IsPublished  bool            `json:"is_published"`
	IsDeleted    bool            `json:"is_deleted"`
	Audiences    []string        `json:"audiences"`
	CreatedBy    id.UserID       `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewRuminationLog snapshots a rumination after a mutation.
func NewRuminationLog(r *Rumination, operation string) *RuminationLog {
	types := r.LiveAudienceTypes()
	audiences := make([]string, 0, len(types))
	for _, t := range types {
		audiences = append(audiences, t.String())
	}
	return &RuminationLog{
		RuminationID: r.ID,
		Operation:    operation,
		OwnerID:      r.OwnerID,
		Content:      r.Content,
		IsPublished:  r.IsPublished,
		IsDeleted:    r.IsDeleted,
		Audiences:    audiences,
		CreatedBy:    r.UpdatedBy,
		CreatedAt:    r.UpdatedAt,
	}
}
