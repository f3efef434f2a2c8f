package models

import (
	"time"

	id "ruminster/pkg/domain"
)

// ListQuery filters a viewer's relation listing. Zero values mean "no
// filter". Sort is a caller-supplied field expression ("created_at asc",
// "updated_at desc"); unknown fields silently fall back to newest-update-first.
type ListQuery struct {
	Counterparty   id.UserID
	Type           id.RelationType
	MutualOnly     bool
	IncludeDeleted bool
	UpdatedAfter   time.Time
	UpdatedBefore  time.Time
	Sort           string
	Page           id.Page
}
