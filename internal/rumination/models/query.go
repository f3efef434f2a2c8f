package models

import (
	"time"

	id "ruminster/pkg/domain"
)

// FeedQuery filters the public and viewer feeds. Zero values mean "no
// filter". Sort is a tolerant field expression; unknown fields fall back to
// newest-update-first.
type FeedQuery struct {
	Owner           id.UserID
	ContentContains string
	UpdatedAfter    time.Time
	UpdatedBefore   time.Time
	Sort            string
	Page            id.Page
}

// OwnQuery filters the owner's view of their own entries, which includes
// unpublished drafts.
type OwnQuery struct {
	Published       *bool
	ContentContains string
	IncludeDeleted  bool
	UpdatedAfter    time.Time
	UpdatedBefore   time.Time
	Sort            string
	Page            id.Page
}
