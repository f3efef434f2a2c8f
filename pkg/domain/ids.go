package domain

import (
	"github.com/google/uuid"

	dErrors "ruminster/pkg/domain-errors"
)

// Typed UUID wrappers for the aggregate identities. Keeping them distinct
// types means a relation id can never be passed where a rumination id is
// expected; the compiler enforces it.
//
// Usage: construct via the Parse helpers at trust boundaries to enforce the
// "valid, non-empty, non-nil" invariant; direct casting bypasses validation.
type (
	UserID       uuid.UUID
	RelationID   uuid.UUID
	RuminationID uuid.UUID
	AudienceID   uuid.UUID
	CommentID    uuid.UUID
)

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id cannot be empty")
	}
	if len(s) > 64 {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id is too long")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" id cannot be the nil UUID")
	}
	return u, nil
}

// ParseUserID constructs a UserID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or nil.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user")
	return UserID(u), err
}

// ParseRelationID constructs a RelationID from external input.
func ParseRelationID(s string) (RelationID, error) {
	u, err := parseUUID(s, "relation")
	return RelationID(u), err
}

// ParseRuminationID constructs a RuminationID from external input.
func ParseRuminationID(s string) (RuminationID, error) {
	u, err := parseUUID(s, "rumination")
	return RuminationID(u), err
}

// ParseCommentID constructs a CommentID from external input.
func ParseCommentID(s string) (CommentID, error) {
	u, err := parseUUID(s, "comment")
	return CommentID(u), err
}

func (id UserID) String() string       { return uuid.UUID(id).String() }
func (id RelationID) String() string   { return uuid.UUID(id).String() }
func (id RuminationID) String() string { return uuid.UUID(id).String() }
func (id AudienceID) String() string   { return uuid.UUID(id).String() }
func (id CommentID) String() string    { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id RelationID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id RuminationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id AudienceID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id CommentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }

// NewUserID mints a fresh random UserID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewRelationID mints a fresh random RelationID.
func NewRelationID() RelationID { return RelationID(uuid.New()) }

// NewRuminationID mints a fresh random RuminationID.
func NewRuminationID() RuminationID { return RuminationID(uuid.New()) }

// NewAudienceID mints a fresh random AudienceID.
func NewAudienceID() AudienceID { return AudienceID(uuid.New()) }

// NewCommentID mints a fresh random CommentID.
func NewCommentID() CommentID { return CommentID(uuid.New()) }
