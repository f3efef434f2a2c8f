package domain

import dErrors "ruminster/pkg/domain-errors"

// RelationType classifies the connection between two users. Audience gating
// keys off these values, so the set here is the single source of truth for
// what can appear in a rumination's audience.
//
// Usage: construct via ParseRelationType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type RelationType string

const (
	RelationAcquaintance RelationType = "acquaintance"
	RelationFamily       RelationType = "family"
	RelationFriend       RelationType = "friend"
	RelationBestFriend   RelationType = "best_friend"
	RelationPartner      RelationType = "partner"
	RelationTherapist    RelationType = "therapist"
)

// validRelationTypes is the single source of truth for supported types.
var validRelationTypes = map[RelationType]bool{
	RelationAcquaintance: true,
	RelationFamily:       true,
	RelationFriend:       true,
	RelationBestFriend:   true,
	RelationPartner:      true,
	RelationTherapist:    true,
}

// ParseRelationType constructs a RelationType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported; no
// other errors are expected.
func ParseRelationType(s string) (RelationType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "relation type cannot be empty")
	}
	t := RelationType(s)
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid relation type: "+s)
	}
	return t, nil
}

// IsValid checks if the relation type is one of the supported enum values.
func (t RelationType) IsValid() bool {
	return validRelationTypes[t]
}

// String returns the string representation of the relation type.
func (t RelationType) String() string {
	return string(t)
}

// RelationTypes returns all supported relation types.
func RelationTypes() []RelationType {
	return []RelationType{
		RelationAcquaintance,
		RelationFamily,
		RelationFriend,
		RelationBestFriend,
		RelationPartner,
		RelationTherapist,
	}
}
