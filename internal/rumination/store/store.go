package store

import (
	"context"
	"sort"
	"strings"

	"ruminster/internal/rumination/models"
	id "ruminster/pkg/domain"
)

// Store is the rumination persistence port. Implementations return
// pkg/platform/sentinel errors; the service layer translates them to domain
// codes.
//
//   - FindByID and ListByOwner load the entry's live audience entries;
//     the feed queries do not, they only resolve visibility against them.
//   - UpdateEntry and MarkDeleted are conditional on the row still being
//     live and return sentinel.ErrInvalidState when the precondition fails.
type Store interface {
	Create(ctx context.Context, r *models.Rumination) error
	FindByID(ctx context.Context, ruminationID id.RuminationID) (*models.Rumination, error)
	UpdateEntry(ctx context.Context, r *models.Rumination) error
	MarkDeleted(ctx context.Context, r *models.Rumination) error

	AddAudience(ctx context.Context, a *models.Audience) error
	MarkAudienceDeleted(ctx context.Context, a *models.Audience) error

	ListByOwner(ctx context.Context, owner id.UserID, q models.OwnQuery) ([]*models.Rumination, error)
	PublicFeed(ctx context.Context, q models.FeedQuery) ([]*models.Rumination, error)
	VisibleFeed(ctx context.Context, viewer id.UserID, q models.FeedQuery) ([]*models.Rumination, error)
}

// LogStore appends audit snapshots.
type LogStore interface {
	AppendLog(ctx context.Context, log *models.RuminationLog) error
}

// RelationReader answers which accepted relation types connect two users.
// The in-memory store resolves visibility through it; the postgres store
// joins the relations table directly instead.
type RelationReader interface {
	AcceptedTypesBetween(ctx context.Context, viewer, owner id.UserID) (map[id.RelationType]bool, error)
}

var listSortFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
}

const defaultOrder = "updated_at DESC"

// orderClause parses a "field [asc|desc]" sort expression against the
// whitelist. Anything unparseable falls back to newest-update-first.
func orderClause(expr string) string {
	clause, ok := parseSort(expr)
	if !ok {
		return defaultOrder
	}
	return clause
}

// ValidSort reports whether expr names a whitelisted sort field with an
// optional asc/desc direction. Empty means the default order and is valid.
// The service checks this before listing so the fallback gets logged.
func ValidSort(expr string) bool {
	_, ok := parseSort(expr)
	return ok
}

func parseSort(expr string) (string, bool) {
	parts := strings.Fields(strings.ToLower(strings.TrimSpace(expr)))
	if len(parts) == 0 {
		return defaultOrder, true
	}
	if len(parts) > 2 {
		return "", false
	}
	column, ok := listSortFields[parts[0]]
	if !ok {
		return "", false
	}
	direction := "ASC"
	if len(parts) == 2 {
		switch parts[1] {
		case "asc":
		case "desc":
			direction = "DESC"
		default:
			return "", false
		}
	}
	return column + " " + direction, true
}

// sortRuminations applies the same ordering in memory that orderClause
// produces in SQL.
func sortRuminations(rs []*models.Rumination, expr string) {
	clause := orderClause(expr)
	field, direction, _ := strings.Cut(clause, " ")
	asc := direction == "ASC"
	sort.SliceStable(rs, func(i, j int) bool {
		var less bool
		switch field {
		case "created_at":
			less = rs[i].CreatedAt.Before(rs[j].CreatedAt)
		default:
			less = rs[i].UpdatedAt.Before(rs[j].UpdatedAt)
		}
		if asc {
			return less
		}
		return !less
	})
}
