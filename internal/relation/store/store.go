// Package store persists relations and their audit log rows. Implementations
// return infrastructure sentinels (pkg/platform/sentinel); the service layer
// translates them into domain error codes.
package store

import (
	"context"
	"sort"
	"strings"

	"ruminster/internal/relation/models"
	id "ruminster/pkg/domain"
)

// Store persists relations.
//
// The MarkX methods are conditional writes: they persist the entity's state
// only if the row still satisfies the transition's precondition, and return
// sentinel.ErrInvalidState when a concurrent writer got there first. The
// service validates on its loaded copy, but the store re-checks at write time
// because two accepts on the same row race between load and commit.
type Store interface {
	// Create inserts a pending relation. Returns sentinel.ErrConflict when a
	// live (non-deleted, non-rejected) relation of the same type already
	// exists between the pair in either direction.
	Create(ctx context.Context, rel *models.UserRelation) error

	// FindByID returns the relation, soft-deleted or not, or
	// sentinel.ErrNotFound.
	FindByID(ctx context.Context, relationID id.RelationID) (*models.UserRelation, error)

	// MarkAccepted persists an accepted transition iff the row is still
	// pending.
	MarkAccepted(ctx context.Context, rel *models.UserRelation) error

	// MarkRejected persists a rejected transition iff the row is still
	// pending.
	MarkRejected(ctx context.Context, rel *models.UserRelation) error

	// MarkDeleted persists a soft delete iff the row is not already deleted.
	MarkDeleted(ctx context.Context, rel *models.UserRelation) error

	// List returns relations where viewer is either party, filtered and
	// paginated.
	List(ctx context.Context, viewer id.UserID, q models.ListQuery) ([]*models.UserRelation, error)
}

// LogStore appends relation audit rows. Append only; nothing reads them back
// through this interface.
type LogStore interface {
	AppendLog(ctx context.Context, log *models.RelationLog) error
}

// listSortFields maps caller-facing sort fields to columns. Anything else
// silently falls back to newest-update-first, matching the resolver's
// tolerant sort handling.
var listSortFields = map[string]string{
	"created_at":    "created_at",
	"updated_at":    "updated_at",
	"relation_type": "relation_type",
}

const defaultOrder = "updated_at DESC"

// orderClause parses a "field [asc|desc]" expression against the whitelist.
func orderClause(expr string) string {
	clause, ok := parseSort(expr)
	if !ok {
		return defaultOrder
	}
	return clause
}

// ValidSort reports whether expr names a whitelisted sort field with an
// optional asc/desc direction. The empty expression means the default order
// and is valid. The service checks this before listing so the fallback gets
// logged; orderClause still falls back on its own as a safety net.
func ValidSort(expr string) bool {
	_, ok := parseSort(expr)
	return ok
}

func parseSort(expr string) (string, bool) {
	fields := strings.Fields(strings.ToLower(expr))
	if len(fields) == 0 {
		return defaultOrder, true
	}
	if len(fields) > 2 {
		return "", false
	}
	col, ok := listSortFields[fields[0]]
	if !ok {
		return "", false
	}
	dir := "ASC"
	if len(fields) == 2 {
		switch fields[1] {
		case "asc":
		case "desc":
			dir = "DESC"
		default:
			return "", false
		}
	}
	return col + " " + dir, true
}

// sortRelations applies the same ordering in memory.
func sortRelations(rels []*models.UserRelation, expr string) {
	clause := orderClause(expr)
	parts := strings.Split(clause, " ")
	field, desc := parts[0], parts[1] == "DESC"

	sort.SliceStable(rels, func(i, j int) bool {
		a, b := rels[i], rels[j]
		if desc {
			a, b = b, a
		}
		switch field {
		case "created_at":
			return a.CreatedAt.Before(b.CreatedAt)
		case "relation_type":
			return a.Type < b.Type
		default:
			return a.UpdatedAt.Before(b.UpdatedAt)
		}
	})
}
