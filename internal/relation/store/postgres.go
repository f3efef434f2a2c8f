package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ruminster/internal/relation/models"
	id "ruminster/pkg/domain"
	"ruminster/pkg/platform/sentinel"
	txcontext "ruminster/pkg/platform/tx"
)

// Postgres implements Store and LogStore against postgres. When the context
// carries a transaction (pkg/platform/tx), all statements join it.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a postgres-backed relation store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const relationColumns = `id, sender_id, receiver_id, relation_type,
	is_accepted, is_rejected, is_deleted,
	created_by, created_at, updated_by, updated_at`

func (s *Postgres) Create(ctx context.Context, rel *models.UserRelation) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO user_relations (`+relationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		uuid.UUID(rel.ID), uuid.UUID(rel.SenderID), uuid.UUID(rel.ReceiverID), rel.Type.String(),
		rel.IsAccepted, rel.IsRejected, rel.IsDeleted,
		uuid.UUID(rel.CreatedBy), rel.CreatedAt, uuid.UUID(rel.UpdatedBy), rel.UpdatedAt,
	)
	if err != nil {
		// The partial unique index on the unordered pair enforces the
		// one-live-relation-per-pair-and-type invariant at commit time.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert relation: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, relationID id.RelationID) (*models.UserRelation, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+relationColumns+`
		FROM user_relations WHERE id = $1`,
		uuid.UUID(relationID),
	)
	rel, err := scanRelation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find relation: %w", err)
	}
	return rel, nil
}

func (s *Postgres) MarkAccepted(ctx context.Context, rel *models.UserRelation) error {
	return s.conditionalWrite(ctx, `
		UPDATE user_relations
		SET is_accepted = TRUE, updated_by = $2, updated_at = $3
		WHERE id = $1 AND NOT is_deleted AND NOT is_accepted AND NOT is_rejected`,
		rel,
	)
}

func (s *Postgres) MarkRejected(ctx context.Context, rel *models.UserRelation) error {
	return s.conditionalWrite(ctx, `
		UPDATE user_relations
		SET is_rejected = TRUE, updated_by = $2, updated_at = $3
		WHERE id = $1 AND NOT is_deleted AND NOT is_accepted AND NOT is_rejected`,
		rel,
	)
}

func (s *Postgres) MarkDeleted(ctx context.Context, rel *models.UserRelation) error {
	return s.conditionalWrite(ctx, `
		UPDATE user_relations
		SET is_deleted = TRUE, updated_by = $2, updated_at = $3
		WHERE id = $1 AND NOT is_deleted`,
		rel,
	)
}

// conditionalWrite runs an update whose WHERE clause carries the transition
// precondition. Zero rows affected means a concurrent writer changed the row
// between our load and this write.
func (s *Postgres) conditionalWrite(ctx context.Context, query string, rel *models.UserRelation) error {
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(rel.ID), uuid.UUID(rel.UpdatedBy), rel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update relation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update relation: rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) List(ctx context.Context, viewer id.UserID, q models.ListQuery) ([]*models.UserRelation, error) {
	query := `
		SELECT ` + relationColumns + `
		FROM user_relations
		WHERE (sender_id = $1 OR receiver_id = $1)`
	args := []any{uuid.UUID(viewer)}

	if !q.IncludeDeleted {
		query += ` AND NOT is_deleted`
	}
	if q.MutualOnly {
		query += ` AND is_accepted`
	}
	if !q.Counterparty.IsNil() {
		args = append(args, uuid.UUID(q.Counterparty))
		query += fmt.Sprintf(` AND (sender_id = $%d OR receiver_id = $%d)`, len(args), len(args))
	}
	if q.Type != "" {
		args = append(args, q.Type.String())
		query += fmt.Sprintf(` AND relation_type = $%d`, len(args))
	}
	if !q.UpdatedAfter.IsZero() {
		args = append(args, q.UpdatedAfter)
		query += fmt.Sprintf(` AND updated_at >= $%d`, len(args))
	}
	if !q.UpdatedBefore.IsZero() {
		args = append(args, q.UpdatedBefore)
		query += fmt.Sprintf(` AND updated_at <= $%d`, len(args))
	}

	query += ` ORDER BY ` + orderClause(q.Sort)
	args = append(args, q.Page.Limit, q.Page.Offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close()

	var out []*models.UserRelation
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("list relations: %w", err)
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

// AppendLog implements LogStore.
func (s *Postgres) AppendLog(ctx context.Context, log *models.RelationLog) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO user_relation_logs
			(relation_id, operation, sender_id, receiver_id, relation_type,
			 is_accepted, is_rejected, is_deleted, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(log.RelationID), log.Operation,
		uuid.UUID(log.SenderID), uuid.UUID(log.ReceiverID), log.Type.String(),
		log.IsAccepted, log.IsRejected, log.IsDeleted,
		uuid.UUID(log.CreatedBy), log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append relation log: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRelation(row scanner) (*models.UserRelation, error) {
	var (
		rel                  models.UserRelation
		relID                uuid.UUID
		sender               uuid.UUID
		receiver             uuid.UUID
		relType              string
		createdBy, updatedBy uuid.UUID
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&relID, &sender, &receiver, &relType,
		&rel.IsAccepted, &rel.IsRejected, &rel.IsDeleted,
		&createdBy, &createdAt, &updatedBy, &updatedAt)
	if err != nil {
		return nil, err
	}
	rel.ID = id.RelationID(relID)
	rel.SenderID = id.UserID(sender)
	rel.ReceiverID = id.UserID(receiver)
	rel.Type = id.RelationType(relType)
	rel.CreatedBy = id.UserID(createdBy)
	rel.CreatedAt = createdAt
	rel.UpdatedBy = id.UserID(updatedBy)
	rel.UpdatedAt = updatedAt
	return &rel, nil
}

// AcceptedTypesBetween returns the relation types for which the two users
// share an accepted, non-deleted relation in either direction. Visibility
// resolution for single entries goes through here; the feed queries join
// user_relations directly instead.
func (s *Postgres) AcceptedTypesBetween(ctx context.Context, viewer, owner id.UserID) (map[id.RelationType]bool, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT relation_type FROM user_relations
		WHERE is_accepted AND NOT is_deleted
		  AND ((sender_id = $1 AND receiver_id = $2)
		    OR (sender_id = $2 AND receiver_id = $1))`,
		uuid.UUID(viewer), uuid.UUID(owner),
	)
	if err != nil {
		return nil, fmt.Errorf("accepted types: %w", err)
	}
	defer rows.Close()

	types := make(map[id.RelationType]bool)
	for rows.Next() {
		var relType string
		if err := rows.Scan(&relType); err != nil {
			return nil, fmt.Errorf("accepted types: scan: %w", err)
		}
		types[id.RelationType(relType)] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("accepted types: rows: %w", err)
	}
	return types, nil
}
