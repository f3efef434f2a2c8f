package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"ruminster/internal/rumination/models"
	id "ruminster/pkg/domain"
	"ruminster/pkg/platform/sentinel"
	txcontext "ruminster/pkg/platform/tx"
)

// Postgres implements Store and LogStore against postgres. When the context
// carries a transaction (pkg/platform/tx), all statements join it.
//
// Unlike the in-memory store it needs no RelationReader: the feed queries
// resolve visibility with a semi-join on user_relations.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a postgres-backed rumination store.
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

const ruminationColumns = `id, owner_id, content, is_published, is_deleted,
	created_by, created_at, updated_by, updated_at`

func (s *Postgres) Create(ctx context.Context, r *models.Rumination) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO ruminations (`+ruminationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(r.ID), uuid.UUID(r.OwnerID), r.Content, r.IsPublished, r.IsDeleted,
		uuid.UUID(r.CreatedBy), r.CreatedAt, uuid.UUID(r.UpdatedBy), r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rumination: %w", err)
	}
	for _, a := range r.Audiences {
		if err := s.AddAudience(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, ruminationID id.RuminationID) (*models.Rumination, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+ruminationColumns+` FROM ruminations WHERE id = $1`,
		uuid.UUID(ruminationID))

	r, err := scanRumination(row)
	if err != nil {
		return nil, err
	}
	audiences, err := s.liveAudiences(ctx, []id.RuminationID{ruminationID})
	if err != nil {
		return nil, err
	}
	r.Audiences = audiences[ruminationID]
	return r, nil
}

func (s *Postgres) UpdateEntry(ctx context.Context, r *models.Rumination) error {
	return s.conditionalWrite(ctx, `
		UPDATE ruminations
		SET content = $2, is_published = $3, updated_by = $4, updated_at = $5
		WHERE id = $1 AND NOT is_deleted`, r)
}

func (s *Postgres) MarkDeleted(ctx context.Context, r *models.Rumination) error {
	return s.conditionalWrite(ctx, `
		UPDATE ruminations
		SET content = $2, is_published = $3, is_deleted = TRUE, updated_by = $4, updated_at = $5
		WHERE id = $1 AND NOT is_deleted`, r)
}

// conditionalWrite guards mutations on the row still being live. Zero rows
// affected means the entry was deleted concurrently.
func (s *Postgres) conditionalWrite(ctx context.Context, query string, r *models.Rumination) error {
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID), r.Content, r.IsPublished, uuid.UUID(r.UpdatedBy), r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update rumination: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rumination: rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) AddAudience(ctx context.Context, a *models.Audience) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO rumination_audiences
			(id, rumination_id, relation_type, is_deleted,
			 created_by, created_at, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.UUID(a.ID), uuid.UUID(a.RuminationID), a.Type.String(), a.IsDeleted,
		uuid.UUID(a.CreatedBy), a.CreatedAt, uuid.UUID(a.UpdatedBy), a.UpdatedAt,
	)
	if err != nil {
		// The partial unique index forbids two live entries of the same
		// type on one rumination.
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert audience: %w", err)
	}
	return nil
}

func (s *Postgres) MarkAudienceDeleted(ctx context.Context, a *models.Audience) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE rumination_audiences
		SET is_deleted = TRUE, updated_by = $2, updated_at = $3
		WHERE id = $1 AND NOT is_deleted`,
		uuid.UUID(a.ID), uuid.UUID(a.UpdatedBy), a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("delete audience: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete audience: rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) ListByOwner(ctx context.Context, owner id.UserID, q models.OwnQuery) ([]*models.Rumination, error) {
	query := `SELECT ` + ruminationColumns + ` FROM ruminations WHERE owner_id = $1`
	args := []any{uuid.UUID(owner)}

	if !q.IncludeDeleted {
		query += ` AND NOT is_deleted`
	}
	if q.Published != nil {
		args = append(args, *q.Published)
		query += fmt.Sprintf(` AND is_published = $%d`, len(args))
	}
	query, args = appendContentAndTimeFilters(query, args, q.ContentContains, q.UpdatedAfter, q.UpdatedBefore)
	query += ` ORDER BY ` + orderClause(q.Sort)
	query = appendPage(query, &args, q.Page)

	entries, err := s.queryRuminations(ctx, query, args)
	if err != nil {
		return nil, err
	}
	return s.attachAudiences(ctx, entries)
}

// publicOnly restricts rows to entries with no live audience entry.
const publicOnly = ` AND NOT EXISTS (
		SELECT 1 FROM rumination_audiences a
		WHERE a.rumination_id = r.id AND NOT a.is_deleted)`

func (s *Postgres) PublicFeed(ctx context.Context, q models.FeedQuery) ([]*models.Rumination, error) {
	query := `SELECT ` + prefixColumns("r") + ` FROM ruminations r
		WHERE r.is_published AND NOT r.is_deleted` + publicOnly
	var args []any

	query, args = appendFeedFilters(query, args, q)
	query += ` ORDER BY ` + orderClause(q.Sort)
	query = appendPage(query, &args, q.Page)

	return s.queryRuminations(ctx, query, args)
}

// VisibleFeed returns published entries the viewer may see: their own, fully
// public ones, and gated ones where viewer and owner share an accepted
// relation of a listed audience type, in either direction.
func (s *Postgres) VisibleFeed(ctx context.Context, viewer id.UserID, q models.FeedQuery) ([]*models.Rumination, error) {
	query := `SELECT ` + prefixColumns("r") + ` FROM ruminations r
		WHERE r.is_published AND NOT r.is_deleted
		  AND (r.owner_id = $1
		    OR NOT EXISTS (
			SELECT 1 FROM rumination_audiences a
			WHERE a.rumination_id = r.id AND NOT a.is_deleted)
		    OR EXISTS (
			SELECT 1 FROM rumination_audiences a
			JOIN user_relations ur
			  ON ur.relation_type = a.relation_type
			 AND ur.is_accepted AND NOT ur.is_deleted
			 AND ((ur.sender_id = r.owner_id AND ur.receiver_id = $1)
			   OR (ur.receiver_id = r.owner_id AND ur.sender_id = $1))
			WHERE a.rumination_id = r.id AND NOT a.is_deleted))`
	args := []any{uuid.UUID(viewer)}

	query, args = appendFeedFilters(query, args, q)
	query += ` ORDER BY ` + orderClause(q.Sort)
	query = appendPage(query, &args, q.Page)

	return s.queryRuminations(ctx, query, args)
}

func appendFeedFilters(query string, args []any, q models.FeedQuery) (string, []any) {
	if !q.Owner.IsNil() {
		args = append(args, uuid.UUID(q.Owner))
		query += fmt.Sprintf(` AND r.owner_id = $%d`, len(args))
	}
	return appendContentAndTimeFilters(query, args, q.ContentContains, q.UpdatedAfter, q.UpdatedBefore)
}

func appendContentAndTimeFilters(query string, args []any, contains string, after, before time.Time) (string, []any) {
	if contains != "" {
		args = append(args, "%"+contains+"%")
		query += fmt.Sprintf(` AND content ILIKE $%d`, len(args))
	}
	if !after.IsZero() {
		args = append(args, after)
		query += fmt.Sprintf(` AND updated_at > $%d`, len(args))
	}
	if !before.IsZero() {
		args = append(args, before)
		query += fmt.Sprintf(` AND updated_at < $%d`, len(args))
	}
	return query, args
}

func appendPage(query string, args *[]any, page id.Page) string {
	if page.Limit > 0 {
		*args = append(*args, page.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(*args))
	}
	if page.Offset > 0 {
		*args = append(*args, page.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(*args))
	}
	return query
}

func (s *Postgres) queryRuminations(ctx context.Context, query string, args []any) ([]*models.Rumination, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ruminations: %w", err)
	}
	defer rows.Close()

	var out []*models.Rumination
	for rows.Next() {
		r, err := scanRumination(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ruminations: rows: %w", err)
	}
	return out, nil
}

func (s *Postgres) attachAudiences(ctx context.Context, entries []*models.Rumination) ([]*models.Rumination, error) {
	if len(entries) == 0 {
		return entries, nil
	}
	ids := make([]id.RuminationID, 0, len(entries))
	for _, r := range entries {
		ids = append(ids, r.ID)
	}
	audiences, err := s.liveAudiences(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, r := range entries {
		r.Audiences = audiences[r.ID]
	}
	return entries, nil
}

func (s *Postgres) liveAudiences(ctx context.Context, ids []id.RuminationID) (map[id.RuminationID][]*models.Audience, error) {
	raw := make([]string, 0, len(ids))
	for _, rid := range ids {
		raw = append(raw, rid.String())
	}
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, rumination_id, relation_type, is_deleted,
		       created_by, created_at, updated_by, updated_at
		FROM rumination_audiences
		WHERE rumination_id = ANY($1::uuid[]) AND NOT is_deleted`,
		pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("list audiences: %w", err)
	}
	defer rows.Close()

	out := make(map[id.RuminationID][]*models.Audience)
	for rows.Next() {
		var (
			a       models.Audience
			relType string
		)
		err := rows.Scan(
			(*uuid.UUID)(&a.ID), (*uuid.UUID)(&a.RuminationID), &relType, &a.IsDeleted,
			(*uuid.UUID)(&a.CreatedBy), &a.CreatedAt, (*uuid.UUID)(&a.UpdatedBy), &a.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audience: %w", err)
		}
		a.Type = id.RelationType(relType)
		out[a.RuminationID] = append(out[a.RuminationID], &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list audiences: rows: %w", err)
	}
	return out, nil
}

func (s *Postgres) AppendLog(ctx context.Context, log *models.RuminationLog) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO rumination_logs
			(rumination_id, operation, owner_id, content,
			 is_published, is_deleted, audiences, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(log.RuminationID), log.Operation, uuid.UUID(log.OwnerID), log.Content,
		log.IsPublished, log.IsDeleted, pq.Array(log.Audiences),
		uuid.UUID(log.CreatedBy), log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append rumination log: %w", err)
	}
	return nil
}

func prefixColumns(alias string) string {
	return alias + `.id, ` + alias + `.owner_id, ` + alias + `.content, ` +
		alias + `.is_published, ` + alias + `.is_deleted, ` +
		alias + `.created_by, ` + alias + `.created_at, ` +
		alias + `.updated_by, ` + alias + `.updated_at`
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRumination(row scanner) (*models.Rumination, error) {
	var r models.Rumination
	err := row.Scan(
		(*uuid.UUID)(&r.ID), (*uuid.UUID)(&r.OwnerID), &r.Content, &r.IsPublished, &r.IsDeleted,
		(*uuid.UUID)(&r.CreatedBy), &r.CreatedAt, (*uuid.UUID)(&r.UpdatedBy), &r.UpdatedAt,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, sentinel.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("scan rumination: %w", err)
	}
	return &r, nil
}
