package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"ruminster/internal/comment/models"
	id "ruminster/pkg/domain"
	"ruminster/pkg/platform/sentinel"
	txcontext "ruminster/pkg/platform/tx"
)

// Postgres implements Store and LogStore against postgres. When the context
// carries a transaction (pkg/platform/tx), all statements join it.
type Postgres struct {
	db *sql.DB
}

// NewPostgres builds a postgres-backed comment store.
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

const commentColumns = `id, rumination_id, parent_id, author_id, content, is_deleted,
	created_by, created_at, updated_by, updated_at`

func (s *Postgres) Create(ctx context.Context, c *models.Comment) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO comments (`+commentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		uuid.UUID(c.ID), uuid.UUID(c.RuminationID), parentArg(c.ParentID),
		uuid.UUID(c.AuthorID), c.Content, c.IsDeleted,
		uuid.UUID(c.CreatedBy), c.CreatedAt, uuid.UUID(c.UpdatedBy), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, commentID id.CommentID) (*models.Comment, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+commentColumns+` FROM comments WHERE id = $1`,
		uuid.UUID(commentID))

	c, err := scanComment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find comment: %w", err)
	}
	return c, nil
}

func (s *Postgres) UpdateEntry(ctx context.Context, c *models.Comment) error {
	return s.conditionalWrite(ctx, `
		UPDATE comments
		SET content = $2, updated_by = $3, updated_at = $4
		WHERE id = $1 AND NOT is_deleted`, c)
}

func (s *Postgres) MarkDeleted(ctx context.Context, c *models.Comment) error {
	return s.conditionalWrite(ctx, `
		UPDATE comments
		SET content = $2, is_deleted = TRUE, updated_by = $3, updated_at = $4
		WHERE id = $1 AND NOT is_deleted`, c)
}

func (s *Postgres) conditionalWrite(ctx context.Context, query string, c *models.Comment) error {
	res, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(c.ID), c.Content, uuid.UUID(c.UpdatedBy), c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update comment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update comment: rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrInvalidState
	}
	return nil
}

func (s *Postgres) ListByRumination(ctx context.Context, ruminationID id.RuminationID, page id.Page) ([]*models.Comment, error) {
	query := `SELECT ` + commentColumns + ` FROM comments
		WHERE rumination_id = $1 AND NOT is_deleted
		ORDER BY created_at ASC`
	args := []any{uuid.UUID(ruminationID)}
	query = appendPage(query, &args, page)

	return s.queryComments(ctx, query, args)
}

// SearchVisible matches live comments whose rumination the viewer may see,
// using the same visibility shape as the rumination feed.
func (s *Postgres) SearchVisible(ctx context.Context, viewer id.UserID, needle string, page id.Page) ([]*models.Comment, error) {
	query := `SELECT ` + prefixedCommentColumns + ` FROM comments c
		JOIN ruminations r ON r.id = c.rumination_id
		WHERE NOT c.is_deleted
		  AND NOT r.is_deleted
		  AND (r.owner_id = $1
		    OR (r.is_published AND (
			NOT EXISTS (
				SELECT 1 FROM rumination_audiences a
				WHERE a.rumination_id = r.id AND NOT a.is_deleted)
			OR EXISTS (
				SELECT 1 FROM rumination_audiences a
				JOIN user_relations ur
				  ON ur.relation_type = a.relation_type
				 AND ur.is_accepted AND NOT ur.is_deleted
				 AND ((ur.sender_id = r.owner_id AND ur.receiver_id = $1)
				   OR (ur.receiver_id = r.owner_id AND ur.sender_id = $1))
				WHERE a.rumination_id = r.id AND NOT a.is_deleted))))`
	args := []any{uuid.UUID(viewer)}

	if needle != "" {
		args = append(args, "%"+needle+"%")
		query += fmt.Sprintf(` AND c.content ILIKE $%d`, len(args))
	}
	query += ` ORDER BY c.created_at ASC`
	query = appendPage(query, &args, page)

	return s.queryComments(ctx, query, args)
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

func (s *Postgres) queryComments(ctx context.Context, query string, args []any) ([]*models.Comment, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	var out []*models.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("list comments: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list comments: rows: %w", err)
	}
	return out, nil
}

func (s *Postgres) AppendLog(ctx context.Context, log *models.CommentLog) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO comment_logs
			(comment_id, operation, rumination_id, parent_id, author_id,
			 content, is_deleted, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.UUID(log.CommentID), log.Operation, uuid.UUID(log.RuminationID),
		parentArg(log.ParentID), uuid.UUID(log.AuthorID),
		log.Content, log.IsDeleted, uuid.UUID(log.CreatedBy), log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append comment log: %w", err)
	}
	return nil
}

const prefixedCommentColumns = `c.id, c.rumination_id, c.parent_id, c.author_id, c.content, c.is_deleted,
	c.created_by, c.created_at, c.updated_by, c.updated_at`

func parentArg(parentID *id.CommentID) any {
	if parentID == nil {
		return nil
	}
	return uuid.UUID(*parentID)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanComment(row scanner) (*models.Comment, error) {
	var (
		c      models.Comment
		parent uuid.NullUUID
	)
	err := row.Scan(
		(*uuid.UUID)(&c.ID), (*uuid.UUID)(&c.RuminationID), &parent,
		(*uuid.UUID)(&c.AuthorID), &c.Content, &c.IsDeleted,
		(*uuid.UUID)(&c.CreatedBy), &c.CreatedAt, (*uuid.UUID)(&c.UpdatedBy), &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if parent.Valid {
		pid := id.CommentID(parent.UUID)
		c.ParentID = &pid
	}
	return &c, nil
}
