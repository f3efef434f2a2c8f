package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "ruminster/pkg/domain"
	txcontext "ruminster/pkg/platform/tx"
	"ruminster/pkg/requestcontext"
)

// PostgresOutbox implements OutboxStore on the notification_outbox table.
// Send joins the context's transaction, which is what makes the outbox
// transactional with the mutation that triggered it.
type PostgresOutbox struct {
	db *sql.DB
}

// NewPostgresOutbox builds a postgres-backed outbox.
func NewPostgresOutbox(db *sql.DB) *PostgresOutbox {
	return &PostgresOutbox{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresOutbox) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresOutbox) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO notification_outbox (kind, recipient_id, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		string(n.Kind), uuid.UUID(n.RecipientID), payload, requestcontext.Now(ctx),
	)
	if err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

func (s *PostgresOutbox) Pending(ctx context.Context, limit int) ([]OutboxRow, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, kind, recipient_id, payload, created_at
		FROM notification_outbox
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("fetch pending notifications: %w", err)
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var (
			row       OutboxRow
			kind      string
			recipient uuid.UUID
		)
		if err := rows.Scan(&row.ID, &kind, &recipient, &row.Payload, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		row.Kind = Kind(kind)
		row.RecipientID = id.UserID(recipient)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *PostgresOutbox) MarkPublished(ctx context.Context, ids []int64, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notification_outbox SET published_at = $2
		WHERE id = ANY($1)`,
		pq.Array(ids), now,
	)
	if err != nil {
		return fmt.Errorf("mark notifications published: %w", err)
	}
	return nil
}
