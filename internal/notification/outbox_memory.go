package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ruminster/pkg/requestcontext"
)

// MemoryOutbox implements OutboxStore in memory for unit tests.
type MemoryOutbox struct {
	mu     sync.Mutex
	nextID int64
	rows   []OutboxRow
}

// NewMemoryOutbox builds an empty in-memory outbox.
func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{nextID: 1}
}

func (s *MemoryOutbox) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, OutboxRow{
		ID:          s.nextID,
		Kind:        n.Kind,
		RecipientID: n.RecipientID,
		Payload:     payload,
		CreatedAt:   requestcontext.Now(ctx),
	})
	s.nextID++
	return nil
}

func (s *MemoryOutbox) Pending(_ context.Context, limit int) ([]OutboxRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []OutboxRow
	for _, row := range s.rows {
		if row.PublishedAt != nil {
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryOutbox) MarkPublished(_ context.Context, ids []int64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	marked := make(map[int64]bool, len(ids))
	for _, id := range ids {
		marked[id] = true
	}
	for i := range s.rows {
		if marked[s.rows[i].ID] {
			t := now
			s.rows[i].PublishedAt = &t
		}
	}
	return nil
}

// All returns every row, published or not. Test helper.
func (s *MemoryOutbox) All() []OutboxRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]OutboxRow, len(s.rows))
	copy(out, s.rows)
	return out
}
