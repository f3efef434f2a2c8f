package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ruminster/internal/comment/models"
	id "ruminster/pkg/domain"
	"ruminster/pkg/platform/sentinel"
)

// Memory implements Store and LogStore in memory for tests. Search
// visibility is resolved through the VisibilityResolver where the postgres
// store joins the rumination and relation tables.
type Memory struct {
	mu       sync.RWMutex
	comments map[id.CommentID]*models.Comment
	logs     []*models.CommentLog
	entries  VisibilityResolver
}

// NewMemory builds an empty in-memory comment store.
func NewMemory(entries VisibilityResolver) *Memory {
	return &Memory{
		comments: make(map[id.CommentID]*models.Comment),
		entries:  entries,
	}
}

func (m *Memory) Create(_ context.Context, c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.comments[c.ID]; ok {
		return sentinel.ErrConflict
	}
	clone := *c
	m.comments[c.ID] = &clone
	return nil
}

func (m *Memory) FindByID(_ context.Context, commentID id.CommentID) (*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.comments[commentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *c
	return &clone, nil
}

func (m *Memory) UpdateEntry(_ context.Context, c *models.Comment) error {
	return m.conditionalWrite(c)
}

func (m *Memory) MarkDeleted(_ context.Context, c *models.Comment) error {
	return m.conditionalWrite(c)
}

func (m *Memory) conditionalWrite(c *models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.comments[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.IsDeleted {
		return sentinel.ErrInvalidState
	}
	clone := *c
	m.comments[c.ID] = &clone
	return nil
}

func (m *Memory) ListByRumination(_ context.Context, ruminationID id.RuminationID, page id.Page) ([]*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Comment
	for _, c := range m.comments {
		if c.RuminationID != ruminationID || c.IsDeleted {
			continue
		}
		clone := *c
		out = append(out, &clone)
	}
	sortByCreation(out)
	return paginate(out, page), nil
}

func (m *Memory) SearchVisible(ctx context.Context, viewer id.UserID, needle string, page id.Page) ([]*models.Comment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	visible := make(map[id.RuminationID]bool)

	var out []*models.Comment
	for _, c := range m.comments {
		if c.IsDeleted {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(c.Content), strings.ToLower(needle)) {
			continue
		}
		ok, seen := visible[c.RuminationID]
		if !seen {
			var err error
			ok, err = m.entries.VisibleTo(ctx, viewer, c.RuminationID)
			if err != nil {
				return nil, err
			}
			visible[c.RuminationID] = ok
		}
		if !ok {
			continue
		}
		clone := *c
		out = append(out, &clone)
	}
	sortByCreation(out)
	return paginate(out, page), nil
}

func sortByCreation(cs []*models.Comment) {
	sort.SliceStable(cs, func(i, j int) bool {
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}

func paginate(cs []*models.Comment, page id.Page) []*models.Comment {
	if page.Offset >= len(cs) {
		return nil
	}
	cs = cs[page.Offset:]
	if page.Limit > 0 && page.Limit < len(cs) {
		cs = cs[:page.Limit]
	}
	return cs
}

func (m *Memory) AppendLog(_ context.Context, log *models.CommentLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *log
	m.logs = append(m.logs, &clone)
	return nil
}

// Logs returns the appended audit rows in order.
func (m *Memory) Logs() []*models.CommentLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.CommentLog, len(m.logs))
	copy(out, m.logs)
	return out
}
