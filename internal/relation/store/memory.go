package store

import (
	"context"
	"sync"

	"ruminster/internal/relation/models"
	id "ruminster/pkg/domain"
	"ruminster/pkg/platform/sentinel"
)

// Memory is an in-memory Store and LogStore for unit tests.
type Memory struct {
	mu   sync.RWMutex
	rels map[id.RelationID]*models.UserRelation
	logs []*models.RelationLog
}

// NewMemory builds an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{rels: make(map[id.RelationID]*models.UserRelation)}
}

func (m *Memory) Create(_ context.Context, rel *models.UserRelation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.rels {
		if existing.IsDeleted || existing.IsRejected || existing.Type != rel.Type {
			continue
		}
		samePair := (existing.SenderID == rel.SenderID && existing.ReceiverID == rel.ReceiverID) ||
			(existing.SenderID == rel.ReceiverID && existing.ReceiverID == rel.SenderID)
		if samePair {
			return sentinel.ErrConflict
		}
	}

	clone := *rel
	m.rels[rel.ID] = &clone
	return nil
}

func (m *Memory) FindByID(_ context.Context, relationID id.RelationID) (*models.UserRelation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rel, ok := m.rels[relationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *rel
	return &clone, nil
}

func (m *Memory) MarkAccepted(_ context.Context, rel *models.UserRelation) error {
	return m.conditionalWrite(rel, func(row *models.UserRelation) bool {
		return row.IsPending()
	})
}

func (m *Memory) MarkRejected(_ context.Context, rel *models.UserRelation) error {
	return m.conditionalWrite(rel, func(row *models.UserRelation) bool {
		return row.IsPending()
	})
}

func (m *Memory) MarkDeleted(_ context.Context, rel *models.UserRelation) error {
	return m.conditionalWrite(rel, func(row *models.UserRelation) bool {
		return !row.IsDeleted
	})
}

// conditionalWrite re-checks the precondition against the stored row, not the
// caller's copy, mirroring the SQL store's WHERE clause.
func (m *Memory) conditionalWrite(rel *models.UserRelation, precondition func(*models.UserRelation) bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rels[rel.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if !precondition(row) {
		return sentinel.ErrInvalidState
	}
	clone := *rel
	m.rels[rel.ID] = &clone
	return nil
}

func (m *Memory) List(_ context.Context, viewer id.UserID, q models.ListQuery) ([]*models.UserRelation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.UserRelation
	for _, rel := range m.rels {
		if !matches(rel, viewer, q) {
			continue
		}
		clone := *rel
		out = append(out, &clone)
	}

	sortRelations(out, q.Sort)
	return paginate(out, q.Page), nil
}

func matches(rel *models.UserRelation, viewer id.UserID, q models.ListQuery) bool {
	if !rel.Involves(viewer) {
		return false
	}
	if rel.IsDeleted && !q.IncludeDeleted {
		return false
	}
	if q.MutualOnly && !rel.IsAccepted {
		return false
	}
	if !q.Counterparty.IsNil() {
		cp, _ := rel.CounterpartyOf(viewer)
		if cp != q.Counterparty {
			return false
		}
	}
	if q.Type != "" && rel.Type != q.Type {
		return false
	}
	if !q.UpdatedAfter.IsZero() && rel.UpdatedAt.Before(q.UpdatedAfter) {
		return false
	}
	if !q.UpdatedBefore.IsZero() && rel.UpdatedAt.After(q.UpdatedBefore) {
		return false
	}
	return true
}

func paginate(rels []*models.UserRelation, page id.Page) []*models.UserRelation {
	if page.Offset >= len(rels) {
		return nil
	}
	rels = rels[page.Offset:]
	if page.Limit > 0 && len(rels) > page.Limit {
		rels = rels[:page.Limit]
	}
	return rels
}

// AppendLog implements LogStore.
func (m *Memory) AppendLog(_ context.Context, log *models.RelationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clone := *log
	m.logs = append(m.logs, &clone)
	return nil
}

// Logs returns the appended log rows in order. Test helper.
func (m *Memory) Logs() []*models.RelationLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.RelationLog, len(m.logs))
	copy(out, m.logs)
	return out
}

// AcceptedTypesBetween returns the relation types for which viewer and owner
// share an accepted, non-deleted relation in either direction. The in-memory
// visibility resolver uses this where the SQL resolver joins.
func (m *Memory) AcceptedTypesBetween(_ context.Context, viewer, owner id.UserID) (map[id.RelationType]bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	types := make(map[id.RelationType]bool)
	for _, rel := range m.rels {
		if rel.IsDeleted || !rel.IsAccepted {
			continue
		}
		if rel.Involves(viewer) && rel.Involves(owner) {
			types[rel.Type] = true
		}
	}
	return types, nil
}
