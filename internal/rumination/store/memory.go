package store

import (
	"context"
	"strings"
	"sync"

	"ruminster/internal/rumination/models"
	id "ruminster/pkg/domain"
	"ruminster/pkg/platform/sentinel"
)

// Memory implements Store and LogStore in memory for tests. Visibility is
// resolved through the RelationReader where the postgres store joins the
// relations table.
type Memory struct {
	mu        sync.RWMutex
	entries   map[id.RuminationID]*models.Rumination
	audiences map[id.AudienceID]*models.Audience
	logs      []*models.RuminationLog
	relations RelationReader
}

// NewMemory builds an empty in-memory rumination store.
func NewMemory(relations RelationReader) *Memory {
	return &Memory{
		entries:   make(map[id.RuminationID]*models.Rumination),
		audiences: make(map[id.AudienceID]*models.Audience),
		relations: relations,
	}
}

func (m *Memory) Create(_ context.Context, r *models.Rumination) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[r.ID]; ok {
		return sentinel.ErrConflict
	}
	clone := *r
	clone.Audiences = nil
	m.entries[r.ID] = &clone
	for _, a := range r.Audiences {
		ac := *a
		m.audiences[a.ID] = &ac
	}
	return nil
}

func (m *Memory) FindByID(_ context.Context, ruminationID id.RuminationID) (*models.Rumination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.find(ruminationID)
}

// find assumes the lock is held.
func (m *Memory) find(ruminationID id.RuminationID) (*models.Rumination, error) {
	r, ok := m.entries[ruminationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *r
	clone.Audiences = m.liveAudiences(ruminationID)
	return &clone, nil
}

// liveAudiences assumes the lock is held.
func (m *Memory) liveAudiences(ruminationID id.RuminationID) []*models.Audience {
	var live []*models.Audience
	for _, a := range m.audiences {
		if a.RuminationID == ruminationID && !a.IsDeleted {
			ac := *a
			live = append(live, &ac)
		}
	}
	return live
}

func (m *Memory) UpdateEntry(_ context.Context, r *models.Rumination) error {
	return m.conditionalWrite(r)
}

func (m *Memory) MarkDeleted(_ context.Context, r *models.Rumination) error {
	return m.conditionalWrite(r)
}

func (m *Memory) conditionalWrite(r *models.Rumination) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.entries[r.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.IsDeleted {
		return sentinel.ErrInvalidState
	}
	clone := *r
	clone.Audiences = nil
	m.entries[r.ID] = &clone
	return nil
}

func (m *Memory) AddAudience(_ context.Context, a *models.Audience) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.audiences {
		if existing.RuminationID == a.RuminationID && existing.Type == a.Type && !existing.IsDeleted {
			return sentinel.ErrConflict
		}
	}
	clone := *a
	m.audiences[a.ID] = &clone
	return nil
}

func (m *Memory) MarkAudienceDeleted(_ context.Context, a *models.Audience) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.audiences[a.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.IsDeleted {
		return sentinel.ErrInvalidState
	}
	clone := *a
	m.audiences[a.ID] = &clone
	return nil
}

func (m *Memory) ListByOwner(_ context.Context, owner id.UserID, q models.OwnQuery) ([]*models.Rumination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Rumination
	for _, r := range m.entries {
		if r.OwnerID != owner {
			continue
		}
		if r.IsDeleted && !q.IncludeDeleted {
			continue
		}
		if q.Published != nil && r.IsPublished != *q.Published {
			continue
		}
		if !matchesContent(r, q.ContentContains) {
			continue
		}
		if !q.UpdatedAfter.IsZero() && !r.UpdatedAt.After(q.UpdatedAfter) {
			continue
		}
		if !q.UpdatedBefore.IsZero() && !r.UpdatedAt.Before(q.UpdatedBefore) {
			continue
		}
		clone := *r
		clone.Audiences = m.liveAudiences(r.ID)
		out = append(out, &clone)
	}
	sortRuminations(out, q.Sort)
	return paginate(out, q.Page), nil
}

func (m *Memory) PublicFeed(_ context.Context, q models.FeedQuery) ([]*models.Rumination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Rumination
	for _, r := range m.entries {
		if !m.feedCandidate(r, q) {
			continue
		}
		if len(m.liveAudiences(r.ID)) > 0 {
			continue
		}
		clone := *r
		out = append(out, &clone)
	}
	sortRuminations(out, q.Sort)
	return paginate(out, q.Page), nil
}

func (m *Memory) VisibleFeed(ctx context.Context, viewer id.UserID, q models.FeedQuery) ([]*models.Rumination, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accepted := make(map[id.UserID]map[id.RelationType]bool)

	var out []*models.Rumination
	for _, r := range m.entries {
		if !m.feedCandidate(r, q) {
			continue
		}
		visible := r.OwnerID == viewer
		if !visible {
			live := m.liveAudiences(r.ID)
			if len(live) == 0 {
				visible = true
			} else {
				types, ok := accepted[r.OwnerID]
				if !ok {
					var err error
					types, err = m.relations.AcceptedTypesBetween(ctx, viewer, r.OwnerID)
					if err != nil {
						return nil, err
					}
					accepted[r.OwnerID] = types
				}
				for _, a := range live {
					if types[a.Type] {
						visible = true
						break
					}
				}
			}
		}
		if !visible {
			continue
		}
		clone := *r
		out = append(out, &clone)
	}
	sortRuminations(out, q.Sort)
	return paginate(out, q.Page), nil
}

func (m *Memory) feedCandidate(r *models.Rumination, q models.FeedQuery) bool {
	if !r.IsPublished || r.IsDeleted {
		return false
	}
	if !q.Owner.IsNil() && r.OwnerID != q.Owner {
		return false
	}
	if !matchesContent(r, q.ContentContains) {
		return false
	}
	if !q.UpdatedAfter.IsZero() && !r.UpdatedAt.After(q.UpdatedAfter) {
		return false
	}
	if !q.UpdatedBefore.IsZero() && !r.UpdatedAt.Before(q.UpdatedBefore) {
		return false
	}
	return true
}

func matchesContent(r *models.Rumination, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Content), strings.ToLower(needle))
}

func paginate(rs []*models.Rumination, page id.Page) []*models.Rumination {
	if page.Offset >= len(rs) {
		return nil
	}
	rs = rs[page.Offset:]
	if page.Limit > 0 && page.Limit < len(rs) {
		rs = rs[:page.Limit]
	}
	return rs
}

func (m *Memory) AppendLog(_ context.Context, log *models.RuminationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *log
	m.logs = append(m.logs, &clone)
	return nil
}

// Logs returns the appended audit rows in order.
func (m *Memory) Logs() []*models.RuminationLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.RuminationLog, len(m.logs))
	copy(out, m.logs)
	return out
}

// VisibleTo reports whether viewer may see one entry: the owner always may,
// everyone else needs a published entry that is public or gated by a type
// they share an accepted relation for.
func (m *Memory) VisibleTo(ctx context.Context, viewer id.UserID, ruminationID id.RuminationID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.entries[ruminationID]
	if !ok || r.IsDeleted {
		return false, nil
	}
	if r.OwnerID == viewer {
		return true, nil
	}
	if !r.IsPublished {
		return false, nil
	}
	live := m.liveAudiences(ruminationID)
	if len(live) == 0 {
		return true, nil
	}
	types, err := m.relations.AcceptedTypesBetween(ctx, viewer, r.OwnerID)
	if err != nil {
		return false, err
	}
	for _, a := range live {
		if types[a.Type] {
			return true, nil
		}
	}
	return false, nil
}
