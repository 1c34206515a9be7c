package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"medmap-backend/application/ports"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

// MindMapRepository is an in-memory MindMapRepository for development mode
// and tests. Aggregates are stored by reference and saves apply immediately;
// there is no transactional rollback here.
type MindMapRepository struct {
	mu   sync.RWMutex
	maps map[string]*aggregates.MindMap
}

// NewMindMapRepository creates an empty in-memory mind map repository
func NewMindMapRepository() *MindMapRepository {
	return &MindMapRepository{
		maps: make(map[string]*aggregates.MindMap),
	}
}

// Save persists a mind map (create or update)
func (r *MindMapRepository) Save(ctx context.Context, m *aggregates.MindMap) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.maps[m.ID().String()] = m
	return nil
}

// SaveWithUoW stores the mind map immediately. The unit of work is accepted
// for interface parity with the DynamoDB repository.
func (r *MindMapRepository) SaveWithUoW(ctx context.Context, m *aggregates.MindMap, _ interface{}) error {
	return r.Save(ctx, m)
}

// GetByID retrieves a mind map by its ID
func (r *MindMapRepository) GetByID(ctx context.Context, id valueobjects.MapID) (*aggregates.MindMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.maps[id.String()]
	if !ok {
		return nil, pkgerrors.ErrMindMapNotFound.Clone().
			WithDetail("map_id", id.String())
	}
	return m, nil
}

// GetByUserID retrieves all mind maps for a user, newest first
func (r *MindMapRepository) GetByUserID(ctx context.Context, userID string) ([]*aggregates.MindMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var maps []*aggregates.MindMap
	for _, m := range r.maps {
		if m.UserID() == userID {
			maps = append(maps, m)
		}
	}

	sort.SliceStable(maps, func(i, j int) bool {
		return maps[j].CreatedAt().Before(maps[i].CreatedAt())
	})

	return maps, nil
}

// GetByDocumentID retrieves the mind map generated from a document, if any
func (r *MindMapRepository) GetByDocumentID(ctx context.Context, documentID valueobjects.DocumentID) (*aggregates.MindMap, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.maps {
		if !m.DocumentID().IsZero() && m.DocumentID().Equals(documentID) {
			return m, nil
		}
	}

	return nil, pkgerrors.ErrMindMapNotFound.Clone().
		WithDetail("document_id", documentID.String())
}

// Search finds mind maps matching the given criteria. Title matching is a
// case-sensitive contains filter, mirroring the DynamoDB implementation.
func (r *MindMapRepository) Search(ctx context.Context, criteria ports.SearchCriteria) ([]*aggregates.MindMap, error) {
	if criteria.UserID == "" {
		return nil, fmt.Errorf("search requires a user ID")
	}

	r.mu.RLock()
	var maps []*aggregates.MindMap
	for _, m := range r.maps {
		if m.UserID() != criteria.UserID {
			continue
		}
		if criteria.Query != "" && !strings.Contains(m.Title(), criteria.Query) {
			continue
		}
		maps = append(maps, m)
	}
	r.mu.RUnlock()

	sortMaps(maps, criteria)

	if criteria.Offset > 0 {
		if criteria.Offset >= len(maps) {
			return []*aggregates.MindMap{}, nil
		}
		maps = maps[criteria.Offset:]
	}
	if criteria.Limit > 0 && len(maps) > criteria.Limit {
		maps = maps[:criteria.Limit]
	}

	return maps, nil
}

// CountByUserID returns the number of maps a user owns
func (r *MindMapRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, m := range r.maps {
		if m.UserID() == userID {
			count++
		}
	}
	return count, nil
}

// Delete removes a mind map owned by the user
func (r *MindMapRepository) Delete(ctx context.Context, userID string, id valueobjects.MapID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.maps[id.String()]
	if !ok || m.UserID() != userID {
		return pkgerrors.ErrMindMapNotFound.Clone().
			WithDetail("map_id", id.String())
	}

	delete(r.maps, id.String())
	return nil
}

// DeleteBatch removes multiple mind maps. Missing or foreign entries are
// skipped, matching the key-scoped batch delete semantics of DynamoDB.
func (r *MindMapRepository) DeleteBatch(ctx context.Context, userID string, ids []valueobjects.MapID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range ids {
		if m, ok := r.maps[id.String()]; ok && m.UserID() == userID {
			delete(r.maps, id.String())
		}
	}
	return nil
}

// UpdateTitle changes only the title of a stored map
func (r *MindMapRepository) UpdateTitle(ctx context.Context, userID string, id valueobjects.MapID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.maps[id.String()]
	if !ok || m.UserID() != userID {
		return pkgerrors.ErrMindMapNotFound.Clone().
			WithDetail("map_id", id.String())
	}
	if m.Title() == title {
		return nil
	}

	return m.Rename(title)
}

// sortMaps orders search results the same way the DynamoDB repository does
func sortMaps(maps []*aggregates.MindMap, criteria ports.SearchCriteria) {
	less := func(a, b *aggregates.MindMap) bool {
		switch strings.ToLower(criteria.OrderBy) {
		case "title":
			return a.Title() < b.Title()
		case "updated":
			return a.UpdatedAt().Before(b.UpdatedAt())
		default:
			return a.CreatedAt().Before(b.CreatedAt())
		}
	}

	sort.SliceStable(maps, func(i, j int) bool {
		if criteria.OrderDesc {
			return less(maps[j], maps[i])
		}
		return less(maps[i], maps[j])
	})
}
