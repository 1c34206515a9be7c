package queries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medmap-backend/application/ports"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

// GetMindMapQuery represents a query to retrieve a mind map with its tree
type GetMindMapQuery struct {
	MapID  string `json:"map_id"`
	UserID string `json:"user_id"`
}

// Validate validates the query
func (q GetMindMapQuery) Validate() error {
	if q.MapID == "" {
		return errors.New("map ID is required")
	}
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	return nil
}

// GetMindMapResult represents the query result. Tree serializes with the
// children-array convention: branch nodes carry a children key, leaves don't.
type GetMindMapResult struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	DocumentID     string              `json:"documentId"`
	NodeCount      int                 `json:"nodeCount"`
	Version        int                 `json:"version"`
	Tree           *aggregates.MapNode `json:"tree"`
	SourceChecksum string              `json:"sourceChecksum,omitempty"`
	CreatedAt      string              `json:"createdAt"`
	UpdatedAt      string              `json:"updatedAt"`

	// Owner is kept for cache access checks and never serialized
	Owner string `json:"-"`
}

// GetMindMapHandler handles the GetMindMapQuery
type GetMindMapHandler struct {
	mapRepo ports.MindMapRepository
	cache   ports.Cache
}

// NewGetMindMapHandler creates a new handler instance
func NewGetMindMapHandler(mapRepo ports.MindMapRepository, cache ports.Cache) *GetMindMapHandler {
	return &GetMindMapHandler{
		mapRepo: mapRepo,
		cache:   cache,
	}
}

// Handle executes the get mind map query
func (h *GetMindMapHandler) Handle(ctx context.Context, query GetMindMapQuery) (*GetMindMapResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	// Check cache first. Entries are keyed by map ID only, so ownership is
	// re-checked against the cached owner before returning.
	cacheKey := "map:" + query.MapID
	if cached, found := h.cache.Get(ctx, cacheKey); found {
		if result, ok := cached.(*GetMindMapResult); ok && result.Owner == query.UserID {
			return result, nil
		}
	}

	mapID, err := valueobjects.NewMapIDFromString(query.MapID)
	if err != nil {
		return nil, fmt.Errorf("invalid map ID: %w", err)
	}

	m, err := h.mapRepo.GetByID(ctx, mapID)
	if err != nil {
		return nil, err
	}

	// Verify user has access
	if m.UserID() != query.UserID {
		return nil, pkgerrors.ErrUserNotAuthorized
	}

	result := newGetMindMapResult(m)

	// Cache the result for 5 minutes
	h.cache.Set(ctx, cacheKey, result, 300)

	return result, nil
}

// newGetMindMapResult converts the aggregate into the wire result
func newGetMindMapResult(m *aggregates.MindMap) *GetMindMapResult {
	return &GetMindMapResult{
		ID:             m.ID().String(),
		Title:          m.Title(),
		DocumentID:     m.DocumentID().String(),
		NodeCount:      m.NodeCount(),
		Version:        m.Version(),
		Tree:           m.Root(),
		SourceChecksum: m.SourceChecksum(),
		CreatedAt:      m.CreatedAt().Format(time.RFC3339),
		UpdatedAt:      m.UpdatedAt().Format(time.RFC3339),
		Owner:          m.UserID(),
	}
}
