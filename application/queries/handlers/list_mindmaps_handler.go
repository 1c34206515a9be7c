package handlers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"medmap-backend/application/ports"
	"medmap-backend/application/queries"
	"medmap-backend/domain/core/aggregates"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// ListMindMapsHandler handles mind map listing queries
type ListMindMapsHandler struct {
	mapRepo ports.MindMapRepository
	docRepo ports.DocumentRepository
	logger  *zap.Logger
}

// NewListMindMapsHandler creates a new list handler
func NewListMindMapsHandler(
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	logger *zap.Logger,
) *ListMindMapsHandler {
	return &ListMindMapsHandler{
		mapRepo: mapRepo,
		docRepo: docRepo,
		logger:  logger,
	}
}

// Handle executes the list query
func (h *ListMindMapsHandler) Handle(ctx context.Context, query queries.ListMindMapsQuery) (*queries.ListMindMapsResult, error) {
	// Validate query
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	maps, err := h.mapRepo.GetByUserID(ctx, query.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mind maps: %w", err)
	}

	sortMaps(maps, query.SortBy, query.Order)

	limit := query.Limit
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}

	result := &queries.ListMindMapsResult{
		MindMaps:   make([]queries.MindMapSummary, 0, limit),
		TotalCount: len(maps),
		Limit:      limit,
		Offset:     query.Offset,
	}

	for i := query.Offset; i < len(maps) && len(result.MindMaps) < limit; i++ {
		result.MindMaps = append(result.MindMaps, h.toSummary(ctx, maps[i]))
	}

	h.logger.Debug("Mind maps listed",
		zap.String("userID", query.UserID),
		zap.Int("total", result.TotalCount),
		zap.Int("returned", len(result.MindMaps)),
	)

	return result, nil
}

// toSummary builds the list entry, resolving the source filename when the
// document record is still around
func (h *ListMindMapsHandler) toSummary(ctx context.Context, m *aggregates.MindMap) queries.MindMapSummary {
	summary := queries.MindMapSummary{
		ID:        m.ID().String(),
		Title:     m.Title(),
		NodeCount: m.NodeCount(),
		Version:   m.Version(),
		CreatedAt: m.CreatedAt().Format(time.RFC3339),
		UpdatedAt: m.UpdatedAt().Format(time.RFC3339),
	}

	docID := m.DocumentID()
	if docID.IsZero() {
		return summary
	}
	summary.DocumentID = docID.String()

	doc, err := h.docRepo.GetByID(ctx, docID)
	if err != nil {
		// The document may have been cleaned up, the listing still works
		h.logger.Debug("Source document not resolvable for listing",
			zap.String("mapID", summary.ID),
			zap.String("documentID", summary.DocumentID),
			zap.Error(err),
		)
		return summary
	}
	summary.SourceFilename = doc.Filename()

	return summary
}

// sortMaps orders the listing in place. Dates default to newest first,
// titles default to alphabetical.
func sortMaps(maps []*aggregates.MindMap, sortBy, order string) {
	var less func(i, j int) bool

	switch sortBy {
	case "title":
		if order == "desc" {
			less = func(i, j int) bool { return maps[i].Title() > maps[j].Title() }
		} else {
			less = func(i, j int) bool { return maps[i].Title() < maps[j].Title() }
		}
	case "updated":
		if order == "asc" {
			less = func(i, j int) bool { return maps[i].UpdatedAt().Before(maps[j].UpdatedAt()) }
		} else {
			less = func(i, j int) bool { return maps[i].UpdatedAt().After(maps[j].UpdatedAt()) }
		}
	default: // "created"
		if order == "asc" {
			less = func(i, j int) bool { return maps[i].CreatedAt().Before(maps[j].CreatedAt()) }
		} else {
			less = func(i, j int) bool { return maps[i].CreatedAt().After(maps[j].CreatedAt()) }
		}
	}

	sort.SliceStable(maps, less)
}
