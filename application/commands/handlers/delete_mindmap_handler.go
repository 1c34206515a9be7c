package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"medmap-backend/application/commands"
	"medmap-backend/application/ports"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
	"medmap-backend/pkg/observability"
)

// DeleteMindMapHandler handles mind map deletion commands
type DeleteMindMapHandler struct {
	mapRepo    ports.MindMapRepository
	docRepo    ports.DocumentRepository
	fileStore  ports.FileStore
	eventStore ports.EventStore
	eventBus   ports.EventBus
	cache      ports.Cache
	collector  *observability.Collector
	logger     *zap.Logger
}

// NewDeleteMindMapHandler creates a new delete handler. The collector may be
// nil, which disables metrics.
func NewDeleteMindMapHandler(
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	fileStore ports.FileStore,
	eventStore ports.EventStore,
	eventBus ports.EventBus,
	cache ports.Cache,
	collector *observability.Collector,
	logger *zap.Logger,
) *DeleteMindMapHandler {
	return &DeleteMindMapHandler{
		mapRepo:    mapRepo,
		docRepo:    docRepo,
		fileStore:  fileStore,
		eventStore: eventStore,
		eventBus:   eventBus,
		cache:      cache,
		collector:  collector,
		logger:     logger,
	}
}

// Handle executes the delete command
func (h *DeleteMindMapHandler) Handle(ctx context.Context, cmd commands.DeleteMindMapCommand) error {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	mapID, err := valueobjects.NewMapIDFromString(cmd.MapID)
	if err != nil {
		return fmt.Errorf("invalid map ID: %w", err)
	}

	// Verify map exists and belongs to user
	m, err := h.mapRepo.GetByID(ctx, mapID)
	if err != nil {
		return fmt.Errorf("failed to get mind map: %w", err)
	}

	if m.UserID() != cmd.UserID {
		return pkgerrors.ErrUserNotAuthorized
	}

	// Remove the source document and its stored upload first. Failures here
	// are logged and the map deletion continues.
	docID := m.DocumentID()
	if !docID.IsZero() {
		doc, err := h.docRepo.GetByID(ctx, docID)
		if err != nil {
			h.logger.Warn("Failed to load document for cleanup",
				zap.String("documentID", docID.String()),
				zap.Error(err),
			)
		} else {
			if doc.StoredPath() != "" {
				if err := h.fileStore.Delete(ctx, doc.StoredPath()); err != nil {
					h.logger.Warn("Failed to remove stored upload",
						zap.String("path", doc.StoredPath()),
						zap.Error(err),
					)
				}
			}
			if err := h.docRepo.Delete(ctx, cmd.UserID, docID); err != nil {
				h.logger.Error("Failed to delete document record",
					zap.String("documentID", docID.String()),
					zap.Error(err),
				)
			}
		}
	}

	// Delete the map
	if err := h.mapRepo.Delete(ctx, cmd.UserID, mapID); err != nil {
		return fmt.Errorf("failed to delete mind map: %w", err)
	}

	if h.collector != nil {
		h.collector.ObserveDeletion(1)
	}

	// Drop the cached read model
	if err := h.cache.Delete(ctx, "map:"+cmd.MapID); err != nil {
		h.logger.Warn("Failed to invalidate cache", zap.String("mapID", cmd.MapID), zap.Error(err))
	}

	// Remove stored events for both aggregates
	aggregateIDs := []string{mapID.String()}
	if !docID.IsZero() {
		aggregateIDs = append(aggregateIDs, docID.String())
	}
	if err := h.eventStore.DeleteEventsBatch(ctx, aggregateIDs); err != nil {
		h.logger.Error("Failed to delete stored events",
			zap.String("mapID", cmd.MapID),
			zap.Error(err),
		)
		// Don't fail the operation, the map was already deleted
	}

	// Publish the deletion event
	m.MarkDeleted()
	for _, event := range m.GetUncommittedEvents() {
		if err := h.eventBus.Publish(ctx, event); err != nil {
			h.logger.Warn("Failed to publish deletion event", zap.Error(err))
		}
	}
	m.MarkEventsAsCommitted()

	h.logger.Info("Mind map deleted",
		zap.String("mapID", cmd.MapID),
		zap.String("userID", cmd.UserID),
	)

	return nil
}
