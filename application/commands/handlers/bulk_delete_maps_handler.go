package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"medmap-backend/application/commands"
	"medmap-backend/application/ports"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/domain/events"
	"medmap-backend/pkg/observability"
)

// BulkDeleteMindMapsHandler handles bulk delete commands with transactional safety
type BulkDeleteMindMapsHandler struct {
	uow       ports.UnitOfWork
	mapRepo   ports.MindMapRepository
	docRepo   ports.DocumentRepository
	fileStore ports.FileStore
	eventBus  ports.EventBus
	cache     ports.Cache
	collector *observability.Collector
	logger    *zap.Logger
}

// NewBulkDeleteMindMapsHandler creates a new bulk delete handler. The
// collector may be nil, which disables metrics.
func NewBulkDeleteMindMapsHandler(
	uow ports.UnitOfWork,
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	fileStore ports.FileStore,
	eventBus ports.EventBus,
	cache ports.Cache,
	collector *observability.Collector,
	logger *zap.Logger,
) *BulkDeleteMindMapsHandler {
	return &BulkDeleteMindMapsHandler{
		uow:       uow,
		mapRepo:   mapRepo,
		docRepo:   docRepo,
		fileStore: fileStore,
		eventBus:  eventBus,
		cache:     cache,
		collector: collector,
		logger:    logger,
	}
}

// Handle executes the bulk delete command (all-or-nothing for the map records)
func (h *BulkDeleteMindMapsHandler) Handle(ctx context.Context, cmd commands.BulkDeleteMindMapsCommand) (*commands.BulkDeleteMindMapsResult, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	// Convert map ID strings to value objects and validate them upfront
	mapIDs := make([]valueobjects.MapID, 0, len(cmd.MapIDs))
	invalidIDs := make([]string, 0)

	for _, mapIDStr := range cmd.MapIDs {
		mapID, err := valueobjects.NewMapIDFromString(mapIDStr)
		if err != nil {
			invalidIDs = append(invalidIDs, mapIDStr)
			continue
		}
		mapIDs = append(mapIDs, mapID)
	}

	// If all map IDs are invalid, return early
	if len(mapIDs) == 0 {
		return &commands.BulkDeleteMindMapsResult{
			DeletedCount: 0,
			FailedIDs:    invalidIDs,
			Errors:       []string{"All provided map IDs are invalid"},
		}, nil
	}

	// Start transaction for atomic bulk delete
	if err := h.uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer h.uow.Rollback() // Will be no-op if commit succeeds

	// Validate all maps exist and belong to the user before deleting any
	validMaps := make([]*mapValidationInfo, 0, len(mapIDs))
	failedIDs := make([]string, 0)
	errs := make([]string, 0)

	for _, mapID := range mapIDs {
		m, err := h.mapRepo.GetByID(ctx, mapID)
		if err != nil {
			failedIDs = append(failedIDs, mapID.String())
			errs = append(errs, fmt.Sprintf("Map %s not found: %v", mapID.String(), err))
			continue
		}

		// Verify ownership
		if m.UserID() != cmd.UserID {
			failedIDs = append(failedIDs, mapID.String())
			errs = append(errs, fmt.Sprintf("Map %s does not belong to user", mapID.String()))
			continue
		}

		validMaps = append(validMaps, &mapValidationInfo{
			mapID:      mapID,
			title:      m.Title(),
			documentID: m.DocumentID(),
		})
	}

	// If no valid maps to delete, rollback and return
	if len(validMaps) == 0 {
		return &commands.BulkDeleteMindMapsResult{
			DeletedCount: 0,
			FailedIDs:    append(invalidIDs, failedIDs...),
			Errors:       errs,
		}, nil
	}

	// Remove source documents and their stored uploads. Failures here are
	// logged and the map deletion continues.
	for _, info := range validMaps {
		if info.documentID.IsZero() {
			continue
		}

		doc, err := h.docRepo.GetByID(ctx, info.documentID)
		if err != nil {
			h.logger.Warn("Failed to load document for cleanup",
				zap.String("documentID", info.documentID.String()),
				zap.Error(err),
			)
			continue
		}

		if doc.StoredPath() != "" {
			if err := h.fileStore.Delete(ctx, doc.StoredPath()); err != nil {
				h.logger.Warn("Failed to remove stored upload",
					zap.String("path", doc.StoredPath()),
					zap.Error(err),
				)
			}
		}
		if err := h.docRepo.Delete(ctx, cmd.UserID, info.documentID); err != nil {
			h.logger.Warn("Failed to delete document record",
				zap.String("documentID", info.documentID.String()),
				zap.Error(err),
			)
		}
	}

	// Delete all maps using batch delete
	mapIDsToDelete := make([]valueobjects.MapID, len(validMaps))
	for i, info := range validMaps {
		mapIDsToDelete[i] = info.mapID
	}

	if err := h.mapRepo.DeleteBatch(ctx, cmd.UserID, mapIDsToDelete); err != nil {
		return nil, fmt.Errorf("failed to delete maps in batch: %w", err)
	}

	// Commit the transaction
	if err := h.uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit bulk delete transaction: %w", err)
	}

	if h.collector != nil {
		h.collector.ObserveDeletion(len(validMaps))
	}

	// Drop the cached read models
	for _, info := range validMaps {
		if err := h.cache.Delete(ctx, "map:"+info.mapID.String()); err != nil {
			h.logger.Warn("Failed to invalidate cache",
				zap.String("mapID", info.mapID.String()),
				zap.Error(err),
			)
		}
	}

	// Publish deletion events after the commit
	deleted := make([]events.DomainEvent, 0, len(validMaps))
	now := time.Now()
	for _, info := range validMaps {
		deleted = append(deleted, events.NewMindMapDeleted(info.mapID, cmd.UserID, info.title, now))
	}
	if err := h.eventBus.PublishBatch(ctx, deleted); err != nil {
		h.logger.Warn("Failed to publish deletion events", zap.Error(err))
	}

	result := &commands.BulkDeleteMindMapsResult{
		DeletedCount: len(validMaps),
		FailedIDs:    append(invalidIDs, failedIDs...),
		Errors:       errs,
	}

	h.logger.Info("Transactional bulk delete completed successfully",
		zap.String("userID", cmd.UserID),
		zap.Int("requested", len(cmd.MapIDs)),
		zap.Int("deleted", result.DeletedCount),
		zap.Int("failed", len(result.FailedIDs)),
	)

	return result, nil
}

// mapValidationInfo holds information about a validated map
type mapValidationInfo struct {
	mapID      valueobjects.MapID
	title      string
	documentID valueobjects.DocumentID
}
