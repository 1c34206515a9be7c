package handlers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"medmap-backend/application/commands"
	"medmap-backend/application/ports"
	"medmap-backend/domain/config"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

// RenameMindMapHandler handles mind map rename commands
type RenameMindMapHandler struct {
	mapRepo  ports.MindMapRepository
	cache    ports.Cache
	eventBus ports.EventBus
	logger   *zap.Logger
	cfg      *config.DomainConfig
}

// NewRenameMindMapHandler creates a new rename handler
func NewRenameMindMapHandler(
	mapRepo ports.MindMapRepository,
	cache ports.Cache,
	eventBus ports.EventBus,
	logger *zap.Logger,
	cfg *config.DomainConfig,
) *RenameMindMapHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &RenameMindMapHandler{
		mapRepo:  mapRepo,
		cache:    cache,
		eventBus: eventBus,
		logger:   logger,
		cfg:      cfg,
	}
}

// Handle executes the rename command and returns the updated map
func (h *RenameMindMapHandler) Handle(ctx context.Context, cmd commands.RenameMindMapCommand) (*aggregates.MindMap, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	mapID, err := valueobjects.NewMapIDFromString(cmd.MapID)
	if err != nil {
		return nil, fmt.Errorf("invalid map ID: %w", err)
	}

	m, err := h.mapRepo.GetByID(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mind map: %w", err)
	}

	// Verify ownership
	if m.UserID() != cmd.UserID {
		return nil, pkgerrors.ErrUserNotAuthorized
	}

	oldTitle := m.Title()
	if err := m.RenameWithConfig(cmd.Title, h.cfg); err != nil {
		return nil, err
	}

	// Repositories may expose a title-only update; fall back to a full save
	if updater, ok := h.mapRepo.(interface {
		UpdateTitle(ctx context.Context, userID string, id valueobjects.MapID, title string) error
	}); ok {
		if err := updater.UpdateTitle(ctx, cmd.UserID, mapID, m.Title()); err != nil {
			return nil, fmt.Errorf("failed to update title: %w", err)
		}
	} else if err := h.mapRepo.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mind map: %w", err)
	}

	// Drop the cached read model so the new title is visible immediately
	if err := h.cache.Delete(ctx, "map:"+cmd.MapID); err != nil {
		h.logger.Warn("Failed to invalidate cache", zap.String("mapID", cmd.MapID), zap.Error(err))
	}

	for _, event := range m.GetUncommittedEvents() {
		if err := h.eventBus.Publish(ctx, event); err != nil {
			h.logger.Warn("Failed to publish event", zap.Error(err))
		}
	}
	m.MarkEventsAsCommitted()

	h.logger.Info("Mind map renamed",
		zap.String("mapID", cmd.MapID),
		zap.String("userID", cmd.UserID),
		zap.String("oldTitle", oldTitle),
		zap.String("newTitle", m.Title()),
	)

	return m, nil
}
