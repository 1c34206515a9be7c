package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"medmap-backend/application/ports"
	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/events"
)

// recordSweepLimit caps how many document records a single cleanup run
// inspects.
const recordSweepLimit = 100

// CleanupUploadsCommand represents the command to remove stored upload files
// past the retention window
type CleanupUploadsCommand struct {
	OlderThan time.Duration `json:"older_than"`
	DryRun    bool          `json:"dry_run,omitempty"`
}

// Validate validates the command
func (cmd CleanupUploadsCommand) Validate() error {
	if cmd.OlderThan <= 0 {
		return errors.New("retention window must be positive")
	}
	return nil
}

// CleanupUploadsResult reports the outcome of an upload cleanup run
type CleanupUploadsResult struct {
	ScannedCount   int      `json:"scanned_count"`
	RemovedCount   int      `json:"removed_count"`
	RecordsRemoved int      `json:"records_removed"`
	ReclaimedBytes int64    `json:"reclaimed_bytes"`
	FailedPaths    []string `json:"failed_paths,omitempty"`
}

// CleanupUploadsHandler removes stored uploads older than the retention window,
// along with document records that never reached the processed state. Processed
// documents and their generated maps are kept; only the raw files and dead
// records go.
type CleanupUploadsHandler struct {
	fileStore  ports.FileStore
	docRepo    ports.DocumentRepository
	eventStore ports.EventStore
	logger     *zap.Logger
}

// NewCleanupUploadsHandler creates a new cleanup handler. The event store may
// be nil, in which case no cleanup event is recorded.
func NewCleanupUploadsHandler(
	fileStore ports.FileStore,
	docRepo ports.DocumentRepository,
	eventStore ports.EventStore,
	logger *zap.Logger,
) *CleanupUploadsHandler {
	return &CleanupUploadsHandler{
		fileStore:  fileStore,
		docRepo:    docRepo,
		eventStore: eventStore,
		logger:     logger,
	}
}

// Handle executes the cleanup command
func (h *CleanupUploadsHandler) Handle(ctx context.Context, cmd CleanupUploadsCommand) (*CleanupUploadsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	cutoff := time.Now().Add(-cmd.OlderThan)
	stale, err := h.fileStore.ListOlderThan(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stored uploads: %w", err)
	}

	result := &CleanupUploadsResult{ScannedCount: len(stale)}

	for _, file := range stale {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		if cmd.DryRun {
			result.RemovedCount++
			result.ReclaimedBytes += file.SizeBytes
			continue
		}

		if err := h.fileStore.Delete(ctx, file.Path); err != nil {
			h.logger.Warn("Failed to remove stale upload",
				zap.String("path", file.Path),
				zap.Error(err),
			)
			result.FailedPaths = append(result.FailedPaths, file.Path)
			continue
		}
		result.RemovedCount++
		result.ReclaimedBytes += file.SizeBytes
	}

	if err := h.sweepRecords(ctx, cutoff, cmd.DryRun, result); err != nil {
		return result, err
	}

	h.logger.Info("Upload cleanup completed",
		zap.Time("cutoff", cutoff),
		zap.Bool("dryRun", cmd.DryRun),
		zap.Int("scanned", result.ScannedCount),
		zap.Int("removed", result.RemovedCount),
		zap.Int("recordsRemoved", result.RecordsRemoved),
		zap.Int64("reclaimedBytes", result.ReclaimedBytes),
		zap.Int("failed", len(result.FailedPaths)),
	)

	h.recordCleanupEvent(ctx, cmd, result)

	return result, nil
}

// sweepRecords deletes document records past the cutoff that never reached
// the processed state. These are leftovers of rejected or failed runs.
func (h *CleanupUploadsHandler) sweepRecords(ctx context.Context, cutoff time.Time, dryRun bool, result *CleanupUploadsResult) error {
	if h.docRepo == nil {
		return nil
	}

	docs, err := h.docRepo.ListOlderThan(ctx, cutoff, recordSweepLimit)
	if err != nil {
		return fmt.Errorf("failed to list stale document records: %w", err)
	}

	for _, doc := range docs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if doc.Status() == entities.StatusProcessed {
			continue
		}

		if dryRun {
			result.RecordsRemoved++
			continue
		}

		if err := h.docRepo.Delete(ctx, doc.UserID(), doc.ID()); err != nil {
			h.logger.Warn("Failed to remove stale document record",
				zap.String("documentID", doc.ID().String()),
				zap.Error(err),
			)
			continue
		}
		result.RecordsRemoved++
	}

	return nil
}

// recordCleanupEvent stores an UploadsCleaned event when a real run removed
// anything. Failures here are logged, not returned; the cleanup itself
// already happened.
func (h *CleanupUploadsHandler) recordCleanupEvent(ctx context.Context, cmd CleanupUploadsCommand, result *CleanupUploadsResult) {
	if h.eventStore == nil || cmd.DryRun {
		return
	}
	if result.RemovedCount == 0 && result.RecordsRemoved == 0 {
		return
	}

	event := events.NewUploadsCleaned("", result.RemovedCount, result.ReclaimedBytes, time.Now())
	if err := h.eventStore.SaveEvents(ctx, []events.DomainEvent{event}); err != nil {
		h.logger.Warn("Failed to record cleanup event", zap.Error(err))
	}
}
