package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"medmap-backend/application/commands"
	"medmap-backend/application/ports"
	"medmap-backend/application/services"
	"medmap-backend/domain/config"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/domain/versioning"
	"medmap-backend/infrastructure/persistence/dynamodb"
	pkgerrors "medmap-backend/pkg/errors"
)

// Logger interface for flexible logging
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RegenerateMindMapOrchestrator rebuilds a mind map from its stored document.
// Concurrent regenerations of the same document are serialized with a
// distributed lock so the last writer cannot clobber a fresher tree.
type RegenerateMindMapOrchestrator struct {
	uow             ports.UnitOfWork
	mapRepo         ports.MindMapRepository
	docRepo         ports.DocumentRepository
	fileStore       ports.FileStore
	extractor       ports.TextExtractor
	generation      *services.GenerationService
	eventPublisher  ports.EventPublisher
	distributedLock *dynamodb.DistributedLock
	logger          Logger
	cfg             *config.DomainConfig
}

// NewRegenerateMindMapOrchestrator creates a new orchestrator instance
func NewRegenerateMindMapOrchestrator(
	uow ports.UnitOfWork,
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	fileStore ports.FileStore,
	extractor ports.TextExtractor,
	generation *services.GenerationService,
	eventPublisher ports.EventPublisher,
	distributedLock *dynamodb.DistributedLock,
	logger Logger,
	cfg *config.DomainConfig,
) *RegenerateMindMapOrchestrator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &RegenerateMindMapOrchestrator{
		uow:             uow,
		mapRepo:         mapRepo,
		docRepo:         docRepo,
		fileStore:       fileStore,
		extractor:       extractor,
		generation:      generation,
		eventPublisher:  eventPublisher,
		distributedLock: distributedLock,
		logger:          logger,
		cfg:             cfg,
	}
}

// Handle orchestrates the regeneration process
func (o *RegenerateMindMapOrchestrator) Handle(ctx context.Context, cmd commands.GenerateMindMapCommand) (*aggregates.MindMap, error) {
	// Validate command
	if err := o.validateCommand(cmd); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	// Serialize regeneration per document. Two Lambdas racing on the same
	// document would otherwise both summarize and the slower one would win.
	// A nil lock (single-process deployments) skips serialization.
	if o.distributedLock != nil {
		lockResource := fmt.Sprintf("mindmap_generation_%s", cmd.DocumentID)
		lockDuration := 30 * time.Second // Lock for up to 30 seconds
		lockTimeout := 5 * time.Second   // Wait up to 5 seconds to acquire lock

		lock, err := o.distributedLock.TryAcquireLock(ctx, lockResource, cmd.UserID, lockDuration, lockTimeout)
		if err != nil {
			return nil, pkgerrors.ErrGenerationInProgress.Clone().WithCause(err)
		}
		defer func() {
			if releaseErr := lock.Release(ctx); releaseErr != nil {
				o.logger.Error("Failed to release distributed lock",
					"resource", lockResource,
					"error", releaseErr,
				)
			}
		}()
	}

	// Load the document and its stored text
	doc, text, err := o.loadSource(ctx, cmd)
	if err != nil {
		return nil, err
	}

	checksum := versioning.SourceChecksum(text)

	// Double-check whether another process already regenerated from the same
	// source while we were waiting for the lock
	existing, err := o.mapRepo.GetByDocumentID(ctx, doc.ID())
	if err != nil && !errors.Is(err, pkgerrors.ErrMindMapNotFound) {
		return nil, fmt.Errorf("failed to look up existing mind map: %w", err)
	}
	if existing != nil && existing.SourceChecksum() == checksum {
		o.logger.Debug("Mind map already current after acquiring lock (regenerated by another process)",
			"mapID", existing.ID().String(),
			"documentID", cmd.DocumentID,
		)
		return existing, nil
	}

	// Start unit of work transaction
	if err := o.uow.Begin(ctx); err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer o.uow.Rollback() // Will be no-op if commit succeeds

	// Run the generation pipeline
	root, err := o.generation.Generate(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mind map: %w", err)
	}

	var m *aggregates.MindMap
	if existing != nil {
		if err := existing.ReplaceRootWithConfig(root, checksum, o.cfg); err != nil {
			return nil, err
		}
		m = existing
	} else {
		m, err = aggregates.NewMindMapWithConfig(doc.UserID(), doc.ID(), aggregates.RootNodeText, root, checksum, o.cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := doc.MarkProcessed(utf8.RuneCountInString(text)); err != nil {
		return nil, err
	}

	// Save both aggregates inside the transaction
	if err := o.saveMapWithUoW(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mind map: %w", err)
	}
	if err := o.saveDocumentWithUoW(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	// Commit transaction
	if err := o.uow.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Publish domain events after successful commit
	pending := append(doc.GetUncommittedEvents(), m.GetUncommittedEvents()...)
	if len(pending) > 0 {
		if err := o.eventPublisher.PublishBatch(ctx, pending); err != nil {
			// Log error but don't fail - events can be retried
			o.logger.Error("Failed to publish domain events",
				"error", err,
				"eventCount", len(pending),
				"mapID", m.ID().String(),
			)
		} else {
			// Mark events as committed after successful publishing
			doc.MarkEventsAsCommitted()
			m.MarkEventsAsCommitted()
		}
	}

	o.logger.Info("Mind map regenerated successfully",
		"mapID", m.ID().String(),
		"documentID", cmd.DocumentID,
		"userID", cmd.UserID,
		"nodeCount", m.NodeCount(),
	)

	return m, nil
}

// validateCommand validates the regeneration command
func (o *RegenerateMindMapOrchestrator) validateCommand(cmd commands.GenerateMindMapCommand) error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}

	if cmd.DocumentID == "" {
		return errors.New("document ID is required")
	}

	return nil
}

// loadSource fetches the document record and re-extracts its stored text
func (o *RegenerateMindMapOrchestrator) loadSource(ctx context.Context, cmd commands.GenerateMindMapCommand) (*entities.Document, string, error) {
	docID, err := valueobjects.NewDocumentIDFromString(cmd.DocumentID)
	if err != nil {
		return nil, "", fmt.Errorf("invalid document ID: %w", err)
	}

	doc, err := o.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get document: %w", err)
	}

	if doc.UserID() != cmd.UserID {
		return nil, "", pkgerrors.ErrUserNotAuthorized
	}

	reader, err := o.fileStore.Open(ctx, doc.StoredPath())
	if err != nil {
		return nil, "", fmt.Errorf("failed to open stored upload: %w", err)
	}
	defer reader.Close()

	text, err := o.extractor.Extract(ctx, reader, doc.Extension())
	if err != nil {
		return nil, "", fmt.Errorf("failed to extract text: %w", err)
	}

	return doc, text, nil
}

// Helper methods for UoW operations

func (o *RegenerateMindMapOrchestrator) saveMapWithUoW(ctx context.Context, m *aggregates.MindMap) error {
	// Check if repository supports UoW
	if repoWithUoW, ok := o.mapRepo.(interface {
		SaveWithUoW(context.Context, *aggregates.MindMap, interface{}) error
	}); ok {
		return repoWithUoW.SaveWithUoW(ctx, m, o.uow)
	}
	// If UoW is required but not supported, fail fast
	// This prevents partial updates outside transaction boundaries
	return fmt.Errorf("repository does not support unit of work transactions")
}

func (o *RegenerateMindMapOrchestrator) saveDocumentWithUoW(ctx context.Context, doc *entities.Document) error {
	// Check if repository supports UoW
	if repoWithUoW, ok := o.docRepo.(interface {
		SaveWithUoW(context.Context, *entities.Document, interface{}) error
	}); ok {
		return repoWithUoW.SaveWithUoW(ctx, doc, o.uow)
	}
	// If UoW is required but not supported, fail fast
	return fmt.Errorf("repository does not support unit of work transactions")
}
