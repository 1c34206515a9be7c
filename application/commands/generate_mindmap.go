package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"medmap-backend/application/ports"
	"medmap-backend/application/sagas"
	"medmap-backend/application/services"
	"medmap-backend/domain/config"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/core/validators"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/domain/events"
	"medmap-backend/domain/versioning"
	pkgerrors "medmap-backend/pkg/errors"
	"medmap-backend/pkg/observability"
)

// GenerateMindMapCommand represents the command to build a mind map from a document.
// Either Contents (a fresh upload) or DocumentID (a previously stored upload) must
// be provided; when both are set the fresh upload wins.
type GenerateMindMapCommand struct {
	UserID     string `json:"user_id" validate:"required"`
	Filename   string `json:"filename" validate:"required_without=DocumentID,max=255"`
	Contents   []byte `json:"-"`
	DocumentID string `json:"document_id,omitempty" validate:"omitempty,uuid"`
	Title      string `json:"title,omitempty" validate:"omitempty,max=200"`
}

// Validate validates the command
func (cmd GenerateMindMapCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.DocumentID == "" {
		if cmd.Filename == "" {
			return errors.New("filename is required")
		}
		if len(cmd.Contents) == 0 {
			return errors.New("file contents are required")
		}
	}
	return nil
}

// GenerateMindMapHandler handles the GenerateMindMapCommand
type GenerateMindMapHandler struct {
	mapRepo    ports.MindMapRepository
	docRepo    ports.DocumentRepository
	fileStore  ports.FileStore
	extractor  ports.TextExtractor
	generation *services.GenerationService
	saga       *sagas.GenerationSaga
	eventBus   ports.EventBus
	validator  *validators.DocumentValidator
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        *config.DomainConfig
}

// NewGenerateMindMapHandler creates a new handler instance. The metrics
// instance may be nil, which disables CloudWatch telemetry.
func NewGenerateMindMapHandler(
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	fileStore ports.FileStore,
	extractor ports.TextExtractor,
	generation *services.GenerationService,
	eventBus ports.EventBus,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg *config.DomainConfig,
) *GenerateMindMapHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GenerateMindMapHandler{
		mapRepo:    mapRepo,
		docRepo:    docRepo,
		fileStore:  fileStore,
		extractor:  extractor,
		generation: generation,
		saga:       sagas.NewGenerationSaga(mapRepo, docRepo, fileStore, extractor, generation, eventBus, logger, cfg),
		eventBus:   eventBus,
		validator:  validators.NewDocumentValidatorFromConfig(cfg),
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Handle executes the generate mind map command
func (h *GenerateMindMapHandler) Handle(ctx context.Context, cmd GenerateMindMapCommand) (*aggregates.MindMap, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("invalid command: %w", err)
	}

	start := time.Now()
	var m *aggregates.MindMap
	var err error
	if len(cmd.Contents) > 0 {
		m, err = h.generateFromUpload(ctx, cmd)
	} else {
		m, err = h.generateFromStored(ctx, cmd)
	}
	h.recordOutcome(ctx, cmd, start, m, err)
	return m, err
}

// recordOutcome publishes generation telemetry to CloudWatch. On Lambda the
// Prometheus endpoint is never scraped, so this is the metrics path there.
func (h *GenerateMindMapHandler) recordOutcome(ctx context.Context, cmd GenerateMindMapCommand, start time.Time, m *aggregates.MindMap, err error) {
	if h.metrics == nil {
		return
	}

	status := "success"
	nodeCount := 0
	if err != nil {
		status = "failure"
	} else {
		nodeCount = m.NodeCount()
	}
	h.metrics.RecordGeneration(ctx, status, time.Since(start), nodeCount)

	if err == nil && len(cmd.Contents) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(cmd.Filename), "."))
		h.metrics.RecordDocumentUpload(ctx, ext, int64(len(cmd.Contents)))
	}
}

// generateFromUpload runs the compensated saga for a fresh upload: store,
// extract, generate, persist. A failure mid-flight unwinds the stored file
// and leaves the document marked failed.
func (h *GenerateMindMapHandler) generateFromUpload(ctx context.Context, cmd GenerateMindMapCommand) (*aggregates.MindMap, error) {
	if err := h.validator.ValidateUpload(cmd.Filename, int64(len(cmd.Contents))); err != nil {
		return nil, err
	}

	m, err := h.saga.Run(ctx, sagas.GenerationRequest{
		UserID:   cmd.UserID,
		Filename: cmd.Filename,
		Title:    deriveTitle(cmd.Title),
		Contents: cmd.Contents,
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("Mind map generated",
		zap.String("mapID", m.ID().String()),
		zap.String("documentID", m.DocumentID().String()),
		zap.String("userID", cmd.UserID),
		zap.Int("nodeCount", m.NodeCount()),
	)

	return m, nil
}

// generateFromStored re-reads a previously stored upload and regenerates its map.
// When a map already exists for the document its tree is replaced in place so the
// map ID stays stable for clients.
func (h *GenerateMindMapHandler) generateFromStored(ctx context.Context, cmd GenerateMindMapCommand) (*aggregates.MindMap, error) {
	docID, err := valueobjects.NewDocumentIDFromString(cmd.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("invalid document ID: %w", err)
	}

	doc, err := h.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	if doc.UserID() != cmd.UserID {
		return nil, pkgerrors.ErrUserNotAuthorized
	}

	h.publishEvent(ctx, events.NewGenerationStarted(doc.ID(), cmd.UserID, time.Now()))

	reader, err := h.fileStore.Open(ctx, doc.StoredPath())
	if err != nil {
		h.failDocument(ctx, doc, "extract", err)
		return nil, fmt.Errorf("failed to open stored upload: %w", err)
	}
	defer reader.Close()

	text, err := h.extractor.Extract(ctx, reader, doc.Extension())
	if err != nil {
		h.failDocument(ctx, doc, "extract", err)
		return nil, err
	}

	existing, err := h.mapRepo.GetByDocumentID(ctx, doc.ID())
	if err != nil && !errors.Is(err, pkgerrors.ErrMindMapNotFound) {
		return nil, fmt.Errorf("failed to look up existing mind map: %w", err)
	}

	return h.buildAndPersist(ctx, doc, cmd.Title, text, existing)
}

// buildAndPersist runs the generation pipeline and saves the resulting map,
// replacing the tree of an existing map when one is passed in.
func (h *GenerateMindMapHandler) buildAndPersist(
	ctx context.Context,
	doc *entities.Document,
	title, text string,
	existing *aggregates.MindMap,
) (*aggregates.MindMap, error) {
	root, err := h.generation.Generate(ctx, text)
	if err != nil {
		h.failDocument(ctx, doc, "generate", err)
		return nil, err
	}

	checksum := versioning.SourceChecksum(text)

	var m *aggregates.MindMap
	if existing != nil {
		if err := existing.ReplaceRootWithConfig(root, checksum, h.cfg); err != nil {
			return nil, err
		}
		m = existing
	} else {
		m, err = aggregates.NewMindMapWithConfig(doc.UserID(), doc.ID(), deriveTitle(title), root, checksum, h.cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := doc.MarkProcessed(utf8.RuneCountInString(text)); err != nil {
		return nil, err
	}

	if err := h.mapRepo.Save(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mind map: %w", err)
	}
	if err := h.docRepo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	pending := append(doc.GetUncommittedEvents(), m.GetUncommittedEvents()...)
	if err := h.eventBus.PublishBatch(ctx, pending); err != nil {
		h.logger.Warn("Failed to publish events", zap.Error(err))
	}
	doc.MarkEventsAsCommitted()
	m.MarkEventsAsCommitted()

	h.logger.Info("Mind map generated",
		zap.String("mapID", m.ID().String()),
		zap.String("documentID", doc.ID().String()),
		zap.String("userID", doc.UserID()),
		zap.Int("nodeCount", m.NodeCount()),
	)

	return m, nil
}

// failDocument records a failed generation without masking the pipeline error.
func (h *GenerateMindMapHandler) failDocument(ctx context.Context, doc *entities.Document, stage string, cause error) {
	if err := doc.MarkFailed(cause.Error()); err != nil {
		h.logger.Warn("Failed to mark document failed", zap.Error(err))
	}
	if err := h.docRepo.Save(ctx, doc); err != nil {
		h.logger.Warn("Failed to save failed document", zap.Error(err))
	}
	h.publishEvent(ctx, events.NewGenerationFailed(doc.ID(), doc.UserID(), stage, cause.Error(), time.Now()))

	pending := doc.GetUncommittedEvents()
	if err := h.eventBus.PublishBatch(ctx, pending); err != nil {
		h.logger.Warn("Failed to publish events", zap.Error(err))
	}
	doc.MarkEventsAsCommitted()
}

// publishEvent publishes a single event, logging failures without failing the command.
func (h *GenerateMindMapHandler) publishEvent(ctx context.Context, event events.DomainEvent) {
	if err := h.eventBus.Publish(ctx, event); err != nil {
		h.logger.Warn("Failed to publish event",
			zap.String("eventType", event.GetEventType()),
			zap.Error(err),
		)
	}
}

// deriveTitle falls back to the root node text when no title was supplied.
func deriveTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return aggregates.RootNodeText
	}
	return title
}
