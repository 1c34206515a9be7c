package sagas

import (
	"bytes"
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"medmap-backend/application/ports"
	"medmap-backend/application/services"
	"medmap-backend/domain/config"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/events"
	"medmap-backend/domain/versioning"
)

// GenerationRequest carries a fresh upload into the generation saga
type GenerationRequest struct {
	UserID   string
	Filename string
	Title    string
	Contents []byte
}

// GenerationSaga runs the upload-to-map flow as a compensated sequence:
// store the upload, extract its text, generate the tree, persist the map.
// When a later step fails the stored file is removed and the document is
// marked failed, so no half-processed uploads accumulate.
type GenerationSaga struct {
	mapRepo    ports.MindMapRepository
	docRepo    ports.DocumentRepository
	fileStore  ports.FileStore
	extractor  ports.TextExtractor
	generation *services.GenerationService
	eventBus   ports.EventBus
	logger     *zap.Logger
	cfg        *config.DomainConfig
}

// NewGenerationSaga creates a new generation saga
func NewGenerationSaga(
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	fileStore ports.FileStore,
	extractor ports.TextExtractor,
	generation *services.GenerationService,
	eventBus ports.EventBus,
	logger *zap.Logger,
	cfg *config.DomainConfig,
) *GenerationSaga {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GenerationSaga{
		mapRepo:    mapRepo,
		docRepo:    docRepo,
		fileStore:  fileStore,
		extractor:  extractor,
		generation: generation,
		eventBus:   eventBus,
		logger:     logger,
		cfg:        cfg,
	}
}

// generationState is threaded through the saga steps
type generationState struct {
	request GenerationRequest
	doc     *entities.Document
	text    string
	root    *aggregates.MapNode
	mindMap *aggregates.MindMap
	failure string
}

// Run executes the saga and returns the generated map
func (s *GenerationSaga) Run(ctx context.Context, req GenerationRequest) (*aggregates.MindMap, error) {
	saga := NewSagaBuilder("mindmap_generation", s.logger).
		WithCompensableStep("store_upload", s.storeUpload, s.removeUpload).
		WithStep("extract_text", s.extractText).
		WithRetryableStep("generate_tree", s.generateTree, 2, time.Second).
		WithStep("persist_map", s.persistMap).
		WithField("user_id", req.UserID).
		WithField("filename", req.Filename).
		Build()

	result, err := saga.Execute(ctx, &generationState{request: req})
	if err != nil {
		return nil, err
	}

	state, ok := result.(*generationState)
	if !ok || state.mindMap == nil {
		return nil, fmt.Errorf("saga completed without a mind map")
	}
	return state.mindMap, nil
}

// storeUpload writes the raw file and records the document
func (s *GenerationSaga) storeUpload(ctx context.Context, data interface{}) (interface{}, error) {
	state := data.(*generationState)
	req := state.request

	doc, err := entities.NewDocumentWithConfig(req.UserID, req.Filename, int64(len(req.Contents)), s.cfg)
	if err != nil {
		return nil, err
	}

	storedPath, err := s.fileStore.Save(ctx, req.UserID, req.Filename, bytes.NewReader(req.Contents))
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	doc.SetStoredPath(storedPath)

	if err := s.docRepo.Save(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	state.doc = doc

	if err := s.eventBus.Publish(ctx, events.NewGenerationStarted(doc.ID(), req.UserID, time.Now())); err != nil {
		s.logger.Warn("Failed to publish event", zap.Error(err))
	}

	return state, nil
}

// removeUpload compensates a failed generation: the stored file goes away and
// the document record is kept with a failed status for later inspection.
func (s *GenerationSaga) removeUpload(ctx context.Context, data interface{}) error {
	state, ok := data.(*generationState)
	if !ok || state.doc == nil {
		return nil
	}

	if state.doc.StoredPath() != "" {
		if err := s.fileStore.Delete(ctx, state.doc.StoredPath()); err != nil {
			s.logger.Warn("Failed to remove stored upload during compensation",
				zap.String("path", state.doc.StoredPath()),
				zap.Error(err),
			)
		}
	}

	reason := state.failure
	if reason == "" {
		reason = "generation aborted"
	}
	if err := state.doc.MarkFailed(reason); err != nil {
		return nil
	}
	if err := s.docRepo.Save(ctx, state.doc); err != nil {
		s.logger.Warn("Failed to save failed document during compensation", zap.Error(err))
	}

	if err := s.eventBus.PublishBatch(ctx, state.doc.GetUncommittedEvents()); err != nil {
		s.logger.Warn("Failed to publish events during compensation", zap.Error(err))
	}
	state.doc.MarkEventsAsCommitted()

	return nil
}

// extractText pulls the plain text out of the stored upload
func (s *GenerationSaga) extractText(ctx context.Context, data interface{}) (interface{}, error) {
	state := data.(*generationState)

	text, err := s.extractor.Extract(ctx, bytes.NewReader(state.request.Contents), state.doc.Extension())
	if err != nil {
		state.failure = err.Error()
		return nil, err
	}
	state.text = text

	return state, nil
}

// generateTree runs the summarize-and-outline pipeline
func (s *GenerationSaga) generateTree(ctx context.Context, data interface{}) (interface{}, error) {
	state := data.(*generationState)

	root, err := s.generation.Generate(ctx, state.text)
	if err != nil {
		state.failure = err.Error()
		return nil, err
	}
	state.root = root

	return state, nil
}

// persistMap saves the generated map and the processed document
func (s *GenerationSaga) persistMap(ctx context.Context, data interface{}) (interface{}, error) {
	state := data.(*generationState)
	req := state.request

	m, err := aggregates.NewMindMapWithConfig(
		req.UserID,
		state.doc.ID(),
		req.Title,
		state.root,
		versioning.SourceChecksum(state.text),
		s.cfg,
	)
	if err != nil {
		state.failure = err.Error()
		return nil, err
	}

	if err := state.doc.MarkProcessed(utf8.RuneCountInString(state.text)); err != nil {
		state.failure = err.Error()
		return nil, err
	}

	if err := s.mapRepo.Save(ctx, m); err != nil {
		state.failure = err.Error()
		return nil, fmt.Errorf("failed to save mind map: %w", err)
	}
	if err := s.docRepo.Save(ctx, state.doc); err != nil {
		// The map is already persisted, remove it so the failure leaves nothing behind
		if delErr := s.mapRepo.Delete(ctx, req.UserID, m.ID()); delErr != nil {
			s.logger.Warn("Failed to remove map after document save failure", zap.Error(delErr))
		}
		state.failure = err.Error()
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	state.mindMap = m

	pending := append(state.doc.GetUncommittedEvents(), m.GetUncommittedEvents()...)
	if err := s.eventBus.PublishBatch(ctx, pending); err != nil {
		s.logger.Warn("Failed to publish events", zap.Error(err))
	}
	state.doc.MarkEventsAsCommitted()
	m.MarkEventsAsCommitted()

	return state, nil
}
