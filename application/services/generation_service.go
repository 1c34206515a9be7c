package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"medmap-backend/application/ports"
	"medmap-backend/domain/config"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/validators"
	pkgerrors "medmap-backend/pkg/errors"
	"medmap-backend/pkg/observability"
)

// GenerationService runs the document-to-mind-map pipeline:
// chunk, summarize, split into sentences, select topics, assemble tree
type GenerationService struct {
	summarizer    ports.Summarizer
	outline       *OutlineBuilder
	docValidator  *validators.DocumentValidator
	treeValidator *validators.TreeValidator
	tracer        *observability.Tracer
	collector     *observability.Collector
	logger        *zap.Logger
	cfg           *config.DomainConfig
}

// NewGenerationService creates a new generation service
func NewGenerationService(
	summarizer ports.Summarizer,
	tracer *observability.Tracer,
	collector *observability.Collector,
	logger *zap.Logger,
	cfg *config.DomainConfig,
) *GenerationService {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &GenerationService{
		summarizer:    summarizer,
		outline:       NewOutlineBuilder(cfg),
		docValidator:  validators.NewDocumentValidatorFromConfig(cfg),
		treeValidator: validators.NewTreeValidator(),
		tracer:        tracer,
		collector:     collector,
		logger:        logger,
		cfg:           cfg,
	}
}

// Generate runs the full pipeline on extracted document text and
// returns the assembled tree
func (s *GenerationService) Generate(ctx context.Context, text string) (*aggregates.MapNode, error) {
	if err := s.docValidator.ValidateContent(text); err != nil {
		return nil, err
	}

	start := time.Now()

	var fullSummary string
	err := s.tracer.TraceStage(ctx, "summarize", func(ctx context.Context) error {
		var stageErr error
		fullSummary, stageErr = s.Summarize(ctx, text)
		return stageErr
	})
	if err != nil {
		s.observeFailure("summarize")
		return nil, err
	}

	var root *aggregates.MapNode
	_ = s.tracer.TraceStage(ctx, "outline", func(ctx context.Context) error {
		root = s.outline.Build(fullSummary)
		return nil
	})

	if err := s.treeValidator.ValidateTree(root); err != nil {
		s.observeFailure("validate")
		return nil, err
	}

	duration := time.Since(start)
	if s.collector != nil {
		s.collector.ObserveGeneration(duration, root.Count())
	}

	s.logger.Info("Mind map generated",
		zap.Int("nodeCount", root.Count()),
		zap.Int("sourceChars", len(text)),
		zap.Duration("duration", duration),
	)

	return root, nil
}

// Summarize condenses the document chunk by chunk and joins the chunk
// summaries with single spaces. Whitespace-only chunks are skipped.
func (s *GenerationService) Summarize(ctx context.Context, text string) (string, error) {
	chunks := ChunkRunes(text, s.cfg.ChunkSize)
	summaries := make([]string, 0, len(chunks))

	for i, chunk := range chunks {
		if IsBlank(chunk) {
			continue
		}

		summary, err := s.summarizer.Summarize(ctx, chunk, s.cfg.SummaryMaxLength, s.cfg.SummaryMinLength)
		if err != nil {
			s.logger.Warn("Chunk summarization failed",
				zap.Int("chunk", i),
				zap.Int("totalChunks", len(chunks)),
				zap.Error(err),
			)
			return "", pkgerrors.NewInferenceError("summarize", err)
		}
		summaries = append(summaries, summary)
	}

	return strings.Join(summaries, " "), nil
}

func (s *GenerationService) observeFailure(stage string) {
	if s.collector != nil {
		s.collector.ObserveGenerationFailure(stage)
	}
}
