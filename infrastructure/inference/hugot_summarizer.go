package inference

import (
	"context"
	"fmt"
	"strings"

	"github.com/knights-analytics/hugot"
	"go.uber.org/zap"

	pkgerrors "medmap-backend/pkg/errors"
)

// HugotSummarizer runs abstractive summarization through an ONNX transformer
// model loaded into an in-process hugot session. The generation length bounds
// ride with the exported model configuration; the per-call bounds are
// advisory and logged for comparison.
type HugotSummarizer struct {
	run    func(ctx context.Context, inputs []string) ([]string, error)
	close  func() error
	logger *zap.Logger
}

// NewHugotSummarizer downloads the model if needed, initializes a hugot
// session, and builds the summarization pipeline
func NewHugotSummarizer(modelName, modelsDir string, logger *zap.Logger) (*HugotSummarizer, error) {
	if modelName == "" {
		modelName = DefaultSummarizationModel
	}

	modelPath, err := prepareModel(modelName, modelsDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TextGenerationConfig{
		ModelPath: modelPath,
		Name:      "summarizer-pipeline",
	}
	summaryPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create summarization pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create summarization pipeline: %w", err)
	}

	logger.Info("Summarization model loaded",
		zap.String("model", modelName),
		zap.String("modelPath", modelPath),
	)

	return &HugotSummarizer{
		run: func(ctx context.Context, inputs []string) ([]string, error) {
			output, err := summaryPipeline.RunPipeline(ctx, inputs)
			if err != nil {
				return nil, err
			}
			return output.Responses, nil
		},
		close:  session.Destroy,
		logger: logger,
	}, nil
}

// Summarize condenses one chunk of text
func (s *HugotSummarizer) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	s.logger.Debug("Summarizing chunk",
		zap.Int("chars", len(text)),
		zap.Int("maxLength", maxLength),
		zap.Int("minLength", minLength),
	)

	responses, err := s.run(ctx, []string{text})
	if err != nil {
		return "", pkgerrors.NewInferenceError("summarize", err)
	}
	if len(responses) == 0 {
		return "", pkgerrors.NewInferenceError("summarize", fmt.Errorf("model returned no output"))
	}

	return strings.TrimSpace(responses[0]), nil
}

// Close tears down the hugot session. Call once when the process shuts down.
func (s *HugotSummarizer) Close() error {
	return s.close()
}
