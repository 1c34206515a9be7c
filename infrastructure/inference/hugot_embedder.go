package inference

import (
	"context"
	"fmt"
	"math"

	"github.com/knights-analytics/hugot"
	"go.uber.org/zap"
)

// HugotEmbedder produces sentence embeddings through an ONNX sentence
// transformer. Not used by the generation pipeline itself, it backs
// related-map scoring.
type HugotEmbedder struct {
	embed  func(texts []string) ([][]float32, error)
	close  func() error
	logger *zap.Logger
}

// NewHugotEmbedder downloads the model if needed, initializes a hugot
// session, and builds the feature extraction pipeline
func NewHugotEmbedder(modelName, modelsDir string, logger *zap.Logger) (*HugotEmbedder, error) {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}

	modelPath, err := prepareModel(modelName, modelsDir)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	embeddingPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create embedding pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create embedding pipeline: %w", err)
	}

	logger.Info("Embedding model loaded",
		zap.String("model", modelName),
		zap.String("modelPath", modelPath),
	)

	return &HugotEmbedder{
		embed: func(texts []string) ([][]float32, error) {
			result, err := embeddingPipeline.RunPipeline(texts)
			if err != nil {
				return nil, err
			}
			return result.Embeddings, nil
		},
		close:  session.Destroy,
		logger: logger,
	}, nil
}

// Embed returns one vector per input text
func (e *HugotEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := e.embed(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vectors))
	}

	return vectors, nil
}

// Close tears down the hugot session. Call once when the process shuts down.
func (e *HugotEmbedder) Close() error {
	return e.close()
}

// CosineSimilarity compares two embedding vectors, 1.0 means identical
// direction
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
