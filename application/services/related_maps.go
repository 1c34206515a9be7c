package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"medmap-backend/application/ports"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

const (
	maxRelatedMaps      = 10
	similarityThreshold = 0.3
)

// RelatedMapsService scores a user's other maps against a given map so the
// frontend can suggest follow-up reading. Scoring uses sentence embeddings
// when an embedder is configured and falls back to word overlap otherwise.
type RelatedMapsService struct {
	mapRepo  ports.MindMapRepository
	embedder ports.Embedder
	logger   *zap.Logger
}

// NewRelatedMapsService creates a new related maps service. The embedder may
// be nil, in which case only word overlap scoring is used.
func NewRelatedMapsService(
	mapRepo ports.MindMapRepository,
	embedder ports.Embedder,
	logger *zap.Logger,
) *RelatedMapsService {
	return &RelatedMapsService{
		mapRepo:  mapRepo,
		embedder: embedder,
		logger:   logger,
	}
}

// RelatedMap is one scored suggestion
type RelatedMap struct {
	MapID      string  `json:"mapId"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
}

// FindRelated returns the user's maps most similar to the given one,
// highest score first
func (s *RelatedMapsService) FindRelated(ctx context.Context, userID string, mapID valueobjects.MapID, limit int) ([]RelatedMap, error) {
	if userID == "" || mapID.IsZero() {
		return nil, fmt.Errorf("invalid input: userID and mapID are required")
	}
	if limit <= 0 || limit > maxRelatedMaps {
		limit = maxRelatedMaps
	}

	source, err := s.mapRepo.GetByID(ctx, mapID)
	if err != nil {
		return nil, fmt.Errorf("failed to get mind map: %w", err)
	}
	if source.UserID() != userID {
		return nil, pkgerrors.ErrUserNotAuthorized
	}

	all, err := s.mapRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list mind maps: %w", err)
	}

	candidates := make([]*aggregates.MindMap, 0, len(all))
	for _, m := range all {
		if m.ID().Equals(mapID) {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		// No other maps to relate to
		return nil, nil
	}

	s.logger.Debug("Scoring related maps",
		zap.String("mapID", mapID.String()),
		zap.Int("candidates", len(candidates)),
	)

	scores := s.scoreCandidates(ctx, source, candidates)

	related := make([]RelatedMap, 0, len(scores))
	for i, score := range scores {
		if score > similarityThreshold {
			related = append(related, RelatedMap{
				MapID:      candidates[i].ID().String(),
				Title:      candidates[i].Title(),
				Similarity: score,
			})
		}
	}

	// Sort by similarity (highest first) and limit
	sort.Slice(related, func(i, j int) bool {
		return related[i].Similarity > related[j].Similarity
	})
	if len(related) > limit {
		related = related[:limit]
	}

	return related, nil
}

// scoreCandidates returns one similarity per candidate, in candidate order
func (s *RelatedMapsService) scoreCandidates(ctx context.Context, source *aggregates.MindMap, candidates []*aggregates.MindMap) []float64 {
	if s.embedder != nil {
		scores, err := s.scoreWithEmbeddings(ctx, source, candidates)
		if err == nil {
			return scores
		}
		s.logger.Warn("Embedding similarity failed, falling back to word overlap",
			zap.String("mapID", source.ID().String()),
			zap.Error(err),
		)
	}

	sourceWords := extractWords(collectText(source))
	scores := make([]float64, len(candidates))
	for i, candidate := range candidates {
		scores[i] = wordOverlap(sourceWords, extractWords(collectText(candidate)))
	}
	return scores
}

// scoreWithEmbeddings embeds all map texts in one batch and compares by cosine
func (s *RelatedMapsService) scoreWithEmbeddings(ctx context.Context, source *aggregates.MindMap, candidates []*aggregates.MindMap) ([]float64, error) {
	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, collectText(source))
	for _, candidate := range candidates {
		texts = append(texts, collectText(candidate))
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		scores[i] = cosineSimilarity(vectors[0], vectors[i+1])
	}
	return scores, nil
}

// collectText flattens a map into one scoring document: the title plus the
// text of every node in the tree
func collectText(m *aggregates.MindMap) string {
	parts := []string{m.Title()}
	if root := m.Root(); root != nil {
		root.Walk(func(n *aggregates.MapNode, depth int) bool {
			parts = append(parts, n.Text)
			return true
		})
	}
	return strings.Join(parts, " ")
}

// extractWords tokenizes text into lowercase words for fast lookup
func extractWords(text string) map[string]bool {
	words := make(map[string]bool)

	text = strings.ToLower(text)
	for _, token := range strings.Fields(text) {
		cleaned := strings.Trim(token, ".,!?;:\"'()[]{}#@$%^&*+=<>/\\|`~")
		if len(cleaned) > 0 {
			words[cleaned] = true
		}
	}

	return words
}

// wordOverlap scores two word sets as shared words over source words
func wordOverlap(source, target map[string]bool) float64 {
	if len(source) == 0 {
		return 0
	}

	matches := 0
	for word := range source {
		if target[word] {
			matches++
		}
	}

	similarity := float64(matches) / float64(len(source))
	if similarity > 1.0 {
		similarity = 1.0
	}
	return similarity
}

// cosineSimilarity compares two embedding vectors
func cosineSimilarity(a, b []float32) float64 {
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
