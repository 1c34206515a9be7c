package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/infrastructure/persistence/memory"
	pkgerrors "medmap-backend/pkg/errors"
)

type stubEmbedder struct {
	vectors [][]float32
	err     error
	texts   []string
}

func (s *stubEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	s.texts = texts
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors, nil
}

func relatedTestMap(t *testing.T, userID, title string, createdAt time.Time, nodeTexts ...string) *aggregates.MindMap {
	t.Helper()

	root := aggregates.NewBranchNode(aggregates.RootNodeID, aggregates.RootNodeText)
	for i, text := range nodeTexts {
		root.AddChild(aggregates.NewLeafNode(fmt.Sprintf("node-%d", i), text))
	}

	m, err := aggregates.ReconstructMindMap(valueobjects.NewMapID(), userID,
		valueobjects.NewDocumentID(), title, root, "checksum", 1, createdAt, createdAt)
	require.NoError(t, err)
	return m
}

func TestRelatedMapsService_FindRelated_WordOverlap(t *testing.T) {
	repo := memory.NewMindMapRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Every map also carries the root node text, so unrelated maps still
	// share three words with the source. The source vocabulary is large
	// enough that those alone stay under the similarity threshold.
	source := relatedTestMap(t, "user123", "Cardiac Care Plan", base,
		"heart failure stages", "beta blocker dosing", "exercise tolerance")
	high := relatedTestMap(t, "user123", "Cardiac Care", base.Add(time.Hour),
		"heart failure stages", "beta blocker dosing")
	medium := relatedTestMap(t, "user123", "Heart Failure Clinic", base.Add(2*time.Hour),
		"exercise tolerance")
	unrelated := relatedTestMap(t, "user123", "Renal Diet", base.Add(3*time.Hour),
		"sodium intake")

	for _, m := range []*aggregates.MindMap{source, high, medium, unrelated} {
		require.NoError(t, repo.Save(ctx, m))
	}

	svc := NewRelatedMapsService(repo, nil, zap.NewNop())

	related, err := svc.FindRelated(ctx, "user123", source.ID(), 10)

	require.NoError(t, err)
	require.Len(t, related, 2)

	assert.Equal(t, high.ID().String(), related[0].MapID)
	assert.Equal(t, "Cardiac Care", related[0].Title)
	assert.InDelta(t, 11.0/14.0, related[0].Similarity, 0.0001)

	assert.Equal(t, "Heart Failure Clinic", related[1].Title)
	assert.InDelta(t, 0.5, related[1].Similarity, 0.0001)
}

func TestRelatedMapsService_FindRelated_LimitTruncates(t *testing.T) {
	repo := memory.NewMindMapRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	source := relatedTestMap(t, "user123", "Cardiac Care Plan", base,
		"heart failure stages", "beta blocker dosing", "exercise tolerance")
	high := relatedTestMap(t, "user123", "Cardiac Care", base.Add(time.Hour),
		"heart failure stages", "beta blocker dosing")
	medium := relatedTestMap(t, "user123", "Heart Failure Clinic", base.Add(2*time.Hour),
		"exercise tolerance")

	for _, m := range []*aggregates.MindMap{source, high, medium} {
		require.NoError(t, repo.Save(ctx, m))
	}

	svc := NewRelatedMapsService(repo, nil, zap.NewNop())

	related, err := svc.FindRelated(ctx, "user123", source.ID(), 1)

	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "Cardiac Care", related[0].Title)
}

func TestRelatedMapsService_FindRelated_InvalidInput(t *testing.T) {
	svc := NewRelatedMapsService(memory.NewMindMapRepository(), nil, zap.NewNop())
	ctx := context.Background()

	_, err := svc.FindRelated(ctx, "", valueobjects.NewMapID(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")

	_, err = svc.FindRelated(ctx, "user123", valueobjects.MapID{}, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required")
}

func TestRelatedMapsService_FindRelated_MapNotFound(t *testing.T) {
	svc := NewRelatedMapsService(memory.NewMindMapRepository(), nil, zap.NewNop())

	_, err := svc.FindRelated(context.Background(), "user123", valueobjects.NewMapID(), 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)
}

func TestRelatedMapsService_FindRelated_ForeignMapRejected(t *testing.T) {
	repo := memory.NewMindMapRepository()
	ctx := context.Background()

	foreign := relatedTestMap(t, "other-user", "Cardiac Care", time.Now(), "heart failure")
	require.NoError(t, repo.Save(ctx, foreign))

	svc := NewRelatedMapsService(repo, nil, zap.NewNop())

	_, err := svc.FindRelated(ctx, "user123", foreign.ID(), 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrUserNotAuthorized)
}

func TestRelatedMapsService_FindRelated_NoOtherMaps(t *testing.T) {
	repo := memory.NewMindMapRepository()
	ctx := context.Background()

	source := relatedTestMap(t, "user123", "Cardiac Care", time.Now(), "heart failure")
	require.NoError(t, repo.Save(ctx, source))

	svc := NewRelatedMapsService(repo, nil, zap.NewNop())

	related, err := svc.FindRelated(ctx, "user123", source.ID(), 5)

	require.NoError(t, err)
	assert.Nil(t, related)
}

func TestRelatedMapsService_FindRelated_EmbedderScoring(t *testing.T) {
	repo := memory.NewMindMapRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	source := relatedTestMap(t, "user123", "Cardiac Care", base, "heart failure")
	// Candidates come back newest first, so creation times fix the
	// text-to-vector pairing below
	match := relatedTestMap(t, "user123", "Vector Match", base.Add(2*time.Hour), "heart failure")
	miss := relatedTestMap(t, "user123", "Vector Miss", base.Add(time.Hour), "renal diet")

	for _, m := range []*aggregates.MindMap{source, match, miss} {
		require.NoError(t, repo.Save(ctx, m))
	}

	embedder := &stubEmbedder{vectors: [][]float32{
		{1, 0}, // source
		{1, 0}, // match: cosine 1.0
		{0, 1}, // miss: cosine 0.0
	}}
	svc := NewRelatedMapsService(repo, embedder, zap.NewNop())

	related, err := svc.FindRelated(ctx, "user123", source.ID(), 10)

	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "Vector Match", related[0].Title)
	assert.InDelta(t, 1.0, related[0].Similarity, 0.0001)

	require.Len(t, embedder.texts, 3)
	assert.Contains(t, embedder.texts[0], "Cardiac Care")
	assert.Contains(t, embedder.texts[1], "Vector Match")
	assert.Contains(t, embedder.texts[2], "Vector Miss")
}

func TestRelatedMapsService_FindRelated_EmbedderFailureFallsBack(t *testing.T) {
	repo := memory.NewMindMapRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	source := relatedTestMap(t, "user123", "Cardiac Care Plan", base,
		"heart failure stages", "beta blocker dosing", "exercise tolerance")
	high := relatedTestMap(t, "user123", "Cardiac Care", base.Add(time.Hour),
		"heart failure stages", "beta blocker dosing")

	for _, m := range []*aggregates.MindMap{source, high} {
		require.NoError(t, repo.Save(ctx, m))
	}

	embedder := &stubEmbedder{err: errors.New("model offline")}
	svc := NewRelatedMapsService(repo, embedder, zap.NewNop())

	related, err := svc.FindRelated(ctx, "user123", source.ID(), 10)

	require.NoError(t, err)
	require.Len(t, related, 1)
	assert.Equal(t, "Cardiac Care", related[0].Title)
	assert.InDelta(t, 11.0/14.0, related[0].Similarity, 0.0001)
}
