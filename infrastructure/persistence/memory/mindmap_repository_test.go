package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medmap-backend/application/ports"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

func storedMap(t *testing.T, userID, title string, createdAt time.Time) *aggregates.MindMap {
	t.Helper()

	root := aggregates.NewBranchNode(aggregates.RootNodeID, aggregates.RootNodeText)
	root.AddChild(aggregates.NewLeafNode("node-0", "Topic"))

	m, err := aggregates.ReconstructMindMap(valueobjects.NewMapID(), userID,
		valueobjects.NewDocumentID(), title, root, "checksum", 1, createdAt, createdAt)
	require.NoError(t, err)
	return m
}

func TestMindMapRepository_SaveAndGetByID(t *testing.T) {
	repo := NewMindMapRepository()
	ctx := context.Background()

	m := storedMap(t, "user123", "Cardiology Notes", time.Now())
	require.NoError(t, repo.Save(ctx, m))

	got, err := repo.GetByID(ctx, m.ID())

	require.NoError(t, err)
	assert.Same(t, m, got)
}

func TestMindMapRepository_GetByID_Missing(t *testing.T) {
	repo := NewMindMapRepository()

	_, err := repo.GetByID(context.Background(), valueobjects.NewMapID())

	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)
}

func TestMindMapRepository_GetByUserID_NewestFirst(t *testing.T) {
	repo := NewMindMapRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	oldest := storedMap(t, "user123", "Oldest", base)
	middle := storedMap(t, "user123", "Middle", base.Add(time.Hour))
	newest := storedMap(t, "user123", "Newest", base.Add(2*time.Hour))
	foreign := storedMap(t, "other-user", "Foreign", base.Add(3*time.Hour))

	for _, m := range []*aggregates.MindMap{oldest, newest, middle, foreign} {
		require.NoError(t, repo.Save(ctx, m))
	}

	maps, err := repo.GetByUserID(ctx, "user123")

	require.NoError(t, err)
	require.Len(t, maps, 3)
	assert.Equal(t, "Newest", maps[0].Title())
	assert.Equal(t, "Middle", maps[1].Title())
	assert.Equal(t, "Oldest", maps[2].Title())
}

func TestMindMapRepository_GetByDocumentID(t *testing.T) {
	repo := NewMindMapRepository()
	ctx := context.Background()

	m := storedMap(t, "user123", "Cardiology Notes", time.Now())
	require.NoError(t, repo.Save(ctx, m))

	got, err := repo.GetByDocumentID(ctx, m.DocumentID())
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = repo.GetByDocumentID(ctx, valueobjects.NewDocumentID())
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)
}

func TestMindMapRepository_Search(t *testing.T) {
	repo := NewMindMapRepository()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	titles := []string{"Anatomy Basics", "Cardiology Notes", "Cardiology Advanced", "Drug Interactions"}
	for i, title := range titles {
		require.NoError(t, repo.Save(ctx, storedMap(t, "user123", title, base.Add(time.Duration(i)*time.Hour))))
	}
	require.NoError(t, repo.Save(ctx, storedMap(t, "other-user", "Cardiology Foreign", base)))

	t.Run("requires a user ID", func(t *testing.T) {
		_, err := repo.Search(ctx, ports.SearchCriteria{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "user ID")
	})

	t.Run("title contains filter is case sensitive", func(t *testing.T) {
		maps, err := repo.Search(ctx, ports.SearchCriteria{UserID: "user123", Query: "Cardiology"})
		require.NoError(t, err)
		assert.Len(t, maps, 2)

		maps, err = repo.Search(ctx, ports.SearchCriteria{UserID: "user123", Query: "cardiology"})
		require.NoError(t, err)
		assert.Empty(t, maps)
	})

	t.Run("results are scoped to the user", func(t *testing.T) {
		maps, err := repo.Search(ctx, ports.SearchCriteria{UserID: "user123", Query: "Cardiology"})
		require.NoError(t, err)
		for _, m := range maps {
			assert.Equal(t, "user123", m.UserID())
		}
	})

	t.Run("order by title ascending", func(t *testing.T) {
		maps, err := repo.Search(ctx, ports.SearchCriteria{UserID: "user123", OrderBy: "title"})
		require.NoError(t, err)
		require.Len(t, maps, 4)
		assert.Equal(t, "Anatomy Basics", maps[0].Title())
		assert.Equal(t, "Cardiology Advanced", maps[1].Title())
		assert.Equal(t, "Cardiology Notes", maps[2].Title())
		assert.Equal(t, "Drug Interactions", maps[3].Title())
	})

	t.Run("default order is by creation descending when requested", func(t *testing.T) {
		maps, err := repo.Search(ctx, ports.SearchCriteria{UserID: "user123", OrderDesc: true})
		require.NoError(t, err)
		require.Len(t, maps, 4)
		assert.Equal(t, "Drug Interactions", maps[0].Title())
		assert.Equal(t, "Anatomy Basics", maps[3].Title())
	})

	t.Run("offset and limit window", func(t *testing.T) {
		maps, err := repo.Search(ctx, ports.SearchCriteria{
			UserID: "user123", OrderBy: "title", Offset: 1, Limit: 2,
		})
		require.NoError(t, err)
		require.Len(t, maps, 2)
		assert.Equal(t, "Cardiology Advanced", maps[0].Title())
		assert.Equal(t, "Cardiology Notes", maps[1].Title())
	})

	t.Run("offset past the result set", func(t *testing.T) {
		maps, err := repo.Search(ctx, ports.SearchCriteria{UserID: "user123", Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, maps)
	})
}

func TestMindMapRepository_CountByUserID(t *testing.T) {
	repo := NewMindMapRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, storedMap(t, "user123", "One", time.Now())))
	require.NoError(t, repo.Save(ctx, storedMap(t, "user123", "Two", time.Now())))
	require.NoError(t, repo.Save(ctx, storedMap(t, "other-user", "Foreign", time.Now())))

	count, err := repo.CountByUserID(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountByUserID(ctx, "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMindMapRepository_Delete(t *testing.T) {
	repo := NewMindMapRepository()
	ctx := context.Background()

	m := storedMap(t, "user123", "Cardiology Notes", time.Now())
	require.NoError(t, repo.Save(ctx, m))

	t.Run("foreign user cannot delete", func(t *testing.T) {
		err := repo.Delete(ctx, "other-user", m.ID())

		require.Error(t, err)
		assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)

		_, err = repo.GetByID(ctx, m.ID())
		assert.NoError(t, err, "map must survive a foreign delete attempt")
	})

	t.Run("owner deletes", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "user123", m.ID()))

		_, err := repo.GetByID(ctx, m.ID())
		assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)
	})

	t.Run("missing map", func(t *testing.T) {
		err := repo.Delete(ctx, "user123", valueobjects.NewMapID())
		assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)
	})
}

func TestMindMapRepository_DeleteBatch(t *testing.T) {
	repo := NewMindMapRepository()
	ctx := context.Background()

	own := storedMap(t, "user123", "Own", time.Now())
	foreign := storedMap(t, "other-user", "Foreign", time.Now())
	require.NoError(t, repo.Save(ctx, own))
	require.NoError(t, repo.Save(ctx, foreign))

	err := repo.DeleteBatch(ctx, "user123", []valueobjects.MapID{
		own.ID(),
		foreign.ID(),
		valueobjects.NewMapID(), // missing entries are skipped
	})

	require.NoError(t, err)

	_, err = repo.GetByID(ctx, own.ID())
	assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)

	_, err = repo.GetByID(ctx, foreign.ID())
	assert.NoError(t, err, "foreign map must survive the batch")
}

func TestMindMapRepository_UpdateTitle(t *testing.T) {
	repo := NewMindMapRepository()
	ctx := context.Background()

	m := storedMap(t, "user123", "Original", time.Now())
	require.NoError(t, repo.Save(ctx, m))

	t.Run("changes the title", func(t *testing.T) {
		require.NoError(t, repo.UpdateTitle(ctx, "user123", m.ID(), "Renamed"))

		got, err := repo.GetByID(ctx, m.ID())
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Title())
		assert.Equal(t, 2, got.Version())
	})

	t.Run("same title is a no-op", func(t *testing.T) {
		require.NoError(t, repo.UpdateTitle(ctx, "user123", m.ID(), "Renamed"))

		got, err := repo.GetByID(ctx, m.ID())
		require.NoError(t, err)
		assert.Equal(t, 2, got.Version())
	})

	t.Run("foreign user is rejected", func(t *testing.T) {
		err := repo.UpdateTitle(ctx, "other-user", m.ID(), "Hijacked")

		assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)
	})
}
