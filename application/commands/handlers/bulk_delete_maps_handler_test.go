package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medmap-backend/application/commands"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/infrastructure/intake"
	"medmap-backend/infrastructure/messaging"
	"medmap-backend/infrastructure/persistence/memory"
	pkgerrors "medmap-backend/pkg/errors"
)

type bulkDeleteFixture struct {
	handler *BulkDeleteMindMapsHandler
	mapRepo *memory.MindMapRepository
	docRepo *memory.DocumentRepository
	cache   *memory.Cache
	store   *intake.LocalFileStore
}

func newBulkDeleteFixture(t *testing.T) *bulkDeleteFixture {
	t.Helper()

	store, err := intake.NewLocalFileStore(t.TempDir(), 16*1024*1024, zap.NewNop())
	require.NoError(t, err)

	f := &bulkDeleteFixture{
		mapRepo: memory.NewMindMapRepository(),
		docRepo: memory.NewDocumentRepository(),
		cache:   memory.NewCache(nil),
		store:   store,
	}
	eventStore := memory.NewEventStore()
	f.handler = NewBulkDeleteMindMapsHandler(
		memory.NewUnitOfWork(f.mapRepo, f.docRepo, eventStore),
		f.mapRepo, f.docRepo, f.store,
		messaging.NewLocalEventBus(zap.NewNop()), f.cache, nil, zap.NewNop())

	return f
}

func TestBulkDeleteMindMapsHandler_Handle(t *testing.T) {
	f := newBulkDeleteFixture(t)
	ctx := context.Background()

	own1, path1 := seedMapWithUpload(t, ctx, f.store, f.docRepo, f.mapRepo, "user123", "First")
	own2, path2 := seedMapWithUpload(t, ctx, f.store, f.docRepo, f.mapRepo, "user123", "Second")
	foreign, _ := seedMapWithUpload(t, ctx, f.store, f.docRepo, f.mapRepo, "other-user", "Theirs")
	missingID := valueobjects.NewMapID().String()

	require.NoError(t, f.cache.Set(ctx, "map:"+own1.ID().String(), "read model", 300))

	result, err := f.handler.Handle(ctx, commands.BulkDeleteMindMapsCommand{
		UserID: "user123",
		MapIDs: []string{
			own1.ID().String(),
			own2.ID().String(),
			foreign.ID().String(),
			missingID,
			"not-a-uuid",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 2, result.DeletedCount)
	assert.Equal(t, []string{"not-a-uuid", foreign.ID().String(), missingID}, result.FailedIDs)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "does not belong to user")
	assert.Contains(t, result.Errors[1], "not found")

	// Own maps, their documents and stored uploads are gone
	for _, m := range []struct {
		id   valueobjects.MapID
		path string
	}{{own1.ID(), path1}, {own2.ID(), path2}} {
		_, err = f.mapRepo.GetByID(ctx, m.id)
		assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)
		_, err = f.store.Open(ctx, m.path)
		assert.ErrorIs(t, err, pkgerrors.ErrDocumentNotFound)
	}
	_, err = f.docRepo.GetByID(ctx, own1.DocumentID())
	assert.ErrorIs(t, err, pkgerrors.ErrDocumentNotFound)

	// The foreign map survives
	_, err = f.mapRepo.GetByID(ctx, foreign.ID())
	assert.NoError(t, err)

	_, found := f.cache.Get(ctx, "map:"+own1.ID().String())
	assert.False(t, found)
}

func TestBulkDeleteMindMapsHandler_Handle_AllInvalidIDs(t *testing.T) {
	f := newBulkDeleteFixture(t)

	result, err := f.handler.Handle(context.Background(), commands.BulkDeleteMindMapsCommand{
		UserID: "user123",
		MapIDs: []string{"abc", "def"},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.DeletedCount)
	assert.Equal(t, []string{"abc", "def"}, result.FailedIDs)
	assert.Equal(t, []string{"All provided map IDs are invalid"}, result.Errors)
}

func TestBulkDeleteMindMapsHandler_Handle_NothingDeletable(t *testing.T) {
	f := newBulkDeleteFixture(t)
	ctx := context.Background()

	foreign, _ := seedMapWithUpload(t, ctx, f.store, f.docRepo, f.mapRepo, "other-user", "Theirs")

	result, err := f.handler.Handle(ctx, commands.BulkDeleteMindMapsCommand{
		UserID: "user123",
		MapIDs: []string{foreign.ID().String()},
	})

	require.NoError(t, err)
	assert.Equal(t, 0, result.DeletedCount)
	assert.Equal(t, []string{foreign.ID().String()}, result.FailedIDs)

	_, err = f.mapRepo.GetByID(ctx, foreign.ID())
	assert.NoError(t, err)
}

func TestBulkDeleteMindMapsHandler_Handle_InvalidCommand(t *testing.T) {
	f := newBulkDeleteFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, commands.BulkDeleteMindMapsCommand{UserID: "user123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one map ID is required")

	tooMany := make([]string, 101)
	for i := range tooMany {
		tooMany[i] = valueobjects.NewMapID().String()
	}
	_, err = f.handler.Handle(ctx, commands.BulkDeleteMindMapsCommand{UserID: "user123", MapIDs: tooMany})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too many map IDs")
}
