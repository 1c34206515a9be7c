package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medmap-backend/application/commands"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/domain/events"
	"medmap-backend/infrastructure/intake"
	"medmap-backend/infrastructure/messaging"
	"medmap-backend/infrastructure/persistence/memory"
	pkgerrors "medmap-backend/pkg/errors"
)

type deleteFixture struct {
	handler    *DeleteMindMapHandler
	mapRepo    *memory.MindMapRepository
	docRepo    *memory.DocumentRepository
	eventStore *memory.EventStore
	cache      *memory.Cache
	store      *intake.LocalFileStore
}

func newDeleteFixture(t *testing.T) *deleteFixture {
	t.Helper()

	store, err := intake.NewLocalFileStore(t.TempDir(), 16*1024*1024, zap.NewNop())
	require.NoError(t, err)

	f := &deleteFixture{
		mapRepo:    memory.NewMindMapRepository(),
		docRepo:    memory.NewDocumentRepository(),
		eventStore: memory.NewEventStore(),
		cache:      memory.NewCache(nil),
		store:      store,
	}
	f.handler = NewDeleteMindMapHandler(f.mapRepo, f.docRepo, f.store, f.eventStore,
		messaging.NewLocalEventBus(zap.NewNop()), f.cache, nil, zap.NewNop())

	return f
}

// seedMapWithUpload stores an upload, its document record and a generated map,
// returning the map and the stored file path
func seedMapWithUpload(t *testing.T, ctx context.Context, store *intake.LocalFileStore,
	docRepo *memory.DocumentRepository, mapRepo *memory.MindMapRepository,
	userID, title string,
) (*aggregates.MindMap, string) {
	t.Helper()

	path, err := store.Save(ctx, userID, "notes.txt", strings.NewReader("stored upload content"))
	require.NoError(t, err)

	now := time.Now()
	doc, err := entities.ReconstructDocument(valueobjects.NewDocumentID(), userID,
		"notes.txt", "txt", path, int64(len("stored upload content")), 120, now, now,
		entities.StatusProcessed)
	require.NoError(t, err)
	require.NoError(t, docRepo.Save(ctx, doc))

	root := aggregates.NewBranchNode(aggregates.RootNodeID, aggregates.RootNodeText)
	root.AddChild(aggregates.NewLeafNode("node-0", "Topic"))
	m, err := aggregates.ReconstructMindMap(valueobjects.NewMapID(), userID,
		doc.ID(), title, root, "checksum", 1, now, now)
	require.NoError(t, err)
	require.NoError(t, mapRepo.Save(ctx, m))

	return m, path
}

func TestDeleteMindMapHandler_Handle(t *testing.T) {
	f := newDeleteFixture(t)
	ctx := context.Background()

	m, path := seedMapWithUpload(t, ctx, f.store, f.docRepo, f.mapRepo, "user123", "Cardiology Notes")
	docID := m.DocumentID()

	require.NoError(t, f.eventStore.SaveEvents(ctx, []events.DomainEvent{
		events.NewMindMapGenerated(m.ID(), docID, "user123", m.NodeCount(), time.Now()),
	}))
	require.NoError(t, f.cache.Set(ctx, "map:"+m.ID().String(), "read model", 300))

	err := f.handler.Handle(ctx, commands.DeleteMindMapCommand{
		UserID: "user123",
		MapID:  m.ID().String(),
	})

	require.NoError(t, err)

	_, err = f.mapRepo.GetByID(ctx, m.ID())
	assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)

	_, err = f.docRepo.GetByID(ctx, docID)
	assert.ErrorIs(t, err, pkgerrors.ErrDocumentNotFound)

	_, err = f.store.Open(ctx, path)
	assert.ErrorIs(t, err, pkgerrors.ErrDocumentNotFound)

	_, found := f.cache.Get(ctx, "map:"+m.ID().String())
	assert.False(t, found)

	stored, err := f.eventStore.GetEvents(ctx, m.ID().String())
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestDeleteMindMapHandler_Handle_MapWithoutDocument(t *testing.T) {
	f := newDeleteFixture(t)
	ctx := context.Background()

	root := aggregates.NewBranchNode(aggregates.RootNodeID, aggregates.RootNodeText)
	root.AddChild(aggregates.NewLeafNode("node-0", "Topic"))
	m, err := aggregates.ReconstructMindMap(valueobjects.NewMapID(), "user123",
		valueobjects.DocumentID{}, "Orphan Map", root, "checksum", 1, time.Now(), time.Now())
	require.NoError(t, err)
	require.NoError(t, f.mapRepo.Save(ctx, m))

	err = f.handler.Handle(ctx, commands.DeleteMindMapCommand{
		UserID: "user123",
		MapID:  m.ID().String(),
	})

	require.NoError(t, err)
	_, err = f.mapRepo.GetByID(ctx, m.ID())
	assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)
}

func TestDeleteMindMapHandler_Handle_ForeignMap(t *testing.T) {
	f := newDeleteFixture(t)
	ctx := context.Background()

	m, _ := seedMapWithUpload(t, ctx, f.store, f.docRepo, f.mapRepo, "other-user", "Their Map")

	err := f.handler.Handle(ctx, commands.DeleteMindMapCommand{
		UserID: "user123",
		MapID:  m.ID().String(),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrUserNotAuthorized)

	_, err = f.mapRepo.GetByID(ctx, m.ID())
	assert.NoError(t, err, "foreign map must survive the attempt")
}

func TestDeleteMindMapHandler_Handle_MissingMap(t *testing.T) {
	f := newDeleteFixture(t)

	err := f.handler.Handle(context.Background(), commands.DeleteMindMapCommand{
		UserID: "user123",
		MapID:  valueobjects.NewMapID().String(),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrMindMapNotFound)
}

func TestDeleteMindMapHandler_Handle_InvalidCommand(t *testing.T) {
	f := newDeleteFixture(t)
	ctx := context.Background()

	err := f.handler.Handle(ctx, commands.DeleteMindMapCommand{MapID: valueobjects.NewMapID().String()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user ID is required")

	err = f.handler.Handle(ctx, commands.DeleteMindMapCommand{UserID: "user123", MapID: "not-a-uuid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid map ID")
}
