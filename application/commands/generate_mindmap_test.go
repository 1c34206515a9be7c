package commands

import (
	"context"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medmap-backend/application/services"
	"medmap-backend/domain/config"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/entities"
	"medmap-backend/infrastructure/intake"
	"medmap-backend/infrastructure/messaging"
	"medmap-backend/infrastructure/persistence/memory"
	pkgerrors "medmap-backend/pkg/errors"
	"medmap-backend/pkg/observability"
)

// identitySummarizer passes text through unchanged so generated trees are
// a pure function of the upload
type identitySummarizer struct{}

func (identitySummarizer) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	return text, nil
}

type generateFixture struct {
	handler *GenerateMindMapHandler
	mapRepo *memory.MindMapRepository
	docRepo *memory.DocumentRepository
	store   *intake.LocalFileStore
}

func newGenerateFixture(t *testing.T) *generateFixture {
	t.Helper()

	logger := zap.NewNop()
	cfg := config.DefaultDomainConfig()

	store, err := intake.NewLocalFileStore(t.TempDir(), cfg.MaxUploadBytes, logger)
	require.NoError(t, err)

	mapRepo := memory.NewMindMapRepository()
	docRepo := memory.NewDocumentRepository()
	generation := services.NewGenerationService(
		identitySummarizer{}, observability.NewTracer("test"), nil, logger, cfg)

	handler := NewGenerateMindMapHandler(
		mapRepo,
		docRepo,
		store,
		intake.NewExtractorRegistry(),
		generation,
		messaging.NewLocalEventBus(logger),
		nil,
		logger,
		cfg,
	)

	return &generateFixture{handler: handler, mapRepo: mapRepo, docRepo: docRepo, store: store}
}

const uploadContent = "The disease affects the heart muscle. " +
	"Therapy begins with rest and medication. " +
	"Patients recover within several weeks."

func TestGenerateMindMapCommand_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cmd     GenerateMindMapCommand
		wantErr string
	}{
		{
			name: "valid fresh upload",
			cmd: GenerateMindMapCommand{
				UserID:   "user123",
				Filename: "notes.txt",
				Contents: []byte(uploadContent),
			},
		},
		{
			name: "valid stored document",
			cmd: GenerateMindMapCommand{
				UserID:     "user123",
				DocumentID: uuid.New().String(),
			},
		},
		{
			name:    "missing user",
			cmd:     GenerateMindMapCommand{Filename: "notes.txt", Contents: []byte("x")},
			wantErr: "user ID is required",
		},
		{
			name:    "missing filename",
			cmd:     GenerateMindMapCommand{UserID: "user123", Contents: []byte("x")},
			wantErr: "filename is required",
		},
		{
			name:    "missing contents",
			cmd:     GenerateMindMapCommand{UserID: "user123", Filename: "notes.txt"},
			wantErr: "file contents are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cmd.Validate()

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateMindMapHandler_Handle_FreshUpload(t *testing.T) {
	f := newGenerateFixture(t)
	ctx := context.Background()

	m, err := f.handler.Handle(ctx, GenerateMindMapCommand{
		UserID:   "user123",
		Filename: "notes.txt",
		Contents: []byte(uploadContent),
		Title:    "Cardiology Notes",
	})

	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "user123", m.UserID())
	assert.Equal(t, "Cardiology Notes", m.Title())
	assert.Equal(t, 1, m.Version())
	assert.Empty(t, m.GetUncommittedEvents())

	require.NotNil(t, m.Root())
	assert.Equal(t, aggregates.RootNodeID, m.Root().ID)
	assert.Equal(t, m.Root().Count(), m.NodeCount())
	assert.GreaterOrEqual(t, m.NodeCount(), 2)
	assert.NoError(t, m.Validate())

	// The document record is processed and the raw upload is retrievable
	doc, err := f.docRepo.GetByID(ctx, m.DocumentID())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusProcessed, doc.Status())
	assert.Equal(t, utf8.RuneCountInString(uploadContent), doc.CharCount())
	require.NotEmpty(t, doc.StoredPath())

	reader, err := f.store.Open(ctx, doc.StoredPath())
	require.NoError(t, err)
	reader.Close()

	stored, err := f.mapRepo.GetByDocumentID(ctx, doc.ID())
	require.NoError(t, err)
	assert.Same(t, m, stored)
}

func TestGenerateMindMapHandler_Handle_DefaultTitle(t *testing.T) {
	f := newGenerateFixture(t)

	m, err := f.handler.Handle(context.Background(), GenerateMindMapCommand{
		UserID:   "user123",
		Filename: "notes.txt",
		Contents: []byte(uploadContent),
	})

	require.NoError(t, err)
	assert.Equal(t, aggregates.RootNodeText, m.Title())
}

func TestGenerateMindMapHandler_Handle_RejectsDisallowedExtension(t *testing.T) {
	f := newGenerateFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, GenerateMindMapCommand{
		UserID:   "user123",
		Filename: "malware.exe",
		Contents: []byte(uploadContent),
	})

	require.Error(t, err)
	var verrs *pkgerrors.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.NotEmpty(t, verrs.Errors)
	assert.Equal(t, "FILE_TYPE_NOT_ALLOWED", verrs.Errors[0].Code)

	// Nothing was stored for the rejected upload
	docs, err := f.docRepo.GetByUserID(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestGenerateMindMapHandler_Handle_ExtractFailureCompensates(t *testing.T) {
	f := newGenerateFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, GenerateMindMapCommand{
		UserID:   "user123",
		Filename: "paper.pdf",
		Contents: []byte("%PDF-1.4 pretend binary content"),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, intake.ErrPDFNotSupported)
	assert.Contains(t, err.Error(), "extract_text")

	// The document record survives as failed, the stored file does not
	docs, err := f.docRepo.GetByUserID(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, entities.StatusFailed, docs[0].Status())
	require.NotEmpty(t, docs[0].StoredPath())

	_, err = f.store.Open(ctx, docs[0].StoredPath())
	assert.ErrorIs(t, err, pkgerrors.ErrDocumentNotFound)

	// No half-built map was persisted
	maps, err := f.mapRepo.GetByUserID(ctx, "user123")
	require.NoError(t, err)
	assert.Empty(t, maps)
}

func TestGenerateMindMapHandler_Handle_RegeneratesFromStoredDocument(t *testing.T) {
	f := newGenerateFixture(t)
	ctx := context.Background()

	first, err := f.handler.Handle(ctx, GenerateMindMapCommand{
		UserID:   "user123",
		Filename: "notes.txt",
		Contents: []byte(uploadContent),
		Title:    "Cardiology Notes",
	})
	require.NoError(t, err)

	second, err := f.handler.Handle(ctx, GenerateMindMapCommand{
		UserID:     "user123",
		DocumentID: first.DocumentID().String(),
	})

	require.NoError(t, err)
	// Regeneration replaces the tree in place so clients keep the map ID
	assert.Same(t, first, second)
	assert.Equal(t, 2, second.Version())
	assert.Equal(t, "Cardiology Notes", second.Title())
	assert.NoError(t, second.Validate())

	doc, err := f.docRepo.GetByID(ctx, first.DocumentID())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusProcessed, doc.Status())
}

func TestGenerateMindMapHandler_Handle_StoredDocumentOwnership(t *testing.T) {
	f := newGenerateFixture(t)
	ctx := context.Background()

	first, err := f.handler.Handle(ctx, GenerateMindMapCommand{
		UserID:   "user123",
		Filename: "notes.txt",
		Contents: []byte(uploadContent),
	})
	require.NoError(t, err)

	_, err = f.handler.Handle(ctx, GenerateMindMapCommand{
		UserID:     "intruder",
		DocumentID: first.DocumentID().String(),
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrUserNotAuthorized)
}

func TestGenerateMindMapHandler_Handle_StoredDocumentErrors(t *testing.T) {
	f := newGenerateFixture(t)
	ctx := context.Background()

	_, err := f.handler.Handle(ctx, GenerateMindMapCommand{
		UserID:     "user123",
		DocumentID: "not-a-uuid",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid document ID")

	_, err = f.handler.Handle(ctx, GenerateMindMapCommand{
		UserID:     "user123",
		DocumentID: uuid.New().String(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrDocumentNotFound)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, aggregates.RootNodeText, deriveTitle(""))
	assert.Equal(t, aggregates.RootNodeText, deriveTitle("   "))
	assert.Equal(t, "Cardiology", deriveTitle("  Cardiology  "))
}
