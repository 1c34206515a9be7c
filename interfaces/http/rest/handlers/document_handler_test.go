package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"medmap-backend/application/queries"
	querybus "medmap-backend/application/queries/bus"
	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/infrastructure/persistence/memory"

	pkgerrors "medmap-backend/pkg/errors"
)

func newDocumentFixture(t *testing.T) (*DocumentHandler, *memory.DocumentRepository) {
	t.Helper()

	logger := zap.NewNop()
	docRepo := memory.NewDocumentRepository()

	getHandler := queries.NewGetDocumentHandler(docRepo)
	listHandler := queries.NewListDocumentsHandler(docRepo)
	queryBus := querybus.NewQueryBus()
	require.NoError(t, queryBus.Register(queries.GetDocumentQuery{}, &queryAdapter{
		fn: func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return getHandler.Handle(ctx, q.(queries.GetDocumentQuery))
		},
	}))
	require.NoError(t, queryBus.Register(queries.ListDocumentsQuery{}, &queryAdapter{
		fn: func(ctx context.Context, q querybus.Query) (interface{}, error) {
			return listHandler.Handle(ctx, q.(queries.ListDocumentsQuery))
		},
	}))

	return NewDocumentHandler(queryBus, pkgerrors.NewErrorHandler(logger, false), logger), docRepo
}

func restTestDoc(t *testing.T, userID, filename string, createdAt time.Time, status entities.DocumentStatus) *entities.Document {
	t.Helper()

	doc, err := entities.ReconstructDocument(valueobjects.NewDocumentID(), userID,
		filename, "txt", "", 1024, 250, createdAt, createdAt, status)
	require.NoError(t, err)
	return doc
}

func seedDocuments(t *testing.T, docRepo *memory.DocumentRepository) {
	t.Helper()

	ctx := context.Background()
	base := time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)
	for _, doc := range []*entities.Document{
		restTestDoc(t, "user123", "alpha.txt", base, entities.StatusProcessed),
		restTestDoc(t, "user123", "beta.txt", base.Add(time.Hour), entities.StatusReceived),
		restTestDoc(t, "user123", "gamma.txt", base.Add(2*time.Hour), entities.StatusFailed),
		restTestDoc(t, "other-user", "theirs.txt", base, entities.StatusProcessed),
	} {
		require.NoError(t, docRepo.Save(ctx, doc))
	}
}

func decodeDocuments(t *testing.T, envelope apiEnvelope) []queries.GetDocumentResult {
	t.Helper()

	var docs []queries.GetDocumentResult
	require.NoError(t, json.Unmarshal(envelope.Data, &docs))
	return docs
}

func TestDocumentHandler_ListDocuments(t *testing.T) {
	handler, docRepo := newDocumentFixture(t)
	seedDocuments(t, docRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	req.Header.Set("X-Request-ID", "req-abc123")
	rec := httptest.NewRecorder()

	handler.ListDocuments(rec, withUser(req, "user123"))

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Success)

	docs := decodeDocuments(t, envelope)
	require.Len(t, docs, 3)
	assert.Equal(t, "gamma.txt", docs[0].Filename)
	assert.Equal(t, "beta.txt", docs[1].Filename)
	assert.Equal(t, "alpha.txt", docs[2].Filename)
	assert.Equal(t, "failed", docs[0].Status)
	assert.Equal(t, int64(1024), docs[0].SizeBytes)

	require.NotNil(t, envelope.Meta)
	assert.Equal(t, "req-abc123", envelope.Meta.RequestID)
	require.NotNil(t, envelope.Meta.Pagination)
	assert.Equal(t, 1, envelope.Meta.Pagination.Page)
	assert.Equal(t, 20, envelope.Meta.Pagination.PageSize)
	assert.Equal(t, 3, envelope.Meta.Pagination.Total)
	assert.Equal(t, 1, envelope.Meta.Pagination.TotalPages)
	assert.False(t, envelope.Meta.Pagination.HasNext)
	assert.False(t, envelope.Meta.Pagination.HasPrev)
}

func TestDocumentHandler_ListDocuments_Paged(t *testing.T) {
	handler, docRepo := newDocumentFixture(t)
	seedDocuments(t, docRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents?page=2&page_size=2", nil)
	rec := httptest.NewRecorder()

	handler.ListDocuments(rec, withUser(req, "user123"))

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)

	docs := decodeDocuments(t, envelope)
	require.Len(t, docs, 1)
	assert.Equal(t, "alpha.txt", docs[0].Filename)

	require.NotNil(t, envelope.Meta)
	require.NotNil(t, envelope.Meta.Pagination)
	assert.Equal(t, 2, envelope.Meta.Pagination.Page)
	assert.Equal(t, 2, envelope.Meta.Pagination.PageSize)
	assert.Equal(t, 3, envelope.Meta.Pagination.Total)
	assert.Equal(t, 2, envelope.Meta.Pagination.TotalPages)
	assert.False(t, envelope.Meta.Pagination.HasNext)
	assert.True(t, envelope.Meta.Pagination.HasPrev)
}

func TestDocumentHandler_ListDocuments_StatusFilter(t *testing.T) {
	handler, docRepo := newDocumentFixture(t)
	seedDocuments(t, docRepo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents?status=failed", nil)
	rec := httptest.NewRecorder()

	handler.ListDocuments(rec, withUser(req, "user123"))

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)

	docs := decodeDocuments(t, envelope)
	require.Len(t, docs, 1)
	assert.Equal(t, "gamma.txt", docs[0].Filename)

	require.NotNil(t, envelope.Meta)
	require.NotNil(t, envelope.Meta.Pagination)
	assert.Equal(t, 1, envelope.Meta.Pagination.Total)
}

func TestDocumentHandler_ListDocuments_Unauthorized(t *testing.T) {
	handler, _ := newDocumentFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	rec := httptest.NewRecorder()

	handler.ListDocuments(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.False(t, envelope.Success)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "UNAUTHORIZED", envelope.Error.Code)
}

func TestDocumentHandler_GetDocument(t *testing.T) {
	handler, docRepo := newDocumentFixture(t)

	doc := restTestDoc(t, "user123", "notes.txt", time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC), entities.StatusProcessed)
	require.NoError(t, docRepo.Save(context.Background(), doc))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID().String(), nil)
	req = withUser(withChiParam(req, "documentID", doc.ID().String()), "user123")
	rec := httptest.NewRecorder()

	handler.GetDocument(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)

	var result queries.GetDocumentResult
	require.NoError(t, json.Unmarshal(envelope.Data, &result))
	assert.Equal(t, doc.ID().String(), result.ID)
	assert.Equal(t, "notes.txt", result.Filename)
	assert.Equal(t, "txt", result.Extension)
	assert.Equal(t, "processed", result.Status)
	assert.Equal(t, "2026-05-10T09:00:00Z", result.CreatedAt)
}

func TestDocumentHandler_GetDocument_BadID(t *testing.T) {
	tests := []struct {
		name        string
		documentID  string
		wantMessage string
	}{
		{"missing parameter", "", "Document ID is required"},
		{"malformed parameter", "not-a-uuid", "Invalid document ID format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := newDocumentFixture(t)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/x", nil)
			req = withUser(withChiParam(req, "documentID", tt.documentID), "user123")
			rec := httptest.NewRecorder()

			handler.GetDocument(rec, req)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			envelope := decodeEnvelope(t, rec)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, "BAD_REQUEST", envelope.Error.Code)
			assert.Equal(t, tt.wantMessage, envelope.Error.Message)
		})
	}
}

func TestDocumentHandler_GetDocument_Forbidden(t *testing.T) {
	handler, docRepo := newDocumentFixture(t)

	doc := restTestDoc(t, "other-user", "theirs.txt", time.Now(), entities.StatusProcessed)
	require.NoError(t, docRepo.Save(context.Background(), doc))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID().String(), nil)
	req = withUser(withChiParam(req, "documentID", doc.ID().String()), "user123")
	rec := httptest.NewRecorder()

	handler.GetDocument(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "FORBIDDEN", envelope.Error.Code)
}

func TestDocumentHandler_GetDocument_NotFound(t *testing.T) {
	handler, _ := newDocumentFixture(t)

	missing := valueobjects.NewDocumentID().String()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+missing, nil)
	req = withUser(withChiParam(req, "documentID", missing), "user123")
	rec := httptest.NewRecorder()

	handler.GetDocument(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "RESOURCE_NOT_FOUND", envelope.Error.Code)
}
