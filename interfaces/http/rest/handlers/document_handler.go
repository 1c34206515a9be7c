package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"medmap-backend/application/queries"
	querybus "medmap-backend/application/queries/bus"
	"medmap-backend/pkg/auth"
	"medmap-backend/pkg/common"
	pkgerrors "medmap-backend/pkg/errors"
)

// DocumentHandler handles document HTTP requests
type DocumentHandler struct {
	queryBus *querybus.QueryBus
	errors   *pkgerrors.ErrorHandler
	logger   *zap.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(queryBus *querybus.QueryBus, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *DocumentHandler {
	return &DocumentHandler{
		queryBus: queryBus,
		errors:   errorHandler,
		logger:   logger,
	}
}

// ListDocuments handles GET /api/v1/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "Unauthorized")
		return
	}

	params := common.ExtractPaginationParams(r)

	result, err := h.queryBus.Ask(r.Context(), queries.ListDocumentsQuery{
		UserID: userCtx.UserID,
		Status: r.URL.Query().Get("status"),
		Limit:  params.PageSize,
		Offset: params.CalculateOffset(),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	listResult, ok := result.(*queries.ListDocumentsResult)
	if !ok {
		common.RespondJSON(w, http.StatusOK, result)
		return
	}

	common.RespondWithMeta(w, http.StatusOK, listResult.Documents, &common.MetaInfo{
		RequestID:  common.ExtractRequestID(r),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Pagination: common.BuildPaginationMeta(params.Page, params.PageSize, listResult.TotalCount),
	})
}

// GetDocument handles GET /api/v1/documents/{documentID}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	if documentID == "" {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Document ID is required")
		return
	}
	if _, err := uuid.Parse(documentID); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid document ID format")
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "Unauthorized")
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetDocumentQuery{
		DocumentID: documentID,
		UserID:     userCtx.UserID,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}
