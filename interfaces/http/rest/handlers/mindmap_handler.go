package handlers

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"medmap-backend/application/commands"
	"medmap-backend/application/commands/bus"
	commands_handlers "medmap-backend/application/commands/handlers"
	"medmap-backend/application/queries"
	querybus "medmap-backend/application/queries/bus"
	"medmap-backend/application/services"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/infrastructure/intake"
	"medmap-backend/pkg/auth"
	"medmap-backend/pkg/common"
	pkgerrors "medmap-backend/pkg/errors"
	"medmap-backend/pkg/observability"
	"medmap-backend/pkg/utils"
)

// MindMapHandler handles mind-map HTTP requests
type MindMapHandler struct {
	commandBus *bus.CommandBus
	queryBus   *querybus.QueryBus
	generate   *commands.GenerateMindMapHandler
	rename     *commands_handlers.RenameMindMapHandler
	bulkDelete *commands_handlers.BulkDeleteMindMapsHandler
	related    *services.RelatedMapsService
	collector  *observability.Collector
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
}

// NewMindMapHandler creates a new mind-map handler
func NewMindMapHandler(
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	generate *commands.GenerateMindMapHandler,
	rename *commands_handlers.RenameMindMapHandler,
	bulkDelete *commands_handlers.BulkDeleteMindMapsHandler,
	related *services.RelatedMapsService,
	collector *observability.Collector,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *MindMapHandler {
	return &MindMapHandler{
		commandBus: commandBus,
		queryBus:   queryBus,
		generate:   generate,
		rename:     rename,
		bulkDelete: bulkDelete,
		related:    related,
		collector:  collector,
		errors:     errorHandler,
		logger:     logger,
	}
}

// RenameMindMapRequest represents the request body for renaming a map
type RenameMindMapRequest struct {
	Title string `json:"title" validate:"required,min=1,max=200"`
}

// BulkDeleteMindMapsRequest represents the request body for bulk deletion
type BulkDeleteMindMapsRequest struct {
	MapIDs []string `json:"map_ids" validate:"required,min=1,max=100,dive,uuid"`
}

// MindMapResponse represents a mind map with its tree in API responses
type MindMapResponse struct {
	ID         string              `json:"id"`
	Title      string              `json:"title"`
	DocumentID string              `json:"documentId"`
	NodeCount  int                 `json:"nodeCount"`
	Version    int                 `json:"version"`
	Tree       *aggregates.MapNode `json:"tree"`
	CreatedAt  string              `json:"createdAt"`
	UpdatedAt  string              `json:"updatedAt"`
}

func newMindMapResponse(m *aggregates.MindMap) MindMapResponse {
	return MindMapResponse{
		ID:         m.ID().String(),
		Title:      m.Title(),
		DocumentID: m.DocumentID().String(),
		NodeCount:  m.NodeCount(),
		Version:    m.Version(),
		Tree:       m.Root(),
		CreatedAt:  m.CreatedAt().Format(time.RFC3339),
		UpdatedAt:  m.UpdatedAt().Format(time.RFC3339),
	}
}

// CreateMindMap handles POST /api/v1/mindmaps
func (h *MindMapHandler) CreateMindMap(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "Unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, intake.MaxUploadBytes)

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		if isBodyTooLarge(err) {
			common.RespondError(w, http.StatusRequestEntityTooLarge,
				common.StandardErrorCodes.PayloadTooLarge, "Upload exceeds the 16MB limit")
			return
		}
		common.RespondError(w, http.StatusBadRequest,
			common.StandardErrorCodes.BadRequest, "Multipart field 'document' is required")
		return
	}
	defer file.Close()

	contents, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			common.RespondError(w, http.StatusRequestEntityTooLarge,
				common.StandardErrorCodes.PayloadTooLarge, "Upload exceeds the 16MB limit")
			return
		}
		h.errors.Handle(w, r, err)
		return
	}

	if h.collector != nil {
		h.collector.ObserveUpload(fileExtension(header.Filename))
	}

	m, err := h.generate.Handle(r.Context(), commands.GenerateMindMapCommand{
		UserID:   userCtx.UserID,
		Filename: header.Filename,
		Contents: contents,
		Title:    r.FormValue("title"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	h.logger.Info("Mind map created",
		zap.String("mapID", m.ID().String()),
		zap.String("userID", userCtx.UserID),
	)

	common.RespondJSON(w, http.StatusCreated, newMindMapResponse(m))
}

// GetMindMap handles GET /api/v1/mindmaps/{mapID}
func (h *MindMapHandler) GetMindMap(w http.ResponseWriter, r *http.Request) {
	mapID, ok := h.mapIDParam(w, r)
	if !ok {
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "Unauthorized")
		return
	}

	result, err := h.queryBus.Ask(r.Context(), queries.GetMindMapQuery{
		MapID:  mapID,
		UserID: userCtx.UserID,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// ListMindMaps handles GET /api/v1/mindmaps
func (h *MindMapHandler) ListMindMaps(w http.ResponseWriter, r *http.Request) {
	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "Unauthorized")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	result, err := h.queryBus.Ask(r.Context(), queries.ListMindMapsQuery{
		UserID: userCtx.UserID,
		Limit:  limit,
		Offset: offset,
		SortBy: r.URL.Query().Get("sort_by"),
		Order:  r.URL.Query().Get("order"),
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// RenameMindMap handles PUT /api/v1/mindmaps/{mapID}
func (h *MindMapHandler) RenameMindMap(w http.ResponseWriter, r *http.Request) {
	mapID, ok := h.mapIDParam(w, r)
	if !ok {
		return
	}

	var req RenameMindMapRequest
	if err := common.ParseJSONBody(r, &req, 1<<20); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			common.StandardErrorCodes.ValidationError, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "Unauthorized")
		return
	}

	m, err := h.rename.Handle(r.Context(), commands.RenameMindMapCommand{
		UserID: userCtx.UserID,
		MapID:  mapID,
		Title:  req.Title,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, newMindMapResponse(m))
}

// DeleteMindMap handles DELETE /api/v1/mindmaps/{mapID}
func (h *MindMapHandler) DeleteMindMap(w http.ResponseWriter, r *http.Request) {
	mapID, ok := h.mapIDParam(w, r)
	if !ok {
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "Unauthorized")
		return
	}

	cmd := commands.DeleteMindMapCommand{
		UserID: userCtx.UserID,
		MapID:  mapID,
	}
	if err := h.commandBus.Send(r.Context(), cmd); err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteMindMaps handles POST /api/v1/mindmaps/bulk-delete
func (h *MindMapHandler) BulkDeleteMindMaps(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteMindMapsRequest
	if err := common.ParseJSONBody(r, &req, 1<<20); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			common.StandardErrorCodes.BadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest,
			common.StandardErrorCodes.ValidationError, "Validation error: "+err.Error())
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "Unauthorized")
		return
	}

	result, err := h.bulkDelete.Handle(r.Context(), commands.BulkDeleteMindMapsCommand{
		UserID: userCtx.UserID,
		MapIDs: req.MapIDs,
	})
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// GetRelatedMaps handles GET /api/v1/mindmaps/{mapID}/related
func (h *MindMapHandler) GetRelatedMaps(w http.ResponseWriter, r *http.Request) {
	mapIDStr, ok := h.mapIDParam(w, r)
	if !ok {
		return
	}

	userCtx, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondError(w, http.StatusUnauthorized, common.StandardErrorCodes.Unauthorized, "Unauthorized")
		return
	}

	mapID, err := valueobjects.NewMapIDFromString(mapIDStr)
	if err != nil {
		common.RespondError(w, http.StatusBadRequest,
			common.StandardErrorCodes.BadRequest, "Invalid map ID format")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	related, err := h.related.FindRelated(r.Context(), userCtx.UserID, mapID, limit)
	if err != nil {
		h.errors.Handle(w, r, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"related": related,
	})
}

// mapIDParam extracts and validates the mapID path parameter
func (h *MindMapHandler) mapIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	mapID := chi.URLParam(r, "mapID")
	if mapID == "" {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Map ID is required")
		return "", false
	}
	if _, err := uuid.Parse(mapID); err != nil {
		common.RespondError(w, http.StatusBadRequest, common.StandardErrorCodes.BadRequest, "Invalid map ID format")
		return "", false
	}
	return mapID, true
}
