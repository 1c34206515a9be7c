package handlers

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"medmap-backend/application/commands"
	"medmap-backend/application/ports"
	"medmap-backend/application/services"
	domainconfig "medmap-backend/domain/config"
	"medmap-backend/domain/core/validators"
	"medmap-backend/infrastructure/intake"
	"medmap-backend/pkg/auth"
	"medmap-backend/pkg/common"
	pkgerrors "medmap-backend/pkg/errors"
	"medmap-backend/pkg/observability"
)

// uploadFieldName is the multipart field carrying the document
const uploadFieldName = "document"

// LegacyHandler serves the pre-v1 upload endpoint. Response bodies keep the
// original flat shape so existing frontends work unchanged.
type LegacyHandler struct {
	generate   *commands.GenerateMindMapHandler
	fileStore  ports.FileStore
	extractor  ports.TextExtractor
	generation *services.GenerationService
	validator  *validators.DocumentValidator
	collector  *observability.Collector
	logger     *zap.Logger
}

// NewLegacyHandler creates a new legacy upload handler
func NewLegacyHandler(
	generate *commands.GenerateMindMapHandler,
	fileStore ports.FileStore,
	extractor ports.TextExtractor,
	generation *services.GenerationService,
	domainCfg *domainconfig.DomainConfig,
	collector *observability.Collector,
	logger *zap.Logger,
) *LegacyHandler {
	return &LegacyHandler{
		generate:   generate,
		fileStore:  fileStore,
		extractor:  extractor,
		generation: generation,
		validator:  validators.NewDocumentValidatorFromConfig(domainCfg),
		collector:  collector,
		logger:     logger,
	}
}

// UploadAndGenerate handles POST /api/upload-and-generate
func (h *LegacyHandler) UploadAndGenerate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, intake.MaxUploadBytes)

	file, header, err := r.FormFile(uploadFieldName)
	if err != nil {
		if isBodyTooLarge(err) {
			h.respondFlatError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 16MB.")
			return
		}
		h.respondFlatError(w, http.StatusBadRequest, "No document part in the request")
		return
	}
	defer file.Close()

	if err := h.validator.ValidateUpload(header.Filename, header.Size); err != nil {
		h.respondFailure(w, r, err)
		return
	}

	contents, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			h.respondFlatError(w, http.StatusRequestEntityTooLarge, "File too large. Maximum size is 16MB.")
			return
		}
		h.logger.Error("Failed to read upload", zap.Error(err))
		h.respondFailure(w, r, err)
		return
	}

	if h.collector != nil {
		h.collector.ObserveUpload(fileExtension(header.Filename))
	}

	// Authenticated callers get their map persisted; anonymous callers get
	// the tree in the response only
	if userCtx, err := auth.GetUserFromContext(r.Context()); err == nil {
		h.generateForUser(w, r, userCtx.UserID, header.Filename, contents)
		return
	}
	h.generateAnonymous(w, r, header.Filename, contents)
}

// generateForUser runs the persisting pipeline for an authenticated caller
func (h *LegacyHandler) generateForUser(w http.ResponseWriter, r *http.Request, userID, filename string, contents []byte) {
	m, err := h.generate.Handle(r.Context(), commands.GenerateMindMapCommand{
		UserID:   userID,
		Filename: filename,
		Contents: contents,
	})
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	common.RespondRaw(w, http.StatusOK, map[string]interface{}{
		"message": "Mindmap generated successfully",
		"mindmap": m.Root(),
	})
}

// generateAnonymous runs store, extract and generate without persisting the
// result. The raw upload still lands on disk for parity with the original;
// the cleanup job prunes these later.
func (h *LegacyHandler) generateAnonymous(w http.ResponseWriter, r *http.Request, filename string, contents []byte) {
	ctx := r.Context()

	storedPath, err := h.fileStore.Save(ctx, "anonymous", filename, bytes.NewReader(contents))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	text, err := h.extractor.Extract(ctx, bytes.NewReader(contents), fileExtension(filename))
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	root, err := h.generation.Generate(ctx, text)
	if err != nil {
		h.respondFailure(w, r, err)
		return
	}

	h.logger.Info("Anonymous mind map generated",
		zap.String("filename", filename),
		zap.String("storedPath", storedPath),
		zap.Int("nodeCount", root.Count()),
	)

	common.RespondRaw(w, http.StatusOK, map[string]interface{}{
		"message": "Mindmap generated successfully",
		"mindmap": root,
	})
}

// respondFailure maps pipeline failures onto the flat legacy error body.
// Client errors surface their message as-is; server errors are wrapped the
// way the original wrapped its catch-all.
func (h *LegacyHandler) respondFailure(w http.ResponseWriter, r *http.Request, err error) {
	var verrs *pkgerrors.ValidationErrors
	if errors.As(err, &verrs) && verrs.HasErrors() {
		first := verrs.Errors[0]
		h.respondFlatError(w, first.StatusCode, first.Message)
		return
	}

	if de := pkgerrors.GetDomainError(err); de != nil {
		if de.StatusCode < http.StatusInternalServerError {
			h.respondFlatError(w, de.StatusCode, de.Message)
			return
		}
		h.logger.Error("Legacy upload processing failed",
			zap.String("requestID", common.ExtractRequestID(r)),
			zap.Error(err),
		)
		h.respondFlatError(w, de.StatusCode, "An error occurred during processing: "+de.Message)
		return
	}

	h.logger.Error("Legacy upload processing failed",
		zap.String("requestID", common.ExtractRequestID(r)),
		zap.Error(err),
	)
	h.respondFlatError(w, http.StatusInternalServerError, "An error occurred during processing: "+err.Error())
}

func (h *LegacyHandler) respondFlatError(w http.ResponseWriter, status int, message string) {
	common.RespondRaw(w, status, map[string]string{"error": message})
}

// isBodyTooLarge reports whether the error came from the request body limit
func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

// fileExtension returns the lowercased extension after the final dot, or ""
func fileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
