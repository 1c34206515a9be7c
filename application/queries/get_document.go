package queries

import (
	"context"
	"errors"
	"fmt"
	"time"

	"medmap-backend/application/ports"
	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

// GetDocumentQuery represents a query to get a single document's metadata
type GetDocumentQuery struct {
	UserID     string
	DocumentID string
}

// Validate validates the GetDocumentQuery
func (q GetDocumentQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.DocumentID == "" {
		return errors.New("document ID is required")
	}
	return nil
}

// GetDocumentResult represents the result of getting a document
type GetDocumentResult struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Extension string `json:"extension"`
	SizeBytes int64  `json:"sizeBytes"`
	CharCount int    `json:"charCount"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// GetDocumentHandler handles the GetDocumentQuery
type GetDocumentHandler struct {
	docRepo ports.DocumentRepository
}

// NewGetDocumentHandler creates a new handler instance
func NewGetDocumentHandler(docRepo ports.DocumentRepository) *GetDocumentHandler {
	return &GetDocumentHandler{docRepo: docRepo}
}

// Handle executes the get document query
func (h *GetDocumentHandler) Handle(ctx context.Context, query GetDocumentQuery) (*GetDocumentResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	docID, err := valueobjects.NewDocumentIDFromString(query.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("invalid document ID: %w", err)
	}

	doc, err := h.docRepo.GetByID(ctx, docID)
	if err != nil {
		return nil, err
	}

	if doc.UserID() != query.UserID {
		return nil, pkgerrors.ErrUserNotAuthorized
	}

	return newGetDocumentResult(doc), nil
}

// newGetDocumentResult converts the entity into the wire result
func newGetDocumentResult(doc *entities.Document) *GetDocumentResult {
	return &GetDocumentResult{
		ID:        doc.ID().String(),
		Filename:  doc.Filename(),
		Extension: doc.Extension(),
		SizeBytes: doc.SizeBytes(),
		CharCount: doc.CharCount(),
		Status:    string(doc.Status()),
		CreatedAt: doc.CreatedAt().Format(time.RFC3339),
		UpdatedAt: doc.UpdatedAt().Format(time.RFC3339),
	}
}
