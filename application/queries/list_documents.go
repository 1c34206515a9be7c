package queries

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"medmap-backend/application/ports"
)

// ListDocumentsQuery represents a query to list a user's uploaded documents
type ListDocumentsQuery struct {
	UserID string
	Status string // "", "received", "processed", "failed"
	Limit  int
	Offset int
}

// Validate validates the query
func (q ListDocumentsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	switch q.Status {
	case "", "received", "processed", "failed":
	default:
		return errors.New("invalid status filter")
	}
	return nil
}

// ListDocumentsResult represents the result of listing documents
type ListDocumentsResult struct {
	Documents  []GetDocumentResult `json:"documents"`
	TotalCount int                 `json:"totalCount"`
	Limit      int                 `json:"limit"`
	Offset     int                 `json:"offset"`
}

// ListDocumentsHandler handles the ListDocumentsQuery
type ListDocumentsHandler struct {
	docRepo ports.DocumentRepository
}

// NewListDocumentsHandler creates a new handler instance
func NewListDocumentsHandler(docRepo ports.DocumentRepository) *ListDocumentsHandler {
	return &ListDocumentsHandler{docRepo: docRepo}
}

// Handle executes the list documents query, newest uploads first
func (h *ListDocumentsHandler) Handle(ctx context.Context, query ListDocumentsQuery) (*ListDocumentsResult, error) {
	if err := query.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	docs, err := h.docRepo.GetByUserID(ctx, query.UserID)
	if err != nil {
		return nil, err
	}

	if query.Status != "" {
		filtered := docs[:0]
		for _, doc := range docs {
			if string(doc.Status()) == query.Status {
				filtered = append(filtered, doc)
			}
		}
		docs = filtered
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].CreatedAt().After(docs[j].CreatedAt())
	})

	limit := query.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	result := &ListDocumentsResult{
		Documents:  make([]GetDocumentResult, 0, limit),
		TotalCount: len(docs),
		Limit:      limit,
		Offset:     query.Offset,
	}

	for i := query.Offset; i < len(docs) && len(result.Documents) < limit; i++ {
		result.Documents = append(result.Documents, *newGetDocumentResult(docs[i]))
	}

	return result, nil
}
