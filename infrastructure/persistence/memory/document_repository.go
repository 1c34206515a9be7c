package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

// DocumentRepository is an in-memory DocumentRepository port implementation
// for local development and tests. Entities are stored by reference and saves
// apply immediately; there is no transactional rollback here.
type DocumentRepository struct {
	mu   sync.RWMutex
	docs map[string]*entities.Document
}

// NewDocumentRepository creates an empty in-memory document repository
func NewDocumentRepository() *DocumentRepository {
	return &DocumentRepository{
		docs: make(map[string]*entities.Document),
	}
}

// Save stores the document, replacing any existing record with the same ID
func (r *DocumentRepository) Save(ctx context.Context, doc *entities.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.docs[doc.ID().String()] = doc
	return nil
}

// SaveWithUoW saves immediately; the unit of work argument is accepted for
// interface parity with the DynamoDB repository.
func (r *DocumentRepository) SaveWithUoW(ctx context.Context, doc *entities.Document, _ interface{}) error {
	return r.Save(ctx, doc)
}

// GetByID retrieves a document by its ID
func (r *DocumentRepository) GetByID(ctx context.Context, id valueobjects.DocumentID) (*entities.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id.String()]
	if !ok {
		return nil, pkgerrors.ErrDocumentNotFound.Clone().
			WithDetail("document_id", id.String())
	}
	return doc, nil
}

// GetByUserID retrieves all documents for a user, newest first
func (r *DocumentRepository) GetByUserID(ctx context.Context, userID string) ([]*entities.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var docs []*entities.Document
	for _, doc := range r.docs {
		if doc.UserID() == userID {
			docs = append(docs, doc)
		}
	}

	sort.SliceStable(docs, func(i, j int) bool {
		return docs[j].CreatedAt().Before(docs[i].CreatedAt())
	})

	return docs, nil
}

// ListOlderThan retrieves documents uploaded before the cutoff
func (r *DocumentRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var docs []*entities.Document
	for _, doc := range r.docs {
		if doc.CreatedAt().Before(cutoff) {
			docs = append(docs, doc)
			if len(docs) >= limit {
				break
			}
		}
	}

	return docs, nil
}

// Delete removes a document owned by the given user
func (r *DocumentRepository) Delete(ctx context.Context, userID string, id valueobjects.DocumentID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id.String()]
	if !ok || doc.UserID() != userID {
		return pkgerrors.ErrDocumentNotFound.Clone().
			WithDetail("document_id", id.String())
	}

	delete(r.docs, id.String())
	return nil
}
