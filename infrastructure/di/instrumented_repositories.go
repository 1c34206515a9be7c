package di

import (
	"context"
	"time"

	"medmap-backend/application/ports"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/core/valueobjects"
)

// repositoryMetrics records repository operations; *observability.Collector
// implements it
type repositoryMetrics interface {
	ObserveDBOperation(operation, entity string, duration time.Duration, err error)
}

// fullMindMapRepository is the complete method set both mind map repository
// implementations share, including the optional capabilities handlers probe
// for. Wrapping the full set keeps those probes working on the decorated
// repository.
type fullMindMapRepository interface {
	ports.MindMapRepository
	SaveWithUoW(ctx context.Context, m *aggregates.MindMap, uow interface{}) error
	UpdateTitle(ctx context.Context, userID string, id valueobjects.MapID, title string) error
}

// fullDocumentRepository is the complete method set both document repository
// implementations share
type fullDocumentRepository interface {
	ports.DocumentRepository
	SaveWithUoW(ctx context.Context, doc *entities.Document, uow interface{}) error
}

// instrumentedMindMapRepository times every operation and reports the outcome
type instrumentedMindMapRepository struct {
	inner   fullMindMapRepository
	metrics repositoryMetrics
}

func instrumentMindMapRepository(inner fullMindMapRepository, metrics repositoryMetrics) *instrumentedMindMapRepository {
	return &instrumentedMindMapRepository{inner: inner, metrics: metrics}
}

func (r *instrumentedMindMapRepository) observe(operation string, start time.Time, err error) {
	r.metrics.ObserveDBOperation(operation, "mindmaps", time.Since(start), err)
}

func (r *instrumentedMindMapRepository) Save(ctx context.Context, m *aggregates.MindMap) error {
	start := time.Now()
	err := r.inner.Save(ctx, m)
	r.observe("save", start, err)
	return err
}

func (r *instrumentedMindMapRepository) SaveWithUoW(ctx context.Context, m *aggregates.MindMap, uow interface{}) error {
	start := time.Now()
	err := r.inner.SaveWithUoW(ctx, m, uow)
	r.observe("save_with_uow", start, err)
	return err
}

func (r *instrumentedMindMapRepository) GetByID(ctx context.Context, id valueobjects.MapID) (*aggregates.MindMap, error) {
	start := time.Now()
	m, err := r.inner.GetByID(ctx, id)
	r.observe("get_by_id", start, err)
	return m, err
}

func (r *instrumentedMindMapRepository) GetByUserID(ctx context.Context, userID string) ([]*aggregates.MindMap, error) {
	start := time.Now()
	maps, err := r.inner.GetByUserID(ctx, userID)
	r.observe("get_by_user", start, err)
	return maps, err
}

func (r *instrumentedMindMapRepository) GetByDocumentID(ctx context.Context, documentID valueobjects.DocumentID) (*aggregates.MindMap, error) {
	start := time.Now()
	m, err := r.inner.GetByDocumentID(ctx, documentID)
	r.observe("get_by_document", start, err)
	return m, err
}

func (r *instrumentedMindMapRepository) Search(ctx context.Context, criteria ports.SearchCriteria) ([]*aggregates.MindMap, error) {
	start := time.Now()
	maps, err := r.inner.Search(ctx, criteria)
	r.observe("search", start, err)
	return maps, err
}

func (r *instrumentedMindMapRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	start := time.Now()
	count, err := r.inner.CountByUserID(ctx, userID)
	r.observe("count_by_user", start, err)
	return count, err
}

func (r *instrumentedMindMapRepository) Delete(ctx context.Context, userID string, id valueobjects.MapID) error {
	start := time.Now()
	err := r.inner.Delete(ctx, userID, id)
	r.observe("delete", start, err)
	return err
}

func (r *instrumentedMindMapRepository) DeleteBatch(ctx context.Context, userID string, ids []valueobjects.MapID) error {
	start := time.Now()
	err := r.inner.DeleteBatch(ctx, userID, ids)
	r.observe("delete_batch", start, err)
	return err
}

func (r *instrumentedMindMapRepository) UpdateTitle(ctx context.Context, userID string, id valueobjects.MapID, title string) error {
	start := time.Now()
	err := r.inner.UpdateTitle(ctx, userID, id, title)
	r.observe("update_title", start, err)
	return err
}

// instrumentedDocumentRepository times every operation and reports the outcome
type instrumentedDocumentRepository struct {
	inner   fullDocumentRepository
	metrics repositoryMetrics
}

func instrumentDocumentRepository(inner fullDocumentRepository, metrics repositoryMetrics) *instrumentedDocumentRepository {
	return &instrumentedDocumentRepository{inner: inner, metrics: metrics}
}

func (r *instrumentedDocumentRepository) observe(operation string, start time.Time, err error) {
	r.metrics.ObserveDBOperation(operation, "documents", time.Since(start), err)
}

func (r *instrumentedDocumentRepository) Save(ctx context.Context, doc *entities.Document) error {
	start := time.Now()
	err := r.inner.Save(ctx, doc)
	r.observe("save", start, err)
	return err
}

func (r *instrumentedDocumentRepository) SaveWithUoW(ctx context.Context, doc *entities.Document, uow interface{}) error {
	start := time.Now()
	err := r.inner.SaveWithUoW(ctx, doc, uow)
	r.observe("save_with_uow", start, err)
	return err
}

func (r *instrumentedDocumentRepository) GetByID(ctx context.Context, id valueobjects.DocumentID) (*entities.Document, error) {
	start := time.Now()
	doc, err := r.inner.GetByID(ctx, id)
	r.observe("get_by_id", start, err)
	return doc, err
}

func (r *instrumentedDocumentRepository) GetByUserID(ctx context.Context, userID string) ([]*entities.Document, error) {
	start := time.Now()
	docs, err := r.inner.GetByUserID(ctx, userID)
	r.observe("get_by_user", start, err)
	return docs, err
}

func (r *instrumentedDocumentRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Document, error) {
	start := time.Now()
	docs, err := r.inner.ListOlderThan(ctx, cutoff, limit)
	r.observe("list_older_than", start, err)
	return docs, err
}

func (r *instrumentedDocumentRepository) Delete(ctx context.Context, userID string, id valueobjects.DocumentID) error {
	start := time.Now()
	err := r.inner.Delete(ctx, userID, id)
	r.observe("delete", start, err)
	return err
}
