package memory

import (
	"context"

	"medmap-backend/application/ports"
)

// UnitOfWork is a pass-through UnitOfWork for the in-memory stores. The
// repositories apply writes immediately, so Begin, Commit and Rollback do
// nothing; handlers that bracket their work in a transaction behave the same
// against this implementation, minus atomicity.
type UnitOfWork struct {
	mapRepo    ports.MindMapRepository
	docRepo    ports.DocumentRepository
	eventStore ports.EventStore
}

// NewUnitOfWork creates a unit of work over the given in-memory stores
func NewUnitOfWork(mapRepo ports.MindMapRepository, docRepo ports.DocumentRepository, eventStore ports.EventStore) *UnitOfWork {
	return &UnitOfWork{
		mapRepo:    mapRepo,
		docRepo:    docRepo,
		eventStore: eventStore,
	}
}

// Begin is a no-op
func (u *UnitOfWork) Begin(ctx context.Context) error { return nil }

// Commit is a no-op
func (u *UnitOfWork) Commit(ctx context.Context) error { return nil }

// Rollback is a no-op; writes have already been applied
func (u *UnitOfWork) Rollback() error { return nil }

// MindMapRepository returns the mind map repository
func (u *UnitOfWork) MindMapRepository() ports.MindMapRepository { return u.mapRepo }

// DocumentRepository returns the document repository
func (u *UnitOfWork) DocumentRepository() ports.DocumentRepository { return u.docRepo }

// EventStore returns the event store
func (u *UnitOfWork) EventStore() ports.EventStore { return u.eventStore }
