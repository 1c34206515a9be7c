package ports

import (
	"context"
	"time"

	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/domain/events"
)

// MindMapRepository defines the interface for mind map persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type MindMapRepository interface {
	// Save persists a mind map (create or update)
	Save(ctx context.Context, m *aggregates.MindMap) error

	// GetByID retrieves a mind map by its ID
	GetByID(ctx context.Context, id valueobjects.MapID) (*aggregates.MindMap, error)

	// GetByUserID retrieves all mind maps for a user
	GetByUserID(ctx context.Context, userID string) ([]*aggregates.MindMap, error)

	// GetByDocumentID retrieves the mind map generated from a document, if any
	GetByDocumentID(ctx context.Context, documentID valueobjects.DocumentID) (*aggregates.MindMap, error)

	// Search finds mind maps matching the given criteria
	Search(ctx context.Context, criteria SearchCriteria) ([]*aggregates.MindMap, error)

	// CountByUserID returns the number of maps a user owns
	CountByUserID(ctx context.Context, userID string) (int, error)

	// Delete removes a mind map
	Delete(ctx context.Context, userID string, id valueobjects.MapID) error

	// DeleteBatch removes multiple mind maps in a batch operation
	DeleteBatch(ctx context.Context, userID string, ids []valueobjects.MapID) error
}

// DocumentRepository defines the interface for document metadata persistence
type DocumentRepository interface {
	// Save persists a document (create or update)
	Save(ctx context.Context, doc *entities.Document) error

	// GetByID retrieves a document by its ID
	GetByID(ctx context.Context, id valueobjects.DocumentID) (*entities.Document, error)

	// GetByUserID retrieves all documents for a user
	GetByUserID(ctx context.Context, userID string) ([]*entities.Document, error)

	// ListOlderThan retrieves documents uploaded before the cutoff
	ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Document, error)

	// Delete removes a document record
	Delete(ctx context.Context, userID string, id valueobjects.DocumentID) error
}

// EventStore defines the interface for event persistence
type EventStore interface {
	// SaveEvents persists domain events
	SaveEvents(ctx context.Context, events []events.DomainEvent) error

	// GetEvents retrieves events for an aggregate
	GetEvents(ctx context.Context, aggregateID string) ([]events.DomainEvent, error)

	// GetEventsByType retrieves events of a specific type
	GetEventsByType(ctx context.Context, eventType string, limit int) ([]events.DomainEvent, error)

	// GetEventsAfter retrieves events after a specific version
	GetEventsAfter(ctx context.Context, aggregateID string, version int) ([]events.DomainEvent, error)

	// DeleteEvents removes all events for an aggregate
	DeleteEvents(ctx context.Context, aggregateID string) error

	// DeleteEventsBatch removes all events for multiple aggregates
	DeleteEventsBatch(ctx context.Context, aggregateIDs []string) error
}

// UnitOfWork defines a transaction boundary for aggregate operations
type UnitOfWork interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) error

	// Commit commits the transaction
	Commit(ctx context.Context) error

	// Rollback rolls back the transaction
	Rollback() error

	// MindMapRepository returns the mind map repository for this transaction
	MindMapRepository() MindMapRepository

	// DocumentRepository returns the document repository for this transaction
	DocumentRepository() DocumentRepository

	// EventStore returns the event store for this transaction
	EventStore() EventStore
}

// SearchCriteria defines search parameters for mind map listings
type SearchCriteria struct {
	UserID    string
	Query     string
	Status    string
	Limit     int
	Offset    int
	OrderBy   string
	OrderDesc bool
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

// EventBus defines the interface for publishing domain events
type EventBus interface {
	EventPublisher

	// Subscribe registers a handler for an event type
	Subscribe(eventType string, handler EventHandler) error

	// Unsubscribe removes a handler
	Unsubscribe(eventType string, handler EventHandler) error
}

// EventHandler defines the interface for handling domain events
type EventHandler interface {
	// Handle processes an event
	Handle(ctx context.Context, event events.DomainEvent) error

	// CanHandle checks if this handler can process the event
	CanHandle(eventType string) bool
}

// Cache defines the interface for caching
type Cache interface {
	// Get retrieves a value from cache
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value in cache with TTL in seconds
	Set(ctx context.Context, key string, value interface{}, ttl int) error

	// Delete removes a value from cache
	Delete(ctx context.Context, key string) error

	// Clear removes all values from cache
	Clear(ctx context.Context) error
}
