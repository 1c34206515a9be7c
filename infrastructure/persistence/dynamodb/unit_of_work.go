package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"medmap-backend/application/ports"
	"medmap-backend/domain/events"
	pkgerrors "medmap-backend/pkg/errors"
)

// maxTransactItems is the DynamoDB TransactWriteItems limit
const maxTransactItems = 100

// DynamoDBUnitOfWork collects writes and domain events, committing them in a
// single TransactWriteItems call. One instance serializes its transactions;
// a concurrent Begin waits until the active transaction completes or its
// context is cancelled.
type DynamoDBUnitOfWork struct {
	client     *dynamodb.Client
	mapRepo    ports.MindMapRepository
	docRepo    ports.DocumentRepository
	eventStore ports.EventStore
	logger     *zap.Logger

	sem chan struct{}

	mu            sync.Mutex
	active        bool
	items         []types.TransactWriteItem
	pendingEvents []events.DomainEvent
}

// NewDynamoDBUnitOfWork creates a unit of work backed by DynamoDB transactions
func NewDynamoDBUnitOfWork(
	client *dynamodb.Client,
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	eventStore ports.EventStore,
	logger *zap.Logger,
) *DynamoDBUnitOfWork {
	return &DynamoDBUnitOfWork{
		client:     client,
		mapRepo:    mapRepo,
		docRepo:    docRepo,
		eventStore: eventStore,
		logger:     logger,
		sem:        make(chan struct{}, 1),
	}
}

// Begin starts a new transaction, waiting for any active one to finish
func (u *DynamoDBUnitOfWork) Begin(ctx context.Context) error {
	select {
	case u.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	u.mu.Lock()
	u.active = true
	u.items = nil
	u.pendingEvents = nil
	u.mu.Unlock()

	return nil
}

// Commit writes all registered items in a single DynamoDB transaction.
// Events whose store cannot join the transaction are saved afterwards.
func (u *DynamoDBUnitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	if !u.active {
		u.mu.Unlock()
		return errors.New("no transaction in progress")
	}
	items := u.items
	pending := u.pendingEvents
	u.items = nil
	u.pendingEvents = nil
	u.active = false
	u.mu.Unlock()

	defer func() { <-u.sem }()

	if len(items) == 0 && len(pending) == 0 {
		return nil
	}

	if len(items) > 0 {
		_, err := u.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
			TransactItems: items,
		})
		if err != nil {
			var canceled *types.TransactionCanceledException
			if errors.As(err, &canceled) {
				return pkgerrors.ErrConcurrentModification.Clone().WithCause(err)
			}
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
	}

	if len(pending) > 0 {
		// The writes are already durable; a failed event save is logged,
		// not surfaced
		if err := u.eventStore.SaveEvents(ctx, pending); err != nil {
			u.logger.Warn("Failed to save events after commit",
				zap.Int("eventCount", len(pending)),
				zap.Error(err),
			)
		}
	}

	u.logger.Debug("Transaction committed",
		zap.Int("items", len(items)),
		zap.Int("deferredEvents", len(pending)),
	)

	return nil
}

// Rollback discards all registered items. Calling it after a commit, or
// without a transaction in progress, is a no-op.
func (u *DynamoDBUnitOfWork) Rollback() error {
	u.mu.Lock()
	if !u.active {
		u.mu.Unlock()
		return nil
	}
	dropped := len(u.items) + len(u.pendingEvents)
	u.items = nil
	u.pendingEvents = nil
	u.active = false
	u.mu.Unlock()

	<-u.sem

	if dropped > 0 {
		u.logger.Debug("Transaction rolled back", zap.Int("droppedItems", dropped))
	}

	return nil
}

// RegisterSave adds a prepared write to the current transaction
func (u *DynamoDBUnitOfWork) RegisterSave(item types.TransactWriteItem) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.active {
		return errors.New("no transaction in progress")
	}
	if len(u.items) >= maxTransactItems {
		return fmt.Errorf("transaction exceeds %d items", maxTransactItems)
	}

	u.items = append(u.items, item)
	return nil
}

// RegisterEvent adds a domain event to the current transaction. When the
// event store can prepare a transact item the event commits atomically with
// the aggregate writes; otherwise it is saved right after the commit.
func (u *DynamoDBUnitOfWork) RegisterEvent(event events.DomainEvent) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.active {
		return errors.New("no transaction in progress")
	}

	preparer, ok := u.eventStore.(interface {
		PrepareEventItem(events.DomainEvent) (types.TransactWriteItem, error)
	})
	if !ok {
		u.pendingEvents = append(u.pendingEvents, event)
		return nil
	}

	item, err := preparer.PrepareEventItem(event)
	if err != nil {
		return fmt.Errorf("failed to prepare event item: %w", err)
	}
	if len(u.items) >= maxTransactItems {
		return fmt.Errorf("transaction exceeds %d items", maxTransactItems)
	}

	u.items = append(u.items, item)
	return nil
}

// MindMapRepository returns the mind map repository for this transaction
func (u *DynamoDBUnitOfWork) MindMapRepository() ports.MindMapRepository {
	return u.mapRepo
}

// DocumentRepository returns the document repository for this transaction
func (u *DynamoDBUnitOfWork) DocumentRepository() ports.DocumentRepository {
	return u.docRepo
}

// EventStore returns the event store for this transaction
func (u *DynamoDBUnitOfWork) EventStore() ports.EventStore {
	return u.eventStore
}
