package dynamodb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"medmap-backend/application/ports"
)

const (
	outboxBatchSize = 50
	outboxInterval  = 5 * time.Second
)

// OutboxProcessor drains unpublished events from the event store to the
// event bus. Events are written transactionally with their aggregates and
// published here afterwards, so the bus lagging never loses a write.
type OutboxProcessor struct {
	eventStore     *DynamoDBEventStore
	eventPublisher ports.EventPublisher
	logger         *zap.Logger

	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewOutboxProcessor creates a new outbox processor
func NewOutboxProcessor(
	eventStore *DynamoDBEventStore,
	eventPublisher ports.EventPublisher,
	logger *zap.Logger,
) *OutboxProcessor {
	return &OutboxProcessor{
		eventStore:     eventStore,
		eventPublisher: eventPublisher,
		logger:         logger,
		stopChan:       make(chan struct{}),
		stoppedChan:    make(chan struct{}),
	}
}

// Start begins draining the outbox in the background.
func (op *OutboxProcessor) Start(ctx context.Context) {
	op.logger.Info("Starting outbox processor",
		zap.Int("batchSize", outboxBatchSize),
		zap.Duration("interval", outboxInterval),
	)

	go op.run(ctx)
}

// Stop shuts the processor down and waits for the current batch to finish.
// Safe to call more than once.
func (op *OutboxProcessor) Stop() {
	op.stopOnce.Do(func() {
		op.logger.Info("Stopping outbox processor")
		close(op.stopChan)
	})
	<-op.stoppedChan
}

func (op *OutboxProcessor) run(ctx context.Context) {
	defer close(op.stoppedChan)

	ticker := time.NewTicker(outboxInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			op.logger.Info("Context cancelled, stopping outbox processor")
			return
		case <-op.stopChan:
			op.logger.Info("Outbox processor stopped")
			return
		case <-ticker.C:
			op.drain(ctx)
		}
	}
}

// drain publishes pending events batch by batch so bursts clear without
// waiting a tick per batch. It keeps going only while full batches publish
// cleanly; failed events stay pending in the store, and retrying them is
// left to later ticks so attempts stay spaced out.
func (op *OutboxProcessor) drain(ctx context.Context) {
	for {
		picked, published, err := op.processBatch(ctx)
		if err != nil {
			op.logger.Error("Outbox batch failed", zap.Error(err))
			return
		}
		if picked < outboxBatchSize || published < picked {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-op.stopChan:
			return
		default:
		}
	}
}

// processBatch publishes one batch of pending events and reports how many
// it picked up and how many published. Per-event failures are recorded on
// the event and do not stop the batch.
func (op *OutboxProcessor) processBatch(ctx context.Context) (picked, published int, err error) {
	pending, err := op.eventStore.GetPendingEvents(ctx, outboxBatchSize)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get pending events: %w", err)
	}

	if len(pending) == 0 {
		return 0, 0, nil
	}

	for _, record := range pending {
		if err := op.publishEvent(ctx, record); err != nil {
			op.logger.Error("Failed to publish outbox event",
				zap.String("eventID", record.EventID),
				zap.String("eventType", record.EventType),
				zap.Error(err),
			)
		} else {
			published++
		}
	}

	op.logger.Debug("Outbox batch complete",
		zap.Int("pending", len(pending)),
		zap.Int("published", published),
	)

	return len(pending), published, nil
}

// publishEvent pushes a single event to the bus and records the outcome on
// the outbox item. The store moves events that keep failing to the failed
// state once their attempts run out.
func (op *OutboxProcessor) publishEvent(ctx context.Context, record *EventRecord) error {
	domainEvent, err := op.eventStore.recordToEvent(*record)
	if err != nil {
		// Malformed events can never be published
		return op.recordFailure(ctx, record, fmt.Sprintf("failed to convert to domain event: %v", err))
	}

	if err := op.eventPublisher.Publish(ctx, domainEvent); err != nil {
		return op.recordFailure(ctx, record, fmt.Sprintf("publish failed: %v", err))
	}

	if err := op.eventStore.MarkEventAsPublished(ctx, record.PK, record.SK); err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}

	return nil
}

func (op *OutboxProcessor) recordFailure(ctx context.Context, record *EventRecord, cause string) error {
	attempts := record.PublishAttempts + 1

	if err := op.eventStore.MarkEventAsFailed(ctx, record.PK, record.SK, cause, attempts); err != nil {
		op.logger.Error("Failed to record event failure",
			zap.String("eventID", record.EventID),
			zap.Error(err),
		)
		return err
	}

	if attempts >= maxPublishAttempts {
		op.logger.Warn("Event permanently failed",
			zap.String("eventID", record.EventID),
			zap.String("eventType", record.EventType),
			zap.Int("attempts", attempts),
			zap.String("cause", cause),
		)
	}

	return fmt.Errorf("event publish failed: %s", cause)
}
