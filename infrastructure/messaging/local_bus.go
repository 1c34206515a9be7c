package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"medmap-backend/application/ports"
	"medmap-backend/domain/events"
)

// handlerTimeout bounds each handler invocation so one stuck subscriber
// cannot stall the publishing request.
const handlerTimeout = 30 * time.Second

// LocalEventBus is an in-process EventBus for environments without
// EventBridge. Handlers run synchronously on the publishing goroutine.
type LocalEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	logger   *zap.Logger
}

// NewLocalEventBus creates a new local event bus
func NewLocalEventBus(logger *zap.Logger) *LocalEventBus {
	return &LocalEventBus{
		handlers: make(map[string][]ports.EventHandler),
		logger:   logger,
	}
}

// Publish dispatches an event to all handlers registered for its type.
// It fails only when every handler fails; partial failures are logged.
func (b *LocalEventBus) Publish(ctx context.Context, event events.DomainEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}

	eventType := event.GetEventType()

	b.mu.RLock()
	registered := b.handlers[eventType]
	// Copy so handlers run without holding the lock
	handlers := make([]ports.EventHandler, len(registered))
	copy(handlers, registered)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("No handlers registered for event type",
			zap.String("eventType", eventType),
		)
		return nil
	}

	var lastErr error
	failures := 0
	for _, handler := range handlers {
		handlerCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		err := handler.Handle(handlerCtx, event)
		cancel()

		if err != nil {
			failures++
			lastErr = err
			b.logger.Error("Event handler failed",
				zap.String("eventType", eventType),
				zap.String("aggregateID", event.GetAggregateID()),
				zap.Error(err),
			)
		}
	}

	if failures == len(handlers) {
		return fmt.Errorf("all handlers failed for event %s: %w", eventType, lastErr)
	}

	b.logger.Debug("Event dispatched locally",
		zap.String("eventType", eventType),
		zap.Int("handlers", len(handlers)),
		zap.Int("failed", failures),
	)

	return nil
}

// PublishBatch dispatches multiple events in order
func (b *LocalEventBus) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	var lastErr error
	failures := 0
	for _, event := range domainEvents {
		if err := b.Publish(ctx, event); err != nil {
			failures++
			lastErr = err
		}
	}

	if failures > 0 {
		return fmt.Errorf("failed to dispatch %d of %d events locally: %w", failures, len(domainEvents), lastErr)
	}

	return nil
}

// Subscribe registers a handler for an event type
func (b *LocalEventBus) Subscribe(eventType string, handler ports.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	if eventType == "" {
		return fmt.Errorf("event type cannot be empty")
	}
	if !handler.CanHandle(eventType) {
		return fmt.Errorf("handler does not support event type %s", eventType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)

	b.logger.Info("Registered event handler",
		zap.String("eventType", eventType),
		zap.Int("handlers", len(b.handlers[eventType])),
	)

	return nil
}

// Unsubscribe removes a previously registered handler
func (b *LocalEventBus) Unsubscribe(eventType string, handler ports.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	registered := b.handlers[eventType]
	filtered := registered[:0]
	for _, h := range registered {
		if h != handler {
			filtered = append(filtered, h)
		}
	}

	if len(filtered) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = filtered
	}

	return nil
}
