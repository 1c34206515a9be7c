package memory

import (
	"context"
	"sort"
	"sync"

	"medmap-backend/domain/events"
)

// EventStore is an in-memory EventStore port implementation. Events are held
// per aggregate in save order.
type EventStore struct {
	mu     sync.RWMutex
	events map[string][]events.DomainEvent
}

// NewEventStore creates an empty in-memory event store
func NewEventStore() *EventStore {
	return &EventStore{
		events: make(map[string][]events.DomainEvent),
	}
}

// SaveEvents appends the events to their aggregates' streams
func (s *EventStore) SaveEvents(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, event := range domainEvents {
		aggregateID := event.GetAggregateID()
		s.events[aggregateID] = append(s.events[aggregateID], event)
	}
	return nil
}

// GetEvents retrieves all events for an aggregate in save order
func (s *EventStore) GetEvents(ctx context.Context, aggregateID string) ([]events.DomainEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.events[aggregateID]
	out := make([]events.DomainEvent, len(stream))
	copy(out, stream)
	return out, nil
}

// GetEventsByType retrieves events of a specific type across all aggregates,
// most recent first
func (s *EventStore) GetEventsByType(ctx context.Context, eventType string, limit int) ([]events.DomainEvent, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []events.DomainEvent
	for _, stream := range s.events {
		for _, event := range stream {
			if event.GetEventType() == eventType {
				matched = append(matched, event)
			}
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[j].GetTimestamp().Before(matched[i].GetTimestamp())
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// GetEventsAfter retrieves an aggregate's events with a version greater than
// the given one
func (s *EventStore) GetEventsAfter(ctx context.Context, aggregateID string, version int) ([]events.DomainEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []events.DomainEvent
	for _, event := range s.events[aggregateID] {
		if event.GetVersion() > version {
			out = append(out, event)
		}
	}
	return out, nil
}

// DeleteEvents removes all events for an aggregate
func (s *EventStore) DeleteEvents(ctx context.Context, aggregateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.events, aggregateID)
	return nil
}

// DeleteEventsBatch removes all events for multiple aggregates
func (s *EventStore) DeleteEventsBatch(ctx context.Context, aggregateIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range aggregateIDs {
		delete(s.events, id)
	}
	return nil
}
