package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoDBEventStore implements the EventStore interface using DynamoDB
type DynamoDBEventStore struct {
	client    *dynamodb.Client
	tableName string
}

// PublishStatus represents the publishing status of an event
type PublishStatus string

const (
	PublishStatusPending   PublishStatus = "pending"   // Event is saved but not yet published
	PublishStatusPublished PublishStatus = "published" // Event successfully published
	PublishStatusFailed    PublishStatus = "failed"    // Event publishing failed
)

// maxPublishAttempts is the number of publish tries before an event is
// marked permanently failed.
const maxPublishAttempts = 3

// EventRecord represents how events are stored in DynamoDB with the
// outbox pattern
type EventRecord struct {
	PK            string                 `dynamodbav:"PK"` // EVENTS#<aggregate_id>
	SK            string                 `dynamodbav:"SK"` // EVENT#<timestamp>#<event_id>
	EventID       string                 `dynamodbav:"EventID"`
	EventType     string                 `dynamodbav:"EventType"`
	AggregateID   string                 `dynamodbav:"AggregateID"`
	AggregateType string                 `dynamodbav:"AggregateType"`
	EventData     map[string]interface{} `dynamodbav:"EventData"`
	Timestamp     string                 `dynamodbav:"Timestamp"`
	Version       int                    `dynamodbav:"Version"`
	UserID        string                 `dynamodbav:"UserID"`

	// Outbox pattern fields
	PublishStatus   string `dynamodbav:"PublishStatus"`
	PublishAttempts int    `dynamodbav:"PublishAttempts"`
	LastPublishTry  string `dynamodbav:"LastPublishTry,omitempty"`
	PublishedAt     string `dynamodbav:"PublishedAt,omitempty"`
	ErrorMessage    string `dynamodbav:"ErrorMessage,omitempty"`

	// GSI attributes for querying
	GSI1PK string `dynamodbav:"GSI1PK"` // USER#<user_id>
	GSI1SK string `dynamodbav:"GSI1SK"` // EVENT#<timestamp>
	GSI2PK string `dynamodbav:"GSI2PK"` // EVENTTYPE#<type>
	GSI2SK string `dynamodbav:"GSI2SK"` // EVENT#<timestamp>

	// TTL for automatic cleanup
	TTL int64 `dynamodbav:"TTL,omitempty"`
}

// NewDynamoDBEventStore creates a new DynamoDB event store
func NewDynamoDBEventStore(client *dynamodb.Client, tableName string) *DynamoDBEventStore {
	return &DynamoDBEventStore{
		client:    client,
		tableName: tableName,
	}
}

// SaveEvents persists domain events to the event store
func (es *DynamoDBEventStore) SaveEvents(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	writeRequests := make([]types.WriteRequest, 0, len(domainEvents))

	for _, event := range domainEvents {
		record, err := es.eventToRecord(event)
		if err != nil {
			return fmt.Errorf("failed to convert event to record: %w", err)
		}

		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return fmt.Errorf("failed to marshal event record: %w", err)
		}

		writeRequests = append(writeRequests, types.WriteRequest{
			PutRequest: &types.PutRequest{
				Item: item,
			},
		})
	}

	return es.writeBatch(ctx, writeRequests)
}

// GetEvents retrieves all events for an aggregate in timestamp order
func (es *DynamoDBEventStore) GetEvents(ctx context.Context, aggregateID string) ([]events.DomainEvent, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("EVENTS#%s", aggregateID)},
		},
		ScanIndexForward: aws.Bool(true),
	}

	var allEvents []events.DomainEvent

	for {
		result, err := es.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query events: %w", err)
		}

		for _, item := range result.Items {
			var record EventRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event record: %w", err)
			}

			event, err := es.recordToEvent(record)
			if err != nil {
				return nil, fmt.Errorf("failed to convert record to event: %w", err)
			}

			allEvents = append(allEvents, event)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return allEvents, nil
}

// GetEventsByType retrieves events of a specific type, most recent first
func (es *DynamoDBEventStore) GetEventsByType(ctx context.Context, eventType string, limit int) ([]events.DomainEvent, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		IndexName:              aws.String("GSI2"),
		KeyConditionExpression: aws.String("GSI2PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("EVENTTYPE#%s", eventType)},
		},
		ScanIndexForward: aws.Bool(false),
	}

	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	result, err := es.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by type: %w", err)
	}

	domainEvents := make([]events.DomainEvent, 0, len(result.Items))
	for _, item := range result.Items {
		var record EventRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event record: %w", err)
		}

		event, err := es.recordToEvent(record)
		if err != nil {
			return nil, fmt.Errorf("failed to convert record to event: %w", err)
		}

		domainEvents = append(domainEvents, event)
	}

	return domainEvents, nil
}

// GetEventsAfter retrieves events for an aggregate after a specific version
func (es *DynamoDBEventStore) GetEventsAfter(ctx context.Context, aggregateID string, version int) ([]events.DomainEvent, error) {
	allEvents, err := es.GetEvents(ctx, aggregateID)
	if err != nil {
		return nil, err
	}

	var filteredEvents []events.DomainEvent
	for _, event := range allEvents {
		if event.GetVersion() > version {
			filteredEvents = append(filteredEvents, event)
		}
	}

	return filteredEvents, nil
}

// GetEventsByUser retrieves events for a specific user since a point in time
func (es *DynamoDBEventStore) GetEventsByUser(ctx context.Context, userID string, since time.Time, limit int) ([]events.DomainEvent, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK > :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
			":sk": &types.AttributeValueMemberS{Value: fmt.Sprintf("EVENT#%s", since.Format(time.RFC3339Nano))},
		},
		ScanIndexForward: aws.Bool(true),
	}

	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	result, err := es.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query events by user: %w", err)
	}

	domainEvents := make([]events.DomainEvent, 0, len(result.Items))
	for _, item := range result.Items {
		var record EventRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event record: %w", err)
		}

		event, err := es.recordToEvent(record)
		if err != nil {
			return nil, fmt.Errorf("failed to convert record to event: %w", err)
		}

		domainEvents = append(domainEvents, event)
	}

	return domainEvents, nil
}

// DeleteEvents removes all events for an aggregate
func (es *DynamoDBEventStore) DeleteEvents(ctx context.Context, aggregateID string) error {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(es.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("EVENTS#%s", aggregateID)},
		},
		ProjectionExpression: aws.String("PK, SK"),
	}

	var writeRequests []types.WriteRequest

	for {
		result, err := es.client.Query(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to query events for deletion: %w", err)
		}

		for _, item := range result.Items {
			writeRequests = append(writeRequests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{
					Key: map[string]types.AttributeValue{
						"PK": item["PK"],
						"SK": item["SK"],
					},
				},
			})
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	if len(writeRequests) == 0 {
		return nil
	}

	return es.writeBatch(ctx, writeRequests)
}

// DeleteEventsBatch removes all events for multiple aggregates
func (es *DynamoDBEventStore) DeleteEventsBatch(ctx context.Context, aggregateIDs []string) error {
	for _, aggregateID := range aggregateIDs {
		if aggregateID == "" {
			continue
		}
		if err := es.DeleteEvents(ctx, aggregateID); err != nil {
			return fmt.Errorf("failed to delete events for aggregate %s: %w", aggregateID, err)
		}
	}
	return nil
}

// writeBatch writes requests in chunks of 25 (the DynamoDB batch limit),
// retrying unprocessed items once before giving up
func (es *DynamoDBEventStore) writeBatch(ctx context.Context, writeRequests []types.WriteRequest) error {
	for i := 0; i < len(writeRequests); i += 25 {
		end := i + 25
		if end > len(writeRequests) {
			end = len(writeRequests)
		}

		input := &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				es.tableName: writeRequests[i:end],
			},
		}

		result, err := es.client.BatchWriteItem(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to write events batch: %w", err)
		}

		if unprocessed := result.UnprocessedItems[es.tableName]; len(unprocessed) > 0 {
			retry, err := es.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{
					es.tableName: unprocessed,
				},
			})
			if err != nil {
				return fmt.Errorf("failed to retry unprocessed event writes: %w", err)
			}
			if remaining := retry.UnprocessedItems[es.tableName]; len(remaining) > 0 {
				return fmt.Errorf("failed to write %d event records", len(remaining))
			}
		}
	}

	return nil
}

// PrepareEventItem prepares an event for transactional write.
// This is used by the UnitOfWork to include events in transactions.
func (es *DynamoDBEventStore) PrepareEventItem(event events.DomainEvent) (types.TransactWriteItem, error) {
	record, err := es.eventToRecord(event)
	if err != nil {
		return types.TransactWriteItem{}, err
	}

	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return types.TransactWriteItem{}, err
	}

	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(es.tableName),
			Item:      item,
		},
	}, nil
}

// eventToRecord converts a domain event to a DynamoDB record
func (es *DynamoDBEventStore) eventToRecord(event events.DomainEvent) (*EventRecord, error) {
	// Round-trip through JSON so the event payload lands in a flexible map
	eventData := make(map[string]interface{})

	eventBytes, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := json.Unmarshal(eventBytes, &eventData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event to map: %w", err)
	}

	timestamp := event.GetTimestamp()
	eventID := uuid.New().String()

	// Events older than a year are expired by the table TTL
	ttl := timestamp.Add(365 * 24 * time.Hour).Unix()

	userID := ""
	if userData, ok := eventData["user_id"].(string); ok {
		userID = userData
	}

	aggregateType := "unknown"
	switch {
	case strings.HasPrefix(event.GetEventType(), "mindmap."):
		aggregateType = "mindmap"
	case strings.HasPrefix(event.GetEventType(), "document."),
		strings.HasPrefix(event.GetEventType(), "generation."):
		aggregateType = "document"
	case strings.HasPrefix(event.GetEventType(), "uploads."):
		aggregateType = "maintenance"
	}

	return &EventRecord{
		PK:            fmt.Sprintf("EVENTS#%s", event.GetAggregateID()),
		SK:            fmt.Sprintf("EVENT#%s#%s", timestamp.Format(time.RFC3339Nano), eventID),
		EventID:       eventID,
		EventType:     event.GetEventType(),
		AggregateID:   event.GetAggregateID(),
		AggregateType: aggregateType,
		EventData:     eventData,
		Timestamp:     timestamp.Format(time.RFC3339),
		Version:       event.GetVersion(),
		UserID:        userID,

		// Events start as pending until the outbox processor publishes them
		PublishStatus:   string(PublishStatusPending),
		PublishAttempts: 0,

		GSI1PK: fmt.Sprintf("USER#%s", userID),
		GSI1SK: fmt.Sprintf("EVENT#%s", timestamp.Format(time.RFC3339Nano)),
		GSI2PK: fmt.Sprintf("EVENTTYPE#%s", event.GetEventType()),
		GSI2SK: fmt.Sprintf("EVENT#%s", timestamp.Format(time.RFC3339Nano)),
		TTL:    ttl,
	}, nil
}

// recordToEvent converts a DynamoDB record back to a domain event
func (es *DynamoDBEventStore) recordToEvent(record EventRecord) (events.DomainEvent, error) {
	timestamp, err := time.Parse(time.RFC3339, record.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	baseEvent := events.BaseEvent{
		AggregateID: record.AggregateID,
		EventType:   record.EventType,
		Timestamp:   timestamp,
		Version:     record.Version,
	}

	switch record.EventType {
	case "document.uploaded":
		documentIDStr, _ := record.EventData["document_id"].(string)
		documentID, _ := valueobjects.NewDocumentIDFromString(documentIDStr)
		userID, _ := record.EventData["user_id"].(string)
		filename, _ := record.EventData["filename"].(string)
		extension, _ := record.EventData["extension"].(string)
		sizeBytes, _ := record.EventData["size_bytes"].(float64)

		return events.DocumentUploaded{
			BaseEvent:  baseEvent,
			DocumentID: documentID,
			UserID:     userID,
			Filename:   filename,
			Extension:  extension,
			SizeBytes:  int64(sizeBytes),
		}, nil

	case "document.processed":
		documentIDStr, _ := record.EventData["document_id"].(string)
		documentID, _ := valueobjects.NewDocumentIDFromString(documentIDStr)
		userID, _ := record.EventData["user_id"].(string)
		charCount, _ := record.EventData["char_count"].(float64)

		return events.DocumentProcessed{
			BaseEvent:  baseEvent,
			DocumentID: documentID,
			UserID:     userID,
			CharCount:  int(charCount),
		}, nil

	case "document.rejected":
		documentIDStr, _ := record.EventData["document_id"].(string)
		documentID, _ := valueobjects.NewDocumentIDFromString(documentIDStr)
		userID, _ := record.EventData["user_id"].(string)
		reason, _ := record.EventData["reason"].(string)

		return events.DocumentRejected{
			BaseEvent:  baseEvent,
			DocumentID: documentID,
			UserID:     userID,
			Reason:     reason,
		}, nil

	case "mindmap.generated":
		mapIDStr, _ := record.EventData["map_id"].(string)
		mapID, _ := valueobjects.NewMapIDFromString(mapIDStr)
		documentIDStr, _ := record.EventData["document_id"].(string)
		documentID, _ := valueobjects.NewDocumentIDFromString(documentIDStr)
		userID, _ := record.EventData["user_id"].(string)
		nodeCount, _ := record.EventData["node_count"].(float64)

		return events.MindMapGenerated{
			BaseEvent:  baseEvent,
			MapID:      mapID,
			DocumentID: documentID,
			UserID:     userID,
			NodeCount:  int(nodeCount),
		}, nil

	case "mindmap.renamed":
		mapIDStr, _ := record.EventData["map_id"].(string)
		mapID, _ := valueobjects.NewMapIDFromString(mapIDStr)
		userID, _ := record.EventData["user_id"].(string)
		oldTitle, _ := record.EventData["old_title"].(string)
		newTitle, _ := record.EventData["new_title"].(string)

		return events.MindMapRenamed{
			BaseEvent: baseEvent,
			MapID:     mapID,
			UserID:    userID,
			OldTitle:  oldTitle,
			NewTitle:  newTitle,
		}, nil

	case "mindmap.deleted":
		mapIDStr, _ := record.EventData["map_id"].(string)
		mapID, _ := valueobjects.NewMapIDFromString(mapIDStr)
		userID, _ := record.EventData["user_id"].(string)
		title, _ := record.EventData["title"].(string)

		return events.MindMapDeleted{
			BaseEvent: baseEvent,
			MapID:     mapID,
			UserID:    userID,
			Title:     title,
		}, nil

	case "generation.started":
		documentIDStr, _ := record.EventData["document_id"].(string)
		documentID, _ := valueobjects.NewDocumentIDFromString(documentIDStr)
		userID, _ := record.EventData["user_id"].(string)

		return events.GenerationStarted{
			BaseEvent:  baseEvent,
			DocumentID: documentID,
			UserID:     userID,
		}, nil

	case "generation.failed":
		documentIDStr, _ := record.EventData["document_id"].(string)
		documentID, _ := valueobjects.NewDocumentIDFromString(documentIDStr)
		userID, _ := record.EventData["user_id"].(string)
		stage, _ := record.EventData["stage"].(string)
		reason, _ := record.EventData["reason"].(string)

		return events.GenerationFailed{
			BaseEvent:  baseEvent,
			DocumentID: documentID,
			UserID:     userID,
			Stage:      stage,
			Reason:     reason,
		}, nil

	case "uploads.cleaned":
		userID, _ := record.EventData["user_id"].(string)
		filesRemoved, _ := record.EventData["files_removed"].(float64)
		bytesFreed, _ := record.EventData["bytes_freed"].(float64)

		return events.UploadsCleaned{
			BaseEvent:    baseEvent,
			UserID:       userID,
			FilesRemoved: int(filesRemoved),
			BytesFreed:   int64(bytesFreed),
		}, nil

	default:
		// Unknown event types fall back to the base event
		return baseEvent, nil
	}
}

// Outbox pattern methods

// GetPendingEvents retrieves events that haven't been published yet
func (es *DynamoDBEventStore) GetPendingEvents(ctx context.Context, limit int32) ([]*EventRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	// Pending events are found with a filtered scan over the event partitions
	input := &dynamodb.ScanInput{
		TableName:        aws.String(es.tableName),
		FilterExpression: aws.String("PublishStatus = :status AND begins_with(PK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(PublishStatusPending)},
			":prefix": &types.AttributeValueMemberS{Value: "EVENTS#"},
		},
		Limit: aws.Int32(limit),
	}

	result, err := es.client.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending events: %w", err)
	}

	records := make([]*EventRecord, 0, len(result.Items))
	for _, item := range result.Items {
		var record EventRecord
		if err := attributevalue.UnmarshalMap(item, &record); err != nil {
			continue // Skip malformed records
		}
		records = append(records, &record)
	}

	return records, nil
}

// MarkEventAsPublished marks an event as successfully published
func (es *DynamoDBEventStore) MarkEventAsPublished(ctx context.Context, eventPK, eventSK string) error {
	now := time.Now().Format(time.RFC3339)

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(es.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: eventPK},
			"SK": &types.AttributeValueMemberS{Value: eventSK},
		},
		UpdateExpression: aws.String("SET PublishStatus = :published, PublishedAt = :publishedAt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":published":   &types.AttributeValueMemberS{Value: string(PublishStatusPublished)},
			":publishedAt": &types.AttributeValueMemberS{Value: now},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}

	_, err := es.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to mark event as published: %w", err)
	}

	return nil
}

// MarkEventAsFailed records a failed publish attempt. Events stay pending
// until maxPublishAttempts is reached, then move to the failed state.
func (es *DynamoDBEventStore) MarkEventAsFailed(ctx context.Context, eventPK, eventSK string, errorMsg string, attempts int) error {
	now := time.Now().Format(time.RFC3339)

	status := string(PublishStatusFailed)
	if attempts < maxPublishAttempts {
		status = string(PublishStatusPending)
	}

	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(es.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: eventPK},
			"SK": &types.AttributeValueMemberS{Value: eventSK},
		},
		UpdateExpression: aws.String("SET PublishStatus = :status, PublishAttempts = :attempts, LastPublishTry = :lastTry, ErrorMessage = :error"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":   &types.AttributeValueMemberS{Value: status},
			":attempts": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", attempts)},
			":lastTry":  &types.AttributeValueMemberS{Value: now},
			":error":    &types.AttributeValueMemberS{Value: errorMsg},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}

	_, err := es.client.UpdateItem(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}

	return nil
}
