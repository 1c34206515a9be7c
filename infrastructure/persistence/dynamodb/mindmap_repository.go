package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"medmap-backend/application/ports"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

// MindMapRepository implements the MindMapRepository port using DynamoDB.
// Maps live in the single table under the owning user's partition, with GSI1
// for direct lookup by map ID and GSI2 for lookup by source document.
type MindMapRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewMindMapRepository creates a new MindMapRepository
func NewMindMapRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *MindMapRepository {
	return &MindMapRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// mindMapItem represents the DynamoDB item structure for a mind map.
// The tree is stored as a JSON string so the item shape stays flat.
type mindMapItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	GSI1PK         string `dynamodbav:"GSI1PK,omitempty"` // For map lookups by ID
	GSI1SK         string `dynamodbav:"GSI1SK,omitempty"` // Always "METADATA" for maps
	GSI2PK         string `dynamodbav:"GSI2PK,omitempty"` // For map lookups by source document
	GSI2SK         string `dynamodbav:"GSI2SK,omitempty"`
	EntityType     string `dynamodbav:"EntityType"`
	MapID          string `dynamodbav:"MapID"`
	UserID         string `dynamodbav:"UserID"`
	DocumentID     string `dynamodbav:"DocumentID,omitempty"`
	Title          string `dynamodbav:"Title"`
	NodeCount      int    `dynamodbav:"NodeCount"`
	TreeJSON       string `dynamodbav:"TreeJSON"`
	SourceChecksum string `dynamodbav:"SourceChecksum,omitempty"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
	UpdatedAt      string `dynamodbav:"UpdatedAt"`
	Version        int    `dynamodbav:"Version"`
}

// Save persists a mind map to DynamoDB
func (r *MindMapRepository) Save(ctx context.Context, m *aggregates.MindMap) error {
	item, err := r.toItem(m)
	if err != nil {
		return err
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal mind map: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save mind map to DynamoDB",
			zap.Error(err),
			zap.String("mapID", m.ID().String()),
		)
		return fmt.Errorf("failed to save mind map: %w", err)
	}

	r.logger.Info("Mind map saved to DynamoDB",
		zap.String("mapID", m.ID().String()),
		zap.String("userID", m.UserID()),
		zap.Int("nodeCount", m.NodeCount()),
		zap.Int("version", m.Version()),
	)

	return nil
}

// SaveWithUoW registers the mind map save within a unit of work transaction
func (r *MindMapRepository) SaveWithUoW(ctx context.Context, m *aggregates.MindMap, uow interface{}) error {
	dynamoUoW, ok := uow.(*DynamoDBUnitOfWork)
	if !ok {
		return fmt.Errorf("invalid unit of work type")
	}

	item, err := r.toItem(m)
	if err != nil {
		return err
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal mind map: %w", err)
	}

	transactItem := types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item:      av,
		},
	}

	if err := dynamoUoW.RegisterSave(transactItem); err != nil {
		return fmt.Errorf("failed to register mind map save: %w", err)
	}

	for _, event := range m.GetUncommittedEvents() {
		if err := dynamoUoW.RegisterEvent(event); err != nil {
			return fmt.Errorf("failed to register mind map event: %w", err)
		}
	}

	r.logger.Debug("Mind map registered for transactional save",
		zap.String("mapID", m.ID().String()),
		zap.String("userID", m.UserID()),
		zap.Int("nodeCount", m.NodeCount()),
	)

	return nil
}

// GetByID retrieves a mind map by its ID
func (r *MindMapRepository) GetByID(ctx context.Context, id valueobjects.MapID) (*aggregates.MindMap, error) {
	// Use GSI1 for efficient lookup by map ID
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", id.String())},
			":sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		Limit: aws.Int32(1),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query mind map: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, pkgerrors.ErrMindMapNotFound.Clone().
			WithDetail("map_id", id.String())
	}

	var item mindMapItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mind map: %w", err)
	}

	return r.toAggregate(item)
}

// GetByUserID retrieves all mind maps for a user, newest keys first
func (r *MindMapRepository) GetByUserID(ctx context.Context, userID string) ([]*aggregates.MindMap, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(fmt.Sprintf("USER#%s", userID))).
		And(expression.Key("SK").BeginsWith("MAP#"))

	expr, err := expression.NewBuilder().
		WithKeyCondition(keyEx).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(false),
	}

	var maps []*aggregates.MindMap
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query mind maps: %w", err)
		}

		for _, raw := range result.Items {
			var item mindMapItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to unmarshal mind map item", zap.Error(err))
				continue
			}

			m, err := r.toAggregate(item)
			if err != nil {
				r.logger.Warn("Failed to reconstruct mind map from item",
					zap.String("mapID", item.MapID),
					zap.Error(err),
				)
				continue
			}
			maps = append(maps, m)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return maps, nil
}

// GetByDocumentID retrieves the mind map generated from a document, if any
func (r *MindMapRepository) GetByDocumentID(ctx context.Context, documentID valueobjects.DocumentID) (*aggregates.MindMap, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI2"),
		KeyConditionExpression: aws.String("GSI2PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("DOC#%s", documentID.String())},
		},
		Limit: aws.Int32(1),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query mind map by document: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, pkgerrors.ErrMindMapNotFound.Clone().
			WithDetail("document_id", documentID.String())
	}

	var item mindMapItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mind map: %w", err)
	}

	return r.toAggregate(item)
}

// Search finds mind maps matching the given criteria. Title matching is a
// case-sensitive contains filter evaluated by DynamoDB; ordering and paging
// happen client side because filters run after the key condition.
func (r *MindMapRepository) Search(ctx context.Context, criteria ports.SearchCriteria) ([]*aggregates.MindMap, error) {
	if criteria.UserID == "" {
		return nil, fmt.Errorf("search requires a user ID")
	}

	keyEx := expression.Key("PK").Equal(expression.Value(fmt.Sprintf("USER#%s", criteria.UserID))).
		And(expression.Key("SK").BeginsWith("MAP#"))

	builder := expression.NewBuilder().WithKeyCondition(keyEx)
	if criteria.Query != "" {
		builder = builder.WithFilter(expression.Contains(expression.Name("Title"), criteria.Query))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var maps []*aggregates.MindMap
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to search mind maps: %w", err)
		}

		for _, raw := range result.Items {
			var item mindMapItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to unmarshal mind map item", zap.Error(err))
				continue
			}

			m, err := r.toAggregate(item)
			if err != nil {
				r.logger.Warn("Failed to reconstruct mind map from item",
					zap.String("mapID", item.MapID),
					zap.Error(err),
				)
				continue
			}
			maps = append(maps, m)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	sortMapsByCriteria(maps, criteria)

	if criteria.Offset > 0 {
		if criteria.Offset >= len(maps) {
			return []*aggregates.MindMap{}, nil
		}
		maps = maps[criteria.Offset:]
	}
	if criteria.Limit > 0 && len(maps) > criteria.Limit {
		maps = maps[:criteria.Limit]
	}

	return maps, nil
}

// CountByUserID returns the number of maps a user owns
func (r *MindMapRepository) CountByUserID(ctx context.Context, userID string) (int, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(fmt.Sprintf("USER#%s", userID))).
		And(expression.Key("SK").BeginsWith("MAP#"))

	expr, err := expression.NewBuilder().
		WithKeyCondition(keyEx).
		Build()
	if err != nil {
		return 0, fmt.Errorf("failed to build expression: %w", err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Select:                    types.SelectCount,
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return 0, fmt.Errorf("failed to count mind maps: %w", err)
	}

	return int(result.Count), nil
}

// Delete removes a mind map. The key includes the owner so a user can only
// ever delete their own items.
func (r *MindMapRepository) Delete(ctx context.Context, userID string, id valueobjects.MapID) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", id.String())},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return pkgerrors.ErrMindMapNotFound.Clone().
				WithDetail("map_id", id.String())
		}
		return fmt.Errorf("failed to delete mind map: %w", err)
	}

	r.logger.Debug("Mind map deleted",
		zap.String("mapID", id.String()),
		zap.String("userID", userID),
	)

	return nil
}

// DeleteBatch removes multiple mind maps with batched writes
func (r *MindMapRepository) DeleteBatch(ctx context.Context, userID string, ids []valueobjects.MapID) error {
	if len(ids) == 0 {
		return nil
	}

	writeRequests := make([]types.WriteRequest, 0, len(ids))
	for _, id := range ids {
		writeRequests = append(writeRequests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{
				Key: map[string]types.AttributeValue{
					"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
					"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", id.String())},
				},
			},
		})
	}

	// DynamoDB limit is 25 items per batch
	for i := 0; i < len(writeRequests); i += 25 {
		end := i + 25
		if end > len(writeRequests) {
			end = len(writeRequests)
		}

		batch := writeRequests[i:end]
		input := &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				r.tableName: batch,
			},
		}

		result, err := r.client.BatchWriteItem(ctx, input)
		if err != nil {
			return fmt.Errorf("failed to delete mind maps batch: %w", err)
		}

		// Retry unprocessed deletes once before giving up
		if len(result.UnprocessedItems) > 0 {
			retry := &dynamodb.BatchWriteItemInput{RequestItems: result.UnprocessedItems}
			retryResult, err := r.client.BatchWriteItem(ctx, retry)
			if err != nil {
				return fmt.Errorf("failed to retry mind maps batch delete: %w", err)
			}
			if len(retryResult.UnprocessedItems) > 0 {
				return fmt.Errorf("failed to delete %d mind maps", len(retryResult.UnprocessedItems[r.tableName]))
			}
		}
	}

	r.logger.Info("Mind maps batch deleted",
		zap.String("userID", userID),
		zap.Int("count", len(ids)),
	)

	return nil
}

// UpdateTitle changes only the title attribute without rewriting the tree
func (r *MindMapRepository) UpdateTitle(ctx context.Context, userID string, id valueobjects.MapID, title string) error {
	input := &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("MAP#%s", id.String())},
		},
		UpdateExpression: aws.String("SET Title = :title, UpdatedAt = :updatedAt ADD Version :one"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":title":     &types.AttributeValueMemberS{Value: title},
			":updatedAt": &types.AttributeValueMemberS{Value: time.Now().Format(time.RFC3339)},
			":one":       &types.AttributeValueMemberN{Value: "1"},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}

	if _, err := r.client.UpdateItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return pkgerrors.ErrMindMapNotFound.Clone().
				WithDetail("map_id", id.String())
		}
		return fmt.Errorf("failed to update mind map title: %w", err)
	}

	r.logger.Debug("Mind map title updated",
		zap.String("mapID", id.String()),
		zap.String("userID", userID),
	)

	return nil
}

// toItem converts the aggregate to its DynamoDB item, serializing the tree
func (r *MindMapRepository) toItem(m *aggregates.MindMap) (*mindMapItem, error) {
	treeJSON, err := json.Marshal(m.Root())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tree: %w", err)
	}

	item := &mindMapItem{
		PK:             fmt.Sprintf("USER#%s", m.UserID()),
		SK:             fmt.Sprintf("MAP#%s", m.ID().String()),
		GSI1PK:         fmt.Sprintf("MAP#%s", m.ID().String()),
		GSI1SK:         "METADATA",
		EntityType:     "MINDMAP",
		MapID:          m.ID().String(),
		UserID:         m.UserID(),
		Title:          m.Title(),
		NodeCount:      m.NodeCount(),
		TreeJSON:       string(treeJSON),
		SourceChecksum: m.SourceChecksum(),
		CreatedAt:      m.CreatedAt().Format(time.RFC3339),
		UpdatedAt:      m.UpdatedAt().Format(time.RFC3339),
		Version:        m.Version(),
	}

	if !m.DocumentID().IsZero() {
		item.DocumentID = m.DocumentID().String()
		item.GSI2PK = fmt.Sprintf("DOC#%s", m.DocumentID().String())
		item.GSI2SK = fmt.Sprintf("MAP#%s", m.ID().String())
	}

	return item, nil
}

// toAggregate reconstructs the aggregate from a DynamoDB item
func (r *MindMapRepository) toAggregate(item mindMapItem) (*aggregates.MindMap, error) {
	mapID, err := valueobjects.NewMapIDFromString(item.MapID)
	if err != nil {
		return nil, fmt.Errorf("invalid map ID in item: %w", err)
	}

	var documentID valueobjects.DocumentID
	if item.DocumentID != "" {
		documentID, err = valueobjects.NewDocumentIDFromString(item.DocumentID)
		if err != nil {
			return nil, fmt.Errorf("invalid document ID in item: %w", err)
		}
	}

	var root aggregates.MapNode
	if err := json.Unmarshal([]byte(item.TreeJSON), &root); err != nil {
		return nil, fmt.Errorf("failed to deserialize tree: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, item.CreatedAt)
	if err != nil {
		createdAt = time.Now()
	}
	updatedAt, err := time.Parse(time.RFC3339, item.UpdatedAt)
	if err != nil {
		updatedAt = createdAt
	}

	return aggregates.ReconstructMindMap(
		mapID,
		item.UserID,
		documentID,
		item.Title,
		&root,
		item.SourceChecksum,
		item.Version,
		createdAt,
		updatedAt,
	)
}

// sortMapsByCriteria orders search results client side
func sortMapsByCriteria(maps []*aggregates.MindMap, criteria ports.SearchCriteria) {
	less := func(a, b *aggregates.MindMap) bool {
		switch strings.ToLower(criteria.OrderBy) {
		case "title":
			return a.Title() < b.Title()
		case "updated":
			return a.UpdatedAt().Before(b.UpdatedAt())
		default:
			return a.CreatedAt().Before(b.CreatedAt())
		}
	}

	sort.SliceStable(maps, func(i, j int) bool {
		if criteria.OrderDesc {
			return less(maps[j], maps[i])
		}
		return less(maps[i], maps[j])
	})
}
