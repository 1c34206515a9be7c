package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"medmap-backend/domain/core/entities"
	"medmap-backend/domain/core/valueobjects"
	pkgerrors "medmap-backend/pkg/errors"
)

// DocumentRepository implements the DocumentRepository port using DynamoDB.
// Documents share the single table with mind maps under the owning user's
// partition.
type DocumentRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewDocumentRepository creates a new DocumentRepository
func NewDocumentRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) *DocumentRepository {
	return &DocumentRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// documentItem represents the DynamoDB item structure for a document
type documentItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	GSI1PK     string `dynamodbav:"GSI1PK,omitempty"` // For document lookups by ID
	GSI1SK     string `dynamodbav:"GSI1SK,omitempty"`
	EntityType string `dynamodbav:"EntityType"`
	DocumentID string `dynamodbav:"DocumentID"`
	UserID     string `dynamodbav:"UserID"`
	Filename   string `dynamodbav:"Filename"`
	Extension  string `dynamodbav:"Extension"`
	StoredPath string `dynamodbav:"StoredPath,omitempty"`
	SizeBytes  int64  `dynamodbav:"SizeBytes"`
	CharCount  int    `dynamodbav:"CharCount"`
	Status     string `dynamodbav:"Status"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
	Version    int    `dynamodbav:"Version"`
}

// Save persists a document to DynamoDB
func (r *DocumentRepository) Save(ctx context.Context, doc *entities.Document) error {
	item := r.toItem(doc)

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}

	if _, err := r.client.PutItem(ctx, input); err != nil {
		r.logger.Error("Failed to save document to DynamoDB",
			zap.Error(err),
			zap.String("documentID", doc.ID().String()),
		)
		return fmt.Errorf("failed to save document: %w", err)
	}

	r.logger.Debug("Document saved to DynamoDB",
		zap.String("documentID", doc.ID().String()),
		zap.String("userID", doc.UserID()),
		zap.String("status", string(doc.Status())),
	)

	return nil
}

// SaveWithUoW registers the document save within a unit of work transaction
func (r *DocumentRepository) SaveWithUoW(ctx context.Context, doc *entities.Document, uow interface{}) error {
	dynamoUoW, ok := uow.(*DynamoDBUnitOfWork)
	if !ok {
		return fmt.Errorf("invalid unit of work type")
	}

	av, err := attributevalue.MarshalMap(r.toItem(doc))
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	transactItem := types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item:      av,
		},
	}

	if err := dynamoUoW.RegisterSave(transactItem); err != nil {
		return fmt.Errorf("failed to register document save: %w", err)
	}

	for _, event := range doc.GetUncommittedEvents() {
		if err := dynamoUoW.RegisterEvent(event); err != nil {
			return fmt.Errorf("failed to register document event: %w", err)
		}
	}

	r.logger.Debug("Document registered for transactional save",
		zap.String("documentID", doc.ID().String()),
		zap.String("userID", doc.UserID()),
	)

	return nil
}

// GetByID retrieves a document by its ID
func (r *DocumentRepository) GetByID(ctx context.Context, id valueobjects.DocumentID) (*entities.Document, error) {
	// Use GSI1 for efficient lookup by document ID
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("GSI1"),
		KeyConditionExpression: aws.String("GSI1PK = :pk AND GSI1SK = :sk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: fmt.Sprintf("DOC#%s", id.String())},
			":sk": &types.AttributeValueMemberS{Value: "METADATA"},
		},
		Limit: aws.Int32(1),
	}

	result, err := r.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query document: %w", err)
	}

	if len(result.Items) == 0 {
		return nil, pkgerrors.ErrDocumentNotFound.Clone().
			WithDetail("document_id", id.String())
	}

	var item documentItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}

	return r.toEntity(item)
}

// GetByUserID retrieves all documents for a user
func (r *DocumentRepository) GetByUserID(ctx context.Context, userID string) ([]*entities.Document, error) {
	keyEx := expression.Key("PK").Equal(expression.Value(fmt.Sprintf("USER#%s", userID))).
		And(expression.Key("SK").BeginsWith("DOC#"))

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

	var docs []*entities.Document
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query documents: %w", err)
		}

		for _, raw := range result.Items {
			var item documentItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to unmarshal document item", zap.Error(err))
				continue
			}

			doc, err := r.toEntity(item)
			if err != nil {
				r.logger.Warn("Failed to reconstruct document from item",
					zap.String("documentID", item.DocumentID),
					zap.Error(err),
				)
				continue
			}
			docs = append(docs, doc)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return docs, nil
}

// ListOlderThan retrieves documents uploaded before the cutoff.
// We use a scan with a filter for simplicity; retention sweeps run rarely
// and off the request path.
func (r *DocumentRepository) ListOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]*entities.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	input := &dynamodb.ScanInput{
		TableName:        aws.String(r.tableName),
		FilterExpression: aws.String("EntityType = :entityType AND CreatedAt < :cutoff"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":entityType": &types.AttributeValueMemberS{Value: "DOCUMENT"},
			":cutoff":     &types.AttributeValueMemberS{Value: cutoff.UTC().Format(time.RFC3339)},
		},
		Limit: aws.Int32(int32(limit)),
	}

	result, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to scan old documents: %w", err)
	}

	docs := make([]*entities.Document, 0, len(result.Items))
	for _, raw := range result.Items {
		var item documentItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			continue // Skip malformed records
		}
		doc, err := r.toEntity(item)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}

	return docs, nil
}

// Delete removes a document record
func (r *DocumentRepository) Delete(ctx context.Context, userID string, id valueobjects.DocumentID) error {
	input := &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("USER#%s", userID)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("DOC#%s", id.String())},
		},
		ConditionExpression: aws.String("attribute_exists(PK)"),
	}

	if _, err := r.client.DeleteItem(ctx, input); err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return pkgerrors.ErrDocumentNotFound.Clone().
				WithDetail("document_id", id.String())
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}

	r.logger.Debug("Document deleted",
		zap.String("documentID", id.String()),
		zap.String("userID", userID),
	)

	return nil
}

// toItem converts the entity to its DynamoDB item
func (r *DocumentRepository) toItem(doc *entities.Document) *documentItem {
	return &documentItem{
		PK:         fmt.Sprintf("USER#%s", doc.UserID()),
		SK:         fmt.Sprintf("DOC#%s", doc.ID().String()),
		GSI1PK:     fmt.Sprintf("DOC#%s", doc.ID().String()),
		GSI1SK:     "METADATA",
		EntityType: "DOCUMENT",
		DocumentID: doc.ID().String(),
		UserID:     doc.UserID(),
		Filename:   doc.Filename(),
		Extension:  doc.Extension(),
		StoredPath: doc.StoredPath(),
		SizeBytes:  doc.SizeBytes(),
		CharCount:  doc.CharCount(),
		Status:     string(doc.Status()),
		CreatedAt:  doc.CreatedAt().Format(time.RFC3339),
		UpdatedAt:  doc.UpdatedAt().Format(time.RFC3339),
		Version:    doc.Version(),
	}
}

// toEntity reconstructs the entity from a DynamoDB item
func (r *DocumentRepository) toEntity(item documentItem) (*entities.Document, error) {
	id, err := valueobjects.NewDocumentIDFromString(item.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("invalid document ID in item: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339, item.CreatedAt)
	if err != nil {
		createdAt = time.Now()
	}
	updatedAt, err := time.Parse(time.RFC3339, item.UpdatedAt)
	if err != nil {
		updatedAt = createdAt
	}

	doc, err := entities.ReconstructDocument(
		id,
		item.UserID,
		item.Filename,
		item.Extension,
		item.StoredPath,
		item.SizeBytes,
		item.CharCount,
		createdAt,
		updatedAt,
		entities.DocumentStatus(item.Status),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct document: %w", err)
	}

	return doc, nil
}
