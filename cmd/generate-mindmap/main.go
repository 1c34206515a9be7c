// Package main implements the Lambda handler for asynchronous mind map
// regeneration. It is invoked directly with a document reference or through
// an EventBridge rule on document.uploaded events.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	awsevents "github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"medmap-backend/application/commands"
	commands_handlers "medmap-backend/application/commands/handlers"
	"medmap-backend/infrastructure/config"
	"medmap-backend/infrastructure/di"
)

// Global dependencies for Lambda performance optimization
var orchestrator *commands_handlers.RegenerateMindMapOrchestrator

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}

	orchestrator = container.Orchestrator

	log.Println("Generate-mindmap handler initialized successfully")
}

// RegenerationRequest represents the input for a regeneration run
type RegenerationRequest struct {
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
}

// RegenerationResponse describes the regenerated map
type RegenerationResponse struct {
	MapID      string `json:"map_id"`
	DocumentID string `json:"document_id"`
	NodeCount  int    `json:"node_count"`
	Version    int    `json:"version"`
}

// HandleRegeneration rebuilds the mind map for a stored document
func HandleRegeneration(ctx context.Context, request RegenerationRequest) (*RegenerationResponse, error) {
	log.Printf("Regenerating mind map for document %s", request.DocumentID)

	m, err := orchestrator.Handle(ctx, commands.GenerateMindMapCommand{
		UserID:     request.UserID,
		DocumentID: request.DocumentID,
	})
	if err != nil {
		return nil, err
	}

	response := &RegenerationResponse{
		MapID:      m.ID().String(),
		DocumentID: m.DocumentID().String(),
		NodeCount:  m.NodeCount(),
		Version:    m.Version(),
	}

	log.Printf("Regenerated map %s with %d nodes for document %s",
		response.MapID, response.NodeCount, request.DocumentID)

	return response, nil
}

// handler is the main Lambda handler for different invocation types
func handler(ctx context.Context, event json.RawMessage) error {
	// Try to parse as EventBridge event (async invocation)
	var cloudWatchEvent awsevents.CloudWatchEvent
	if err := json.Unmarshal(event, &cloudWatchEvent); err == nil && cloudWatchEvent.DetailType != "" {
		if cloudWatchEvent.DetailType != "document.uploaded" {
			log.Printf("Ignoring event with detail-type %q", cloudWatchEvent.DetailType)
			return nil
		}

		var detail struct {
			AggregateID string `json:"aggregate_id"`
			UserID      string `json:"user_id"`
		}
		if err := json.Unmarshal(cloudWatchEvent.Detail, &detail); err != nil {
			return fmt.Errorf("failed to parse document.uploaded event: %w", err)
		}

		_, err := HandleRegeneration(ctx, RegenerationRequest{
			UserID:     detail.UserID,
			DocumentID: detail.AggregateID,
		})
		return err
	}

	// Try to parse as direct invocation
	var request RegenerationRequest
	if err := json.Unmarshal(event, &request); err == nil && request.DocumentID != "" {
		_, err := HandleRegeneration(ctx, request)
		return err
	}

	return fmt.Errorf("unable to parse event")
}

func main() {
	// Check if running in Lambda environment
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		log.Println("Starting generate-mindmap Lambda")
		lambda.Start(handler)
		return
	}

	// Local testing mode: regenerate a document passed on the command line
	if len(os.Args) < 3 {
		log.Fatal("usage: generate-mindmap <user-id> <document-id>")
	}

	response, err := HandleRegeneration(context.Background(), RegenerationRequest{
		UserID:     os.Args[1],
		DocumentID: os.Args[2],
	})
	if err != nil {
		log.Fatalf("Regeneration failed: %v", err)
	}

	responseJSON, _ := json.MarshalIndent(response, "", "  ")
	log.Printf("Regeneration result:\n%s", responseJSON)
}
