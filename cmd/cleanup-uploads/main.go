// Package main implements the scheduled Lambda that prunes stored uploads
// past the retention window. An EventBridge schedule invokes it with an
// empty payload; a direct invocation may override the defaults.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"medmap-backend/application/commands"
	commandbus "medmap-backend/application/commands/bus"
	"medmap-backend/infrastructure/config"
	"medmap-backend/infrastructure/di"
)

// defaultRetentionHours keeps uploads around long enough for regeneration
// before they are swept
const defaultRetentionHours = 24

// Global dependencies for Lambda performance optimization
var commandBus *commandbus.CommandBus

func init() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	container, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dependency container: %v", err)
	}

	commandBus = container.CommandBus

	log.Println("Cleanup-uploads handler initialized successfully")
}

// CleanupRequest represents an optional override of the sweep defaults
type CleanupRequest struct {
	OlderThanHours int  `json:"older_than_hours,omitempty"`
	DryRun         bool `json:"dry_run,omitempty"`
}

// HandleCleanup sweeps stale uploads and dead document records
func HandleCleanup(ctx context.Context, request CleanupRequest) error {
	hours := request.OlderThanHours
	if hours <= 0 {
		hours = defaultRetentionHours
	}

	log.Printf("Sweeping uploads older than %dh (dry run: %v)", hours, request.DryRun)

	return commandBus.Send(ctx, commands.CleanupUploadsCommand{
		OlderThan: time.Duration(hours) * time.Hour,
		DryRun:    request.DryRun,
	})
}

// handler tolerates both scheduled events (ignored payload) and direct
// invocations carrying a CleanupRequest
func handler(ctx context.Context, event json.RawMessage) error {
	var request CleanupRequest
	if len(event) > 0 {
		// Scheduled EventBridge payloads don't match this shape; defaults apply
		_ = json.Unmarshal(event, &request)
	}
	return HandleCleanup(ctx, request)
}

func main() {
	// Check if running in Lambda environment
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		log.Println("Starting cleanup-uploads Lambda")
		lambda.Start(handler)
		return
	}

	// Local mode: run one sweep with defaults
	if err := HandleCleanup(context.Background(), CleanupRequest{}); err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}
	log.Println("Cleanup completed")
}
