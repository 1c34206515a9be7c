//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"medmap-backend/infrastructure/config"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideMindMapRepository,
	ProvideDocumentRepository,
	ProvideEventStore,
	ProvideUnitOfWork,
	ProvideEventBus,
	ProvideEventPublisher,
	ProvideInMemoryCache,
	ProvideFileStore,
	ProvideTextExtractor,
	ProvideSummarizer,
	ProvideEmbedder,
	ProvideCollector,
	ProvideMetrics,
	ProvideTracer,
	ProvideGenerationService,
	ProvideRelatedMapsService,
	ProvideDistributedLock,
	ProvideRequestLimiters,
	ProvideJWTValidator,
	ProvideGenerateMindMapHandler,
	ProvideRenameMindMapHandler,
	ProvideBulkDeleteHandler,
	ProvideRegenerateOrchestrator,
	ProvideCommandBus,
	ProvideQueryBus,
	ProvideOutboxProcessor,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
