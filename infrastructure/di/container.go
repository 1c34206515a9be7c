package di

import (
	"medmap-backend/application/commands"
	"medmap-backend/application/commands/bus"
	commands_handlers "medmap-backend/application/commands/handlers"
	"medmap-backend/application/ports"
	querybus "medmap-backend/application/queries/bus"
	"medmap-backend/application/services"
	domainconfig "medmap-backend/domain/config"
	"medmap-backend/infrastructure/config"
	"medmap-backend/infrastructure/persistence/dynamodb"
	"medmap-backend/pkg/auth"
	"medmap-backend/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	DomainConfig *domainconfig.DomainConfig
	Logger       *zap.Logger
	MindMapRepo  ports.MindMapRepository
	DocumentRepo ports.DocumentRepository
	EventBus     ports.EventBus
	EventStore   ports.EventStore
	UnitOfWork   ports.UnitOfWork
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	Cache        ports.Cache
	FileStore    ports.FileStore
	Extractor    ports.TextExtractor
	Generation   *services.GenerationService

	// Handlers the HTTP layer calls directly because it needs their results;
	// the command bus only returns errors.
	GenerateHandler   *commands.GenerateMindMapHandler
	RenameHandler     *commands_handlers.RenameMindMapHandler
	BulkDeleteHandler *commands_handlers.BulkDeleteMindMapsHandler
	Orchestrator      *commands_handlers.RegenerateMindMapOrchestrator

	RelatedMaps  *services.RelatedMapsService
	Collector    *observability.Collector
	Metrics      *observability.Metrics
	Tracer       *observability.Tracer
	JWTValidator *auth.JWTValidator
	Limiters     RequestLimiters

	// OutboxProcessor is nil when events are disabled or persistence is
	// in-memory
	OutboxProcessor *dynamodb.OutboxProcessor
}
