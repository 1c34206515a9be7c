package di

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"medmap-backend/application/commands"
	"medmap-backend/application/commands/bus"
	commands_handlers "medmap-backend/application/commands/handlers"
	"medmap-backend/application/ports"
	"medmap-backend/application/queries"
	querybus "medmap-backend/application/queries/bus"
	queries_handlers "medmap-backend/application/queries/handlers"
	"medmap-backend/application/services"
	domainconfig "medmap-backend/domain/config"
	"medmap-backend/domain/events"
	"medmap-backend/infrastructure/config"
	"medmap-backend/infrastructure/inference"
	"medmap-backend/infrastructure/intake"
	"medmap-backend/infrastructure/messaging"
	"medmap-backend/infrastructure/messaging/eventbridge"
	"medmap-backend/infrastructure/persistence/dynamodb"
	"medmap-backend/infrastructure/persistence/memory"
	"medmap-backend/pkg/auth"
	"medmap-backend/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// usePersistentStore reports whether the DynamoDB-backed persistence should
// be wired instead of the in-memory implementations
func usePersistentStore(cfg *config.Config) bool {
	return cfg.IsProduction() || cfg.Environment == "staging" || cfg.IsLambda
}

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zapCfg.Build()
}

// ProvideDomainConfig creates the generation tunables
func ProvideDomainConfig() *domainconfig.DomainConfig {
	return domainconfig.DefaultDomainConfig()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideMindMapRepository creates a mind map repository wrapped in operation
// metrics
func ProvideMindMapRepository(client *awsdynamodb.Client, cfg *config.Config, collector *observability.Collector, logger *zap.Logger) ports.MindMapRepository {
	if usePersistentStore(cfg) {
		return instrumentMindMapRepository(dynamodb.NewMindMapRepository(client, cfg.DynamoDBTable, logger), collector)
	}
	return instrumentMindMapRepository(memory.NewMindMapRepository(), collector)
}

// ProvideDocumentRepository creates a document repository wrapped in operation
// metrics
func ProvideDocumentRepository(client *awsdynamodb.Client, cfg *config.Config, collector *observability.Collector, logger *zap.Logger) ports.DocumentRepository {
	if usePersistentStore(cfg) {
		return instrumentDocumentRepository(dynamodb.NewDocumentRepository(client, cfg.DynamoDBTable, logger), collector)
	}
	return instrumentDocumentRepository(memory.NewDocumentRepository(), collector)
}

// ProvideEventStore creates an event store
func ProvideEventStore(client *awsdynamodb.Client, cfg *config.Config) ports.EventStore {
	if usePersistentStore(cfg) {
		return dynamodb.NewDynamoDBEventStore(client, cfg.DynamoDBTable)
	}
	return memory.NewEventStore()
}

// ProvideUnitOfWork creates a unit of work for transactions
func ProvideUnitOfWork(
	client *awsdynamodb.Client,
	cfg *config.Config,
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	eventStore ports.EventStore,
	logger *zap.Logger,
) ports.UnitOfWork {
	if usePersistentStore(cfg) {
		return dynamodb.NewDynamoDBUnitOfWork(client, mapRepo, docRepo, eventStore, logger)
	}
	return memory.NewUnitOfWork(mapRepo, docRepo, eventStore)
}

// ProvideEventBus creates an event bus. EventBridge is used when events are
// enabled and a bus name is configured; otherwise events stay in-process.
func ProvideEventBus(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventBus {
	if cfg.EnableEvents && cfg.EventBusName != "" {
		return eventbridge.NewEventBridgePublisher(client, cfg.EventBusName, logger)
	}
	return messaging.NewLocalEventBus(logger)
}

// ProvideEventPublisher creates an event publisher (adapter for EventBus)
func ProvideEventPublisher(eventBus ports.EventBus) ports.EventPublisher {
	return &eventPublisherAdapter{eventBus: eventBus}
}

// eventPublisherAdapter adapts EventBus to EventPublisher interface
type eventPublisherAdapter struct {
	eventBus ports.EventBus
}

func (a *eventPublisherAdapter) Publish(ctx context.Context, event events.DomainEvent) error {
	return a.eventBus.Publish(ctx, event)
}

func (a *eventPublisherAdapter) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	return a.eventBus.PublishBatch(ctx, batch)
}

// ProvideInMemoryCache creates a simple in-memory cache
// In production, this would be Redis or similar
func ProvideInMemoryCache(collector *observability.Collector) ports.Cache {
	return memory.NewCache(collector)
}

// ProvideFileStore creates the upload store rooted at the configured directory
func ProvideFileStore(cfg *config.Config, logger *zap.Logger) (ports.FileStore, error) {
	return intake.NewLocalFileStore(cfg.UploadDir, intake.MaxUploadBytes, logger)
}

// ProvideTextExtractor creates the extension-dispatched extractor registry
func ProvideTextExtractor() ports.TextExtractor {
	return intake.NewExtractorRegistry()
}

// ProvideSummarizer creates the configured summarizer wrapped in call metrics
// and a circuit breaker. When the hugot model cannot be loaded the extractive
// summarizer takes over so the service still starts.
func ProvideSummarizer(cfg *config.Config, collector *observability.Collector, logger *zap.Logger) ports.Summarizer {
	var inner ports.Summarizer
	backend := "extractive"
	switch cfg.SummarizerProvider {
	case config.SummarizerHugot:
		hugotSummarizer, err := inference.NewHugotSummarizer("", cfg.ModelPath, logger)
		if err != nil {
			logger.Warn("Hugot summarizer unavailable, falling back to extractive",
				zap.String("modelPath", cfg.ModelPath),
				zap.Error(err),
			)
			inner = inference.NewExtractiveSummarizer(logger)
		} else {
			inner = hugotSummarizer
			backend = "hugot"
		}
	default:
		inner = inference.NewExtractiveSummarizer(logger)
	}

	instrumented := inference.NewInstrumentedSummarizer(inner, backend, collector)
	return inference.NewResilientSummarizer(instrumented, inference.DefaultSummarizerBreakerConfig(), logger)
}

// ProvideEmbedder creates the optional embedder. Related-map scoring works
// without one, so a missing model just yields nil.
func ProvideEmbedder(cfg *config.Config, logger *zap.Logger) ports.Embedder {
	if cfg.SummarizerProvider != config.SummarizerHugot || cfg.ModelPath == "" {
		return nil
	}

	embedder, err := inference.NewHugotEmbedder("", cfg.ModelPath, logger)
	if err != nil {
		logger.Warn("Hugot embedder unavailable, related maps will use word overlap",
			zap.Error(err),
		)
		return nil
	}
	return embedder
}

// ProvideCollector creates the Prometheus metrics collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("medmap")
}

// ProvideMetrics creates the CloudWatch metrics instance. Publishing is
// disabled (nil client) unless metrics are enabled.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config) *observability.Metrics {
	namespace := fmt.Sprintf("MedMap/%s", cfg.Environment)
	if !cfg.EnableMetrics {
		return observability.NewMetrics(namespace, nil)
	}
	return observability.NewMetrics(namespace, client)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer() *observability.Tracer {
	return observability.NewTracer("medmap-backend")
}

// ProvideGenerationService creates the summarize-and-assemble pipeline
func ProvideGenerationService(
	summarizer ports.Summarizer,
	tracer *observability.Tracer,
	collector *observability.Collector,
	logger *zap.Logger,
	domainCfg *domainconfig.DomainConfig,
) *services.GenerationService {
	return services.NewGenerationService(summarizer, tracer, collector, logger, domainCfg)
}

// ProvideRelatedMapsService creates the related-map suggestion service
func ProvideRelatedMapsService(
	mapRepo ports.MindMapRepository,
	embedder ports.Embedder,
	logger *zap.Logger,
) *services.RelatedMapsService {
	return services.NewRelatedMapsService(mapRepo, embedder, logger)
}

// ProvideDistributedLock creates the regeneration lock. In-memory deployments
// run single-process and get a nil lock, which skips serialization.
func ProvideDistributedLock(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) *dynamodb.DistributedLock {
	if !usePersistentStore(cfg) {
		return nil
	}
	return dynamodb.NewDistributedLock(client, cfg.DynamoDBTable, logger)
}

// RequestLimiters groups the per-IP and per-user request limiters
type RequestLimiters struct {
	IP   auth.RateLimiter
	User auth.RateLimiter
}

// ProvideRequestLimiters creates the request limiters. The DynamoDB-backed
// limiters share windows across instances; the in-process ones are per
// replica. Authenticated users get twice the anonymous allowance.
func ProvideRequestLimiters(client *awsdynamodb.Client, cfg *config.Config) RequestLimiters {
	userPerMinute := 2 * cfg.RateLimitPerMinute
	if cfg.DistributedRateLimit {
		return RequestLimiters{
			IP:   auth.NewDistributedIPRateLimiter(client, cfg.DynamoDBTable, cfg.RateLimitPerMinute),
			User: auth.NewDistributedUserRateLimiter(client, cfg.DynamoDBTable, userPerMinute),
		}
	}
	return RequestLimiters{
		IP:   auth.NewIPRateLimiter(cfg.RateLimitPerMinute),
		User: auth.NewUserRateLimiter(userPerMinute),
	}
}

// ProvideJWTValidator creates the JWT validator. Outside production a missing
// secret is replaced with an ephemeral random one.
func ProvideJWTValidator(cfg *config.Config, logger *zap.Logger) (*auth.JWTValidator, error) {
	secret := cfg.JWTSecret
	if secret == "" {
		if cfg.IsProduction() {
			return nil, fmt.Errorf("JWT_SECRET must be set in production")
		}
		secret = ephemeralSecret()
		logger.Warn("JWT_SECRET not set, using an ephemeral secret; issued tokens will not survive restarts")
	}

	return auth.NewJWTValidator(auth.JWTConfig{
		SigningMethod: "HS256",
		SecretKey:     secret,
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
	})
}

func ephemeralSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return hex.EncodeToString(buf)
}

// ProvideGenerateMindMapHandler creates the synchronous generation handler
func ProvideGenerateMindMapHandler(
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	fileStore ports.FileStore,
	extractor ports.TextExtractor,
	generation *services.GenerationService,
	eventBus ports.EventBus,
	metrics *observability.Metrics,
	logger *zap.Logger,
	domainCfg *domainconfig.DomainConfig,
) *commands.GenerateMindMapHandler {
	return commands.NewGenerateMindMapHandler(mapRepo, docRepo, fileStore, extractor, generation, eventBus, metrics, logger, domainCfg)
}

// ProvideRenameMindMapHandler creates the rename handler
func ProvideRenameMindMapHandler(
	mapRepo ports.MindMapRepository,
	cache ports.Cache,
	eventBus ports.EventBus,
	logger *zap.Logger,
	domainCfg *domainconfig.DomainConfig,
) *commands_handlers.RenameMindMapHandler {
	return commands_handlers.NewRenameMindMapHandler(mapRepo, cache, eventBus, logger, domainCfg)
}

// ProvideBulkDeleteHandler creates the transactional bulk delete handler
func ProvideBulkDeleteHandler(
	uow ports.UnitOfWork,
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	fileStore ports.FileStore,
	eventBus ports.EventBus,
	cache ports.Cache,
	collector *observability.Collector,
	logger *zap.Logger,
) *commands_handlers.BulkDeleteMindMapsHandler {
	return commands_handlers.NewBulkDeleteMindMapsHandler(uow, mapRepo, docRepo, fileStore, eventBus, cache, collector, logger)
}

// ProvideRegenerateOrchestrator creates the orchestrator used by the async
// regeneration worker
func ProvideRegenerateOrchestrator(
	uow ports.UnitOfWork,
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	fileStore ports.FileStore,
	extractor ports.TextExtractor,
	generation *services.GenerationService,
	eventPublisher ports.EventPublisher,
	distributedLock *dynamodb.DistributedLock,
	logger *zap.Logger,
	domainCfg *domainconfig.DomainConfig,
) *commands_handlers.RegenerateMindMapOrchestrator {
	return commands_handlers.NewRegenerateMindMapOrchestrator(
		uow,
		mapRepo,
		docRepo,
		fileStore,
		extractor,
		generation,
		eventPublisher,
		distributedLock,
		&zapLoggerAdapter{logger},
		domainCfg,
	)
}

// CommandHandlerAdapter adapts specific command handlers to the generic interface
type CommandHandlerAdapter struct {
	handler func(context.Context, bus.Command) error
}

func (a *CommandHandlerAdapter) Handle(ctx context.Context, cmd bus.Command) error {
	return a.handler(ctx, cmd)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	fileStore ports.FileStore,
	eventStore ports.EventStore,
	eventBus ports.EventBus,
	cache ports.Cache,
	generateHandler *commands.GenerateMindMapHandler,
	renameHandler *commands_handlers.RenameMindMapHandler,
	bulkDeleteHandler *commands_handlers.BulkDeleteMindMapsHandler,
	metrics *observability.Metrics,
	collector *observability.Collector,
	logger *zap.Logger,
) *bus.CommandBus {
	// Handlers that need a transaction begin one themselves, so the bus gets
	// no unit of work; nesting the semaphore-based one would deadlock.
	commandBus := bus.NewCommandBusWithDependencies(nil, metrics)

	// Every handler goes through the logging pipeline
	logged := bus.NewPipeline(bus.LoggingMiddleware(logger))

	// Register GenerateMindMapCommand handler
	commandBus.Register(commands.GenerateMindMapCommand{}, logged.Execute(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			generateCmd, ok := cmd.(commands.GenerateMindMapCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			_, err := generateHandler.Handle(ctx, generateCmd)
			return err
		},
	}))

	// Register RenameMindMapCommand handler
	commandBus.Register(commands.RenameMindMapCommand{}, logged.Execute(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			renameCmd, ok := cmd.(commands.RenameMindMapCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			_, err := renameHandler.Handle(ctx, renameCmd)
			return err
		},
	}))

	// Register DeleteMindMapCommand handler
	deleteHandler := commands_handlers.NewDeleteMindMapHandler(mapRepo, docRepo, fileStore, eventStore, eventBus, cache, collector, logger)
	commandBus.Register(commands.DeleteMindMapCommand{}, logged.Execute(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			deleteCmd, ok := cmd.(commands.DeleteMindMapCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			return deleteHandler.Handle(ctx, deleteCmd)
		},
	}))

	// Register BulkDeleteMindMapsCommand handler
	commandBus.Register(commands.BulkDeleteMindMapsCommand{}, logged.Execute(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			bulkCmd, ok := cmd.(commands.BulkDeleteMindMapsCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			_, err := bulkDeleteHandler.Handle(ctx, bulkCmd)
			return err
		},
	}))

	// Register CleanupUploadsCommand handler
	cleanupHandler := commands.NewCleanupUploadsHandler(fileStore, docRepo, eventStore, logger)
	commandBus.Register(commands.CleanupUploadsCommand{}, logged.Execute(&CommandHandlerAdapter{
		handler: func(ctx context.Context, cmd bus.Command) error {
			cleanupCmd, ok := cmd.(commands.CleanupUploadsCommand)
			if !ok {
				return fmt.Errorf("invalid command type")
			}
			_, err := cleanupHandler.Handle(ctx, cleanupCmd)
			return err
		},
	}))

	return commandBus
}

// QueryHandlerAdapter adapts specific query handlers to the generic interface
type QueryHandlerAdapter struct {
	handler func(context.Context, querybus.Query) (interface{}, error)
}

func (a *QueryHandlerAdapter) Handle(ctx context.Context, query querybus.Query) (interface{}, error) {
	return a.handler(ctx, query)
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	mapRepo ports.MindMapRepository,
	docRepo ports.DocumentRepository,
	cache ports.Cache,
	collector *observability.Collector,
	logger *zap.Logger,
) *querybus.QueryBus {
	queryBus := querybus.NewQueryBus()

	// Every handler reports duration and outcome to Prometheus
	metered := querybus.NewMetricsMiddleware(collector)

	// Register GetMindMapQuery handler
	getMindMapHandler := queries.NewGetMindMapHandler(mapRepo, cache)
	queryBus.Register(queries.GetMindMapQuery{}, metered.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			getQuery, ok := query.(queries.GetMindMapQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getMindMapHandler.Handle(ctx, getQuery)
		},
	}))

	// Register GetDocumentQuery handler
	getDocumentHandler := queries.NewGetDocumentHandler(docRepo)
	queryBus.Register(queries.GetDocumentQuery{}, metered.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			getQuery, ok := query.(queries.GetDocumentQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return getDocumentHandler.Handle(ctx, getQuery)
		},
	}))

	// Register ListDocumentsQuery handler
	listDocumentsHandler := queries.NewListDocumentsHandler(docRepo)
	queryBus.Register(queries.ListDocumentsQuery{}, metered.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			listQuery, ok := query.(queries.ListDocumentsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listDocumentsHandler.Handle(ctx, listQuery)
		},
	}))

	// Register ListMindMapsQuery handler
	listMindMapsHandler := queries_handlers.NewListMindMapsHandler(mapRepo, docRepo, logger)
	queryBus.Register(queries.ListMindMapsQuery{}, metered.Wrap(&QueryHandlerAdapter{
		handler: func(ctx context.Context, query querybus.Query) (interface{}, error) {
			listQuery, ok := query.(queries.ListMindMapsQuery)
			if !ok {
				return nil, fmt.Errorf("invalid query type")
			}
			return listMindMapsHandler.Handle(ctx, listQuery)
		},
	}))

	return queryBus
}

// ProvideOutboxProcessor creates the outbox relay. It is nil when events are
// disabled or the event store is not DynamoDB-backed; callers must check.
func ProvideOutboxProcessor(
	eventStore ports.EventStore,
	eventPublisher ports.EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *dynamodb.OutboxProcessor {
	if !cfg.EnableEvents || cfg.EventBusName == "" {
		return nil
	}

	store, ok := eventStore.(*dynamodb.DynamoDBEventStore)
	if !ok {
		return nil
	}
	return dynamodb.NewOutboxProcessor(store, eventPublisher, logger)
}

// zapLoggerAdapter adapts zap.Logger to the handlers.Logger interface
type zapLoggerAdapter struct {
	logger *zap.Logger
}

func (a *zapLoggerAdapter) Debug(msg string, fields ...interface{}) {
	a.logger.Debug(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) Info(msg string, fields ...interface{}) {
	a.logger.Info(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) Error(msg string, fields ...interface{}) {
	a.logger.Error(msg, a.fieldsToZap(fields...)...)
}

func (a *zapLoggerAdapter) fieldsToZap(fields ...interface{}) []zap.Field {
	var zapFields []zap.Field
	for i := 0; i < len(fields); i += 2 {
		if i+1 < len(fields) {
			key, _ := fields[i].(string)
			zapFields = append(zapFields, zap.Any(key, fields[i+1]))
		}
	}
	return zapFields
}
