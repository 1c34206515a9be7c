package rest

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"medmap-backend/application/commands"
	"medmap-backend/application/commands/bus"
	commands_handlers "medmap-backend/application/commands/handlers"
	querybus "medmap-backend/application/queries/bus"
	"medmap-backend/application/ports"
	"medmap-backend/application/services"
	domainconfig "medmap-backend/domain/config"
	"medmap-backend/infrastructure/config"
	"medmap-backend/interfaces/http/rest/handlers"
	"medmap-backend/interfaces/http/rest/middleware"
	"medmap-backend/pkg/auth"
	pkgerrors "medmap-backend/pkg/errors"
	"medmap-backend/pkg/observability"
)

// Deps carries everything the router needs. The DI container satisfies it
// directly; tests fill in only what the route under test touches.
type Deps struct {
	Config         *config.Config
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
	Generate       *commands.GenerateMindMapHandler
	Rename         *commands_handlers.RenameMindMapHandler
	BulkDelete     *commands_handlers.BulkDeleteMindMapsHandler
	Related        *services.RelatedMapsService
	FileStore      ports.FileStore
	Extractor      ports.TextExtractor
	Generation     *services.GenerationService
	DomainConfig   *domainconfig.DomainConfig
	TokenValidator *auth.JWTValidator
	IPLimiter      auth.RateLimiter
	UserLimiter    auth.RateLimiter
	Collector      *observability.Collector
	Logger         *zap.Logger
}

// Router creates and configures the HTTP router
type Router struct {
	deps Deps
}

// NewRouter creates a new router instance
func NewRouter(deps Deps) *Router {
	return &Router{deps: deps}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	cfg := rt.deps.Config
	logger := rt.deps.Logger

	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(logger))
	router.Use(versionMiddleware)
	if rt.deps.Collector != nil {
		router.Use(middleware.Metrics(rt.deps.Collector))
	}

	// CORS configuration
	if cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	if rt.deps.IPLimiter != nil {
		router.Use(middleware.RateLimitByIP(rt.deps.IPLimiter, logger))
	}

	// Health and metrics
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.deps.Collector != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			rt.deps.Collector.GetRegistry(),
			promhttp.HandlerOpts{},
		))
	}

	errorHandler := pkgerrors.NewErrorHandler(logger, cfg.Environment != "production")

	// Upload endpoint kept at its original path and body shape. Anonymous
	// callers are allowed unless the deployment turns that off.
	legacyHandler := handlers.NewLegacyHandler(
		rt.deps.Generate,
		rt.deps.FileStore,
		rt.deps.Extractor,
		rt.deps.Generation,
		rt.deps.DomainConfig,
		rt.deps.Collector,
		logger,
	)
	legacyAuth := middleware.OptionalAuth(rt.deps.TokenValidator, logger)
	if !cfg.AllowAnonymous {
		legacyAuth = middleware.RequireAuth(rt.deps.TokenValidator, rt.deps.UserLimiter, logger)
	}
	router.With(legacyAuth).Post("/api/upload-and-generate", legacyHandler.UploadAndGenerate)

	// API v1 routes
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(rt.deps.TokenValidator, rt.deps.UserLimiter, logger))

		// Mind map endpoints
		r.Route("/mindmaps", func(r chi.Router) {
			mindmapHandler := handlers.NewMindMapHandler(
				rt.deps.CommandBus,
				rt.deps.QueryBus,
				rt.deps.Generate,
				rt.deps.Rename,
				rt.deps.BulkDelete,
				rt.deps.Related,
				rt.deps.Collector,
				errorHandler,
				logger,
			)
			r.Post("/", mindmapHandler.CreateMindMap)
			r.Get("/", mindmapHandler.ListMindMaps)
			r.Post("/bulk-delete", mindmapHandler.BulkDeleteMindMaps)
			r.Get("/{mapID}", mindmapHandler.GetMindMap)
			r.Put("/{mapID}", mindmapHandler.RenameMindMap)
			r.Delete("/{mapID}", mindmapHandler.DeleteMindMap)
			r.Get("/{mapID}/related", mindmapHandler.GetRelatedMaps)
		})

		// Document endpoints
		r.Route("/documents", func(r chi.Router) {
			documentHandler := handlers.NewDocumentHandler(rt.deps.QueryBus, errorHandler, logger)
			r.Get("/", documentHandler.ListDocuments)
			r.Get("/{documentID}", documentHandler.GetDocument)
		})
	})

	// Static frontend with SPA fallback
	if cfg.StaticDir != "" {
		serveFrontend := rt.frontendHandler(cfg.StaticDir)
		router.Get("/", serveFrontend)
		router.Get("/*", serveFrontend)
	}

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// frontendHandler serves files from the static directory and falls back to
// index.html for client-side routes
func (rt *Router) frontendHandler(staticDir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(staticDir))
	indexPath := filepath.Join(staticDir, "index.html")

	return func(w http.ResponseWriter, r *http.Request) {
		requested := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(requested); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, indexPath)
	}
}

// versionMiddleware adds API version headers to all responses
func versionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version := "v1"
		if strings.HasPrefix(r.URL.Path, "/api/") && !strings.HasPrefix(r.URL.Path, "/api/v1") {
			version = "legacy"
		}

		w.Header().Set("X-API-Version", version)
		w.Header().Set("X-API-Latest", "v1")

		next.ServeHTTP(w, r)
	})
}
