package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"medmap-backend/infrastructure/config"
	"medmap-backend/infrastructure/di"
	"medmap-backend/interfaces/http/rest"
)

func main() {
	// Initialize context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration: defaults, then the optional YAML file, then env
	configPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.LoadConfigWithOverlay(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	// Hot-reload the overlay file in development; inert elsewhere
	watcher, err := config.NewWatcher(cfg, configPath, container.Logger)
	if err != nil {
		log.Fatalf("Failed to watch configuration: %v", err)
	}
	defer watcher.Stop()
	watcher.OnChange(func(next *config.Config) {
		container.Logger.Info("Configuration reloaded",
			zap.String("log_level", next.LogLevel),
			zap.Int("rate_limit_per_minute", next.RateLimitPerMinute),
		)
	})

	// Background event publishing from the outbox table; nil when events
	// are disabled or persistence is in-memory
	if container.OutboxProcessor != nil {
		container.OutboxProcessor.Start(ctx)
	}

	// Create router
	router := rest.NewRouter(rest.Deps{
		Config:         container.Config,
		CommandBus:     container.CommandBus,
		QueryBus:       container.QueryBus,
		Generate:       container.GenerateHandler,
		Rename:         container.RenameHandler,
		BulkDelete:     container.BulkDeleteHandler,
		Related:        container.RelatedMaps,
		FileStore:      container.FileStore,
		Extractor:      container.Extractor,
		Generation:     container.Generation,
		DomainConfig:   container.DomainConfig,
		TokenValidator: container.JWTValidator,
		IPLimiter:      container.Limiters.IP,
		UserLimiter:    container.Limiters.User,
		Collector:      container.Collector,
		Logger:         container.Logger,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		container.Logger.Info("Starting server",
			zap.Int("port", cfg.Port),
			zap.String("environment", cfg.Environment),
			zap.String("summarizer", cfg.SummarizerProvider),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	container.Logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}

	if container.OutboxProcessor != nil {
		container.OutboxProcessor.Stop()
	}

	// Clean up resources
	if err := container.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	log.Println("Server stopped")
}
