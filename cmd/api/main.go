package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ivspro/tariff-import/internal/cache"
	"github.com/ivspro/tariff-import/internal/config"
	"github.com/ivspro/tariff-import/internal/database"
	"github.com/ivspro/tariff-import/internal/handler"
	"github.com/ivspro/tariff-import/internal/importer"
	"github.com/ivspro/tariff-import/internal/lock"
	"github.com/ivspro/tariff-import/internal/middleware"
	"github.com/ivspro/tariff-import/internal/remote"
	"github.com/ivspro/tariff-import/internal/repository"
	"github.com/ivspro/tariff-import/internal/service"
	"github.com/ivspro/tariff-import/internal/sse"
	"github.com/ivspro/tariff-import/internal/worker"
)

// main is the application entrypoint for the tariff import service.
func main() {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Setup logger
	setupLogger(cfg.Env)
	log.Info().Str("env", cfg.Env).Msg("starting tariff import service")

	// 3. Connect database
	db, err := database.Connect(&cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		fmt.Fprintf(os.Stderr, "database connection failed: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	// 3a. Run migrations
	if err := runMigrations(db.DB); err != nil {
		log.Error().Err(err).Msg("migration failed")
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}
	log.Info().Msg("migrations completed successfully")

	// 3b. Connect to Redis
	redisClient, err := cache.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Error().Err(err).Msg("redis connection failed")
		fmt.Fprintf(os.Stderr, "redis connection failed: %v\n", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected successfully")

	// 4. Initialize repositories
	providerRepo := repository.NewProviderRepository(db)
	productRepo := repository.NewProductRepository(db)
	logRepo := repository.NewImportLogRepository(db)
	templateRepo := repository.NewMappingTemplateRepository(db)

	// 5. Initialize import engine and services
	dialOpts := remote.Options{SFTPDisabled: cfg.Import.SFTPDisabled}
	if cfg.Import.SFTPDisabled {
		log.Warn().Msg("sftp capability disabled by configuration")
	}

	fileImporter := importer.New(productRepo, cfg.Import.CurrencyDecimals, templateRepo)
	locker := lock.New(redisClient.Client(), cfg.Import.LockTTL)
	previewCache := cache.NewPreviewCache(redisClient)

	eventHub := sse.NewHub()
	runSvc := service.NewRunService(providerRepo, logRepo, fileImporter, locker, dialOpts, sse.NewHubNotifier(eventHub), previewCache)
	previewSvc := service.NewPreviewService(providerRepo, previewCache, dialOpts)
	seedSvc := service.NewSeedService(providerRepo, "main")

	// 5a. Apply provider seed file once at startup, if configured
	seedPath, seedSource := config.ResolveSeedPath(
		config.SeedSource{Name: "env:TARIFF_PROVIDERS_PATH", Value: os.Getenv("TARIFF_PROVIDERS_PATH")},
		config.SeedSource{Name: "config:PROVIDERS_SEED_PATH", Value: cfg.Import.SeedPath},
	)
	if seedPath != "" {
		log.Info().Str("path", seedPath).Str("source", seedSource).Msg("applying provider seed")
		if _, err := seedSvc.ApplyFromPath(context.Background(), seedPath); err != nil {
			log.Error().Err(err).Str("path", seedPath).Msg("provider seed failed")
		}
	}

	// 6. Initialize handlers
	handlers := &Handlers{
		Health:    handler.NewHealthHandler(db, redisClient.Client()),
		Provider:  handler.NewProviderHandler(providerRepo, previewSvc),
		Import:    handler.NewImportHandler(runSvc, previewSvc),
		ImportLog: handler.NewImportLogHandler(logRepo),
		Mapping:   handler.NewMappingTemplateHandler(templateRepo),
		Event:     handler.NewEventHandler(eventHub, cfg.APIKey),
	}

	// 7. Initialize middleware
	authMw := middleware.NewAuthMiddleware(cfg.APIKey)

	// 8. Setup router
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.LoggingMiddleware())
	setupRoutes(router, handlers, authMw)

	// 9. Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 10. Start the daily auto-run worker
	go worker.NewAutoRunWorker(
		providerRepo, runSvc,
		cfg.Worker.AutoRunHour,
		cfg.Worker.AutoRunCheckInterval,
	).Start(ctx)

	// 11. Start HTTP server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// 12. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// 13. Cancel context to stop workers
	cancel()

	// 14. Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
}

// Handlers groups all HTTP handlers used by the server.
type Handlers struct {
	Health    *handler.HealthHandler
	Provider  *handler.ProviderHandler
	Import    *handler.ImportHandler
	ImportLog *handler.ImportLogHandler
	Mapping   *handler.MappingTemplateHandler
	Event     *handler.EventHandler
}

// setupRoutes registers all routes.
func setupRoutes(router *gin.Engine, handlers *Handlers, authMiddleware *middleware.AuthMiddleware) {
	router.GET("/v1/health", handlers.Health.GetHealth)

	// Run progress stream authenticates via query param inside the
	// handler, the EventSource API cannot set headers.
	router.GET("/v1/events", handlers.Event.Stream)

	// Management API (protected with the operator API key)
	v1 := router.Group("/v1")
	v1.Use(authMiddleware.Handle())
	{
		v1.GET("/providers", handlers.Provider.ListProviders)
		v1.POST("/providers", handlers.Provider.CreateProvider)
		v1.GET("/providers/:id", handlers.Provider.GetProvider)
		v1.PUT("/providers/:id", handlers.Provider.UpdateProvider)
		v1.DELETE("/providers/:id", handlers.Provider.DeleteProvider)
		v1.POST("/providers/:id/test", handlers.Provider.TestConnection)

		v1.GET("/providers/:id/files", handlers.Import.ListFiles)
		v1.POST("/providers/:id/preview", handlers.Import.PreviewFile)
		v1.POST("/providers/:id/run", handlers.Import.RunProvider)

		v1.GET("/mapping-templates", handlers.Mapping.ListTemplates)
		v1.POST("/mapping-templates", handlers.Mapping.CreateTemplate)
		v1.GET("/mapping-templates/:id", handlers.Mapping.GetTemplate)
		v1.PUT("/mapping-templates/:id", handlers.Mapping.UpdateTemplate)
		v1.DELETE("/mapping-templates/:id", handlers.Mapping.DeleteTemplate)

		v1.GET("/import-logs", handlers.ImportLog.ListLogs)
		v1.GET("/import-logs/:id", handlers.ImportLog.GetLog)
	}
}

// runMigrations runs database migrations using golang-migrate.
func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func setupLogger(env string) {
	if env == "production" {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
