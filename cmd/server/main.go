package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tenderplan/internal/auth"
	"tenderplan/internal/config"
	"tenderplan/internal/content"
	outlineSvc "tenderplan/internal/domain/services/outline"
	"tenderplan/internal/handler"
	"tenderplan/internal/handler/sse"
	"tenderplan/internal/middleware"
	"tenderplan/internal/realtime"
	"tenderplan/internal/repository/postgres"
	postgresOutline "tenderplan/internal/repository/postgres/outline"
	serviceAuth "tenderplan/internal/service/auth"
	outlineService "tenderplan/internal/service/outline"
	"tenderplan/internal/storage"
	"tenderplan/internal/webhook"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger) // Set as default logger

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create JWT verifier for Supabase authentication
	jwtVerifier, err := auth.NewJWTVerifier(ctx, cfg.SupabaseJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	// Create pgx connection pool
	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected",
		"max_conns", 25,
		"min_conns", 5,
	)

	// Create table names
	tables := postgres.NewTableNames(cfg.TablePrefix)

	// Create repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	repos := outlineService.Repositories{
		Sections: postgresOutline.NewSectionRepository(repoConfig),
		Tasks:    postgresOutline.NewTaskRepository(repoConfig),
		Images:   postgresOutline.NewTaskImageRepository(repoConfig),
		Contents: postgresOutline.NewTaskContentRepository(repoConfig),
		Sources:  postgresOutline.NewSourceRepository(repoConfig),
	}
	projectRepo := postgresOutline.NewProjectRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool, logger)

	// Realtime: client events fan out through Redis when configured
	var bus realtime.Bus
	if cfg.RedisURL != "" {
		bus, err = realtime.NewRedisBus(ctx, cfg.RedisURL, cfg.RedisChannel, logger)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		logger.Info("realtime bus: redis", "channel", cfg.RedisChannel)
	} else {
		bus = realtime.NewLocalBus()
		logger.Info("realtime bus: in-process")
	}
	defer bus.Close()

	hub := realtime.NewHub(bus, logger)
	if err := hub.Start(ctx); err != nil {
		log.Fatalf("Failed to start realtime hub: %v", err)
	}
	listener := realtime.NewListener(pool, tables, hub, logger)
	go listener.Run(ctx)

	// Task images
	var images outlineSvc.ImageResolver = storage.PassthroughResolver{}
	if cfg.MinioEndpoint != "" {
		images, err = storage.NewMinioResolver(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		}, logger)
		if err != nil {
			log.Fatalf("Failed to configure image storage: %v", err)
		}
	}

	// Generation webhooks
	endpoints, err := webhook.NewRegistry(cfg.WebhookBaseURL, cfg.WebhookConfig)
	if err != nil {
		log.Fatalf("Failed to load webhook endpoints: %v", err)
	}
	webhookClient := webhook.NewClient(endpoints, cfg.WebhookTimeout, logger)
	logger.Info("webhook endpoints loaded", "base_url", cfg.WebhookBaseURL)

	// Outline services
	catalog := outlineService.NewSourceCatalog(repos.Sources, outlineService.DefaultSourceTTL, logger)
	syncService := outlineService.NewSyncService(repos, catalog, images, hub, txManager, logger)
	sessions := outlineService.NewRegistry(ctx, syncService, hub, outlineService.SessionOptions{
		StreamingTimeout: cfg.StreamingTimeout,
		IdleTimeout:      cfg.SessionIdle,
	}, logger)
	defer sessions.Close()

	editor := outlineService.NewEditor(syncService, content.NewSanitizer(), logger)
	dragController := outlineService.NewDragController(syncService, logger)
	resolver := outlineService.NewConflictResolver(outlineService.NewArtifactStore(repos), logger)
	generator := outlineService.NewGenerationOrchestrator(resolver, webhookClient, logger)

	authorizer := serviceAuth.NewOwnerAuthorizer(projectRepo, serviceAuth.DefaultAccessTTL, logger)

	// Create handlers
	outlineHandler := handler.NewOutlineHandler(sessions, editor, logger)
	dragHandler := handler.NewDragHandler(sessions, dragController, logger)
	generationHandler := handler.NewGenerationHandler(sessions, generator, logger)
	eventsHandler := handler.NewEventsHandler(sessions, hub, sse.DefaultConfig(), logger)
	exportHandler := handler.NewExportHandler(sessions, content.NewMarkdownConverter(), logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	project := middleware.ProjectAccess(authorizer, logger)

	// Health check
	mux.HandleFunc("GET /health", handler.HealthCheck)

	// Outline routes
	mux.HandleFunc("GET /api/projects/{id}/outline", project(outlineHandler.GetOutline))
	mux.HandleFunc("POST /api/projects/{id}/outline/reload", project(outlineHandler.ReloadOutline))
	mux.HandleFunc("PUT /api/projects/{id}/outline/expanded", project(outlineHandler.SetExpanded))
	mux.HandleFunc("POST /api/projects/{id}/outline/save", project(outlineHandler.SaveOutline))
	mux.HandleFunc("POST /api/projects/{id}/outline/auto-sort", project(outlineHandler.AutoSortChapters))
	mux.HandleFunc("GET /api/projects/{id}/outline/export", project(exportHandler.ExportMarkdown))

	// Section routes
	mux.HandleFunc("POST /api/projects/{id}/sections", project(outlineHandler.CreateSection))
	mux.HandleFunc("PATCH /api/projects/{id}/sections/{sid}", project(outlineHandler.UpdateSection))
	mux.HandleFunc("DELETE /api/projects/{id}/sections/{sid}", project(outlineHandler.DeleteSection))
	mux.HandleFunc("POST /api/projects/{id}/sections/{sid}/auto-sort", project(outlineHandler.AutoSortSection))

	// Task routes
	mux.HandleFunc("POST /api/projects/{id}/tasks", project(outlineHandler.CreateTask))
	mux.HandleFunc("PATCH /api/projects/{id}/tasks/{tid}", project(outlineHandler.UpdateTask))
	mux.HandleFunc("DELETE /api/projects/{id}/tasks/{tid}", project(outlineHandler.DeleteTask))

	// Drag and drop
	mux.HandleFunc("POST /api/projects/{id}/drag/section", project(dragHandler.DropSection))
	mux.HandleFunc("POST /api/projects/{id}/drag/task", project(dragHandler.DropTask))

	// Generation
	mux.HandleFunc("POST /api/projects/{id}/generate/{kind}", project(generationHandler.Generate))
	mux.HandleFunc("GET /api/projects/{id}/progress", project(generationHandler.GetProgress))

	// Streaming
	mux.HandleFunc("GET /api/projects/{id}/events", project(eventsHandler.Stream)) // SSE endpoint

	// Build middleware chain
	var h http.Handler = mux

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Auth → Routes
	h = middleware.AuthMiddleware(jwtVerifier)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams and webhook waits
		IdleTimeout:  60 * time.Second,
		// SSE streams end on shutdown instead of holding it open
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	// Start server
	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}
