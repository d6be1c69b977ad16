package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rgoodwin/beacon/internal"
	"github.com/rgoodwin/beacon/internal/geo"
	"github.com/rgoodwin/beacon/internal/handler"
	"github.com/rgoodwin/beacon/internal/ledger"
	"github.com/rgoodwin/beacon/internal/metrics"
	"github.com/rgoodwin/beacon/internal/middleware"
	"github.com/rgoodwin/beacon/internal/precheck"
	"github.com/rgoodwin/beacon/internal/repository"
	"github.com/rgoodwin/beacon/internal/service"
	"github.com/rgoodwin/beacon/internal/storage"
	"github.com/rgoodwin/beacon/internal/worker"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	// Verify connectivity before serving; retries with exponential backoff.
	checker := precheck.New(db, precheck.Config{
		Attempts:       cfg.PrecheckAttempts,
		InitialBackoff: cfg.PrecheckBackoff,
	}, logger)
	if err := checker.Check(ctx); err != nil {
		return fmt.Errorf("datastore precheck failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	repo := repository.New(db)

	// Open the completion ledger (embedded sqlite)
	ledgerStore, err := ledger.Open(cfg.LedgerPath, logger)
	if err != nil {
		return fmt.Errorf("ledger initialization failed: %w", err)
	}
	defer ledgerStore.Close()

	// Initialize object storage
	var store storage.Storage
	switch cfg.StorageProvider {
	case "r2":
		store, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicURL:       cfg.R2PublicURL,
		}, logger)
	default:
		store, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
			BaseURL:  cfg.LocalStorageURL,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage ready", "provider", cfg.StorageProvider)

	// Reverse geocoder (optional, best-effort)
	var geocoder service.ReverseGeocoder
	if cfg.GeocodingEnabled {
		geocoder = geo.NewClient(cfg.GeocodingURL, logger)
	}

	// Initialize services
	userService := service.NewUserService(repo, ledgerStore, cfg.AdminEmails, logger)
	reportService := service.NewReportService(repo, store, service.NewImagingProcessor(), geocoder, logger)
	triageService := service.NewTriageService(reportService, ledgerStore, logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	authLimiter := middleware.NewAuthRateLimiter(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword)

	// Initialize handlers
	authHandler := handler.NewAuthHandler(userService, authLimiter, logger, isSecure)
	reportHandler := handler.NewReportHandler(reportService, triageService, logger)
	assessHandler := handler.NewAssessHandler(logger)
	profileHandler := handler.NewProfileHandler(userService, logger)
	healthHandler := handler.NewHealthHandler(checker, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Locally stored attachments (development)
	if cfg.StorageProvider == "local" {
		filesFS := http.FileServer(http.Dir(cfg.LocalStoragePath))
		mux.Handle("GET /files/", http.StripPrefix("/files/", filesFS))
	}

	// Health check
	mux.HandleFunc("GET /health", healthHandler.Health)

	// Metrics (basic auth when configured)
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// Middleware stacks
	publicOnly := middleware.Stack(authMw.WithUser, authMw.PublicOnly)
	requireUser := middleware.Stack(authMw.WithUser, authMw.RequireUser)
	requireAdmin := middleware.Stack(authMw.WithUser, authMw.RequireAdmin)

	// Auth routes
	mux.Handle("POST /signup", publicOnly(authLimiter.LimitRegister(http.HandlerFunc(authHandler.Register))))
	mux.Handle("POST /login", publicOnly(authLimiter.LimitLogin(http.HandlerFunc(authHandler.Login))))
	mux.Handle("POST /logout", http.HandlerFunc(authHandler.Logout))

	// Reporter routes
	mux.Handle("POST /api/reports", requireUser(http.HandlerFunc(reportHandler.Submit)))
	mux.Handle("POST /api/assess", requireUser(http.HandlerFunc(assessHandler.Assess)))
	mux.Handle("GET /api/profile", requireUser(http.HandlerFunc(profileHandler.Show)))
	mux.Handle("PUT /api/profile", requireUser(http.HandlerFunc(profileHandler.Update)))

	// Triage routes (admin only)
	mux.Handle("GET /api/reports", requireAdmin(http.HandlerFunc(reportHandler.List)))
	mux.Handle("GET /api/reports/{id}", requireAdmin(http.HandlerFunc(reportHandler.Get)))
	mux.Handle("POST /api/reports/{id}/complete", requireAdmin(http.HandlerFunc(reportHandler.MarkCompleted)))
	mux.Handle("GET /api/completions", requireAdmin(http.HandlerFunc(reportHandler.Completions)))

	// Outer middleware applied to every request
	root := middleware.Stack(
		securityMw.Handler,
		loggingMw.Handler,
		metrics.Middleware,
	)(mux)

	// ==========================================================================
	// Background maintenance
	// ==========================================================================

	var maintenance *worker.Worker
	if cfg.WorkerEnabled {
		maintenance, err = worker.New(worker.Config{
			Interval:        cfg.WorkerInterval,
			ShutdownTimeout: cfg.WorkerShutdownTimeout,
		}, logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}

		maintenance.Register("expired-sessions", userService.DeleteExpiredSessions)
		maintenance.Register("datastore-check", checker.Check)
		maintenance.Register("report-count", func(ctx context.Context) error {
			n, err := repo.CountReports(ctx)
			if err != nil {
				return err
			}
			metrics.ReportsStored.Set(float64(n))
			return nil
		})
		maintenance.Start(ctx)
	}

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: root,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	if maintenance != nil {
		maintenance.Stop()
	}

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
