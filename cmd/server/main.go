package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	httpapi "realty-backend/internal/api/http"
	"realty-backend/internal/config"
	"realty-backend/internal/domain"
	"realty-backend/internal/logger"
	"realty-backend/internal/repository/postgres"
	"realty-backend/internal/security"
	"realty-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Realty Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "address", cfg.GetServerAddress())
	logger.Info("Database configuration", "host", cfg.Database.Host, "port", cfg.Database.Port, "database", cfg.Database.Database, "user", cfg.Database.User)
	logger.Info("Sequence configuration",
		"cumulative_delays", cfg.Sequences.CumulativeDelays,
		"reply_cancel_status", cfg.Sequences.ReplyCancelStatus,
		"reply_lookup_order", cfg.Sequences.ReplyLookupOrder)

	// Initialize Database
	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(); err != nil {
		logger.Error("Failed to ping database", "error", err)
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize Repositories
	store := postgres.NewStore(db)

	// Initialize Security
	tokenManager := security.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := httpapi.NewAuthMiddleware(tokenManager, cfg.Auth)

	// Initialize Services
	lifecycleSvc := service.NewLifecycleService(
		store.OrganizationRepository,
		store.BillingProfileRepository,
		store.LifecycleLogRepository,
		store.DunningEmailRepository,
		service.LifecycleSettings{
			GracePeriodDays:       cfg.Lifecycle.GracePeriodDays,
			CardExpiryHorizonDays: cfg.Lifecycle.CardExpiryHorizonDays,
			CardWarningDedupDays:  cfg.Lifecycle.CardWarningDedupDays,
		},
	)
	pipelineSvc := service.NewPipelineService(
		store.ProfileRepository,
		store.SequenceRepository,
		store.ProfileEmailQueueRepository,
		store.ActivityRepository,
		service.PipelineSettings{
			CumulativeDelays:  cfg.Sequences.CumulativeDelays,
			ReplyCancelStatus: domain.QueueStatus(cfg.Sequences.ReplyCancelStatus),
			SellerFirst:       cfg.Sequences.ReplyLookupOrder == config.ReplyLookupSellerFirst,
		},
	)

	// Set up HTTP server
	handler := httpapi.NewHandler(lifecycleSvc, pipelineSvc)
	router := httpapi.NewRouter(handler, authMiddleware)

	srv := &http.Server{
		Addr:              cfg.GetServerAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	logger.Info("HTTP server stopped")
}
