package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"realty-backend/internal/config"
	"realty-backend/internal/jobs"
	"realty-backend/internal/logger"
	"realty-backend/internal/repository/postgres"
	"realty-backend/internal/scheduler"
	"realty-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'account-lifecycle', 'dispatch-dunning-emails', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting Realty Cronjob Runner...", "log_level", cfg.Log.Level)

	// Initialize Database
	logger.Info("Connecting to database...", "host", cfg.Database.Host, "port", cfg.Database.Port)
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

	// Initialize Services
	lifecycleService := service.NewLifecycleService(
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

	jobServices := &jobs.Services{
		Lifecycle: lifecycleService,
	}
	if cfg.SendGrid.Enabled() {
		jobServices.Email = service.NewEmailService(cfg.SendGrid.APIKey, cfg.SendGrid.FromEmail, cfg.SendGrid.FromName)
		logger.Info("SendGrid configuration", "from_email", cfg.SendGrid.FromEmail, "batch_size", cfg.SendGrid.BatchSize)
	} else {
		logger.Warn("SendGrid API key not set, dunning emails will stay queued")
	}

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(store, jobServices, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		runJobOnce(jobRunner, *runOnce)
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler := scheduler.NewScheduler(jobRunner)

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and exits
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) {
	switch jobName {
	case "account-lifecycle":
		jobRunner.RunAccountLifecycle()
	case "dispatch-dunning-emails":
		jobRunner.DispatchDunningEmails()
	case "all":
		jobRunner.RunAllJobs()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - account-lifecycle\n")
		fmt.Printf("  - dispatch-dunning-emails\n")
		fmt.Printf("  - all\n")
		os.Exit(1)
	}
}
