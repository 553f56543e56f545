package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Grape-Labs/grape-governance-sub001/service/config"
	"github.com/Grape-Labs/grape-governance-sub001/service/db"
	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
	natspkg "github.com/Grape-Labs/grape-governance-sub001/service/nats"
	"github.com/Grape-Labs/grape-governance-sub001/service/solana"
	"github.com/Grape-Labs/grape-governance-sub001/service/temporal"
	"github.com/Grape-Labs/grape-governance-sub001/service/tokens"
)

const defaultMetricsAddr = ":9091"

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting temporal worker",
		"temporal_host", cfg.TemporalHost,
		"namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry
	logger.Info("Prometheus metrics collector initialized")

	// Start metrics HTTP server
	metricsAddr := cfg.MetricsAddr
	if metricsAddr == "" {
		metricsAddr = defaultMetricsAddr
	}
	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting metrics HTTP server", "addr", metricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	// Initialize the instruction decoder and token registry
	dec, err := cfg.NewDecoder(logger, metricsCollector)
	if err != nil {
		logger.Error("failed to build decoder", "error", err)
		os.Exit(1)
	}
	registry, err := tokens.Load(cfg.TokenMetadataPath)
	if err != nil {
		logger.Error("failed to load token metadata", "path", cfg.TokenMetadataPath, "error", err)
		os.Exit(1)
	}

	// Initialize Solana RPC client; each worker process pins one endpoint
	endpoints := solana.SplitEndpoints(cfg.SolanaRPCURL)
	endpoint, err := solana.SelectRandomEndpoint(endpoints)
	if err != nil {
		logger.Error("failed to select solana RPC endpoint", "error", err)
		os.Exit(1)
	}
	solanaClient := solana.NewClient(solana.NewRPCClient(endpoint), dec, registry, metricsCollector, logger,
		solana.WithConcurrency(cfg.DecodeConcurrency),
	)
	logger.Info("initialized solana RPC client", "total_endpoints", len(endpoints))

	workerConfig := temporal.WorkerConfig{
		TemporalHost:            cfg.TemporalHost,
		TemporalNamespace:       cfg.TemporalNamespace,
		TaskQueue:               cfg.TemporalTaskQueue,
		Fetcher:                 solanaClient,
		Metrics:                 metricsCollector,
		Logger:                  logger,
		MaxConcurrentActivities: cfg.DecodeConcurrency,
	}

	// Archive is optional; without it archive requests fail non-retryably
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		logger.Info("connected to database")

		store := db.NewStore(dbPool, metricsCollector)
		if err := store.EnsureSchema(ctx); err != nil {
			logger.Error("failed to apply database schema", "error", err)
			os.Exit(1)
		}
		workerConfig.Store = store
	}

	// Event feed is optional; without it publish requests fail non-retryably
	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		logger.Info("connected to NATS", "url", cfg.NATSURL)
		workerConfig.Publisher = natsPublisher
	}

	worker, err := temporal.NewWorker(workerConfig)
	if err != nil {
		logger.Error("failed to create temporal worker", "error", err)
		os.Exit(1)
	}

	logger.Info("temporal worker initialized, all dependencies ready",
		"archive", workerConfig.Store != nil,
		"event_feed", workerConfig.Publisher != nil,
		"temporal_host", cfg.TemporalHost,
		"temporal_namespace", cfg.TemporalNamespace,
		"task_queue", cfg.TemporalTaskQueue,
	)

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		logger.Info("starting temporal worker")
		workerErrors <- worker.Start()
	}()

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		logger.Error("temporal worker error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Stop worker gracefully
		logger.Info("stopping temporal worker")
		worker.Stop()
		logger.Info("temporal worker stopped")

		logger.Info("shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
