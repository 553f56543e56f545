package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Grape-Labs/grape-governance-sub001/service/config"
	"github.com/Grape-Labs/grape-governance-sub001/service/db"
	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
	natspkg "github.com/Grape-Labs/grape-governance-sub001/service/nats"
	"github.com/Grape-Labs/grape-governance-sub001/service/server"
	"github.com/Grape-Labs/grape-governance-sub001/service/solana"
	"github.com/Grape-Labs/grape-governance-sub001/service/temporal"
	"github.com/Grape-Labs/grape-governance-sub001/service/tokens"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

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
	logger.Info("initialized decoder", "tokens", len(registry))

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	endpoint, err := solana.SelectRandomEndpoint(solana.SplitEndpoints(cfg.SolanaRPCURL))
	if err != nil {
		logger.Error("failed to select solana RPC endpoint", "error", err)
		os.Exit(1)
	}
	solanaClient := solana.NewClient(solana.NewRPCClient(endpoint), dec, registry, metricsCollector, logger,
		solana.WithConcurrency(cfg.DecodeConcurrency),
	)
	logger.Info("initialized solana RPC client")

	deps := server.Dependencies{
		Decoder: dec,
		Fetcher: solanaClient,
	}

	// Archive is optional
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
		deps.Archive = store
	}

	// Event feed is optional
	if cfg.NATSURL != "" {
		natsPublisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		logger.Info("connected to NATS", "url", cfg.NATSURL)
		deps.Publisher = natsPublisher
	}

	// Bulk decode workflows are optional; a Temporal outage only disables them
	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		logger,
	)
	if err != nil {
		logger.Warn("temporal unavailable, workflow endpoint disabled", "error", err)
	} else {
		defer temporalClient.Close()
		deps.Workflows = temporalClient
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, deps, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"archive", deps.Archive != nil,
		"event_feed", deps.Publisher != nil,
		"workflows", deps.Workflows != nil,
		"temporal_host", cfg.TemporalHost,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
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
