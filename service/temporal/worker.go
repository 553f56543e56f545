package temporal

import (
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
)

// WorkerConfig contains configuration for the Temporal worker.
type WorkerConfig struct {
	// Temporal connection settings
	TemporalHost      string
	TemporalNamespace string
	TaskQueue         string

	// Dependencies. Store and Publisher are optional; pass an untyped nil to
	// run without archiving or publishing.
	Fetcher   FetcherInterface
	Store     StoreInterface
	Publisher PublisherInterface
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// MaxConcurrentActivities bounds parallel activity executions (default 10).
	MaxConcurrentActivities int
}

// Worker wraps a Temporal worker and provides lifecycle management.
type Worker struct {
	client client.Client
	worker worker.Worker
	logger *slog.Logger
}

// NewWorker creates and configures a new Temporal worker.
// The worker will process workflows and activities on the configured task queue.
func NewWorker(config WorkerConfig) (*Worker, error) {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Fetcher == nil {
		return nil, fmt.Errorf("worker requires a fetcher")
	}
	if config.MaxConcurrentActivities <= 0 {
		config.MaxConcurrentActivities = 10
	}

	logger := config.Logger.With("component", "temporal_worker")

	logger.Info("creating temporal worker",
		"host", config.TemporalHost,
		"namespace", config.TemporalNamespace,
		"task_queue", config.TaskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  config.TemporalHost,
		Namespace: config.TemporalNamespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to temporal: %w", err)
	}

	w := worker.New(c, config.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     config.MaxConcurrentActivities,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})
	register(w, NewActivities(config.Fetcher, config.Store, config.Publisher, config.Metrics, logger))

	logger.Info("registered workflow and activities",
		"workflow", "DecodeSignaturesWorkflow",
		"activities", []string{"DecodeTransaction", "ArchiveTransaction", "PublishTransaction"},
		"archive", config.Store != nil,
		"publish", config.Publisher != nil,
	)

	return &Worker{
		client: c,
		worker: w,
		logger: logger,
	}, nil
}

// register wires the workflow and activities onto a worker.
func register(r worker.Registry, activities *Activities) {
	r.RegisterWorkflow(DecodeSignaturesWorkflow)
	r.RegisterActivity(activities.DecodeTransaction)
	r.RegisterActivity(activities.ArchiveTransaction)
	r.RegisterActivity(activities.PublishTransaction)
}

// Start begins processing workflows and activities.
// This method blocks until Stop is called or an error occurs.
func (w *Worker) Start() error {
	w.logger.Info("starting temporal worker")
	err := w.worker.Run(worker.InterruptCh())
	if err != nil {
		w.logger.Error("worker stopped with error", "error", err)
		return fmt.Errorf("worker stopped with error: %w", err)
	}
	w.logger.Info("worker stopped gracefully")
	return nil
}

// Stop gracefully stops the worker.
func (w *Worker) Stop() {
	w.logger.Info("stopping temporal worker")
	w.worker.Stop()
	w.client.Close()
	w.logger.Info("temporal worker stopped")
}
