package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
	natspkg "github.com/Grape-Labs/grape-governance-sub001/service/nats"
	"github.com/Grape-Labs/grape-governance-sub001/service/solana"
	"github.com/Grape-Labs/grape-governance-sub001/service/temporal"
)

// Fetcher fetches and decodes a transaction by signature.
type Fetcher interface {
	DecodeSignature(ctx context.Context, sig solanago.Signature) (*solana.DecodedTransaction, error)
}

// Archive stores decoded transactions.
type Archive interface {
	SaveDecodedTransaction(ctx context.Context, tx *solana.DecodedTransaction) error
	GetDecodedTransaction(ctx context.Context, signature string) (*solana.DecodedTransaction, error)
	ListRecentSignatures(ctx context.Context, limit int32) ([]string, error)
	DeleteDecodedTransaction(ctx context.Context, signature string) error
}

// Publisher publishes decoded transactions to the event feed.
type Publisher interface {
	PublishDecoded(ctx context.Context, event *natspkg.DecodedTransactionEvent) error
}

// WorkflowStarter starts background decode workflows.
type WorkflowStarter interface {
	StartDecodeSignatures(ctx context.Context, input temporal.DecodeSignaturesInput) (workflowID, runID string, err error)
}

// Dependencies are the collaborators the HTTP server routes to.
// Only Decoder is required. Leave an optional field as an untyped nil to
// disable the routes that need it.
type Dependencies struct {
	Decoder   *decoder.Decoder
	Fetcher   Fetcher
	Archive   Archive
	Publisher Publisher
	Workflows WorkflowStarter
}

// Server represents the HTTP server for the decoder service.
type Server struct {
	addr    string
	deps    Dependencies
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, deps Dependencies, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	if deps.Decoder == nil {
		deps.Decoder = decoder.New(decoder.WithLogger(logger), decoder.WithMetrics(m))
	}
	return &Server{
		addr:    addr,
		deps:    deps,
		metrics: m,
		logger:  logger,
	}
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	route("POST /api/v1/decode", "/api/v1/decode", handleDecode(s.deps.Decoder, s.logger))

	if s.deps.Fetcher != nil {
		route("GET /api/v1/transactions/{signature}", "/api/v1/transactions/{signature}",
			handleGetTransaction(s.deps.Fetcher, s.deps.Archive, s.deps.Publisher, s.logger))
	} else {
		s.logger.Warn("solana fetcher not configured, transaction endpoint disabled")
	}

	if s.deps.Archive != nil {
		route("GET /api/v1/transactions/{signature}/archived", "/api/v1/transactions/{signature}/archived",
			handleGetArchivedTransaction(s.deps.Archive, s.logger))
		route("DELETE /api/v1/transactions/{signature}", "/api/v1/transactions/{signature}",
			handleDeleteArchivedTransaction(s.deps.Archive, s.logger))
		route("GET /api/v1/transactions", "/api/v1/transactions", handleListTransactions(s.deps.Archive, s.logger))
	} else {
		s.logger.Warn("archive not configured, archive endpoints disabled")
	}

	if s.deps.Workflows != nil {
		route("POST /api/v1/workflows/decode", "/api/v1/workflows/decode", handleStartDecodeWorkflow(s.deps.Workflows, s.logger))
	} else {
		s.logger.Warn("temporal client not configured, workflow endpoint disabled")
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // transaction fetches include RPC retries
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
