package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// The struct is passed explicitly to every component that records metrics.
type Metrics struct {
	// Decoder Metrics
	instructionsDecodedTotal *prometheus.CounterVec
	fallbacksTotal           *prometheus.CounterVec
	recoveredPanicsTotal     *prometheus.CounterVec
	decodeDuration           *prometheus.HistogramVec

	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec
	solanaRPCRetries      *prometheus.CounterVec

	// Workflow Metrics
	activityDuration *prometheus.HistogramVec

	// Archive Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		instructionsDecodedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decoder_instructions_total",
				Help: "Total number of decoded instructions by program and kind",
			},
			[]string{"program", "kind"},
		),
		fallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decoder_fallbacks_total",
				Help: "Instructions that no decoder recognized, by program address",
			},
			[]string{"program"},
		),
		recoveredPanicsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "decoder_recovered_panics_total",
				Help: "Panics recovered at the decoder boundary",
			},
			[]string{"decoder"},
		),
		decodeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "decoder_decode_duration_seconds",
				Help:    "Duration of one decode pass over a transaction",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
			[]string{"status"},
		),

		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method"},
		),
		solanaRPCRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retries",
			},
			[]string{"method"},
		),

		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "decode_activity_duration_seconds",
				Help:    "Duration of decode workflow activities",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"activity", "status"},
		),

		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of archive queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of archive operations by status",
			},
			[]string{"operation", "table", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"handler", "method", "status_code"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status_code"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of decoded-transaction events published to NATS",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish calls in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Decoder helpers

func (m *Metrics) RecordInstructionDecoded(program, kind string) {
	m.instructionsDecodedTotal.WithLabelValues(program, kind).Inc()
}

func (m *Metrics) RecordFallback(program string) {
	m.fallbacksTotal.WithLabelValues(program).Inc()
}

func (m *Metrics) RecordRecoveredPanic(decoder string) {
	m.recoveredPanicsTotal.WithLabelValues(decoder).Inc()
}

func (m *Metrics) RecordDecodeDuration(status string, duration float64) {
	m.decodeDuration.WithLabelValues(status).Observe(duration)
}

// Solana RPC helpers

func (m *Metrics) RecordRPCCall(method, status string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method).Observe(duration)
}

func (m *Metrics) RecordRPCRetry(method string) {
	m.solanaRPCRetries.WithLabelValues(method).Inc()
}

// Workflow helpers

func (m *Metrics) RecordActivityDuration(activity, status string, duration float64) {
	m.activityDuration.WithLabelValues(activity, status).Observe(duration)
}

// Archive helpers

// RecordDBQuery records the duration and outcome of one archive operation.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, table, status).Inc()
}

// HTTP helpers

func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	code := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, code).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, code).Inc()
}

// NATS helpers

func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

func statusCodeToString(code int) string {
	return strconv.Itoa(code)
}
