package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
)

// Publisher publishes decoded transaction events to NATS.
type Publisher interface {
	// PublishDecoded publishes a single event to JetStream.
	PublishDecoded(ctx context.Context, event *DecodedTransactionEvent) error

	// PublishDecodedBatch publishes multiple events. A failed event does
	// not stop the rest; the failures are joined into the returned error.
	PublishDecodedBatch(ctx context.Context, events []*DecodedTransactionEvent) error

	// Close closes the connection to NATS.
	Close() error
}

// JetStreamPublisher publishes decoded transaction events to NATS JetStream.
type JetStreamPublisher struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const (
	// StreamName is the name of the JetStream stream for decoded transactions.
	StreamName = "DECODED_TRANSACTIONS"

	// SubjectRoot is the first token of every event subject.
	SubjectRoot = "decoded"

	// StreamSubjects is the subject pattern for the stream.
	StreamSubjects = SubjectRoot + ".>"

	// StreamRetention is how long messages are retained (30 days by default).
	StreamRetention = 30 * 24 * time.Hour
)

// Connect dials NATS with the reconnect policy shared by publishers and subscribers.
func Connect(natsURL, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name(name),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(1*time.Second),
		nats.MaxReconnects(-1), // Unlimited reconnects
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return nc, nil
}

// NewPublisher creates a new JetStream publisher.
// It connects to NATS and ensures the stream exists.
func NewPublisher(natsURL string, m *metrics.Metrics, logger *slog.Logger) (*JetStreamPublisher, error) {
	nc, err := Connect(natsURL, "govdecode-publisher")
	if err != nil {
		return nil, err
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	publisher := &JetStreamPublisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		metrics: m,
	}

	if err := publisher.ensureStream(); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream exists: %w", err)
	}

	logger.Info("NATS publisher initialized",
		"url", natsURL,
		"stream", StreamName,
	)

	return publisher, nil
}

// ensureStream creates the JetStream stream if it doesn't exist.
func (p *JetStreamPublisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stream, err := p.js.Stream(ctx, StreamName)
	if err == nil {
		info, err := stream.Info(ctx)
		if err == nil {
			p.logger.Debug("JetStream stream already exists",
				"stream", StreamName,
				"messages", info.State.Msgs,
			)
		}
		return nil
	}

	p.logger.Info("creating JetStream stream", "stream", StreamName)

	_, err = p.js.CreateStream(ctx, StreamConfig())
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	p.logger.Info("JetStream stream created successfully", "stream", StreamName)
	return nil
}

// StreamConfig is the stream definition for decoded transaction events.
// Duplicate publishes of one signature within the window are dropped.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Decoded Solana governance transactions",
		Subjects:    []string{StreamSubjects},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      StreamRetention,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  10 * time.Minute,
	}
}

// PublishDecoded publishes a single decoded transaction event.
func (p *JetStreamPublisher) PublishDecoded(ctx context.Context, event *DecodedTransactionEvent) error {
	subject := event.Subject()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal decoded transaction event: %w", err)
	}

	start := time.Now()
	_, err = p.js.Publish(ctx, subject, data, jetstream.WithMsgID(event.Signature))
	if p.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}
		p.metrics.RecordNATSPublish(event.SubjectPrefix(), status, time.Since(start).Seconds())
	}
	if err != nil {
		return fmt.Errorf("failed to publish decoded transaction: %w", err)
	}

	p.logger.Debug("published decoded transaction event",
		"subject", subject,
		"signature", event.Signature,
		"instructions", len(event.Instructions),
	)

	return nil
}

// PublishDecodedBatch publishes multiple events.
func (p *JetStreamPublisher) PublishDecodedBatch(ctx context.Context, events []*DecodedTransactionEvent) error {
	if len(events) == 0 {
		return nil
	}

	var errs []error
	for _, event := range events {
		if err := p.PublishDecoded(ctx, event); err != nil {
			p.logger.Error("failed to publish decoded transaction in batch",
				"signature", event.Signature,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", event.Signature, err))
		}
	}

	p.logger.Debug("published decoded transaction batch",
		"count", len(events),
		"failed", len(errs),
	)

	return errors.Join(errs...)
}

// Close closes the connection to NATS.
func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
		p.logger.Info("NATS publisher closed")
	}
	return nil
}
