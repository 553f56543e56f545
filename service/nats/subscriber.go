package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// SubscribeOptions selects which events a subscriber receives.
type SubscribeOptions struct {
	// Program narrows delivery to one program name; empty means all.
	Program string
	// Durable names a consumer that survives restarts; empty means ephemeral.
	Durable string
	// DeliverAll replays retained events instead of only new ones.
	DeliverAll bool
}

// FilterSubject is the JetStream filter for the options.
func (o SubscribeOptions) FilterSubject() string {
	if o.Program == "" {
		return StreamSubjects
	}
	return SubjectRoot + "." + subjectToken(o.Program) + ".*"
}

// Subscribe delivers events to handle until ctx is done. A handler error
// naks the message so JetStream redelivers it.
func Subscribe(ctx context.Context, nc *nats.Conn, opts SubscribeOptions, logger *slog.Logger, handle func(*DecodedTransactionEvent) error) error {
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	cfg := jetstream.ConsumerConfig{
		Durable:       opts.Durable,
		FilterSubject: opts.FilterSubject(),
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}
	if opts.DeliverAll {
		cfg.DeliverPolicy = jetstream.DeliverAllPolicy
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, StreamName, cfg)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		var event DecodedTransactionEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			logger.Warn("dropping malformed event", "subject", msg.Subject(), "error", err)
			_ = msg.Term()
			return
		}
		if err := handle(&event); err != nil {
			logger.Warn("event handler failed", "signature", event.Signature, "error", err)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}
	defer cc.Stop()

	<-ctx.Done()
	return nil
}
