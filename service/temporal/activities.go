package temporal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	temporalsdk "go.temporal.io/sdk/temporal"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
	natspkg "github.com/Grape-Labs/grape-governance-sub001/service/nats"
	"github.com/Grape-Labs/grape-governance-sub001/service/solana"
)

// Error types surfaced as non-retryable application errors.
const (
	errTypeInvalidSignature = "InvalidSignature"
	errTypeNotFound         = "TransactionNotFound"
	errTypeMalformed        = "MalformedTransaction"
)

// DecodeSignaturesInput contains the input parameters for a bulk decode.
type DecodeSignaturesInput struct {
	Signatures []string `json:"signatures"`
	Archive    bool     `json:"archive"` // write each decoded transaction to Postgres
	Publish    bool     `json:"publish"` // publish each decoded transaction to NATS
}

// DecodeSignaturesResult summarizes a bulk decode.
type DecodeSignaturesResult struct {
	Requested    int                `json:"requested"`
	Decoded      int                `json:"decoded"`
	Archived     int                `json:"archived"`
	Published    int                `json:"published"`
	Instructions int                `json:"instructions"`
	Programs     map[string]int     `json:"programs"`
	Failed       []SignatureFailure `json:"failed,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	CompletedAt  time.Time          `json:"completed_at"`
}

// SignatureFailure records a signature the workflow skipped.
type SignatureFailure struct {
	Signature string `json:"signature"`
	Stage     string `json:"stage"` // decode, archive or publish
	Error     string `json:"error"`
}

// DecodeTransactionInput contains parameters for the DecodeTransaction activity.
type DecodeTransactionInput struct {
	Signature string `json:"signature"`
}

// DecodeTransactionResult contains the decoded transaction.
type DecodeTransactionResult struct {
	Transaction *solana.DecodedTransaction `json:"transaction"`
}

// ArchiveTransactionInput contains parameters for the ArchiveTransaction activity.
type ArchiveTransactionInput struct {
	Transaction *solana.DecodedTransaction `json:"transaction"`
}

// ArchiveTransactionResult contains the result of archiving a transaction.
type ArchiveTransactionResult struct {
	Signature    string `json:"signature"`
	Instructions int    `json:"instructions"`
}

// PublishTransactionInput contains parameters for the PublishTransaction activity.
type PublishTransactionInput struct {
	Transaction *solana.DecodedTransaction `json:"transaction"`
}

// PublishTransactionResult contains the subject the event went to.
type PublishTransactionResult struct {
	Subject string `json:"subject"`
}

// FetcherInterface is the subset of the solana client the activities need.
type FetcherInterface interface {
	DecodeSignature(ctx context.Context, sig solanago.Signature) (*solana.DecodedTransaction, error)
}

// StoreInterface is the subset of the archive the activities need.
type StoreInterface interface {
	SaveDecodedTransaction(ctx context.Context, tx *solana.DecodedTransaction) error
}

// PublisherInterface is the subset of the event feed the activities need.
type PublisherInterface interface {
	PublishDecoded(ctx context.Context, event *natspkg.DecodedTransactionEvent) error
}

// Activities contains the dependencies for all activities.
// Store and Publisher may be nil when the worker runs without them.
type Activities struct {
	fetcher   FetcherInterface
	store     StoreInterface
	publisher PublisherInterface
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewActivities creates a new Activities instance with the given dependencies.
func NewActivities(fetcher FetcherInterface, store StoreInterface, publisher PublisherInterface, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// DecodeTransaction fetches one transaction and runs it through the decoder.
// Bad signatures, missing transactions and out-of-range account indices are
// not retried.
func (a *Activities) DecodeTransaction(ctx context.Context, input DecodeTransactionInput) (_ *DecodeTransactionResult, err error) {
	defer a.record("DecodeTransaction", time.Now(), &err)

	sig, err := solanago.SignatureFromBase58(input.Signature)
	if err != nil {
		return nil, temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("invalid signature %q", input.Signature), errTypeInvalidSignature, err)
	}

	tx, err := a.fetcher.DecodeSignature(ctx, sig)
	switch {
	case errors.Is(err, solana.ErrTransactionNotFound):
		return nil, temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("transaction %s not found", input.Signature), errTypeNotFound, err)
	case errors.Is(err, decoder.ErrAccountIndexOutOfRange):
		return nil, temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("transaction %s is malformed", input.Signature), errTypeMalformed, err)
	case err != nil:
		a.logger.ErrorContext(ctx, "failed to decode transaction", "signature", input.Signature, "error", err)
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}

	a.logger.InfoContext(ctx, "decoded transaction",
		"signature", input.Signature,
		"instructions", len(tx.Summaries),
		"programs", tx.Programs(),
	)
	return &DecodeTransactionResult{Transaction: tx}, nil
}

// ArchiveTransaction writes a decoded transaction to the archive.
func (a *Activities) ArchiveTransaction(ctx context.Context, input ArchiveTransactionInput) (_ *ArchiveTransactionResult, err error) {
	defer a.record("ArchiveTransaction", time.Now(), &err)

	if a.store == nil {
		return nil, temporalsdk.NewNonRetryableApplicationError("archive is not configured", "ArchiveDisabled", nil)
	}
	if input.Transaction == nil {
		return nil, temporalsdk.NewNonRetryableApplicationError("no transaction to archive", errTypeMalformed, nil)
	}

	if err := a.store.SaveDecodedTransaction(ctx, input.Transaction); err != nil {
		a.logger.ErrorContext(ctx, "failed to archive transaction",
			"signature", input.Transaction.Signature,
			"error", err,
		)
		return nil, fmt.Errorf("failed to archive transaction: %w", err)
	}

	a.logger.DebugContext(ctx, "archived transaction", "signature", input.Transaction.Signature)
	return &ArchiveTransactionResult{
		Signature:    input.Transaction.Signature,
		Instructions: len(input.Transaction.Summaries),
	}, nil
}

// PublishTransaction publishes a decoded transaction to the event feed.
func (a *Activities) PublishTransaction(ctx context.Context, input PublishTransactionInput) (_ *PublishTransactionResult, err error) {
	defer a.record("PublishTransaction", time.Now(), &err)

	if a.publisher == nil {
		return nil, temporalsdk.NewNonRetryableApplicationError("publisher is not configured", "PublisherDisabled", nil)
	}
	if input.Transaction == nil {
		return nil, temporalsdk.NewNonRetryableApplicationError("no transaction to publish", errTypeMalformed, nil)
	}

	event := natspkg.FromDecodedTransaction(input.Transaction)
	if err := a.publisher.PublishDecoded(ctx, event); err != nil {
		a.logger.ErrorContext(ctx, "failed to publish transaction",
			"signature", input.Transaction.Signature,
			"error", err,
		)
		return nil, fmt.Errorf("failed to publish transaction: %w", err)
	}

	return &PublishTransactionResult{Subject: event.Subject()}, nil
}

func (a *Activities) record(activity string, start time.Time, errp *error) {
	if a.metrics == nil {
		return
	}
	status := "success"
	if *errp != nil {
		status = "error"
	}
	a.metrics.RecordActivityDuration(activity, status, time.Since(start).Seconds())
}
