package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"golang.org/x/sync/errgroup"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
)

// ErrTransactionNotFound is returned when the node has no record of a signature.
var ErrTransactionNotFound = errors.New("transaction not found")

const (
	defaultMaxAttempts = 3
	defaultBackoff     = time.Second
	defaultConcurrency = 4
)

// Client fetches transactions over JSON-RPC and decodes them.
// It wraps the RPC client with the two-pass decode: a first pass to collect
// candidate accounts, a batched account fetch, and a second pass with the
// parsed-account cache.
type Client struct {
	rpc         RPCClient
	decoder     *decoder.Decoder
	tokens      decoder.TokenMetadataMap
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	backoff     time.Duration
	concurrency int
}

// Option configures a Client.
type Option func(*Client)

// WithRetry sets the attempt count and the base backoff for transient RPC errors.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
		c.backoff = backoff
	}
}

// WithConcurrency bounds DecodeSignatures fan-out.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewClient creates a fetcher. If metrics is nil, no metrics are recorded.
func NewClient(
	rpcClient RPCClient,
	dec *decoder.Decoder,
	tokens decoder.TokenMetadataMap,
	m *metrics.Metrics,
	logger *slog.Logger,
	opts ...Option,
) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		rpc:         rpcClient,
		decoder:     dec,
		tokens:      tokens,
		logger:      logger,
		metrics:     m,
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DecodeSignature fetches one transaction and decodes every instruction.
func (c *Client) DecodeSignature(ctx context.Context, sig solana.Signature) (*DecodedTransaction, error) {
	result, err := c.getTransaction(ctx, sig)
	if err != nil {
		return nil, err
	}

	if result.Transaction == nil {
		return nil, fmt.Errorf("%w: %s has no transaction body", ErrTransactionNotFound, sig)
	}
	tx, err := result.Transaction.GetTransaction()
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction %s: %w", sig, err)
	}

	keys, err := c.resolveKeys(ctx, tx, result.Meta)
	if err != nil {
		return nil, fmt.Errorf("resolve keys for %s: %w", sig, err)
	}

	// Pass one collects every referenced account.
	snap := decoder.Snapshot{Tokens: c.tokens}
	res, err := c.decoder.DecodeAll(tx.Message.Instructions, keys, snap)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", sig, err)
	}

	// Pass two reruns with the parsed-account cache. A failed enrichment
	// fetch leaves the pass one summaries in place.
	parsed, err := c.LoadParsedAccounts(ctx, res.Candidates.Addresses())
	if err != nil {
		c.logger.WarnContext(ctx, "failed to load parsed accounts, using undecorated summaries",
			"signature", sig.String(),
			"error", err,
		)
	} else if len(parsed) > 0 {
		snap.Accounts = parsed
		if res, err = c.decoder.DecodeAll(tx.Message.Instructions, keys, snap); err != nil {
			return nil, fmt.Errorf("decode %s: %w", sig, err)
		}
	}

	out := &DecodedTransaction{
		Signature:  sig.String(),
		Slot:       result.Slot,
		Summaries:  res.Summaries,
		Candidates: res.Candidates,
		DecodedAt:  time.Now().UTC(),
	}
	if result.BlockTime != nil {
		bt := result.BlockTime.Time().UTC()
		out.BlockTime = &bt
	}
	if result.Meta != nil && result.Meta.Err != nil {
		errMsg := fmt.Sprintf("transaction failed: %v", result.Meta.Err)
		out.Err = &errMsg
	}

	c.logger.DebugContext(ctx, "decoded transaction",
		"signature", out.Signature,
		"instructions", len(out.Summaries),
		"candidates", out.Candidates.Len(),
		"parsed_accounts", len(parsed),
	)
	return out, nil
}

// DecodeSignatures decodes signatures concurrently and returns results in
// input order. The first error cancels the remaining fetches.
func (c *Client) DecodeSignatures(ctx context.Context, sigs []solana.Signature) ([]*DecodedTransaction, error) {
	out := make([]*DecodedTransaction, len(sigs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, sig := range sigs {
		g.Go(func() error {
			decoded, err := c.DecodeSignature(gctx, sig)
			if err != nil {
				return err
			}
			out[i] = decoded
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveKeys prefers the loaded addresses reported in meta and falls back to
// fetching lookup tables when the node omitted them.
func (c *Client) resolveKeys(ctx context.Context, tx *solana.Transaction, meta *rpc.TransactionMeta) (decoder.AccountKeys, error) {
	msg := &tx.Message
	if len(msg.AddressTableLookups) == 0 || hasLoadedAddresses(meta) {
		return decoder.ResolveMessageKeys(msg, meta), nil
	}

	tables, err := c.FetchLookupTables(ctx, msg)
	if err != nil {
		return nil, err
	}
	loaded, err := decoder.LookupTableKeys(msg, tables)
	if err != nil {
		return nil, err
	}
	return decoder.ResolveAccountKeys(msg.AccountKeys, loaded), nil
}

func hasLoadedAddresses(meta *rpc.TransactionMeta) bool {
	return meta != nil && len(meta.LoadedAddresses.Writable)+len(meta.LoadedAddresses.ReadOnly) > 0
}

// getTransaction fetches a transaction with retry and exponential backoff.
func (c *Client) getTransaction(ctx context.Context, sig solana.Signature) (*rpc.GetTransactionResult, error) {
	opts := &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		MaxSupportedTransactionVersion: &[]uint64{0}[0],
	}

	var lastErr error
	for attempt := range c.maxAttempts {
		start := time.Now()
		result, err := c.rpc.GetTransaction(ctx, sig, opts)
		c.recordRPC("GetTransaction", err, start)

		if err == nil && result == nil {
			err = rpc.ErrNotFound
		}
		if err == nil {
			return result, nil
		}
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, sig)
		}
		lastErr = err

		if attempt == c.maxAttempts-1 {
			break
		}

		// Rate limiting gets a longer backoff than other transient errors.
		backoff := c.backoff << uint(attempt)
		if strings.Contains(err.Error(), "429") {
			backoff *= 2
		}
		c.logger.WarnContext(ctx, "failed to get transaction on attempt",
			"signature", sig.String(),
			"attempt", attempt+1,
			"error", err,
			"backoff_seconds", backoff.Seconds(),
		)
		if c.metrics != nil {
			c.metrics.RecordRPCRetry("GetTransaction")
		}
		if err := sleep(ctx, backoff); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("get transaction %s after %d attempts: %w", sig, c.maxAttempts, lastErr)
}

// getMultipleAccounts fetches accounts in chunks the RPC node accepts.
// The returned slice is aligned with keys; missing accounts are nil.
func (c *Client) getMultipleAccounts(ctx context.Context, keys []solana.PublicKey) ([]*rpc.Account, error) {
	const maxAccountsPerCall = 100

	out := make([]*rpc.Account, 0, len(keys))
	for start := 0; start < len(keys); start += maxAccountsPerCall {
		chunk := keys[start:min(start+maxAccountsPerCall, len(keys))]

		callStart := time.Now()
		resp, err := c.rpc.GetMultipleAccounts(ctx, chunk, &rpc.GetMultipleAccountsOpts{
			Encoding: solana.EncodingBase64,
		})
		c.recordRPC("GetMultipleAccounts", err, callStart)
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Value) != len(chunk) {
			return nil, fmt.Errorf("getMultipleAccounts returned %d accounts for %d keys", lenValue(resp), len(chunk))
		}
		out = append(out, resp.Value...)
	}
	return out, nil
}

func lenValue(resp *rpc.GetMultipleAccountsResult) int {
	if resp == nil {
		return 0
	}
	return len(resp.Value)
}

func (c *Client) recordRPC(method string, err error, start time.Time) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordRPCCall(method, status, time.Since(start).Seconds())
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
