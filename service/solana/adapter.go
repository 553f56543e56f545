package solana

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is the subset of Solana JSON-RPC the fetcher uses.
// Tests supply a mock; production code wraps the solana-go client.
type RPCClient interface {
	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)

	GetMultipleAccounts(
		ctx context.Context,
		accounts []solana.PublicKey,
		opts *rpc.GetMultipleAccountsOpts,
	) (*rpc.GetMultipleAccountsResult, error)
}

// realRPCClient adapts the solana-go RPC client to RPCClient.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient wraps the solana-go RPC client for rpcURL.
// For premium endpoints include the API key in the URL, e.g.
// https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return r.client.GetTransaction(ctx, signature, opts)
}

func (r *realRPCClient) GetMultipleAccounts(
	ctx context.Context,
	accounts []solana.PublicKey,
	opts *rpc.GetMultipleAccountsOpts,
) (*rpc.GetMultipleAccountsResult, error) {
	return r.client.GetMultipleAccountsWithOpts(ctx, accounts, opts)
}

// SplitEndpoints parses a comma-separated endpoint list, dropping blanks.
func SplitEndpoints(raw string) []string {
	var endpoints []string
	for _, e := range strings.Split(raw, ",") {
		if e = strings.TrimSpace(e); e != "" {
			endpoints = append(endpoints, e)
		}
	}
	return endpoints
}

// SelectRandomEndpoint picks one endpoint to spread load across providers.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", errors.New("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}
