package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/urfave/cli/v2"

	"github.com/Grape-Labs/grape-governance-sub001/client"
	"github.com/Grape-Labs/grape-governance-sub001/service/config"
	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
	natspkg "github.com/Grape-Labs/grape-governance-sub001/service/nats"
	"github.com/Grape-Labs/grape-governance-sub001/service/solana"
	"github.com/Grape-Labs/grape-governance-sub001/service/tokens"
)

// decoderFlags configure a locally built decoder.
func decoderFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "token-list",
			Usage:   "Token-list JSON merged over the built-in token metadata",
			EnvVars: []string{"TOKEN_METADATA_PATH"},
		},
		&cli.StringFlag{
			Name:    "batch-program",
			Usage:   "Batch token transfer program address",
			EnvVars: []string{"BATCH_TOKEN_PROGRAM_ID"},
		},
		&cli.StringFlag{
			Name:    "dca-program",
			Usage:   "DCA program address",
			EnvVars: []string{"DCA_PROGRAM_ID"},
		},
		&cli.StringFlag{
			Name:    "dca-idl",
			Usage:   "Interface schema for the DCA program",
			EnvVars: []string{"DCA_IDL_PATH"},
		},
		&cli.StringFlag{
			Name:    "governance-program",
			Usage:   "Governance program address",
			EnvVars: []string{"GOVERNANCE_PROGRAM_ID"},
		},
		&cli.StringFlag{
			Name:    "governance-idl",
			Usage:   "Interface schema for the governance program",
			EnvVars: []string{"GOVERNANCE_IDL_PATH"},
		},
	}
}

// localDecoder builds a decoder and token registry from the decoder flags.
func localDecoder(c *cli.Context, logger *slog.Logger) (*decoder.Decoder, decoder.TokenMetadataMap, error) {
	cfg := &config.Config{
		BatchTokenProgramID: c.String("batch-program"),
		DCAProgramID:        c.String("dca-program"),
		DCAIDLPath:          c.String("dca-idl"),
		GovernanceProgramID: c.String("governance-program"),
		GovernanceIDLPath:   c.String("governance-idl"),
	}
	dec, err := cfg.NewDecoder(logger, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	registry, err := tokens.Load(c.String("token-list"))
	if err != nil {
		return nil, nil, err
	}
	return dec, registry, nil
}

func decodeRawCommand() *cli.Command {
	return &cli.Command{
		Name:      "raw",
		Usage:     "Decode compiled instructions from a request file",
		ArgsUsage: "<file|->",
		Description: `Decode compiled instructions locally, without a server or RPC node.

The input has the same shape as the body of POST /api/v1/decode:

  {
    "account_keys": ["<base58>", ...],
    "instructions": [{"program_id_index": 2, "accounts": [0, 1], "data": "<base64>"}],
    "parsed_accounts": {"<account>": {"mint": "<mint>", "decimals": 6}},
    "token_metadata": {"<mint>": {"name": "USD Coin", "symbol": "USDC"}}
  }

Token metadata in the file overrides the token list.

Example:
  govdecode decode raw proposal-ixs.json --json --jq '.summaries[].kind'`,
		Flags: decoderFlags(),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("request file is required (use - for stdin)")
			}

			data, err := readInput(c, c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to read request: %w", err)
			}
			var req client.DecodeRequest
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse request: %w", err)
			}
			in, err := req.Build()
			if err != nil {
				return fmt.Errorf("%s", client.ValidationMessage(err))
			}

			dec, registry, err := localDecoder(c, cliLogger())
			if err != nil {
				return err
			}
			for mint, md := range in.Snapshot.Tokens {
				registry[mint] = md
			}
			in.Snapshot.Tokens = registry

			result, err := dec.DecodeAll(in.Instructions, in.Keys, in.Snapshot)
			if err != nil {
				return fmt.Errorf("failed to decode instructions: %w", err)
			}

			if wantJSON(c) {
				return writeOutput(c, result)
			}
			printSummaries(c.App.Writer, result.Summaries)
			fmt.Fprintf(c.App.Writer, "\n%d candidate accounts\n", result.Candidates.Len())
			return nil
		},
	}
}

func decodeTxCommand() *cli.Command {
	return &cli.Command{
		Name:      "tx",
		Usage:     "Fetch and decode transactions by signature",
		ArgsUsage: "<signature> [signature...]",
		Description: `Fetch transactions and decode every instruction.

By default the decode server does the work. With --local the transactions are
fetched straight from the Solana RPC node given by --rpc-url, and --publish
sends the decoded results to the NATS event feed at --nats-url.

Examples:
  govdecode decode tx 5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW
  govdecode decode tx <sig> --archived
  govdecode decode tx <sig1> <sig2> --local --rpc-url https://api.mainnet-beta.solana.com
  govdecode decode tx <sig1> <sig2> --local --publish`,
		Flags: append(decoderFlags(),
			&cli.BoolFlag{
				Name:  "local",
				Usage: "Decode locally against --rpc-url instead of asking the server",
			},
			&cli.BoolFlag{
				Name:  "archived",
				Usage: "Read the server's archived copy instead of fetching from the chain",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Publish locally decoded transactions to the event feed (requires --local)",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Concurrent RPC fetches for --local",
				Value: 4,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall timeout",
				Value: 60 * time.Second,
			},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("at least one signature is required")
			}
			if c.Bool("local") && c.Bool("archived") {
				return fmt.Errorf("--local and --archived cannot be combined")
			}
			if c.Bool("publish") && !c.Bool("local") {
				return fmt.Errorf("--publish requires --local")
			}

			ctx, cancel := contextWithTimeout(c)
			defer cancel()

			var txs []*solana.DecodedTransaction
			var err error
			if c.Bool("local") {
				txs, err = decodeLocally(ctx, c, c.Args().Slice())
			} else {
				txs, err = decodeViaServer(ctx, c, c.Args().Slice())
			}
			if err != nil {
				return err
			}

			if c.Bool("publish") {
				publisher, err := natspkg.NewPublisher(c.String("nats-url"), nil, cliLogger())
				if err != nil {
					return err
				}
				defer publisher.Close()
				if err := publishTransactions(ctx, publisher, txs); err != nil {
					return err
				}
			}

			if wantJSON(c) {
				if len(txs) == 1 {
					return writeOutput(c, txs[0])
				}
				return writeOutput(c, txs)
			}
			for i, tx := range txs {
				if i > 0 {
					fmt.Fprintln(c.App.Writer)
				}
				printTransaction(c.App.Writer, tx)
			}
			return nil
		},
	}
}

func decodeLocally(ctx context.Context, c *cli.Context, args []string) ([]*solana.DecodedTransaction, error) {
	endpoint, err := solana.SelectRandomEndpoint(solana.SplitEndpoints(c.String("rpc-url")))
	if err != nil {
		return nil, fmt.Errorf("--rpc-url is required with --local: %w", err)
	}

	sigs := make([]solanago.Signature, len(args))
	for i, arg := range args {
		sigs[i], err = solanago.SignatureFromBase58(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid signature %q: %w", arg, err)
		}
	}

	logger := cliLogger()
	dec, registry, err := localDecoder(c, logger)
	if err != nil {
		return nil, err
	}
	fetcher := solana.NewClient(solana.NewRPCClient(endpoint), dec, registry, nil, logger,
		solana.WithConcurrency(c.Int("concurrency")),
	)
	return fetcher.DecodeSignatures(ctx, sigs)
}

func decodeViaServer(ctx context.Context, c *cli.Context, args []string) ([]*solana.DecodedTransaction, error) {
	cl := client.NewClient(c.String("server-url"), nil, cliLogger())

	txs := make([]*solana.DecodedTransaction, 0, len(args))
	for _, sig := range args {
		var tx *solana.DecodedTransaction
		var err error
		if c.Bool("archived") {
			tx, err = cl.GetArchivedTransaction(ctx, sig)
		} else {
			tx, err = cl.GetTransaction(ctx, sig)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", sig, err)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// publishTransactions sends decoded transactions to the event feed.
func publishTransactions(ctx context.Context, publisher natspkg.Publisher, txs []*solana.DecodedTransaction) error {
	events := make([]*natspkg.DecodedTransactionEvent, 0, len(txs))
	for _, tx := range txs {
		events = append(events, natspkg.FromDecodedTransaction(tx))
	}
	if err := publisher.PublishDecodedBatch(ctx, events); err != nil {
		return fmt.Errorf("failed to publish decoded transactions: %w", err)
	}
	return nil
}

// printTransaction writes a human-readable transaction summary.
func printTransaction(w io.Writer, tx *solana.DecodedTransaction) {
	fmt.Fprintf(w, "Signature: %s\n", tx.Signature)
	fmt.Fprintf(w, "Slot:      %d\n", tx.Slot)
	if tx.BlockTime != nil {
		fmt.Fprintf(w, "Time:      %s\n", tx.BlockTime.Format(time.RFC3339))
	}
	if tx.Err != nil {
		fmt.Fprintf(w, "Error:     %s\n", *tx.Err)
	}
	if programs := tx.Programs(); len(programs) > 0 {
		fmt.Fprintf(w, "Programs:  %s\n", strings.Join(programs, ", "))
	}
	fmt.Fprintln(w)
	printSummaries(w, tx.Summaries)
}

// printSummaries writes one line per instruction summary.
func printSummaries(w io.Writer, summaries []*decoder.Summary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No instructions.")
		return
	}
	for _, s := range summaries {
		fmt.Fprintf(w, "#%-3d %-20s %s\n", s.Index, s.Program, formatSummary(s))
	}
}

// formatSummary renders the interesting fields of a summary on one line.
func formatSummary(s *decoder.Summary) string {
	parts := []string{s.Kind}
	if s.Amount != nil {
		unit := s.DisplayName
		if unit == "" {
			unit = s.Mint
		}
		parts = append(parts, strings.TrimSpace(s.Amount.String()+" "+unit))
	}
	if s.Source != "" || s.Destination != "" {
		parts = append(parts, fmt.Sprintf("%s -> %s", orUnknown(s.Source), orUnknown(s.Destination)))
	}
	if s.SchemaDecoded != nil {
		parts = append(parts, s.SchemaDecoded.Name)
	}
	if s.Description != "" {
		parts = append(parts, fmt.Sprintf("%q", s.Description))
	}
	if s.Kind == decoder.KindUnknownProgram && len(s.RawPayload) > 0 {
		parts = append(parts, "data "+decoder.EncodeBase58(s.RawPayload))
	}
	if s.Heuristic {
		parts = append(parts, "(heuristic)")
	}
	return strings.Join(parts, "  ")
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}

// contextWithTimeout bounds a command by its --timeout flag.
func contextWithTimeout(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("timeout"))
}
