package main

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Grape-Labs/grape-governance-sub001/client"
	"github.com/Grape-Labs/grape-governance-sub001/service/temporal"
)

func listTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List recently archived transaction signatures",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of signatures to return",
				Value: 50,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := contextWithTimeout(c)
			defer cancel()

			cl := client.NewClient(c.String("server-url"), nil, cliLogger())
			list, err := cl.ListTransactions(ctx, c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			if wantJSON(c) {
				return writeOutput(c, list)
			}
			if list.Count == 0 {
				fmt.Fprintln(c.App.Writer, "No archived transactions.")
				return nil
			}
			fmt.Fprintf(c.App.Writer, "Archived transactions (%d):\n", list.Count)
			for _, sig := range list.Signatures {
				fmt.Fprintf(c.App.Writer, "  %s\n", sig)
			}
			return nil
		},
	}
}

func deleteTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Remove archived transactions from the server",
		ArgsUsage: "<signature> [signature...]",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout",
				Value: 10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("at least one signature is required")
			}

			ctx, cancel := contextWithTimeout(c)
			defer cancel()

			cl := client.NewClient(c.String("server-url"), nil, cliLogger())
			for _, sig := range c.Args().Slice() {
				if err := cl.DeleteArchivedTransaction(ctx, sig); err != nil {
					return fmt.Errorf("failed to delete %s: %w", sig, err)
				}
				fmt.Fprintf(c.App.Writer, "Deleted %s\n", sig)
			}
			return nil
		},
	}
}

func startWorkflowCommand() *cli.Command {
	return &cli.Command{
		Name:      "start",
		Usage:     "Start a bulk decode workflow",
		ArgsUsage: "[signature...]",
		Description: `Start a background workflow that decodes many transactions.

Signatures come from the arguments, from --file (one per line, # starts a
comment, - reads stdin), or both. The request goes through the decode server.
With --wait the command then follows the workflow on Temporal until it
finishes and prints the result.

Example:
  govdecode workflow start --file proposal-sigs.txt --archive --publish --wait`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "File of signatures, one per line",
			},
			&cli.BoolFlag{
				Name:  "archive",
				Usage: "Archive each decoded transaction",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Publish each decoded transaction to the event feed",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "Wait for the workflow to finish",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Overall timeout, including --wait",
				Value: 30 * time.Minute,
			},
		},
		Action: func(c *cli.Context) error {
			signatures := c.Args().Slice()
			if path := c.String("file"); path != "" {
				data, err := readInput(c, path)
				if err != nil {
					return fmt.Errorf("failed to read signatures: %w", err)
				}
				signatures = append(signatures, parseSignatureList(data)...)
			}
			if len(signatures) == 0 {
				return fmt.Errorf("at least one signature is required")
			}

			ctx, cancel := contextWithTimeout(c)
			defer cancel()

			logger := cliLogger()
			cl := client.NewClient(c.String("server-url"), nil, logger)
			resp, err := cl.StartDecodeWorkflow(ctx, &client.StartWorkflowRequest{
				Signatures: signatures,
				Archive:    c.Bool("archive"),
				Publish:    c.Bool("publish"),
			})
			if err != nil {
				return fmt.Errorf("failed to start workflow: %w", err)
			}

			if !c.Bool("wait") {
				if wantJSON(c) {
					return writeOutput(c, resp)
				}
				fmt.Fprintf(c.App.Writer, "✓ Workflow started\n")
				fmt.Fprintf(c.App.Writer, "  Workflow ID: %s\n", resp.WorkflowID)
				fmt.Fprintf(c.App.Writer, "  Run ID:      %s\n", resp.RunID)
				fmt.Fprintf(c.App.Writer, "  Signatures:  %d\n", len(signatures))
				return nil
			}

			tc, err := temporal.NewClient(
				c.String("temporal-host"),
				c.String("temporal-namespace"),
				c.String("temporal-task-queue"),
				logger,
			)
			if err != nil {
				return err
			}
			defer tc.Close()

			if !wantJSON(c) {
				fmt.Fprintf(c.App.Writer, "Waiting for workflow %s...\n", resp.WorkflowID)
			}
			result, err := tc.WaitDecodeSignatures(ctx, resp.WorkflowID, resp.RunID)
			if err != nil {
				return err
			}

			if wantJSON(c) {
				return writeOutput(c, result)
			}
			printWorkflowResult(c, result)
			return nil
		},
	}
}

// parseSignatureList splits a signature file into signatures, skipping blank
// lines and # comments.
func parseSignatureList(data []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func printWorkflowResult(c *cli.Context, r *temporal.DecodeSignaturesResult) {
	w := c.App.Writer
	fmt.Fprintf(w, "✓ Workflow completed in %s\n", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  Requested:    %d\n", r.Requested)
	fmt.Fprintf(w, "  Decoded:      %d\n", r.Decoded)
	fmt.Fprintf(w, "  Archived:     %d\n", r.Archived)
	fmt.Fprintf(w, "  Published:    %d\n", r.Published)
	fmt.Fprintf(w, "  Instructions: %d\n", r.Instructions)
	if len(r.Programs) > 0 {
		fmt.Fprintf(w, "  Programs:\n")
		for program, n := range r.Programs {
			fmt.Fprintf(w, "    %-24s %d\n", program, n)
		}
	}
	if len(r.Failed) > 0 {
		fmt.Fprintf(w, "  Failed (%d):\n", len(r.Failed))
		for _, f := range r.Failed {
			fmt.Fprintf(w, "    %s [%s] %s\n", f.Signature, f.Stage, f.Error)
		}
	}
}
