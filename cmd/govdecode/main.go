package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "govdecode",
		Usage: "Solana governance instruction decoder CLI",
		Description: `A command-line tool for decoding Solana instructions into readable summaries.

Decode compiled instructions locally, fetch and decode transactions through the
decode server, start bulk decode workflows, and follow the decoded event feed.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			{
				Name:  "decode",
				Usage: "Decode instructions and transactions",
				Subcommands: []*cli.Command{
					decodeRawCommand(),
					decodeTxCommand(),
				},
			},
			{
				Name:  "transactions",
				Usage: "Archived transaction commands",
				Subcommands: []*cli.Command{
					listTransactionsCommand(),
					deleteTransactionCommand(),
				},
			},
			{
				Name:  "workflow",
				Usage: "Bulk decode workflow commands",
				Subcommands: []*cli.Command{
					startWorkflowCommand(),
				},
			},
			{
				Name:  "idl",
				Usage: "Interface schema commands",
				Subcommands: []*cli.Command{
					inspectIDLCommand(),
				},
			},
			{
				Name:  "nats",
				Usage: "Decoded event feed commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Decode server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "rpc-url",
				Usage:   "Solana RPC URL for local transaction decoding (comma-separated for several endpoints)",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "governance-decode",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter applied to JSON output (repeatable, applied in order)",
			},
		},
	}
}
