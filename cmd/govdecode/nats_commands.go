package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	natspkg "github.com/Grape-Labs/grape-governance-sub001/service/nats"
)

// subscribeCommand streams decoded transaction events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Stream decoded transaction events",
		ArgsUsage: "[program]",
		Description: `Subscribe to decoded transaction events published to NATS JetStream.

Events are published to the subject decoded.{program}.{signature}. Pass a
program name such as Governance to receive only that program's events.

Examples:
  govdecode nats subscribe
  govdecode nats subscribe Governance --json --jq '.instructions[].kind'
  govdecode nats subscribe --durable audit --all`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Durable consumer name (survives restarts)",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Replay retained events instead of only new ones",
			},
			&cli.DurationFlag{
				Name:  "duration",
				Usage: "Stop after this long (0 runs until interrupted)",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("at most one program name may be given")
			}
			opts := natspkg.SubscribeOptions{
				Program:    c.Args().Get(0),
				Durable:    c.String("durable"),
				DeliverAll: c.Bool("all"),
			}

			codes, err := compileJQ(c.StringSlice("jq"))
			if err != nil {
				return err
			}

			nc, err := natspkg.Connect(c.String("nats-url"), "govdecode-cli")
			if err != nil {
				return err
			}
			defer nc.Close()

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()
			if d := c.Duration("duration"); d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}

			jsonOutput := wantJSON(c)
			if !jsonOutput {
				fmt.Fprintf(c.App.Writer, "Listening on %s (Ctrl+C to stop)\n\n", opts.FilterSubject())
			}

			count := 0
			err = natspkg.Subscribe(ctx, nc, opts, cliLogger(), func(event *natspkg.DecodedTransactionEvent) error {
				count++
				return printEvent(c, event, jsonOutput, codes)
			})
			if err != nil {
				return err
			}

			if !jsonOutput {
				fmt.Fprintf(c.App.Writer, "\nReceived %d events\n", count)
			}
			return nil
		},
	}
}

func printEvent(c *cli.Context, event *natspkg.DecodedTransactionEvent, jsonOutput bool, codes []*gojq.Code) error {
	if jsonOutput {
		return outputJSON(c.App.Writer, event, codes)
	}

	w := c.App.Writer
	ts := event.DecodedAt
	if event.BlockTime != nil {
		ts = *event.BlockTime
	}
	fmt.Fprintf(w, "[%s] %s  slot %d\n", ts.Format(time.RFC3339), event.Signature, event.Slot)
	printSummaries(w, event.Instructions)
	fmt.Fprintln(w)
	return nil
}
