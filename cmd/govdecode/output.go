package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// cliLogger only reports errors so stdout stays parseable.
func cliLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// wantJSON reports whether output should be JSON. A jq filter implies JSON.
func wantJSON(c *cli.Context) bool {
	return c.Bool("json") || len(c.StringSlice("jq")) > 0
}

// compileJQ parses and compiles each filter.
func compileJQ(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// writeOutput writes v as indented JSON, piping it through the --jq filters
// when any are set.
func writeOutput(c *cli.Context, v any) error {
	codes, err := compileJQ(c.StringSlice("jq"))
	if err != nil {
		return err
	}
	return outputJSON(c.App.Writer, v, codes)
}

// outputJSON writes v as indented JSON. Each filter runs over every value the
// previous filter produced, and each final value is written on its own.
func outputJSON(w io.Writer, v any, codes []*gojq.Code) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if len(codes) == 0 {
		return enc.Encode(v)
	}

	// gojq only accepts plain JSON values
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	values := []any{doc}
	for _, code := range codes {
		var next []any
		for _, in := range values {
			iter := code.Run(in)
			for {
				out, ok := iter.Next()
				if !ok {
					break
				}
				if err, isErr := out.(error); isErr {
					return fmt.Errorf("jq filter failed: %w", err)
				}
				next = append(next, out)
			}
		}
		values = next
	}

	for _, out := range values {
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

// readInput reads a file, or stdin when path is "-".
func readInput(c *cli.Context, path string) ([]byte, error) {
	if path == "-" {
		reader := c.App.Reader
		if reader == nil {
			reader = os.Stdin
		}
		return io.ReadAll(reader)
	}
	return os.ReadFile(path)
}
