package temporal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.temporal.io/sdk/client"
)

// ErrNoSignatures is returned when a bulk decode is requested with nothing to decode.
var ErrNoSignatures = errors.New("no signatures to decode")

// Client starts decode workflows on a Temporal cluster.
type Client struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

// NewClient creates a new Temporal client.
func NewClient(host, namespace, taskQueue string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		logger:    logger,
	}, nil
}

// StartDecodeSignatures starts a DecodeSignaturesWorkflow and returns its IDs
// without waiting for it. Identical requests map to the same workflow ID, so a
// repeated request while one is running attaches to the running execution.
func (c *Client) StartDecodeSignatures(ctx context.Context, input DecodeSignaturesInput) (workflowID, runID string, err error) {
	if len(input.Signatures) == 0 {
		return "", "", ErrNoSignatures
	}

	id := decodeWorkflowID(input)
	run, err := c.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        id,
		TaskQueue: c.taskQueue,
		Memo: map[string]interface{}{
			"signatures": len(input.Signatures),
			"created_by": "govdecode",
		},
	}, DecodeSignaturesWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start decode workflow", "workflow_id", id, "error", err)
		return "", "", fmt.Errorf("failed to start workflow %q: %w", id, err)
	}

	c.logger.Info("decode workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"signatures", len(input.Signatures),
	)
	return run.GetID(), run.GetRunID(), nil
}

// WaitDecodeSignatures blocks until the given workflow run completes.
func (c *Client) WaitDecodeSignatures(ctx context.Context, workflowID, runID string) (*DecodeSignaturesResult, error) {
	var result DecodeSignaturesResult
	if err := c.client.GetWorkflow(ctx, workflowID, runID).Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("workflow %q failed: %w", workflowID, err)
	}
	return &result, nil
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// decodeWorkflowID derives a stable workflow ID from the request.
func decodeWorkflowID(input DecodeSignaturesInput) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(input.Signatures, ",")))
	fmt.Fprintf(h, "|archive=%t|publish=%t", input.Archive, input.Publish)
	return "decode-signatures-" + hex.EncodeToString(h.Sum(nil))[:16]
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
