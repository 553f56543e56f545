package temporal

import (
	"fmt"
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// DecodeSignaturesWorkflow decodes a list of transaction signatures, for example
// every transaction that touched a proposal, and optionally archives and
// publishes each result.
//
// Signatures are processed in input order. A signature that cannot be decoded
// is recorded in the result and skipped; an archive failure fails the workflow
// because the caller asked for durability; a publish failure is recorded only.
func DecodeSignaturesWorkflow(ctx workflow.Context, input DecodeSignaturesInput) (*DecodeSignaturesResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("DecodeSignaturesWorkflow started",
		"signatures", len(input.Signatures),
		"archive", input.Archive,
		"publish", input.Publish,
	)

	result := &DecodeSignaturesResult{
		Requested: len(input.Signatures),
		Programs:  make(map[string]int),
		StartedAt: workflow.Now(ctx),
	}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	for _, sig := range input.Signatures {
		var decoded *DecodeTransactionResult
		err := workflow.ExecuteActivity(ctx, a.DecodeTransaction, DecodeTransactionInput{Signature: sig}).Get(ctx, &decoded)
		if err != nil {
			logger.Warn("skipping signature", "signature", sig, "error", err)
			result.Failed = append(result.Failed, SignatureFailure{Signature: sig, Stage: "decode", Error: err.Error()})
			continue
		}

		tx := decoded.Transaction
		result.Decoded++
		result.Instructions += len(tx.Summaries)
		for _, program := range tx.Programs() {
			result.Programs[program]++
		}

		if input.Archive {
			var archived *ArchiveTransactionResult
			err = workflow.ExecuteActivity(ctx, a.ArchiveTransaction, ArchiveTransactionInput{Transaction: tx}).Get(ctx, &archived)
			if err != nil {
				logger.Error("failed to archive transaction", "signature", sig, "error", err)
				result.Failed = append(result.Failed, SignatureFailure{Signature: sig, Stage: "archive", Error: err.Error()})
				result.CompletedAt = workflow.Now(ctx)
				return result, fmt.Errorf("failed to archive transaction %s: %w", sig, err)
			}
			result.Archived++
		}

		if input.Publish {
			var published *PublishTransactionResult
			err = workflow.ExecuteActivity(ctx, a.PublishTransaction, PublishTransactionInput{Transaction: tx}).Get(ctx, &published)
			if err != nil {
				logger.Warn("failed to publish transaction", "signature", sig, "error", err)
				result.Failed = append(result.Failed, SignatureFailure{Signature: sig, Stage: "publish", Error: err.Error()})
			} else {
				result.Published++
			}
		}
	}

	result.CompletedAt = workflow.Now(ctx)
	logger.Info("DecodeSignaturesWorkflow completed",
		"requested", result.Requested,
		"decoded", result.Decoded,
		"archived", result.Archived,
		"published", result.Published,
		"failed", len(result.Failed),
	)
	return result, nil
}
