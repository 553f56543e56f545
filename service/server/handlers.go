package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	solanago "github.com/gagliardetto/solana-go"

	"github.com/Grape-Labs/grape-governance-sub001/client"
	"github.com/Grape-Labs/grape-governance-sub001/service/db"
	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
	natspkg "github.com/Grape-Labs/grape-governance-sub001/service/nats"
	"github.com/Grape-Labs/grape-governance-sub001/service/solana"
	"github.com/Grape-Labs/grape-governance-sub001/service/temporal"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	maxSignatureLength = 100     // signatures are 87-88 chars
	defaultListLimit   = 50
	maxListLimit       = 1000
)

var (
	// Valid base58 characters (no 0, O, I, l)
	validBase58Regex = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
)

// handleDecode returns a handler that decodes caller-supplied compiled instructions.
// POST /api/v1/decode
func handleDecode(dec *decoder.Decoder, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req client.DecodeRequest
		if !decodeBody(w, r, &req, logger) {
			return
		}

		in, err := req.Build()
		if err != nil {
			logger.Debug("invalid decode request", "error", err)
			writeError(w, client.ValidationMessage(err), http.StatusBadRequest)
			return
		}

		result, err := dec.DecodeAll(in.Instructions, in.Keys, in.Snapshot)
		if err != nil {
			if errors.Is(err, decoder.ErrAccountIndexOutOfRange) {
				writeError(w, err.Error(), http.StatusUnprocessableEntity)
				return
			}
			logger.Error("failed to decode instructions", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Debug("instructions decoded",
			"instructions", len(result.Summaries),
			"candidates", result.Candidates.Len(),
		)
		writeJSON(w, result, http.StatusOK)
	})
}

// handleGetTransaction returns a handler that fetches a transaction from the
// chain and decodes it. With archive=true or publish=true the result is also
// written to the archive or the event feed when those are configured.
// GET /api/v1/transactions/{signature}?archive=true&publish=true
func handleGetTransaction(fetcher Fetcher, archive Archive, publisher Publisher, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")
		sig, err := parseSignature(signature)
		if err != nil {
			logger.Debug("invalid signature", "signature", signature, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		query := r.URL.Query()
		wantArchive := query.Get("archive") == "true"
		wantPublish := query.Get("publish") == "true"
		if wantArchive && archive == nil {
			writeError(w, "archive is not configured", http.StatusServiceUnavailable)
			return
		}
		if wantPublish && publisher == nil {
			writeError(w, "event feed is not configured", http.StatusServiceUnavailable)
			return
		}

		tx, err := fetcher.DecodeSignature(r.Context(), sig)
		switch {
		case errors.Is(err, solana.ErrTransactionNotFound):
			writeError(w, "transaction not found", http.StatusNotFound)
			return
		case errors.Is(err, decoder.ErrAccountIndexOutOfRange):
			writeError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		case err != nil:
			logger.Error("failed to fetch transaction", "signature", signature, "error", err)
			writeError(w, "failed to fetch transaction", http.StatusBadGateway)
			return
		}

		if wantArchive {
			if err := archive.SaveDecodedTransaction(r.Context(), tx); err != nil {
				logger.Error("failed to archive transaction", "signature", signature, "error", err)
				writeError(w, "failed to archive transaction", http.StatusInternalServerError)
				return
			}
		}
		if wantPublish {
			if err := publisher.PublishDecoded(r.Context(), natspkg.FromDecodedTransaction(tx)); err != nil {
				logger.Error("failed to publish transaction", "signature", signature, "error", err)
				writeError(w, "failed to publish transaction", http.StatusInternalServerError)
				return
			}
		}

		logger.Debug("transaction decoded",
			"signature", signature,
			"instructions", len(tx.Summaries),
			"archived", wantArchive,
			"published", wantPublish,
		)
		writeJSON(w, tx, http.StatusOK)
	})
}

// handleGetArchivedTransaction returns a handler that reads a decoded transaction from the archive.
// GET /api/v1/transactions/{signature}/archived
func handleGetArchivedTransaction(archive Archive, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")
		if err := validateSignature(signature); err != nil {
			logger.Debug("invalid signature", "signature", signature, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		tx, err := archive.GetDecodedTransaction(r.Context(), signature)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "transaction not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to read archived transaction", "signature", signature, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, tx, http.StatusOK)
	})
}

// handleDeleteArchivedTransaction returns a handler that removes a decoded transaction from the archive.
// DELETE /api/v1/transactions/{signature}
func handleDeleteArchivedTransaction(archive Archive, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature := r.PathValue("signature")
		if err := validateSignature(signature); err != nil {
			logger.Debug("invalid signature", "signature", signature, "error", err)
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := archive.DeleteDecodedTransaction(r.Context(), signature); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				writeError(w, "transaction not found", http.StatusNotFound)
				return
			}
			logger.Error("failed to delete archived transaction", "signature", signature, "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}

		logger.Info("archived transaction deleted", "signature", signature)
		w.WriteHeader(http.StatusNoContent)
	})
}

// handleListTransactions returns a handler that lists recently archived signatures.
// GET /api/v1/transactions?limit=N
func handleListTransactions(archive Archive, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limit := int32(defaultListLimit)
		if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
			parsed, err := strconv.Atoi(limitStr)
			if err != nil {
				writeError(w, "invalid limit parameter: must be an integer", http.StatusBadRequest)
				return
			}
			if parsed < 1 {
				writeError(w, "limit must be at least 1", http.StatusBadRequest)
				return
			}
			if parsed > maxListLimit {
				writeError(w, fmt.Sprintf("limit cannot exceed %d", maxListLimit), http.StatusBadRequest)
				return
			}
			limit = int32(parsed)
		}

		signatures, err := archive.ListRecentSignatures(r.Context(), limit)
		if err != nil {
			logger.Error("failed to list transactions", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		if signatures == nil {
			signatures = []string{}
		}

		logger.Debug("transactions listed", "count", len(signatures))
		writeJSON(w, client.TransactionList{
			Signatures: signatures,
			Count:      len(signatures),
			Limit:      limit,
		}, http.StatusOK)
	})
}

// handleStartDecodeWorkflow returns a handler that starts a background bulk decode.
// POST /api/v1/workflows/decode
func handleStartDecodeWorkflow(workflows WorkflowStarter, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req client.StartWorkflowRequest
		if !decodeBody(w, r, &req, logger) {
			return
		}
		if err := req.Validate(); err != nil {
			writeError(w, client.ValidationMessage(err), http.StatusBadRequest)
			return
		}
		for _, sig := range req.Signatures {
			if _, err := parseSignature(sig); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
		}

		workflowID, runID, err := workflows.StartDecodeSignatures(r.Context(), temporal.DecodeSignaturesInput{
			Signatures: req.Signatures,
			Archive:    req.Archive,
			Publish:    req.Publish,
		})
		if err != nil {
			logger.Error("failed to start decode workflow", "signatures", len(req.Signatures), "error", err)
			writeError(w, "failed to start workflow", http.StatusInternalServerError)
			return
		}

		logger.Info("decode workflow started",
			"workflow_id", workflowID,
			"run_id", runID,
			"signatures", len(req.Signatures),
		)
		writeJSON(w, client.StartWorkflowResponse{WorkflowID: workflowID, RunID: runID}, http.StatusAccepted)
	})
}

// decodeBody decodes a JSON request body and writes the error response on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, logger *slog.Logger) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Debug("failed to decode request body", "error", err)
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, "request body too large: maximum size is 1MB", http.StatusBadRequest)
			return false
		}
		writeError(w, "invalid request body: must be valid JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// validateSignature checks a transaction signature for length and alphabet.
func validateSignature(signature string) error {
	if signature == "" {
		return errorf("signature is required")
	}

	if len(signature) > maxSignatureLength {
		return errorf("signature too long: maximum length is %d characters", maxSignatureLength)
	}

	for _, r := range signature {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in signature: control characters not allowed")
		}
	}

	if !validBase58Regex.MatchString(signature) {
		return errorf("invalid signature format: must contain only valid base58 characters")
	}

	return nil
}

// parseSignature validates and decodes a transaction signature.
func parseSignature(signature string) (solanago.Signature, error) {
	if err := validateSignature(signature); err != nil {
		return solanago.Signature{}, err
	}
	sig, err := solanago.SignatureFromBase58(signature)
	if err != nil {
		return solanago.Signature{}, errorf("invalid signature: %v", err)
	}
	return sig, nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
