package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Grape-Labs/grape-governance-sub001/service/solana"
)

var (
	// ErrNotFound is returned when the server has no such transaction.
	ErrNotFound = errors.New("not found")
	// ErrMalformed is returned when the server rejected instructions that
	// reference accounts outside the key array.
	ErrMalformed = errors.New("malformed transaction")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps status codes onto the package sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnprocessableEntity:
		return ErrMalformed
	}
	return nil
}

// Client is the HTTP client for the governance decoder service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new decoder service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Decode sends raw compiled instructions to the server and returns the summaries.
func (c *Client) Decode(ctx context.Context, req *DecodeRequest) (*DecodeResponse, error) {
	var out DecodeResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/decode", req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("decoded instructions", "count", len(out.Summaries))
	return &out, nil
}

// GetTransaction fetches a transaction from the chain through the server and decodes it.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*solana.DecodedTransaction, error) {
	var out solana.DecodedTransaction
	path := "/api/v1/transactions/" + url.PathEscape(signature)
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetArchivedTransaction reads a previously decoded transaction from the archive.
func (c *Client) GetArchivedTransaction(ctx context.Context, signature string) (*solana.DecodedTransaction, error) {
	var out solana.DecodedTransaction
	path := "/api/v1/transactions/" + url.PathEscape(signature) + "/archived"
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteArchivedTransaction removes a decoded transaction from the archive.
// It returns ErrNotFound when the signature was never archived.
func (c *Client) DeleteArchivedTransaction(ctx context.Context, signature string) error {
	path := "/api/v1/transactions/" + url.PathEscape(signature)
	return c.do(ctx, http.MethodDelete, path, nil, http.StatusNoContent, nil)
}

// ListTransactions lists the most recently archived signatures.
func (c *Client) ListTransactions(ctx context.Context, limit int) (*TransactionList, error) {
	path := "/api/v1/transactions"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out TransactionList
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartDecodeWorkflow asks the server to decode signatures in the background.
func (c *Client) StartDecodeWorkflow(ctx context.Context, req *StartWorkflowRequest) (*StartWorkflowResponse, error) {
	var out StartWorkflowResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/workflows/decode", req, http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	c.logger.Debug("decode workflow started", "workflow_id", out.WorkflowID, "run_id", out.RunID)
	return &out, nil
}

// Health checks the server health endpoint.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, wantStatus int, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return c.parseErrorResponse(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return &APIError{StatusCode: resp.StatusCode, Message: string(bytes.TrimSpace(body))}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
}
