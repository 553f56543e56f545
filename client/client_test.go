package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSystem = "11111111111111111111111111111111"
	testFrom   = "4Nd1mBQtrMJVYVfKf2PJy9NZUZdTAsp7D4xWLs4gDB4T"
	testTo     = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func TestDecode_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/decode", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body DecodeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{testFrom, testTo, testSystem}, body.AccountKeys)
		require.Len(t, body.Instructions, 1)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"summaries":[{"index":0,"program":"SystemProgram","program_id":"11111111111111111111111111111111","kind":"SOL Transfer","amount":"2.5","raw_payload":"AgAAAA==","accounts":[]}],"candidates":["` + testFrom + `","` + testTo + `"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	resp, err := client.Decode(context.Background(), &DecodeRequest{
		AccountKeys:  []string{testFrom, testTo, testSystem},
		Instructions: []Instruction{{ProgramIDIndex: 2, Accounts: []uint16{0, 1}, Data: "AgAAAA=="}},
	})

	require.NoError(t, err)
	require.Len(t, resp.Summaries, 1)
	assert.Equal(t, "SOL Transfer", resp.Summaries[0].Kind)
	assert.Equal(t, "2.5", resp.Summaries[0].Amount.String())
	assert.Equal(t, 2, resp.Candidates.Len())
}

func TestDecode_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "instruction 0 account 0: account index out of range",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.Decode(context.Background(), &DecodeRequest{AccountKeys: []string{testSystem}})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformed))
	assert.Contains(t, err.Error(), "account index out of range")
}

func TestGetTransaction_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/api/v1/transactions/sig123", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"signature":"sig123","slot":42,"summaries":[],"candidates":[],"decoded_at":"2024-01-01T00:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	tx, err := client.GetTransaction(context.Background(), "sig123")

	require.NoError(t, err)
	assert.Equal(t, "sig123", tx.Signature)
	assert.Equal(t, uint64(42), tx.Slot)
}

func TestGetArchivedTransaction_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions/sig123/archived", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "transaction not found"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	_, err := client.GetArchivedTransaction(context.Background(), "sig123")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "transaction not found", apiErr.Message)
}

func TestDeleteArchivedTransaction(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantNotFound bool
		wantErr      bool
	}{
		{name: "deleted", status: http.StatusNoContent},
		{name: "not found", status: http.StatusNotFound, wantErr: true, wantNotFound: true},
		{name: "server error", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodDelete, r.Method)
				assert.Equal(t, "/api/v1/transactions/sig123", r.URL.Path)
				if tt.status == http.StatusNoContent {
					w.WriteHeader(tt.status)
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
			}))
			defer server.Close()

			// Act
			err := NewClient(server.URL, nil, nil).DeleteArchivedTransaction(context.Background(), "sig123")

			// Assert
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantNotFound, errors.Is(err, ErrNotFound))
		})
	}
}

func TestListTransactions_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/transactions", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode(TransactionList{Signatures: []string{"a", "b"}, Count: 2, Limit: 5})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	list, err := client.ListTransactions(context.Background(), 5)

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, list.Signatures)
	assert.Equal(t, 2, list.Count)
}

func TestStartDecodeWorkflow_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/v1/workflows/decode", r.URL.Path)

		var body StartWorkflowRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"sigA"}, body.Signatures)
		assert.True(t, body.Archive)

		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(StartWorkflowResponse{WorkflowID: "decode-signatures-abc", RunID: "run-1"})
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	resp, err := client.StartDecodeWorkflow(context.Background(), &StartWorkflowRequest{Signatures: []string{"sigA"}, Archive: true})

	require.NoError(t, err)
	assert.Equal(t, "decode-signatures-abc", resp.WorkflowID)
	assert.Equal(t, "run-1", resp.RunID)
}

func TestHealth_PlainTextError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("down\n"))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, nil)
	err := client.Health(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503: down")
}
