package client

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
)

var validate = validator.New()

// Instruction is a compiled instruction on the wire. Data is base64; DataBase58
// is accepted instead for payloads copied from explorers.
type Instruction struct {
	ProgramIDIndex uint16   `json:"program_id_index"`
	Accounts       []uint16 `json:"accounts"`
	Data           string   `json:"data,omitempty" validate:"omitempty,base64"`
	DataBase58     string   `json:"data_base58,omitempty" validate:"excluded_with=Data"`
}

// ParsedAccount is the token identity of an account.
type ParsedAccount struct {
	Mint     string `json:"mint" validate:"required"`
	Decimals uint8  `json:"decimals"`
}

// TokenMetadata describes a mint for display.
type TokenMetadata struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	IconURI string `json:"icon_uri,omitempty" validate:"omitempty,url"`
}

// DecodeRequest is the body of POST /api/v1/decode.
type DecodeRequest struct {
	AccountKeys    []string                 `json:"account_keys" validate:"required,min=1,dive,required"`
	LoadedWritable []string                 `json:"loaded_writable,omitempty" validate:"dive,required"`
	LoadedReadonly []string                 `json:"loaded_readonly,omitempty" validate:"dive,required"`
	Instructions   []Instruction            `json:"instructions" validate:"dive"`
	ParsedAccounts map[string]ParsedAccount `json:"parsed_accounts,omitempty" validate:"dive"`
	TokenMetadata  map[string]TokenMetadata `json:"token_metadata,omitempty" validate:"dive"`
}

// DecodeInput is a DecodeRequest converted to decoder types.
type DecodeInput struct {
	Instructions []solana.CompiledInstruction
	Keys         decoder.AccountKeys
	Snapshot     decoder.Snapshot
}

// Validate checks the request shape. It does not check that indices are in
// range; that is the decoder's job.
func (r *DecodeRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid decode request: %w", err)
	}
	return nil
}

// Build validates the request and converts it to decoder input.
func (r *DecodeRequest) Build() (*DecodeInput, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	static, err := parseAddresses("account_keys", r.AccountKeys)
	if err != nil {
		return nil, err
	}
	var loaded *decoder.LoadedKeys
	if len(r.LoadedWritable) > 0 || len(r.LoadedReadonly) > 0 {
		writable, err := parseAddresses("loaded_writable", r.LoadedWritable)
		if err != nil {
			return nil, err
		}
		readonly, err := parseAddresses("loaded_readonly", r.LoadedReadonly)
		if err != nil {
			return nil, err
		}
		loaded = &decoder.LoadedKeys{Writable: writable, ReadOnly: readonly}
	}

	instructions := make([]solana.CompiledInstruction, len(r.Instructions))
	for i, ix := range r.Instructions {
		data, err := ix.payload()
		if err != nil {
			return nil, fmt.Errorf("instructions[%d]: %w", i, err)
		}
		instructions[i] = solana.CompiledInstruction{
			ProgramIDIndex: ix.ProgramIDIndex,
			Accounts:       ix.Accounts,
			Data:           data,
		}
	}

	snap := decoder.Snapshot{}
	if len(r.ParsedAccounts) > 0 {
		snap.Accounts = make(decoder.ParsedAccountMap, len(r.ParsedAccounts))
		for addr, acc := range r.ParsedAccounts {
			key, err := decoder.ParseAddress(addr)
			if err != nil {
				return nil, fmt.Errorf("parsed_accounts key %q: %w", addr, err)
			}
			mint, err := decoder.ParseAddress(acc.Mint)
			if err != nil {
				return nil, fmt.Errorf("parsed_accounts[%s].mint: %w", addr, err)
			}
			snap.Accounts[key] = decoder.ParsedAccount{Mint: mint, Decimals: acc.Decimals}
		}
	}
	if len(r.TokenMetadata) > 0 {
		snap.Tokens = make(decoder.TokenMetadataMap, len(r.TokenMetadata))
		for addr, md := range r.TokenMetadata {
			key, err := decoder.ParseAddress(addr)
			if err != nil {
				return nil, fmt.Errorf("token_metadata key %q: %w", addr, err)
			}
			snap.Tokens[key] = decoder.TokenMetadata{Name: md.Name, Symbol: md.Symbol, IconURI: md.IconURI}
		}
	}

	return &DecodeInput{
		Instructions: instructions,
		Keys:         decoder.ResolveAccountKeys(static, loaded),
		Snapshot:     snap,
	}, nil
}

func (ix Instruction) payload() ([]byte, error) {
	switch {
	case ix.Data != "":
		b, err := base64.StdEncoding.DecodeString(ix.Data)
		if err != nil {
			return nil, fmt.Errorf("data is not base64: %w", err)
		}
		return b, nil
	case ix.DataBase58 != "":
		b, err := decoder.DecodeBase58(ix.DataBase58)
		if err != nil {
			return nil, fmt.Errorf("data_base58 is not base58: %w", err)
		}
		return b, nil
	default:
		return []byte{}, nil
	}
}

func parseAddresses(field string, in []string) (solana.PublicKeySlice, error) {
	out := make(solana.PublicKeySlice, len(in))
	for i, s := range in {
		pk, err := decoder.ParseAddress(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", field, i, err)
		}
		out[i] = pk
	}
	return out, nil
}

// ValidationMessage flattens validator errors into one line for API responses.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		parts[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// DecodeResponse is the body returned by POST /api/v1/decode.
type DecodeResponse = decoder.Result

// StartWorkflowRequest is the body of POST /api/v1/workflows/decode.
type StartWorkflowRequest struct {
	Signatures []string `json:"signatures" validate:"required,min=1,max=1000,dive,required"`
	Archive    bool     `json:"archive"`
	Publish    bool     `json:"publish"`
}

// Validate checks the request shape.
func (r *StartWorkflowRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid workflow request: %w", err)
	}
	return nil
}

// StartWorkflowResponse identifies a started decode workflow.
type StartWorkflowResponse struct {
	WorkflowID string `json:"workflow_id"`
	RunID      string `json:"run_id"`
}

// TransactionList is the body returned by GET /api/v1/transactions.
type TransactionList struct {
	Signatures []string `json:"signatures"`
	Count      int      `json:"count"`
	Limit      int32    `json:"limit"`
}
