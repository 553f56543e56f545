// Package tokens loads the token-metadata snapshot used for display names.
package tokens

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
)

var ErrInvalidTokenList = errors.New("invalid token list")

// Well-known mints seeded into every registry.
var (
	USDCMint  = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	USDTMint  = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
	GRAPEMint = solana.MustPublicKeyFromBase58("8upjSpvjcdpuzhfR1zriwg5NXkwDruejqNE9WNbPRtyA")
)

// Entry is one token in a token-list file. Decimals are read from the
// chain, so the list's decimals field is ignored.
type Entry struct {
	Address string `json:"address" validate:"required"`
	Symbol  string `json:"symbol"`
	Name    string `json:"name" validate:"required_without=Symbol"`
	LogoURI string `json:"logoURI,omitempty" validate:"omitempty,url"`
	ChainID int    `json:"chainId,omitempty"`
}

// tokenList is the solana-labs token-list document. A bare array of
// entries is also accepted.
type tokenList struct {
	Name   string  `json:"name"`
	Tokens []Entry `json:"tokens"`
}

var validate = validator.New()

// Defaults returns the built-in metadata for native SOL and common stablecoins.
func Defaults() decoder.TokenMetadataMap {
	return decoder.TokenMetadataMap{
		decoder.SOLMint: {Name: "Solana", Symbol: "SOL"},
		USDCMint:        {Name: "USD Coin", Symbol: "USDC"},
		USDTMint:        {Name: "USDT", Symbol: "USDT"},
		GRAPEMint:       {Name: "Grape", Symbol: "GRAPE"},
	}
}

// Load reads a token-list file and merges it over Defaults.
// An empty path returns the defaults alone.
func Load(path string) (decoder.TokenMetadataMap, error) {
	if path == "" {
		return Defaults(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token list: %w", err)
	}
	return Parse(data)
}

// Parse decodes a token-list document and merges it over Defaults.
// Entries for other chains (chainId other than 0 or 101) are ignored.
func Parse(data []byte) (decoder.TokenMetadataMap, error) {
	entries, err := parseEntries(data)
	if err != nil {
		return nil, err
	}

	out := Defaults()
	for i, e := range entries {
		if e.ChainID != 0 && e.ChainID != 101 {
			continue
		}
		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidTokenList, i, err)
		}
		mint, err := decoder.ParseAddress(e.Address)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d address %q: %v", ErrInvalidTokenList, i, e.Address, err)
		}
		out[mint] = decoder.TokenMetadata{
			Name:    e.Name,
			Symbol:  e.Symbol,
			IconURI: e.LogoURI,
		}
	}
	return out, nil
}

func parseEntries(data []byte) ([]Entry, error) {
	var list tokenList
	if err := json.Unmarshal(data, &list); err == nil {
		return list.Tokens, nil
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTokenList, err)
	}
	return entries, nil
}
