package solana

import (
	"context"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
)

// SPL Token account sizes. Token-2022 pads mints to the account size and
// appends an account-type byte before any extensions.
const (
	mintSize         = 82
	tokenAccountSize = 165

	accountTypeMint    = 1
	accountTypeAccount = 2
)

// LoadParsedAccounts builds the parsed-account cache for addrs.
// Token accounts map to their mint and the mint's decimals. Mints map to
// themselves. Anything not owned by a token program is skipped.
func (c *Client) LoadParsedAccounts(ctx context.Context, addrs []solana.PublicKey) (decoder.ParsedAccountMap, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	accounts, err := c.getMultipleAccounts(ctx, addrs)
	if err != nil {
		return nil, fmt.Errorf("fetch candidate accounts: %w", err)
	}

	parsed := make(decoder.ParsedAccountMap)
	mintOf := make(map[solana.PublicKey]solana.PublicKey)
	for i, acc := range accounts {
		if !isTokenOwned(acc) {
			continue
		}
		data := acc.Data.GetBinary()
		switch classifyTokenData(data) {
		case accountTypeMint:
			mint, err := decodeMint(data)
			if err != nil {
				c.logger.DebugContext(ctx, "skipping undecodable mint", "address", addrs[i].String(), "error", err)
				continue
			}
			parsed[addrs[i]] = decoder.ParsedAccount{Mint: addrs[i], Decimals: mint.Decimals}
		case accountTypeAccount:
			var ta token.Account
			if err := bin.NewBinDecoder(data[:tokenAccountSize]).Decode(&ta); err != nil {
				c.logger.DebugContext(ctx, "skipping undecodable token account", "address", addrs[i].String(), "error", err)
				continue
			}
			mintOf[addrs[i]] = ta.Mint
		}
	}

	// Fetch the mints of token accounts whose mint was not itself a candidate.
	var missing []solana.PublicKey
	queued := make(map[solana.PublicKey]struct{})
	for _, mint := range mintOf {
		if _, ok := parsed[mint]; ok {
			continue
		}
		if _, ok := queued[mint]; ok {
			continue
		}
		queued[mint] = struct{}{}
		missing = append(missing, mint)
	}

	decimals := make(map[solana.PublicKey]uint8)
	for mint, p := range parsed {
		decimals[mint] = p.Decimals
	}
	if len(missing) > 0 {
		mints, err := c.getMultipleAccounts(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("fetch mints: %w", err)
		}
		for i, acc := range mints {
			if !isTokenOwned(acc) {
				continue
			}
			mint, err := decodeMint(acc.Data.GetBinary())
			if err != nil {
				c.logger.DebugContext(ctx, "skipping undecodable mint", "address", missing[i].String(), "error", err)
				continue
			}
			decimals[missing[i]] = mint.Decimals
		}
	}

	for addr, mint := range mintOf {
		d, ok := decimals[mint]
		if !ok {
			continue
		}
		parsed[addr] = decoder.ParsedAccount{Mint: mint, Decimals: d}
	}
	return parsed, nil
}

func isTokenOwned(acc *rpc.Account) bool {
	if acc == nil || acc.Data == nil {
		return false
	}
	return acc.Owner.Equals(decoder.TokenProgramID) || acc.Owner.Equals(decoder.Token2022ProgramID)
}

func classifyTokenData(data []byte) int {
	switch {
	case len(data) == mintSize:
		return accountTypeMint
	case len(data) == tokenAccountSize:
		return accountTypeAccount
	case len(data) > tokenAccountSize:
		return int(data[tokenAccountSize])
	default:
		return 0
	}
}

func decodeMint(data []byte) (*token.Mint, error) {
	if len(data) < mintSize {
		return nil, fmt.Errorf("mint data too short: %d", len(data))
	}
	var mint token.Mint
	if err := bin.NewBinDecoder(data[:mintSize]).Decode(&mint); err != nil {
		return nil, err
	}
	return &mint, nil
}
