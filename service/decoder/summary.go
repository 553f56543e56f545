package decoder

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// instruction is one compiled instruction with its accounts resolved.
type instruction struct {
	programID solana.PublicKey
	accounts  []solana.PublicKey
	data      []byte
	snap      Snapshot
}

func (ix *instruction) account(i int) (solana.PublicKey, bool) {
	if i < 0 || i >= len(ix.accounts) {
		return solana.PublicKey{}, false
	}
	return ix.accounts[i], true
}

// setToken fills mint identity from the metadata snapshot, falling back to
// the shortened mint address.
func (s *Summary) setToken(mint solana.PublicKey, snap Snapshot) {
	s.Mint = mint.String()
	if md, ok := snap.token(mint); ok {
		s.DisplayName = md.Symbol
		if s.DisplayName == "" {
			s.DisplayName = md.Name
		}
		s.IconURI = md.IconURI
	}
	if s.DisplayName == "" {
		s.DisplayName = shortKey(mint)
	}
}

func (s *Summary) setAmount(raw uint64, decimals uint8) {
	amount := FormatAmount(raw, decimals)
	s.Amount = &amount
	s.RawAmount = &raw
	s.Decimals = &decimals
}

// tokenLabel is the unit shown after an amount in descriptions.
func (s *Summary) tokenLabel() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return "tokens"
}

func (s *Summary) amountString() string {
	if s.Amount == nil {
		return "?"
	}
	return s.Amount.String()
}

func describeTransfer(s *Summary) string {
	if s.Destination == "" {
		return fmt.Sprintf("transfer %s %s", s.amountString(), s.tokenLabel())
	}
	return fmt.Sprintf("transfer %s %s to %s", s.amountString(), s.tokenLabel(), ShortenAddress(s.Destination, 4, 4))
}
