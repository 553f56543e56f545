package decoder

import (
	"bytes"
	"encoding/json"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Summary is the display-ready form of one compiled instruction.
// DecodeAll produces exactly one Summary per input instruction.
type Summary struct {
	Index         int                `json:"index"`
	Program       string             `json:"program"`
	ProgramID     string             `json:"program_id"`
	Kind          string             `json:"kind"`
	Source        string             `json:"source,omitempty"`
	Destination   string             `json:"destination,omitempty"`
	Mint          string             `json:"mint,omitempty"`
	DisplayName   string             `json:"display_name,omitempty"`
	IconURI       string             `json:"icon_uri,omitempty"`
	Amount        *decimal.Decimal   `json:"amount,omitempty"`
	RawAmount     *uint64            `json:"raw_amount,omitempty"`
	Decimals      *uint8             `json:"decimals,omitempty"`
	Description   string             `json:"description,omitempty"`
	RawPayload    []byte             `json:"raw_payload"`
	SchemaDecoded *SchemaInstruction `json:"schema_decoded,omitempty"`
	Accounts      []string           `json:"accounts"`

	// Heuristic is set when the summary was derived from a guessed layout
	// rather than a verified instruction format.
	Heuristic bool `json:"heuristic,omitempty"`
}

// SchemaInstruction is an instruction decoded through an interface schema.
type SchemaInstruction struct {
	Name     string            `json:"name"`
	Args     map[string]any    `json:"args"`
	Accounts map[string]string `json:"accounts,omitempty"`
}

// UnmarshalJSON keeps numeric arguments as json.Number so u64 values
// above 2^53 survive a trip through the archive or a workflow payload.
func (s *SchemaInstruction) UnmarshalJSON(data []byte) error {
	type plain SchemaInstruction
	var out plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return err
	}
	*s = SchemaInstruction(out)
	return nil
}

// TokenMetadata describes a mint for display.
type TokenMetadata struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	IconURI string `json:"icon_uri,omitempty"`
}

// ParsedAccount is the token identity of an account. For a token account
// Mint is the account's mint; for a mint account Mint is the mint itself.
type ParsedAccount struct {
	Mint     solana.PublicKey `json:"mint"`
	Decimals uint8            `json:"decimals"`
}

// TokenMetadataMap maps mint address to metadata.
type TokenMetadataMap map[solana.PublicKey]TokenMetadata

// ParsedAccountMap maps account address to its parsed token identity.
type ParsedAccountMap map[solana.PublicKey]ParsedAccount

// Snapshot carries the caller-supplied enrichment data for one decode pass.
// Both maps are read-only to the decoder and may be nil.
type Snapshot struct {
	Tokens   TokenMetadataMap
	Accounts ParsedAccountMap
}

func (s Snapshot) token(mint solana.PublicKey) (TokenMetadata, bool) {
	md, ok := s.Tokens[mint]
	return md, ok
}

func (s Snapshot) account(addr solana.PublicKey) (ParsedAccount, bool) {
	info, ok := s.Accounts[addr]
	return info, ok
}

// Result is the output of one decode pass.
type Result struct {
	Summaries  []*Summary    `json:"summaries"`
	Candidates *CandidateSet `json:"candidates"`
}

// CandidateSet is a deduplicated set of referenced account addresses.
// Iteration order is first-seen order.
type CandidateSet struct {
	seen  map[solana.PublicKey]struct{}
	order []solana.PublicKey
}

func NewCandidateSet() *CandidateSet {
	return &CandidateSet{seen: make(map[solana.PublicKey]struct{})}
}

// Add inserts addr and reports whether it was new.
func (c *CandidateSet) Add(addr solana.PublicKey) bool {
	if _, ok := c.seen[addr]; ok {
		return false
	}
	c.seen[addr] = struct{}{}
	c.order = append(c.order, addr)
	return true
}

func (c *CandidateSet) Contains(addr solana.PublicKey) bool {
	_, ok := c.seen[addr]
	return ok
}

func (c *CandidateSet) Len() int {
	return len(c.order)
}

// Addresses returns a copy of the set in first-seen order.
func (c *CandidateSet) Addresses() []solana.PublicKey {
	out := make([]solana.PublicKey, len(c.order))
	copy(out, c.order)
	return out
}

func (c *CandidateSet) MarshalJSON() ([]byte, error) {
	out := make([]string, len(c.order))
	for i, addr := range c.order {
		out[i] = addr.String()
	}
	return json.Marshal(out)
}

func (c *CandidateSet) UnmarshalJSON(data []byte) error {
	var addrs []string
	if err := json.Unmarshal(data, &addrs); err != nil {
		return err
	}
	*c = *NewCandidateSet()
	for _, a := range addrs {
		pk, err := solana.PublicKeyFromBase58(a)
		if err != nil {
			return err
		}
		c.Add(pk)
	}
	return nil
}
