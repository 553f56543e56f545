package solana

import (
	"time"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
)

// DecodedTransaction is a fetched transaction with its instruction summaries.
// This is the domain model shared by the API, the archive and the event feed.
type DecodedTransaction struct {
	Signature  string                `json:"signature"`
	Slot       uint64                `json:"slot"`
	BlockTime  *time.Time            `json:"block_time,omitempty"`
	Err        *string               `json:"err,omitempty"` // nil if the transaction succeeded
	Summaries  []*decoder.Summary    `json:"summaries"`
	Candidates *decoder.CandidateSet `json:"candidates"`
	DecodedAt  time.Time             `json:"decoded_at"`
}

// Programs lists the distinct recognized program names in instruction order.
func (t *DecodedTransaction) Programs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range t.Summaries {
		if s.Kind == decoder.KindUnknownProgram {
			continue
		}
		if _, ok := seen[s.Program]; ok {
			continue
		}
		seen[s.Program] = struct{}{}
		out = append(out, s.Program)
	}
	return out
}
