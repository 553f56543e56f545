package nats

import (
	"strings"
	"time"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
	"github.com/Grape-Labs/grape-governance-sub001/service/solana"
)

// DecodedTransactionEvent is published once per decoded transaction to the
// subject "decoded.{program}.{signature}" in JetStream.
type DecodedTransactionEvent struct {
	// Transaction identifiers
	Signature string     `json:"signature"`
	Slot      uint64     `json:"slot"`
	BlockTime *time.Time `json:"block_time,omitempty"`
	Err       *string    `json:"err,omitempty"`

	// Decoded content
	Programs     []string           `json:"programs"`
	Instructions []*decoder.Summary `json:"instructions"`
	Candidates   []string           `json:"candidates"`

	// Timing information
	DecodedAt   time.Time `json:"decoded_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromDecodedTransaction converts a decoded transaction to an event for publishing.
func FromDecodedTransaction(tx *solana.DecodedTransaction) *DecodedTransactionEvent {
	event := &DecodedTransactionEvent{
		Signature:    tx.Signature,
		Slot:         tx.Slot,
		BlockTime:    tx.BlockTime,
		Err:          tx.Err,
		Programs:     tx.Programs(),
		Instructions: tx.Summaries,
		Candidates:   []string{},
		DecodedAt:    tx.DecodedAt,
		PublishedAt:  time.Now().UTC(),
	}
	if event.Programs == nil {
		event.Programs = []string{}
	}
	if tx.Candidates != nil {
		for _, addr := range tx.Candidates.Addresses() {
			event.Candidates = append(event.Candidates, addr.String())
		}
	}
	return event
}

// SubjectPrefix is the program-level part of the subject, used for metrics
// labels and consumer filters.
func (e *DecodedTransactionEvent) SubjectPrefix() string {
	program := "unknown"
	if len(e.Programs) > 0 {
		program = subjectToken(e.Programs[0])
	}
	return SubjectRoot + "." + program
}

// Subject is the full publish subject for the event.
func (e *DecodedTransactionEvent) Subject() string {
	return e.SubjectPrefix() + "." + e.Signature
}

// subjectToken strips characters NATS reserves for subject syntax.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
