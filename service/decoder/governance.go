package decoder

import (
	"fmt"
)

// decodeGovernance decodes through the schema when one is present, then
// applies the grant heuristic. It never returns nil.
func decodeGovernance(ix *instruction, schema *IDL) *Summary {
	s := &Summary{Program: ProgramGovernance, Kind: "Governance"}

	if schema != nil {
		if decoded, err := schema.DecodeInstruction(ix.data, ix.accounts); err == nil {
			s.Kind = "governance." + decoded.Name
			s.SchemaDecoded = decoded
			s.Description = decoded.Name
		}
	}

	applyGrantHeuristic(s, ix)
	return s
}

// applyGrantHeuristic reads the payload as [tag u8, amount u64 LE] and the
// accounts as [source, _, mint, destination]. Any instruction of that shape
// with a non-zero amount is described as a grant, flagged as a guess.
func applyGrantHeuristic(s *Summary, ix *instruction) {
	if len(ix.data) < 9 {
		return
	}
	amount, _ := ReadU64LE(ix.data[1:9])
	if amount == 0 {
		return
	}
	source, okSrc := ix.account(0)
	mint, okMint := ix.account(2)
	dest, okDst := ix.account(3)
	if !okSrc || !okMint || !okDst {
		return
	}

	var decimals uint8
	if info, ok := ix.snap.account(source); ok {
		decimals = info.Decimals
	} else if info, ok := ix.snap.account(mint); ok {
		decimals = info.Decimals
	}

	s.Source = source.String()
	s.Destination = dest.String()
	s.setToken(mint, ix.snap)
	s.setAmount(amount, decimals)
	s.Heuristic = true
	s.Description = fmt.Sprintf("grant %s %s to %s", s.amountString(), s.tokenLabel(), shortKey(dest))
}
