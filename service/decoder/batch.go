package decoder

// decodeBatchToken reads the batch program's fixed layout without
// verifying it:
//
//	[0]    = tag
//	[1..9] = amount (u64 LE)
//	accounts: [source, destination, ...]
//
// Decimals come from the cache keyed by source, 0 on a miss.
func decodeBatchToken(ix *instruction) *Summary {
	if len(ix.data) < 9 {
		return nil
	}
	source, okSrc := ix.account(0)
	dest, okDst := ix.account(1)
	if !okSrc || !okDst {
		return nil
	}
	amount, _ := ReadU64LE(ix.data[1:9])

	s := &Summary{
		Program:     ProgramBatchToken,
		Kind:        "BatchTokenTransfer",
		Source:      source.String(),
		Destination: dest.String(),
		Heuristic:   true,
	}

	var decimals uint8
	if info, ok := ix.snap.account(source); ok {
		decimals = info.Decimals
		if !info.Mint.IsZero() {
			s.setToken(info.Mint, ix.snap)
		}
	}
	s.setAmount(amount, decimals)
	s.Description = describeTransfer(s)
	return s
}
