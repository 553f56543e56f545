package decoder

// SPL Token instruction discriminators.
const (
	tokenTransfer        = uint8(3)
	tokenTransferChecked = uint8(12)
)

// decodeToken handles Transfer and TransferChecked; every other
// discriminator is left to the fallback.
func decodeToken(ix *instruction) *Summary {
	if len(ix.data) == 0 {
		return nil
	}

	program := ProgramToken
	if ix.programID.Equals(Token2022ProgramID) {
		program = ProgramToken2022
	}

	switch ix.data[0] {
	case tokenTransfer:
		return decodeTokenTransfer(ix, program)
	case tokenTransferChecked:
		return decodeTokenTransferChecked(ix, program)
	}
	return nil
}

// Transfer layout:
//
//	[0]    = 3
//	[1..9] = amount (u64 LE)
//	accounts: [source, destination, owner]
//
// The payload carries no decimals; they come from the parsed-account cache
// keyed by source and default to 0 when the source is unknown.
func decodeTokenTransfer(ix *instruction, program string) *Summary {
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
		Program:     program,
		Kind:        "TokenTransfer",
		Source:      source.String(),
		Destination: dest.String(),
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

// TransferChecked layout:
//
//	[0]    = 12
//	[1..9] = amount (u64 LE)
//	[9]    = decimals
//	accounts: [source, mint, destination, owner]
func decodeTokenTransferChecked(ix *instruction, program string) *Summary {
	if len(ix.data) < 10 {
		return nil
	}
	source, okSrc := ix.account(0)
	mint, okMint := ix.account(1)
	dest, okDst := ix.account(2)
	if !okSrc || !okMint || !okDst {
		return nil
	}
	amount, _ := ReadU64LE(ix.data[1:9])
	decimals := ix.data[9]

	s := &Summary{
		Program:     program,
		Kind:        "TokenTransferChecked",
		Source:      source.String(),
		Destination: dest.String(),
	}
	s.setToken(mint, ix.snap)
	s.setAmount(amount, decimals)
	s.Description = describeTransfer(s)
	return s
}
