package decoder

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go/programs/system"
)

const lamportsDecimals = 9

// decodeSystem handles System program instructions. Transfer is decoded in
// full; every other subtype gets a tagged summary.
//
// Transfer layout:
//
//	[0..4]  = instruction type (u32 LE, 2)
//	[4..12] = lamports (u64 LE)
//	accounts: [from, to]
func decodeSystem(ix *instruction) *Summary {
	if len(ix.data) < 4 {
		return nil
	}

	tag := binary.LittleEndian.Uint32(ix.data[:4])
	if tag != system.Instruction_Transfer {
		return &Summary{Program: ProgramSystem, Kind: "system." + subtypeName(system.InstructionIDToName(tag))}
	}

	lamports, ok := ReadU64LE(ix.data[4:])
	from, okFrom := ix.account(0)
	to, okTo := ix.account(1)
	if !ok || !okFrom || !okTo {
		return &Summary{Program: ProgramSystem, Kind: "system.transfer"}
	}

	s := &Summary{
		Program:     ProgramSystem,
		Kind:        "SOL Transfer",
		Source:      from.String(),
		Destination: to.String(),
	}
	s.setAmount(lamports, lamportsDecimals)
	s.setToken(SOLMint, ix.snap)
	if s.DisplayName == shortKey(SOLMint) {
		s.DisplayName = "SOL"
	}
	s.Description = describeTransfer(s)
	return s
}

// subtypeName turns an instruction name such as "CreateAccount" into
// "createAccount".
func subtypeName(name string) string {
	if name == "" {
		return "unknown"
	}
	b := []byte(name)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
