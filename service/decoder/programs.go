package decoder

import (
	"github.com/gagliardetto/solana-go"
)

// Well-known program addresses.
var (
	SystemProgramID     = solana.MustPublicKeyFromBase58("11111111111111111111111111111111")
	StakeProgramID      = solana.MustPublicKeyFromBase58("Stake11111111111111111111111111111111111111")
	TokenProgramID      = solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	Token2022ProgramID  = solana.MustPublicKeyFromBase58("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	MemoProgramID       = solana.MustPublicKeyFromBase58("MemoSq4gqABAXKb96qnH8TysNcWxMyWCqXgDLGmfcHr")
	MemoLegacyProgramID = solana.MustPublicKeyFromBase58("Memo1UhkJRfHyvLMcVucJwxXeuD728EqVDDwQDxFMNo")

	DefaultDCAProgramID        = solana.MustPublicKeyFromBase58("DCAK36VfExkPdAkYUQg6ewgxyinvcEyPLyHjRbmveKFw")
	DefaultGovernanceProgramID = solana.MustPublicKeyFromBase58("GovER5Lthms3bLBqWub97yVrMmEogzX7xNjdXpPPCVZw")
	DefaultBatchTokenProgramID = solana.MustPublicKeyFromBase58("CCxVENebuRLfH3QSR1X1eEV6TSYrtszisXqJz72zMvWU")

	// SOLMint is the wrapped-SOL mint used as the display identity of native transfers.
	SOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")
)

// Canonical program names used in Summary.Program.
const (
	ProgramSystem     = "SystemProgram"
	ProgramStake      = "StakeProgram"
	ProgramMemo       = "Memo"
	ProgramToken      = "TokenProgram"
	ProgramToken2022  = "Token2022Program"
	ProgramBatchToken = "BatchToken"
	ProgramDCA        = "DCA"
	ProgramGovernance = "Governance"
)

// KindUnknownProgram tags fallback summaries.
const KindUnknownProgram = "Unknown Program"

// ProgramIDs are the deployment-specific program addresses.
type ProgramIDs struct {
	BatchToken solana.PublicKey
	DCA        solana.PublicKey
	Governance solana.PublicKey
}

func DefaultProgramIDs() ProgramIDs {
	return ProgramIDs{
		BatchToken: DefaultBatchTokenProgramID,
		DCA:        DefaultDCAProgramID,
		Governance: DefaultGovernanceProgramID,
	}
}
