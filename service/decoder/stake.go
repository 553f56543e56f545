package decoder

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Stake program instruction tags (u32, bincode).
const (
	stakeInitialize uint32 = iota
	stakeAuthorize
	stakeDelegate
	stakeSplit
	stakeWithdraw
	stakeDeactivate
	stakeSetLockup
	stakeMerge
	stakeAuthorizeWithSeed
	stakeInitializeChecked
	stakeAuthorizeChecked
	stakeAuthorizeCheckedWithSeed
	stakeSetLockupChecked
	stakeGetMinimumDelegation
	stakeDeactivateDelinquent
	stakeRedelegate
	stakeMoveStake
	stakeMoveLamports
)

var stakeKinds = map[uint32]string{
	stakeInitialize:               "stake.initialize",
	stakeAuthorize:                "stake.authorize",
	stakeDelegate:                 "stake.delegate",
	stakeSplit:                    "stake.split",
	stakeWithdraw:                 "stake.withdraw",
	stakeDeactivate:               "stake.deactivate",
	stakeSetLockup:                "stake.setLockup",
	stakeMerge:                    "stake.merge",
	stakeAuthorizeWithSeed:        "stake.authorizeWithSeed",
	stakeInitializeChecked:        "stake.initializeChecked",
	stakeAuthorizeChecked:         "stake.authorizeChecked",
	stakeAuthorizeCheckedWithSeed: "stake.authorizeCheckedWithSeed",
	stakeSetLockupChecked:         "stake.setLockupChecked",
	stakeGetMinimumDelegation:     "stake.getMinimumDelegation",
	stakeDeactivateDelinquent:     "stake.deactivateDelinquent",
	stakeRedelegate:               "stake.redelegate",
	stakeMoveStake:                "stake.moveStake",
	stakeMoveLamports:             "stake.moveLamports",
}

// decodeStake never returns nil: once the program matches, a payload that
// cannot be read still yields a tagged summary.
func decodeStake(ix *instruction) *Summary {
	s := &Summary{Program: ProgramStake, Kind: "stake.unknown"}

	dec := bin.NewBinDecoder(ix.data)
	tag, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return s
	}
	kind, ok := stakeKinds[tag]
	if !ok {
		return s
	}
	s.Kind = kind

	stakeAccount, ok := ix.account(0)
	if !ok {
		return s
	}

	switch tag {
	case stakeInitialize:
		// [0] stake, [1] rent sysvar; payload: Authorized{staker, withdrawer}, Lockup
		s.Source = stakeAccount.String()
		staker, err1 := readPubkey(dec)
		withdrawer, err2 := readPubkey(dec)
		if err1 == nil && err2 == nil {
			s.Destination = staker.String()
			s.Description = fmt.Sprintf("initialize stake %s (staker %s, withdrawer %s)", shortKey(stakeAccount), shortKey(staker), shortKey(withdrawer))
		}

	case stakeAuthorize:
		// [0] stake, [1] clock, [2] current authority; payload: new authority, role
		s.Source = stakeAccount.String()
		newAuthority, err := readPubkey(dec)
		if err != nil {
			break
		}
		s.Destination = newAuthority.String()
		role := "staker"
		if r, err := dec.ReadUint32(bin.LE); err == nil && r == 1 {
			role = "withdrawer"
		}
		s.Description = fmt.Sprintf("set %s authority of %s to %s", role, shortKey(stakeAccount), shortKey(newAuthority))

	case stakeDelegate:
		// [0] stake, [1] vote, [2] clock, [3] stake history, [4] config, [5] authority
		s.Source = stakeAccount.String()
		if vote, ok := ix.account(1); ok {
			s.Destination = vote.String()
			s.Description = fmt.Sprintf("delegate %s to vote account %s", shortKey(stakeAccount), shortKey(vote))
		}

	case stakeSplit:
		// [0] stake, [1] split stake, [2] authority; payload: lamports
		s.Source = stakeAccount.String()
		if dest, ok := ix.account(1); ok {
			s.Destination = dest.String()
		}
		if lamports, err := dec.ReadUint64(bin.LE); err == nil {
			s.setAmount(lamports, lamportsDecimals)
			s.DisplayName = "SOL"
			s.Description = fmt.Sprintf("split %s SOL from %s", s.amountString(), shortKey(stakeAccount))
		}

	case stakeWithdraw:
		// [0] stake, [1] recipient, [2] clock, [3] stake history, [4] authority; payload: lamports
		s.Source = stakeAccount.String()
		if dest, ok := ix.account(1); ok {
			s.Destination = dest.String()
		}
		if lamports, err := dec.ReadUint64(bin.LE); err == nil {
			s.setAmount(lamports, lamportsDecimals)
			s.DisplayName = "SOL"
			s.Description = fmt.Sprintf("withdraw %s SOL from %s", s.amountString(), shortKey(stakeAccount))
		}

	case stakeDeactivate:
		// [0] stake, [1] clock, [2] authority
		s.Source = stakeAccount.String()
		s.Description = fmt.Sprintf("deactivate %s", shortKey(stakeAccount))

	case stakeMerge:
		// [0] destination stake, [1] source stake, [2] clock, [3] stake history, [4] authority
		s.Destination = stakeAccount.String()
		if src, ok := ix.account(1); ok {
			s.Source = src.String()
			s.Description = fmt.Sprintf("merge %s into %s", shortKey(src), shortKey(stakeAccount))
		}
	}

	return s
}

func readPubkey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}
