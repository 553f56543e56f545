package decoder

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice   = testKey(1)
	bob     = testKey(2)
	carol   = testKey(3)
	usdc    = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	usdcMD  = TokenMetadata{Name: "USD Coin", Symbol: "USDC", IconURI: "https://example.com/usdc.png"}
	unknown = testKey(99)
)

func TestSystemTransfer(t *testing.T) {
	// Setup
	d := New()

	// Act
	s := decodeSingle(t, d, SystemProgramID, []solana.PublicKey{alice, bob}, systemTransferData(2_500_000_000), Snapshot{})

	// Assert
	assert.Equal(t, ProgramSystem, s.Program)
	assert.Equal(t, "SOL Transfer", s.Kind)
	assert.Equal(t, alice.String(), s.Source)
	assert.Equal(t, bob.String(), s.Destination)
	require.NotNil(t, s.Amount)
	assert.Equal(t, "2.5", s.Amount.String())
	assert.Equal(t, SOLMint.String(), s.Mint)
	assert.Equal(t, "SOL", s.DisplayName)
	assert.Equal(t, uint64(2_500_000_000), *s.RawAmount)
	assert.Contains(t, s.Description, "2.5 SOL")
}

func TestSystemTransfer_UsesSOLMetadata(t *testing.T) {
	d := New()
	snap := Snapshot{Tokens: TokenMetadataMap{SOLMint: {Name: "Solana", Symbol: "SOL", IconURI: "https://example.com/sol.png"}}}

	s := decodeSingle(t, d, SystemProgramID, []solana.PublicKey{alice, bob}, systemTransferData(1_000_000_000), snap)

	assert.Equal(t, "SOL", s.DisplayName)
	assert.Equal(t, "https://example.com/sol.png", s.IconURI)
}

func TestSystemOtherSubtype(t *testing.T) {
	d := New()
	data := make([]byte, 52)
	binary.LittleEndian.PutUint32(data[0:4], 0) // CreateAccount

	s := decodeSingle(t, d, SystemProgramID, []solana.PublicKey{alice, bob}, data, Snapshot{})

	assert.Equal(t, ProgramSystem, s.Program)
	assert.Equal(t, "system.createAccount", s.Kind)
	assert.Nil(t, s.Amount)
}

func TestSystemTransfer_ShortPayload(t *testing.T) {
	d := New()
	data := systemTransferData(5)[:8]

	s := decodeSingle(t, d, SystemProgramID, []solana.PublicKey{alice, bob}, data, Snapshot{})

	assert.Equal(t, "system.transfer", s.Kind)
	assert.Nil(t, s.Amount)
}

func TestSystem_TooShortFallsBack(t *testing.T) {
	d := New()

	s := decodeSingle(t, d, SystemProgramID, nil, []byte{2, 0}, Snapshot{})

	assert.Equal(t, KindUnknownProgram, s.Kind)
	assert.Equal(t, SystemProgramID.String(), s.Program)
}

func TestStakeSubtypes(t *testing.T) {
	stakeAcct := testKey(10)
	vote := testKey(11)
	authority := testKey(12)
	recipient := testKey(13)
	newStake := testKey(14)

	withdraw := borshBuf{}.u32(4).u64(1_000_000_000)
	split := borshBuf{}.u32(3).u64(500_000_000)
	authorize := borshBuf{}.u32(1).pubkey(recipient).u32(1)
	initialize := borshBuf{}.u32(0).pubkey(authority).pubkey(recipient).i64(0).u64(0).pubkey(solana.PublicKey{})

	tests := []struct {
		name        string
		accounts    []solana.PublicKey
		data        []byte
		kind        string
		source      string
		destination string
		amount      string
	}{
		{
			name:        "withdraw",
			accounts:    []solana.PublicKey{stakeAcct, recipient, testKey(20), testKey(21), authority},
			data:        withdraw,
			kind:        "stake.withdraw",
			source:      stakeAcct.String(),
			destination: recipient.String(),
			amount:      "1",
		},
		{
			name:        "delegate",
			accounts:    []solana.PublicKey{stakeAcct, vote, testKey(20), testKey(21), testKey(22), authority},
			data:        borshBuf{}.u32(2),
			kind:        "stake.delegate",
			source:      stakeAcct.String(),
			destination: vote.String(),
		},
		{
			name:        "split",
			accounts:    []solana.PublicKey{stakeAcct, newStake, authority},
			data:        split,
			kind:        "stake.split",
			source:      stakeAcct.String(),
			destination: newStake.String(),
			amount:      "0.5",
		},
		{
			name:     "deactivate",
			accounts: []solana.PublicKey{stakeAcct, testKey(20), authority},
			data:     borshBuf{}.u32(5),
			kind:     "stake.deactivate",
			source:   stakeAcct.String(),
		},
		{
			name:        "merge",
			accounts:    []solana.PublicKey{stakeAcct, newStake, testKey(20), testKey(21), authority},
			data:        borshBuf{}.u32(7),
			kind:        "stake.merge",
			source:      newStake.String(),
			destination: stakeAcct.String(),
		},
		{
			name:        "authorize withdrawer",
			accounts:    []solana.PublicKey{stakeAcct, testKey(20), authority},
			data:        authorize,
			kind:        "stake.authorize",
			source:      stakeAcct.String(),
			destination: recipient.String(),
		},
		{
			name:        "initialize",
			accounts:    []solana.PublicKey{stakeAcct, testKey(20)},
			data:        initialize,
			kind:        "stake.initialize",
			source:      stakeAcct.String(),
			destination: authority.String(),
		},
		{
			name:     "set lockup is tagged only",
			accounts: []solana.PublicKey{stakeAcct, authority},
			data:     borshBuf{}.u32(6),
			kind:     "stake.setLockup",
			source:   "",
		},
		{
			name:     "unknown tag",
			accounts: []solana.PublicKey{stakeAcct},
			data:     borshBuf{}.u32(99),
			kind:     "stake.unknown",
		},
		{
			name:     "empty payload",
			accounts: []solana.PublicKey{stakeAcct},
			data:     []byte{},
			kind:     "stake.unknown",
		},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := decodeSingle(t, d, StakeProgramID, tt.accounts, tt.data, Snapshot{})

			assert.Equal(t, ProgramStake, s.Program)
			assert.Equal(t, tt.kind, s.Kind)
			assert.Equal(t, tt.source, s.Source)
			assert.Equal(t, tt.destination, s.Destination)
			if tt.amount == "" {
				assert.Nil(t, s.Amount)
			} else {
				require.NotNil(t, s.Amount)
				assert.Equal(t, tt.amount, s.Amount.String())
			}
		})
	}
}

func TestStake_AuthorizeDescribesRole(t *testing.T) {
	d := New()
	data := borshBuf{}.u32(1).pubkey(bob).u32(1)

	s := decodeSingle(t, d, StakeProgramID, []solana.PublicKey{alice, testKey(20), carol}, data, Snapshot{})

	assert.Contains(t, s.Description, "withdrawer authority")
}

func TestMemo_Text(t *testing.T) {
	d := New()

	for _, program := range []solana.PublicKey{MemoProgramID, MemoLegacyProgramID} {
		s := decodeSingle(t, d, program, []solana.PublicKey{alice}, []byte("proposal 42: fund the grant"), Snapshot{})

		assert.Equal(t, ProgramMemo, s.Program)
		assert.Equal(t, "Memo", s.Kind)
		assert.Equal(t, "proposal 42: fund the grant", s.Description)
		require.NotNil(t, s.SchemaDecoded)
		assert.Equal(t, "proposal 42: fund the grant", s.SchemaDecoded.Args["text"])
	}
}

func TestMemo_NonUTF8FallsBackToHex(t *testing.T) {
	d := New()
	payload := []byte{0xff, 0xfe, 0x00, 0x41}

	s := decodeSingle(t, d, MemoProgramID, nil, payload, Snapshot{})

	assert.Equal(t, "Memo", s.Kind)
	assert.Equal(t, "hex:fffe0041", s.Description)
	assert.Equal(t, payload, s.RawPayload)
}

func TestMemo_Empty(t *testing.T) {
	d := New()

	s := decodeSingle(t, d, MemoProgramID, nil, []byte{}, Snapshot{})

	assert.Equal(t, "Memo", s.Kind)
	assert.Empty(t, s.Description)
}

func TestTokenTransfer_DecimalsFromCache(t *testing.T) {
	// Setup
	d := New()
	snap := Snapshot{
		Tokens:   TokenMetadataMap{usdc: usdcMD},
		Accounts: ParsedAccountMap{alice: {Mint: usdc, Decimals: 6}},
	}

	// Act
	s := decodeSingle(t, d, TokenProgramID, []solana.PublicKey{alice, bob, carol}, tokenTransferData(1_000_000), snap)

	// Assert
	assert.Equal(t, ProgramToken, s.Program)
	assert.Equal(t, "TokenTransfer", s.Kind)
	assert.Equal(t, alice.String(), s.Source)
	assert.Equal(t, bob.String(), s.Destination)
	require.NotNil(t, s.Amount)
	assert.Equal(t, "1", s.Amount.String())
	assert.Equal(t, usdc.String(), s.Mint)
	assert.Equal(t, "USDC", s.DisplayName)
	assert.Equal(t, usdcMD.IconURI, s.IconURI)
}

func TestTokenTransfer_CacheMissShowsRawAmount(t *testing.T) {
	d := New()

	s := decodeSingle(t, d, TokenProgramID, []solana.PublicKey{alice, bob, carol}, tokenTransferData(1_000_000), Snapshot{})

	require.NotNil(t, s.Amount)
	assert.Equal(t, "1000000", s.Amount.String())
	assert.Equal(t, uint8(0), *s.Decimals)
	assert.Empty(t, s.Mint)
}

func TestTokenTransferChecked_IgnoresCache(t *testing.T) {
	// Setup
	d := New()
	mint := testKey(50)

	// Act
	s := decodeSingle(t, d, TokenProgramID, []solana.PublicKey{alice, mint, bob, carol}, tokenTransferCheckedData(1_500_000_000, 9), Snapshot{})

	// Assert
	assert.Equal(t, "TokenTransferChecked", s.Kind)
	require.NotNil(t, s.Amount)
	assert.Equal(t, "1.5", s.Amount.String())
	assert.Equal(t, mint.String(), s.Mint)
	assert.Equal(t, bob.String(), s.Destination)
	assert.Equal(t, ShortenAddress(mint.String(), 4, 4), s.DisplayName)
}

func TestToken2022Transfer(t *testing.T) {
	d := New()

	s := decodeSingle(t, d, Token2022ProgramID, []solana.PublicKey{alice, usdc, bob, carol}, tokenTransferCheckedData(2_000_000, 6), Snapshot{
		Tokens: TokenMetadataMap{usdc: usdcMD},
	})

	assert.Equal(t, ProgramToken2022, s.Program)
	assert.Equal(t, "2", s.Amount.String())
	assert.Equal(t, "USDC", s.DisplayName)
}

func TestToken_DeclinesOtherShapes(t *testing.T) {
	tests := []struct {
		name     string
		accounts []solana.PublicKey
		data     []byte
	}{
		{name: "mint to", accounts: []solana.PublicKey{alice, bob, carol}, data: tagAmountData(7, 10)},
		{name: "short transfer", accounts: []solana.PublicKey{alice, bob, carol}, data: tokenTransferData(10)[:8]},
		{name: "short checked", accounts: []solana.PublicKey{alice, usdc, bob, carol}, data: tokenTransferCheckedData(10, 6)[:9]},
		{name: "transfer missing destination", accounts: []solana.PublicKey{alice}, data: tokenTransferData(10)},
		{name: "empty payload", accounts: []solana.PublicKey{alice}, data: []byte{}},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := decodeSingle(t, d, TokenProgramID, tt.accounts, tt.data, Snapshot{})

			assert.Equal(t, KindUnknownProgram, s.Kind)
			assert.Equal(t, TokenProgramID.String(), s.Program)
			assert.Equal(t, tt.data, s.RawPayload)
		})
	}
}

func TestBatchToken(t *testing.T) {
	d := New()
	snap := Snapshot{
		Tokens:   TokenMetadataMap{usdc: usdcMD},
		Accounts: ParsedAccountMap{alice: {Mint: usdc, Decimals: 6}},
	}

	s := decodeSingle(t, d, DefaultBatchTokenProgramID, []solana.PublicKey{alice, bob, carol}, tagAmountData(1, 25_000_000), snap)

	assert.Equal(t, ProgramBatchToken, s.Program)
	assert.Equal(t, "BatchTokenTransfer", s.Kind)
	assert.Equal(t, "25", s.Amount.String())
	assert.Equal(t, "USDC", s.DisplayName)
	assert.True(t, s.Heuristic)
}

func TestBatchToken_CacheMissDefaultsToZeroDecimals(t *testing.T) {
	d := New()

	s := decodeSingle(t, d, DefaultBatchTokenProgramID, []solana.PublicKey{alice, bob}, tagAmountData(1, 25_000_000), Snapshot{})

	assert.Equal(t, "25000000", s.Amount.String())
}

func TestBatchToken_ConfiguredProgram(t *testing.T) {
	custom := testKey(77)
	d := New(WithPrograms(ProgramIDs{BatchToken: custom}))

	s := decodeSingle(t, d, custom, []solana.PublicKey{alice, bob}, tagAmountData(1, 5), Snapshot{})
	assert.Equal(t, "BatchTokenTransfer", s.Kind)

	s = decodeSingle(t, d, DefaultBatchTokenProgramID, []solana.PublicKey{alice, bob}, tagAmountData(1, 5), Snapshot{})
	assert.Equal(t, KindUnknownProgram, s.Kind)
}

func TestUnknownProgramFallback(t *testing.T) {
	d := New()
	payload := []byte{0x00, 'v', 'o', 't', 'e', 0x01, 0xff}

	s := decodeSingle(t, d, unknown, []solana.PublicKey{alice, bob}, payload, Snapshot{})

	assert.Equal(t, KindUnknownProgram, s.Kind)
	assert.Equal(t, unknown.String(), s.Program)
	assert.Equal(t, payload, s.RawPayload)
	assert.Equal(t, "vote", s.Description)
	assert.Equal(t, []string{alice.String(), bob.String()}, s.Accounts)
}
