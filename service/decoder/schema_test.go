package decoder

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestIDL(t *testing.T, path string) *IDL {
	t.Helper()
	idl, err := LoadIDL(path)
	require.NoError(t, err)
	return idl
}

func TestParseIDL_AnchorSighash(t *testing.T) {
	idl := loadTestIDL(t, "testdata/dca.json")

	require.Len(t, idl.Instructions, 3)
	assert.Equal(t, Discriminator{142, 119, 43, 109, 162, 52, 11, 177}, idl.Instructions[0].Discriminator)
	assert.Equal(t, Discriminator{22, 7, 33, 98, 168, 183, 34, 243}, idl.Instructions[1].Discriminator)
	assert.Equal(t, "dca", idl.ProgramName())
}

func TestParseIDL_ShankDiscriminant(t *testing.T) {
	idl := loadTestIDL(t, "testdata/governance.json")

	assert.Equal(t, Discriminator{0}, idl.Instructions[0].Discriminator)
	assert.Equal(t, Discriminator{13}, idl.Instructions[2].Discriminator)
}

func TestParseIDL_CurrentDialect(t *testing.T) {
	raw := []byte(`{
		"address": "Prog111111111111111111111111111111111111111",
		"metadata": {"name": "vault", "version": "0.1.0"},
		"instructions": [{
			"name": "deposit",
			"discriminator": [1, 2, 3, 4, 5, 6, 7, 8],
			"accounts": [
				{"name": "owner", "writable": true, "signer": true},
				{"name": "accounts", "accounts": [{"name": "vault"}, {"name": "mint"}]}
			],
			"args": [
				{"name": "recipient", "type": "pubkey"},
				{"name": "config", "type": {"defined": {"name": "Config"}}},
				{"name": "tags", "type": {"vec": "string"}},
				{"name": "seed", "type": {"array": ["u8", 4]}}
			]
		}],
		"types": [{
			"name": "Config",
			"type": {"kind": "struct", "fields": [
				{"name": "limit", "type": "u128"},
				{"name": "delta", "type": "i64"}
			]}
		}]
	}`)

	idl, err := ParseIDL(raw)
	require.NoError(t, err)
	assert.Equal(t, "vault", idl.ProgramName())

	ix := &idl.Instructions[0]
	assert.Equal(t, []string{"owner", "vault", "mint"}, ix.AccountNames())
	assert.Equal(t, "[u8; 4]", ix.Args[3].Type.String())

	recipient := testKey(9)
	data := borshBuf{}.raw(1, 2, 3, 4, 5, 6, 7, 8).
		pubkey(recipient).
		u64(5).u64(1).
		i64(-3).
		u32(2).str("a").str("bc").
		raw(9, 8, 7, 6)

	decoded, err := idl.DecodeInstruction(data, []solana.PublicKey{alice, bob, carol})
	require.NoError(t, err)

	assert.Equal(t, "deposit", decoded.Name)
	assert.Equal(t, recipient.String(), decoded.Args["recipient"])
	assert.Equal(t, map[string]any{"limit": "18446744073709551621", "delta": int64(-3)}, decoded.Args["config"])
	assert.Equal(t, []any{"a", "bc"}, decoded.Args["tags"])
	assert.Equal(t, []byte{9, 8, 7, 6}, decoded.Args["seed"])
	assert.Equal(t, map[string]string{"owner": alice.String(), "vault": bob.String(), "mint": carol.String()}, decoded.Accounts)
}

func TestParseIDL_Invalid(t *testing.T) {
	_, err := ParseIDL([]byte(`{"instructions": []}`))
	assert.True(t, errors.Is(err, ErrInvalidSchema))

	_, err = ParseIDL([]byte(`{"instructions": [{"name": "x", "discriminator": [300], "args": []}]}`))
	assert.Error(t, err)

	_, err = ParseIDL([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeInstruction_Errors(t *testing.T) {
	idl := loadTestIDL(t, "testdata/governance.json")

	_, err := idl.DecodeInstruction([]byte{42}, nil)
	assert.True(t, errors.Is(err, ErrUnknownInstruction))

	// CreateRealm with a name length far past the payload
	_, err = idl.DecodeInstruction(borshBuf{}.u8(0).u32(1_000_000).raw('x'), nil)
	assert.True(t, errors.Is(err, ErrInvalidEncoding))

	// DepositGoverningTokens with a truncated amount
	_, err = idl.DecodeInstruction([]byte{1, 0, 0}, nil)
	assert.Error(t, err)
}

func TestDecodeInstruction_Enums(t *testing.T) {
	idl := loadTestIDL(t, "testdata/governance.json")

	data := borshBuf{}.u8(0).str("Grape DAO").
		u8(1).u64(1_000).
		u8(1).u64(10_000_000_000)

	decoded, err := idl.DecodeInstruction(data, nil)
	require.NoError(t, err)

	assert.Equal(t, "CreateRealm", decoded.Name)
	assert.Equal(t, "Grape DAO", decoded.Args["name"])
	assert.Equal(t, map[string]any{
		"useCouncilMint":                       true,
		"minCommunityWeightToCreateGovernance": uint64(1_000),
		"communityMintMaxVoterWeightSource":    map[string]any{"Absolute": []any{uint64(10_000_000_000)}},
	}, decoded.Args["configArgs"])
	assert.Nil(t, decoded.Accounts)
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"openDcaV2":      "open_dca_v2",
		"closeDca":       "close_dca",
		"withdraw":       "withdraw",
		"already_snake":  "already_snake",
		"initializeHTTP": "initialize_http",
		"parseHTTPBody":  "parse_http_body",
	}
	for in, want := range tests {
		assert.Equal(t, want, snakeCase(in), in)
	}
}

func dcaOpenPayload() []byte {
	return borshBuf{}.raw(142, 119, 43, 109, 162, 52, 11, 177).
		u64(0).                        // applicationIdx
		u64(100_000_000).              // inAmount
		u64(10_000_000).               // inAmountPerCycle
		i64(3600).                     // cycleFrequency
		u8(0).                         // minOutAmount: None
		u8(1).u64(5_000_000_000).      // maxOutAmount
		u8(1).i64(1_700_000_000)       // startAt
}

func TestDCA_SchemaDecode(t *testing.T) {
	// Setup
	idl := loadTestIDL(t, "testdata/dca.json")
	d := New(WithSchema(DefaultDCAProgramID, idl))
	dcaAccount := testKey(40)
	snap := Snapshot{
		Tokens: TokenMetadataMap{
			usdc:    usdcMD,
			SOLMint: {Name: "Wrapped SOL", Symbol: "SOL"},
		},
		Accounts: ParsedAccountMap{
			usdc:    {Mint: usdc, Decimals: 6},
			SOLMint: {Mint: SOLMint, Decimals: 9},
		},
	}

	// Act
	s := decodeSingle(t, d, DefaultDCAProgramID, []solana.PublicKey{dcaAccount, alice, alice, usdc, SOLMint}, dcaOpenPayload(), snap)

	// Assert
	assert.Equal(t, ProgramDCA, s.Program)
	assert.Equal(t, "dca.openDcaV2", s.Kind)
	require.NotNil(t, s.SchemaDecoded)
	assert.Equal(t, uint64(100_000_000), s.SchemaDecoded.Args["inAmount"])
	assert.Nil(t, s.SchemaDecoded.Args["minOutAmount"])
	assert.Equal(t, alice.String(), s.Source)
	assert.Equal(t, "100", s.Amount.String())
	assert.Equal(t, "USDC", s.DisplayName)

	assert.Contains(t, s.Description, "deposit 100 USDC")
	assert.Contains(t, s.Description, "10 USDC per cycle")
	assert.Contains(t, s.Description, "every 1h0m0s")
	assert.Contains(t, s.Description, "max out 5 SOL")
	assert.NotContains(t, s.Description, "min out")
	assert.Contains(t, s.Description, "starting 2023-11-14T22:13:20Z")
}

func TestDCA_WithoutSchema(t *testing.T) {
	d := New()

	s := decodeSingle(t, d, DefaultDCAProgramID, []solana.PublicKey{alice}, dcaOpenPayload(), Snapshot{})

	assert.Equal(t, ProgramDCA, s.Program)
	assert.Equal(t, "DCA", s.Kind)
	assert.Nil(t, s.SchemaDecoded)
	assert.Empty(t, s.Description)
}

func TestDCA_UndecodablePayload(t *testing.T) {
	d := New(WithSchema(DefaultDCAProgramID, loadTestIDL(t, "testdata/dca.json")))

	s := decodeSingle(t, d, DefaultDCAProgramID, []solana.PublicKey{alice}, []byte{1, 2, 3}, Snapshot{})

	assert.Equal(t, "DCA", s.Kind)
	assert.Nil(t, s.SchemaDecoded)
	assert.Empty(t, s.Description)
	assert.Equal(t, []byte{1, 2, 3}, s.RawPayload)
}

func TestDCA_EnumArgument(t *testing.T) {
	d := New(WithSchema(DefaultDCAProgramID, loadTestIDL(t, "testdata/dca.json")))
	data := borshBuf{}.raw(183, 18, 70, 156, 148, 109, 161, 34).u64(42).u8(1)

	s := decodeSingle(t, d, DefaultDCAProgramID, []solana.PublicKey{alice, testKey(40)}, data, Snapshot{})

	assert.Equal(t, "dca.withdraw", s.Kind)
	assert.Equal(t, map[string]any{"withdrawAmount": uint64(42), "withdrawal": "Out"}, s.SchemaDecoded.Args["withdrawParams"])
}

func TestDCA_OutOfRangeSchedule(t *testing.T) {
	// Setup
	d := New(WithSchema(DefaultDCAProgramID, loadTestIDL(t, "testdata/dca.json")))
	data := borshBuf{}.raw(142, 119, 43, 109, 162, 52, 11, 177).
		u64(0).u64(1).u64(1).
		i64(math.MaxInt64). // cycleFrequency
		u8(0).u8(0).
		u8(1).i64(math.MaxInt64) // startAt

	// Act
	s := decodeSingle(t, d, DefaultDCAProgramID, []solana.PublicKey{testKey(40), alice, alice, usdc, SOLMint}, data, Snapshot{})

	// Assert
	assert.Equal(t, "dca.openDcaV2", s.Kind)
	assert.Contains(t, s.Description, "every 9223372036854775807 seconds")
	assert.Contains(t, s.Description, "starting 9223372036854775807")
}

func TestFormatUnix(t *testing.T) {
	assert.Equal(t, "2023-11-14T22:13:20Z", formatUnix(1_700_000_000))
	assert.Equal(t, "9999-12-31T23:59:59Z", formatUnix(maxRFC3339Unix))
	assert.Equal(t, "253402300800", formatUnix(maxRFC3339Unix+1))
	assert.Equal(t, "18446744073709551615", formatUnix(math.MaxUint64))
}

func TestSchemaInstruction_JSONKeepsU64(t *testing.T) {
	// Setup
	in := SchemaInstruction{
		Name: "openDcaV2",
		Args: map[string]any{
			"inAmount":       uint64(math.MaxUint64),
			"withdrawParams": map[string]any{"withdrawAmount": uint64(1<<53 + 1)},
		},
		Accounts: map[string]string{"user": alice.String()},
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	// Act
	var out SchemaInstruction
	err = json.Unmarshal(data, &out)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "openDcaV2", out.Name)
	assert.Equal(t, alice.String(), out.Accounts["user"])

	v, ok := argUint(out.Args, "inAmount")
	require.True(t, ok)
	assert.Equal(t, uint64(math.MaxUint64), v)

	nested, ok := out.Args["withdrawParams"].(map[string]any)
	require.True(t, ok)
	v, ok = argUint(nested, "withdrawAmount")
	require.True(t, ok)
	assert.Equal(t, uint64(1<<53+1), v)
}

func TestSummary_JSONKeepsSchemaArgs(t *testing.T) {
	// Setup
	d := New(WithSchema(DefaultDCAProgramID, loadTestIDL(t, "testdata/dca.json")))
	s := decodeSingle(t, d, DefaultDCAProgramID, []solana.PublicKey{testKey(40), alice, alice, usdc, SOLMint}, dcaOpenPayload(), Snapshot{})
	data, err := json.Marshal(s)
	require.NoError(t, err)

	// Act
	var out Summary
	err = json.Unmarshal(data, &out)

	// Assert
	require.NoError(t, err)
	require.NotNil(t, out.SchemaDecoded)
	v, ok := argUint(out.SchemaDecoded.Args, "inAmount")
	require.True(t, ok)
	assert.Equal(t, uint64(100_000_000), v)
	assert.Equal(t, json.Number("3600"), out.SchemaDecoded.Args["cycleFrequency"])
}

func TestArgUint(t *testing.T) {
	args := map[string]any{
		"u64":      uint64(7),
		"neg":      int64(-1),
		"number":   json.Number("18446744073709551615"),
		"negative": json.Number("-3"),
		"fraction": json.Number("1.5"),
		"text":     "12",
	}

	tests := []struct {
		name   string
		want   uint64
		wantOK bool
	}{
		{name: "u64", want: 7, wantOK: true},
		{name: "neg"},
		{name: "number", want: math.MaxUint64, wantOK: true},
		{name: "negative"},
		{name: "fraction"},
		{name: "text"},
		{name: "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := argUint(args, tt.name)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGovernance_Heuristic(t *testing.T) {
	// Setup
	d := New()
	mint := testKey(60)
	snap := Snapshot{Accounts: ParsedAccountMap{alice: {Mint: mint, Decimals: 6}}}

	// Act
	s := decodeSingle(t, d, DefaultGovernanceProgramID, []solana.PublicKey{alice, testKey(61), mint, bob}, tagAmountData(9, 2_000_000), snap)

	// Assert
	assert.Equal(t, ProgramGovernance, s.Program)
	assert.Equal(t, "Governance", s.Kind)
	assert.True(t, s.Heuristic)
	assert.Equal(t, "2", s.Amount.String())
	assert.Equal(t, mint.String(), s.Mint)
	assert.Equal(t, bob.String(), s.Destination)
	assert.Equal(t, "grant 2 "+ShortenAddress(mint.String(), 4, 4)+" to "+ShortenAddress(bob.String(), 4, 4), s.Description)
}

func TestGovernance_HeuristicDecimalsFromMint(t *testing.T) {
	d := New()
	snap := Snapshot{
		Tokens:   TokenMetadataMap{usdc: usdcMD},
		Accounts: ParsedAccountMap{usdc: {Mint: usdc, Decimals: 6}},
	}

	s := decodeSingle(t, d, DefaultGovernanceProgramID, []solana.PublicKey{alice, testKey(61), usdc, bob}, tagAmountData(9, 1_500_000), snap)

	assert.Equal(t, "1.5", s.Amount.String())
	assert.Contains(t, s.Description, "grant 1.5 USDC")
}

func TestGovernance_NoHeuristicOnZeroAmount(t *testing.T) {
	d := New()

	s := decodeSingle(t, d, DefaultGovernanceProgramID, []solana.PublicKey{alice, bob, carol, testKey(4)}, tagAmountData(9, 0), Snapshot{})

	assert.Equal(t, "Governance", s.Kind)
	assert.False(t, s.Heuristic)
	assert.Empty(t, s.Description)
	assert.Nil(t, s.Amount)
}

func TestGovernance_SchemaDecode(t *testing.T) {
	d := New(WithSchema(DefaultGovernanceProgramID, loadTestIDL(t, "testdata/governance.json")))
	data := borshBuf{}.u8(13).u8(0).u32(1).u8(0).u8(100)

	s := decodeSingle(t, d, DefaultGovernanceProgramID, []solana.PublicKey{alice, bob, carol, testKey(4)}, data, Snapshot{})

	assert.Equal(t, "governance.CastVote", s.Kind)
	assert.Equal(t, "CastVote", s.Description)
	assert.False(t, s.Heuristic, "payload too short for the grant shape")
	assert.Equal(t, map[string]any{
		"Approve": []any{[]any{map[string]any{"rank": uint8(0), "weightPercentage": uint8(100)}}},
	}, s.SchemaDecoded.Args["vote"])
	assert.Equal(t, carol.String(), s.SchemaDecoded.Accounts["proposalAccount"])
}

func TestGovernance_SchemaAndHeuristicBothApply(t *testing.T) {
	// A deposit has the [tag, u64] shape, so the heuristic also fires and
	// the summary stays flagged.
	d := New(WithSchema(DefaultGovernanceProgramID, loadTestIDL(t, "testdata/governance.json")))
	mint := testKey(60)

	s := decodeSingle(t, d, DefaultGovernanceProgramID, []solana.PublicKey{alice, bob, mint, carol}, tagAmountData(1, 7), Snapshot{})

	assert.Equal(t, "governance.DepositGoverningTokens", s.Kind)
	assert.Equal(t, uint64(7), s.SchemaDecoded.Args["amount"])
	assert.True(t, s.Heuristic)
	assert.Contains(t, s.Description, "grant 7")
}
