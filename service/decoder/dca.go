package decoder

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// decodeDCA always returns a summary for the DCA program. Without a schema,
// or when the schema cannot decode the payload, the summary only records
// the program identity.
func decodeDCA(ix *instruction, schema *IDL) *Summary {
	s := &Summary{Program: ProgramDCA, Kind: "DCA"}
	if schema == nil {
		return s
	}

	decoded, err := schema.DecodeInstruction(ix.data, ix.accounts)
	if err != nil {
		return s
	}
	s.Kind = "dca." + decoded.Name
	s.SchemaDecoded = decoded

	if user, ok := decoded.Accounts["user"]; ok {
		s.Source = user
	}

	inDecimals, inLabel := schemaMint(s, decoded, "inputMint", ix.snap)
	outDecimals, outLabel := schemaMint(nil, decoded, "outputMint", ix.snap)

	var parts []string
	if v, ok := argUint(decoded.Args, "inAmount"); ok {
		s.setAmount(v, inDecimals)
		parts = append(parts, fmt.Sprintf("deposit %s %s", s.amountString(), inLabel))
	}
	if v, ok := argUint(decoded.Args, "inAmountPerCycle"); ok {
		parts = append(parts, fmt.Sprintf("%s %s per cycle", FormatAmount(v, inDecimals), inLabel))
	}
	if v, ok := argUint(decoded.Args, "cycleFrequency"); ok {
		parts = append(parts, "every "+formatInterval(v))
	}
	if v, ok := argUint(decoded.Args, "minOutAmount"); ok {
		parts = append(parts, fmt.Sprintf("min out %s %s", FormatAmount(v, outDecimals), outLabel))
	}
	if v, ok := argUint(decoded.Args, "maxOutAmount"); ok {
		parts = append(parts, fmt.Sprintf("max out %s %s", FormatAmount(v, outDecimals), outLabel))
	}
	if v, ok := argUint(decoded.Args, "minPrice"); ok {
		parts = append(parts, fmt.Sprintf("min price %d", v))
	}
	if v, ok := argUint(decoded.Args, "maxPrice"); ok {
		parts = append(parts, fmt.Sprintf("max price %d", v))
	}
	if v, ok := argUint(decoded.Args, "startAt"); ok && v > 0 {
		parts = append(parts, "starting "+formatUnix(v))
	}
	s.Description = strings.Join(parts, ", ")
	return s
}

// maxRFC3339Unix is 9999-12-31T23:59:59Z, the last instant RFC 3339 can render.
const maxRFC3339Unix = 253402300799

// formatInterval renders a duration in seconds, falling back to the raw
// count when it does not fit a time.Duration.
func formatInterval(secs uint64) string {
	if secs > uint64(math.MaxInt64/int64(time.Second)) {
		return fmt.Sprintf("%d seconds", secs)
	}
	return (time.Duration(secs) * time.Second).String()
}

// formatUnix renders a unix timestamp, falling back to the raw number
// outside the range RFC 3339 can express.
func formatUnix(secs uint64) string {
	if secs > maxRFC3339Unix {
		return strconv.FormatUint(secs, 10)
	}
	return time.Unix(int64(secs), 0).UTC().Format(time.RFC3339)
}

// schemaMint resolves the decimals and display label of a named mint
// account. When s is non-nil its token identity is filled as well.
func schemaMint(s *Summary, decoded *SchemaInstruction, account string, snap Snapshot) (uint8, string) {
	addr, ok := decoded.Accounts[account]
	if !ok {
		return 0, "tokens"
	}
	mint, err := solana.PublicKeyFromBase58(addr)
	if err != nil {
		return 0, "tokens"
	}

	var decimals uint8
	if info, ok := snap.account(mint); ok {
		decimals = info.Decimals
	}

	label := shortKey(mint)
	if md, ok := snap.token(mint); ok && md.Symbol != "" {
		label = md.Symbol
	}
	if s != nil {
		s.setToken(mint, snap)
		label = s.DisplayName
	}
	return decimals, label
}

// argUint returns a non-negative integer argument. Absent and None
// options report false.
func argUint(args map[string]any, name string) (uint64, bool) {
	switch v := args[name].(type) {
	case uint64:
		return v, true
	case int64:
		if v >= 0 {
			return uint64(v), true
		}
	case uint32:
		return uint64(v), true
	case int32:
		if v >= 0 {
			return uint64(v), true
		}
	case uint16:
		return uint64(v), true
	case uint8:
		return uint64(v), true
	case json.Number:
		n, err := strconv.ParseUint(v.String(), 10, 64)
		if err == nil {
			return n, true
		}
	}
	return 0, false
}
