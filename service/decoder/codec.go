package decoder

import (
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
)

// MaxFractionDigits caps the fractional digits of a formatted amount.
const MaxFractionDigits = 6

// ReadU64LE reads the first 8 bytes of b as a little-endian u64.
// It reports false when fewer than 8 bytes are available.
func ReadU64LE(b []byte) (uint64, bool) {
	if len(b) < 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b[:8]), true
}

// FormatAmount scales raw by 10^-decimals for display. Zero decimals
// returns raw unchanged; otherwise digits past MaxFractionDigits are
// truncated.
func FormatAmount(raw uint64, decimals uint8) decimal.Decimal {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(raw), 0)
	if decimals == 0 {
		return d
	}
	return d.Shift(-int32(decimals)).Truncate(MaxFractionDigits)
}

// ShortenAddress renders addr as head...tail. Strings that would not get
// shorter are returned as is.
func ShortenAddress(addr string, head, tail int) string {
	if head < 0 || tail < 0 || len(addr) <= head+tail+3 {
		return addr
	}
	return addr[:head] + "..." + addr[len(addr)-tail:]
}

func shortKey(pk solana.PublicKey) string {
	return ShortenAddress(pk.String(), 4, 4)
}

// HexDump returns b as lowercase hex.
func HexDump(b []byte) string {
	return hex.EncodeToString(b)
}

// PrintableText decodes b as UTF-8, dropping invalid sequences and
// non-printable runes.
func PrintableText(b []byte) string {
	var sb strings.Builder
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r == utf8.RuneError && size <= 1 {
			continue
		}
		if unicode.IsPrint(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(strings.TrimSpace(s))
}

// EncodeBase58 renders instruction data the way block explorers show it.
func EncodeBase58(b []byte) string {
	return base58.Encode(b)
}

func DecodeBase58(s string) ([]byte, error) {
	return base58.Decode(s)
}
