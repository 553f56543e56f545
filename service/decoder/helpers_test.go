package decoder

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

// testKey returns a deterministic address filled with n.
func testKey(n byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = n
	}
	return pk
}

// txBuilder assembles compiled instructions against a growing key array.
type txBuilder struct {
	keys  AccountKeys
	index map[solana.PublicKey]uint16
	ixs   []solana.CompiledInstruction
}

func newTxBuilder() *txBuilder {
	return &txBuilder{index: make(map[solana.PublicKey]uint16)}
}

func (b *txBuilder) key(pk solana.PublicKey) uint16 {
	if idx, ok := b.index[pk]; ok {
		return idx
	}
	idx := uint16(len(b.keys))
	b.keys = append(b.keys, pk)
	b.index[pk] = idx
	return idx
}

func (b *txBuilder) add(program solana.PublicKey, accounts []solana.PublicKey, data []byte) *txBuilder {
	ci := solana.CompiledInstruction{Data: data}
	for _, a := range accounts {
		ci.Accounts = append(ci.Accounts, b.key(a))
	}
	ci.ProgramIDIndex = b.key(program)
	b.ixs = append(b.ixs, ci)
	return b
}

// decodeSingle runs one instruction through a default decoder.
func decodeSingle(t *testing.T, d *Decoder, program solana.PublicKey, accounts []solana.PublicKey, data []byte, snap Snapshot) *Summary {
	t.Helper()
	b := newTxBuilder().add(program, accounts, data)
	res, err := d.DecodeAll(b.ixs, b.keys, snap)
	require.NoError(t, err)
	require.Len(t, res.Summaries, 1)
	return res.Summaries[0]
}

func systemTransferData(lamports uint64) []byte {
	data := make([]byte, 12)
	binary.LittleEndian.PutUint32(data[0:4], 2)
	binary.LittleEndian.PutUint64(data[4:12], lamports)
	return data
}

func tokenTransferData(amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = 3
	binary.LittleEndian.PutUint64(data[1:9], amount)
	return data
}

func tokenTransferCheckedData(amount uint64, decimals uint8) []byte {
	data := make([]byte, 10)
	data[0] = 12
	binary.LittleEndian.PutUint64(data[1:9], amount)
	data[9] = decimals
	return data
}

func tagAmountData(tag uint8, amount uint64) []byte {
	data := make([]byte, 9)
	data[0] = tag
	binary.LittleEndian.PutUint64(data[1:9], amount)
	return data
}

// borshBuf builds Borsh payloads for schema tests.
type borshBuf []byte

func (b borshBuf) raw(p ...byte) borshBuf { return append(b, p...) }
func (b borshBuf) u8(v uint8) borshBuf { return append(b, v) }

func (b borshBuf) u32(v uint32) borshBuf {
	return binary.LittleEndian.AppendUint32(b, v)
}

func (b borshBuf) u64(v uint64) borshBuf {
	return binary.LittleEndian.AppendUint64(b, v)
}

func (b borshBuf) i64(v int64) borshBuf {
	return binary.LittleEndian.AppendUint64(b, uint64(v))
}

func (b borshBuf) str(s string) borshBuf {
	return append(b.u32(uint32(len(s))), s...)
}

func (b borshBuf) pubkey(pk solana.PublicKey) borshBuf {
	return append(b, pk[:]...)
}
