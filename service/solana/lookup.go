package solana

import (
	"context"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Lookup table account layout: a 56-byte header followed by packed addresses.
//
//	u32  type (1 = lookup table)
//	u64  deactivation slot
//	u64  last extended slot
//	u8   last extended slot start index
//	u8   authority option
//	[32] authority
//	[2]  padding
const (
	lookupTableHeaderSize = 56
	lookupTableType       = 1
)

// AddressLookupTableProgramID owns every lookup table account.
var AddressLookupTableProgramID = solana.MustPublicKeyFromBase58("AddressLookupTab1e1111111111111111111111111")

var ErrInvalidLookupTable = errors.New("invalid address lookup table")

// LookupTable is a parsed lookup table account.
type LookupTable struct {
	DeactivationSlot uint64
	LastExtendedSlot uint64
	Authority        *solana.PublicKey
	Addresses        solana.PublicKeySlice
}

// ParseLookupTable parses raw lookup table account data.
func ParseLookupTable(data []byte) (*LookupTable, error) {
	if len(data) < lookupTableHeaderSize || (len(data)-lookupTableHeaderSize)%solana.PublicKeyLength != 0 {
		return nil, fmt.Errorf("%w: length %d", ErrInvalidLookupTable, len(data))
	}

	dec := bin.NewBinDecoder(data)
	typ, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLookupTable, err)
	}
	if typ != lookupTableType {
		return nil, fmt.Errorf("%w: type %d", ErrInvalidLookupTable, typ)
	}

	table := &LookupTable{}
	if table.DeactivationSlot, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLookupTable, err)
	}
	if table.LastExtendedSlot, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLookupTable, err)
	}
	if _, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLookupTable, err)
	}
	hasAuthority, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLookupTable, err)
	}
	if hasAuthority == 1 {
		authority := solana.PublicKeyFromBytes(data[22:54])
		table.Authority = &authority
	}

	n := (len(data) - lookupTableHeaderSize) / solana.PublicKeyLength
	table.Addresses = make(solana.PublicKeySlice, 0, n)
	for off := lookupTableHeaderSize; off < len(data); off += solana.PublicKeyLength {
		table.Addresses = append(table.Addresses, solana.PublicKeyFromBytes(data[off:off+solana.PublicKeyLength]))
	}
	return table, nil
}

// FetchLookupTables loads every table referenced by msg in one getMultipleAccounts call.
func (c *Client) FetchLookupTables(ctx context.Context, msg *solana.Message) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	if len(msg.AddressTableLookups) == 0 {
		return nil, nil
	}

	keys := make([]solana.PublicKey, 0, len(msg.AddressTableLookups))
	for _, lookup := range msg.AddressTableLookups {
		keys = append(keys, lookup.AccountKey)
	}

	accounts, err := c.getMultipleAccounts(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("fetch lookup tables: %w", err)
	}

	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(keys))
	for i, acc := range accounts {
		if acc == nil || acc.Data == nil {
			continue
		}
		if !acc.Owner.Equals(AddressLookupTableProgramID) {
			c.logger.WarnContext(ctx, "lookup table has unexpected owner",
				"table", keys[i].String(),
				"owner", acc.Owner.String(),
			)
			continue
		}
		table, err := ParseLookupTable(acc.Data.GetBinary())
		if err != nil {
			return nil, fmt.Errorf("parse lookup table %s: %w", keys[i], err)
		}
		tables[keys[i]] = table.Addresses
	}
	return tables, nil
}
