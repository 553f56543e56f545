package decoder

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// ErrAccountIndexOutOfRange means an instruction referenced an index past
	// the resolved key array, usually because lookup-table keys are missing.
	ErrAccountIndexOutOfRange = errors.New("account index out of range")

	ErrLookupTableNotFound = errors.New("address lookup table not found")
)

// LoadedKeys are the keys a versioned message pulls in through lookup tables.
type LoadedKeys struct {
	Writable solana.PublicKeySlice `json:"writable"`
	ReadOnly solana.PublicKeySlice `json:"readonly"`
}

// AccountKeys is the flat key array compiled instructions index into:
// static keys, then lookup-table writable keys, then lookup-table readonly keys.
type AccountKeys solana.PublicKeySlice

// ResolveAccountKeys concatenates static and loaded keys in message order.
// loaded is nil for legacy transactions.
func ResolveAccountKeys(static solana.PublicKeySlice, loaded *LoadedKeys) AccountKeys {
	size := len(static)
	if loaded != nil {
		size += len(loaded.Writable) + len(loaded.ReadOnly)
	}

	keys := make(AccountKeys, 0, size)
	keys = append(keys, static...)
	if loaded != nil {
		keys = append(keys, loaded.Writable...)
		keys = append(keys, loaded.ReadOnly...)
	}
	return keys
}

// ResolveMessageKeys resolves keys using the loadedAddresses reported in the
// transaction meta. A nil meta resolves static keys only.
func ResolveMessageKeys(msg *solana.Message, meta *rpc.TransactionMeta) AccountKeys {
	if meta == nil {
		return ResolveAccountKeys(msg.AccountKeys, nil)
	}
	return ResolveAccountKeys(msg.AccountKeys, &LoadedKeys{
		Writable: meta.LoadedAddresses.Writable,
		ReadOnly: meta.LoadedAddresses.ReadOnly,
	})
}

// LookupTableKeys rebuilds the loaded key lists from the message's table
// lookups and the fetched table contents. Writable keys of every lookup come
// before readonly keys of every lookup.
func LookupTableKeys(msg *solana.Message, tables map[solana.PublicKey]solana.PublicKeySlice) (*LoadedKeys, error) {
	loaded := &LoadedKeys{}
	if len(msg.AddressTableLookups) == 0 {
		return loaded, nil
	}

	for _, lookup := range msg.AddressTableLookups {
		table, ok := tables[lookup.AccountKey]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrLookupTableNotFound, lookup.AccountKey)
		}
		for _, idx := range lookup.WritableIndexes {
			if int(idx) >= len(table) {
				return nil, fmt.Errorf("lookup table %s writable index %d (len %d): %w", lookup.AccountKey, idx, len(table), ErrAccountIndexOutOfRange)
			}
			loaded.Writable = append(loaded.Writable, table[idx])
		}
	}
	for _, lookup := range msg.AddressTableLookups {
		table := tables[lookup.AccountKey]
		for _, idx := range lookup.ReadonlyIndexes {
			if int(idx) >= len(table) {
				return nil, fmt.Errorf("lookup table %s readonly index %d (len %d): %w", lookup.AccountKey, idx, len(table), ErrAccountIndexOutOfRange)
			}
			loaded.ReadOnly = append(loaded.ReadOnly, table[idx])
		}
	}
	return loaded, nil
}

// At returns the key at index i.
func (k AccountKeys) At(i uint16) (solana.PublicKey, error) {
	if int(i) >= len(k) {
		return solana.PublicKey{}, fmt.Errorf("index %d with %d keys: %w", i, len(k), ErrAccountIndexOutOfRange)
	}
	return k[i], nil
}
