package decoder

import (
	"errors"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const maxSchemaDepth = 32

var (
	ErrSchemaTooDeep   = errors.New("schema nesting too deep")
	ErrUnknownType     = errors.New("unknown schema type")
	ErrInvalidEncoding = errors.New("invalid borsh encoding")
)

// DecodeInstruction decodes a payload through the schema. Args are decoded
// Borsh values keyed by field name; accounts are matched to the schema's
// account names by position.
func (idl *IDL) DecodeInstruction(data []byte, accounts []solana.PublicKey) (*SchemaInstruction, error) {
	ix, ok := idl.FindInstruction(data)
	if !ok {
		return nil, ErrUnknownInstruction
	}

	r := &borshReader{idl: idl, dec: bin.NewBorshDecoder(data[len(ix.Discriminator):])}
	args := make(map[string]any, len(ix.Args))
	for _, field := range ix.Args {
		v, err := r.read(field.Type, 0)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", ix.Name, field.Name, err)
		}
		args[field.Name] = v
	}

	names := ix.AccountNames()
	var named map[string]string
	if len(names) > 0 && len(accounts) > 0 {
		named = make(map[string]string, len(names))
		for i, name := range names {
			if i >= len(accounts) {
				break
			}
			named[name] = accounts[i].String()
		}
	}

	return &SchemaInstruction{Name: ix.Name, Args: args, Accounts: named}, nil
}

type borshReader struct {
	idl *IDL
	dec *bin.Decoder
}

func (r *borshReader) read(t IDLType, depth int) (any, error) {
	if depth > maxSchemaDepth {
		return nil, ErrSchemaTooDeep
	}

	switch {
	case t.Option != nil:
		tag, err := r.dec.ReadUint8()
		if err != nil {
			return nil, err
		}
		return r.optional(uint32(tag), *t.Option, depth)
	case t.COption != nil:
		tag, err := r.dec.ReadUint32(bin.LE)
		if err != nil {
			return nil, err
		}
		return r.optional(tag, *t.COption, depth)
	case t.Vec != nil:
		n, err := r.length()
		if err != nil {
			return nil, err
		}
		return r.sequence(*t.Vec, n, depth)
	case t.Array != nil:
		return r.sequence(*t.Array, t.ArrayLen, depth)
	case t.Defined != "":
		return r.defined(t.Defined, depth)
	}
	return r.primitive(t.Primitive)
}

func (r *borshReader) optional(tag uint32, inner IDLType, depth int) (any, error) {
	switch tag {
	case 0:
		return nil, nil
	case 1:
		return r.read(inner, depth+1)
	}
	return nil, fmt.Errorf("%w: option tag %d", ErrInvalidEncoding, tag)
}

func (r *borshReader) sequence(elem IDLType, n int, depth int) (any, error) {
	if elem.Primitive == "u8" {
		return r.dec.ReadNBytes(n)
	}
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		v, err := r.read(elem, depth+1)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// length reads a u32 length prefix and rejects lengths the remaining
// payload cannot hold.
func (r *borshReader) length() (int, error) {
	n, err := r.dec.ReadUint32(bin.LE)
	if err != nil {
		return 0, err
	}
	if int64(n) > int64(r.dec.Remaining()) {
		return 0, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrInvalidEncoding, n, r.dec.Remaining())
	}
	return int(n), nil
}

func (r *borshReader) defined(name string, depth int) (any, error) {
	def, ok := r.idl.typeDef(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, name)
	}

	switch def.Type.Kind {
	case "struct":
		return r.fields(def.Type.Fields, depth)
	case "enum":
		idx, err := r.dec.ReadUint8()
		if err != nil {
			return nil, err
		}
		if int(idx) >= len(def.Type.Variants) {
			return nil, fmt.Errorf("%w: %s variant %d", ErrInvalidEncoding, name, idx)
		}
		variant := def.Type.Variants[idx]
		switch {
		case len(variant.Fields) > 0:
			fields, err := r.fields(variant.Fields, depth)
			if err != nil {
				return nil, err
			}
			return map[string]any{variant.Name: fields}, nil
		case len(variant.Tuple) > 0:
			values := make([]any, 0, len(variant.Tuple))
			for _, t := range variant.Tuple {
				v, err := r.read(t, depth+1)
				if err != nil {
					return nil, fmt.Errorf("%s.%s: %w", name, variant.Name, err)
				}
				values = append(values, v)
			}
			return map[string]any{variant.Name: values}, nil
		}
		return variant.Name, nil
	case "alias", "type":
		if def.Type.Alias == nil {
			return nil, fmt.Errorf("%w: alias %s has no target", ErrInvalidSchema, name)
		}
		return r.read(*def.Type.Alias, depth+1)
	}
	return nil, fmt.Errorf("%w: %s kind %q", ErrUnknownType, name, def.Type.Kind)
}

func (r *borshReader) fields(fields []IDLField, depth int) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, err := r.read(f.Type, depth+1)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		out[f.Name] = v
	}
	return out, nil
}

func (r *borshReader) primitive(name string) (any, error) {
	switch name {
	case "bool":
		return r.dec.ReadBool()
	case "u8":
		return r.dec.ReadUint8()
	case "i8":
		return r.dec.ReadInt8()
	case "u16":
		return r.dec.ReadUint16(bin.LE)
	case "i16":
		return r.dec.ReadInt16(bin.LE)
	case "u32":
		return r.dec.ReadUint32(bin.LE)
	case "i32":
		return r.dec.ReadInt32(bin.LE)
	case "u64":
		return r.dec.ReadUint64(bin.LE)
	case "i64":
		return r.dec.ReadInt64(bin.LE)
	case "f32":
		return r.dec.ReadFloat32(bin.LE)
	case "f64":
		return r.dec.ReadFloat64(bin.LE)
	case "u128", "i128":
		b, err := r.dec.ReadNBytes(16)
		if err != nil {
			return nil, err
		}
		return int128String(b, name == "i128"), nil
	case "string":
		n, err := r.length()
		if err != nil {
			return nil, err
		}
		b, err := r.dec.ReadNBytes(n)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case "bytes":
		n, err := r.length()
		if err != nil {
			return nil, err
		}
		return r.dec.ReadNBytes(n)
	case "publicKey", "pubkey":
		pk, err := readPubkey(r.dec)
		if err != nil {
			return nil, err
		}
		return pk.String(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// int128String renders a little-endian 128-bit integer in base 10.
func int128String(le []byte, signed bool) string {
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	n := new(big.Int).SetBytes(be)
	if signed && le[len(le)-1]&0x80 != 0 {
		n.Sub(n, new(big.Int).Lsh(big.NewInt(1), 128))
	}
	return n.String()
}
