package decoder

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

var (
	ErrUnknownInstruction = errors.New("no schema instruction matches payload")
	ErrInvalidSchema      = errors.New("invalid interface schema")
)

// IDL is an Anchor or Shank interface description. Both the legacy
// (isMut/isSigner, "publicKey") and current (writable/signer, "pubkey")
// dialects are accepted.
type IDL struct {
	Version      string           `json:"version"`
	Name         string           `json:"name"`
	Address      string           `json:"address,omitempty"`
	Metadata     IDLMetadata      `json:"metadata"`
	Instructions []IDLInstruction `json:"instructions"`
	Accounts     []IDLTypeDef     `json:"accounts,omitempty"`
	Types        []IDLTypeDef     `json:"types,omitempty"`

	types map[string]*IDLTypeDef
}

type IDLMetadata struct {
	Name    string `json:"name,omitempty"`
	Origin  string `json:"origin,omitempty"`
	Address string `json:"address,omitempty"`
}

type IDLInstruction struct {
	Name          string           `json:"name"`
	Discriminator Discriminator    `json:"discriminator,omitempty"`
	Discriminant  *IDLDiscriminant `json:"discriminant,omitempty"`
	Args          []IDLField       `json:"args"`
	Accounts      []IDLAccountItem `json:"accounts"`
}

// IDLDiscriminant is the Shank form of an instruction tag.
type IDLDiscriminant struct {
	Type  string `json:"type"`
	Value uint64 `json:"value"`
}

// IDLAccountItem is an instruction account or a nested account group.
type IDLAccountItem struct {
	Name     string           `json:"name"`
	IsMut    bool             `json:"isMut,omitempty"`
	IsSigner bool             `json:"isSigner,omitempty"`
	Writable bool             `json:"writable,omitempty"`
	Signer   bool             `json:"signer,omitempty"`
	Accounts []IDLAccountItem `json:"accounts,omitempty"`
}

type IDLField struct {
	Name string  `json:"name"`
	Type IDLType `json:"type"`
}

type IDLTypeDef struct {
	Name string         `json:"name"`
	Type IDLTypeDefBody `json:"type"`
}

type IDLTypeDefBody struct {
	Kind     string       `json:"kind"`
	Fields   []IDLField   `json:"fields,omitempty"`
	Variants []IDLVariant `json:"variants,omitempty"`
	Alias    *IDLType     `json:"alias,omitempty"`
}

// IDLVariant is an enum variant. Fields are either named or a tuple.
type IDLVariant struct {
	Name   string     `json:"name"`
	Fields []IDLField `json:"-"`
	Tuple  []IDLType  `json:"-"`
}

func (v *IDLVariant) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string            `json:"name"`
		Fields []json.RawMessage `json:"fields"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v.Name = raw.Name
	for _, f := range raw.Fields {
		trimmed := bytes.TrimSpace(f)
		if len(trimmed) > 0 && trimmed[0] == '{' && bytes.Contains(trimmed, []byte(`"name"`)) {
			var field IDLField
			if err := json.Unmarshal(f, &field); err == nil && field.Name != "" {
				v.Fields = append(v.Fields, field)
				continue
			}
		}
		var t IDLType
		if err := json.Unmarshal(f, &t); err != nil {
			return fmt.Errorf("variant %s: %w", raw.Name, err)
		}
		v.Tuple = append(v.Tuple, t)
	}
	return nil
}

// IDLType is one node of the schema type grammar.
type IDLType struct {
	Primitive string   `json:"-"`
	Option    *IDLType `json:"-"`
	COption   *IDLType `json:"-"`
	Vec       *IDLType `json:"-"`
	Array     *IDLType `json:"-"`
	ArrayLen  int      `json:"-"`
	Defined   string   `json:"-"`
}

func (t *IDLType) UnmarshalJSON(data []byte) error {
	var prim string
	if err := json.Unmarshal(data, &prim); err == nil {
		t.Primitive = prim
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: type %s", ErrInvalidSchema, string(data))
	}

	if raw, ok := obj["option"]; ok {
		t.Option = new(IDLType)
		return json.Unmarshal(raw, t.Option)
	}
	if raw, ok := obj["coption"]; ok {
		t.COption = new(IDLType)
		return json.Unmarshal(raw, t.COption)
	}
	if raw, ok := obj["vec"]; ok {
		t.Vec = new(IDLType)
		return json.Unmarshal(raw, t.Vec)
	}
	if raw, ok := obj["array"]; ok {
		var parts []json.RawMessage
		if err := json.Unmarshal(raw, &parts); err != nil || len(parts) != 2 {
			return fmt.Errorf("%w: array %s", ErrInvalidSchema, string(raw))
		}
		t.Array = new(IDLType)
		if err := json.Unmarshal(parts[0], t.Array); err != nil {
			return err
		}
		if err := json.Unmarshal(parts[1], &t.ArrayLen); err != nil {
			return fmt.Errorf("%w: array length %s", ErrInvalidSchema, string(parts[1]))
		}
		return nil
	}
	if raw, ok := obj["defined"]; ok {
		if err := json.Unmarshal(raw, &t.Defined); err == nil {
			return nil
		}
		var named struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &named); err != nil {
			return fmt.Errorf("%w: defined %s", ErrInvalidSchema, string(raw))
		}
		t.Defined = named.Name
		return nil
	}
	return fmt.Errorf("%w: unsupported type %s", ErrInvalidSchema, string(data))
}

func (t IDLType) MarshalJSON() ([]byte, error) {
	switch {
	case t.Option != nil:
		return json.Marshal(map[string]any{"option": t.Option})
	case t.COption != nil:
		return json.Marshal(map[string]any{"coption": t.COption})
	case t.Vec != nil:
		return json.Marshal(map[string]any{"vec": t.Vec})
	case t.Array != nil:
		return json.Marshal(map[string]any{"array": []any{t.Array, t.ArrayLen}})
	case t.Defined != "":
		return json.Marshal(map[string]any{"defined": t.Defined})
	}
	return json.Marshal(t.Primitive)
}

func (t IDLType) String() string {
	switch {
	case t.Option != nil:
		return "Option<" + t.Option.String() + ">"
	case t.COption != nil:
		return "COption<" + t.COption.String() + ">"
	case t.Vec != nil:
		return "Vec<" + t.Vec.String() + ">"
	case t.Array != nil:
		return fmt.Sprintf("[%s; %d]", t.Array.String(), t.ArrayLen)
	case t.Defined != "":
		return t.Defined
	}
	return t.Primitive
}

// Discriminator is an instruction prefix, written in JSON as a byte array.
type Discriminator []byte

func (d *Discriminator) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return fmt.Errorf("%w: discriminator %s", ErrInvalidSchema, string(data))
	}
	out := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("%w: discriminator byte %d", ErrInvalidSchema, n)
		}
		out[i] = byte(n)
	}
	*d = out
	return nil
}

func (d Discriminator) MarshalJSON() ([]byte, error) {
	nums := make([]int, len(d))
	for i, b := range d {
		nums[i] = int(b)
	}
	return json.Marshal(nums)
}

// ParseIDL parses a schema and fills in missing discriminators: Shank
// discriminants become a one-byte prefix, Anchor instructions get
// sha256("global:<snake_name>")[:8].
func ParseIDL(data []byte) (*IDL, error) {
	var idl IDL
	if err := json.Unmarshal(data, &idl); err != nil {
		return nil, fmt.Errorf("error unmarshalling IDL JSON: %w", err)
	}
	if len(idl.Instructions) == 0 {
		return nil, fmt.Errorf("%w: no instructions", ErrInvalidSchema)
	}

	shank := idl.Metadata.Origin == "shank"
	for i := range idl.Instructions {
		ix := &idl.Instructions[i]
		if len(ix.Discriminator) > 0 {
			continue
		}
		switch {
		case ix.Discriminant != nil:
			ix.Discriminator = Discriminator{byte(ix.Discriminant.Value)}
		case shank:
			ix.Discriminator = Discriminator{byte(i)}
		default:
			ix.Discriminator = anchorSighash(ix.Name)
		}
	}

	idl.types = make(map[string]*IDLTypeDef, len(idl.Types)+len(idl.Accounts))
	for i := range idl.Accounts {
		idl.types[idl.Accounts[i].Name] = &idl.Accounts[i]
	}
	for i := range idl.Types {
		idl.types[idl.Types[i].Name] = &idl.Types[i]
	}
	return &idl, nil
}

// LoadIDL reads and parses a schema file.
func LoadIDL(path string) (*IDL, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read IDL %s: %w", path, err)
	}
	idl, err := ParseIDL(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse IDL %s: %w", path, err)
	}
	return idl, nil
}

// ProgramName returns the schema's program name.
func (idl *IDL) ProgramName() string {
	if idl.Metadata.Name != "" {
		return idl.Metadata.Name
	}
	return idl.Name
}

// FindInstruction returns the instruction whose discriminator prefixes data.
// The longest matching discriminator wins.
func (idl *IDL) FindInstruction(data []byte) (*IDLInstruction, bool) {
	var best *IDLInstruction
	for i := range idl.Instructions {
		ix := &idl.Instructions[i]
		if len(ix.Discriminator) == 0 || !bytes.HasPrefix(data, ix.Discriminator) {
			continue
		}
		if best == nil || len(ix.Discriminator) > len(best.Discriminator) {
			best = ix
		}
	}
	return best, best != nil
}

func (idl *IDL) typeDef(name string) (*IDLTypeDef, bool) {
	def, ok := idl.types[name]
	return def, ok
}

// AccountNames flattens nested account groups in instruction order.
func (ix *IDLInstruction) AccountNames() []string {
	var names []string
	var walk func(items []IDLAccountItem)
	walk = func(items []IDLAccountItem) {
		for _, item := range items {
			if len(item.Accounts) > 0 {
				walk(item.Accounts)
				continue
			}
			names = append(names, item.Name)
		}
	}
	walk(ix.Accounts)
	return names
}

func anchorSighash(name string) Discriminator {
	sum := sha256.Sum256([]byte("global:" + snakeCase(name)))
	return Discriminator(sum[:8])
}

// snakeCase converts camelCase instruction names the way Anchor does
// when deriving sighashes ("openDcaV2" -> "open_dca_v2").
func snakeCase(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])) {
				sb.WriteByte('_')
			} else if i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1]) {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
