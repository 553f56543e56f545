package decoder

import (
	"unicode/utf8"
)

// decodeMemo renders the memo as text, or as hex when it is not valid UTF-8.
func decodeMemo(ix *instruction) *Summary {
	text := string(ix.data)
	if !utf8.Valid(ix.data) {
		text = "hex:" + HexDump(ix.data)
	}

	return &Summary{
		Program:     ProgramMemo,
		Kind:        "Memo",
		Description: text,
		SchemaDecoded: &SchemaInstruction{
			Name: "memo",
			Args: map[string]any{"text": text},
		},
	}
}
