package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
)

func inspectIDLCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the instructions an interface schema can decode",
		ArgsUsage: "<idl-file>",
		Description: `Load an Anchor or Shank interface schema the same way the decoder does and
list its instructions with their discriminators, arguments and accounts.

Example:
  govdecode idl inspect governance.json`,
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("IDL file is required")
			}

			idl, err := decoder.LoadIDL(c.Args().Get(0))
			if err != nil {
				return err
			}

			if wantJSON(c) {
				return writeOutput(c, idl)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Program: %s\n", idl.ProgramName())
			if idl.Version != "" {
				fmt.Fprintf(w, "Version: %s\n", idl.Version)
			}
			fmt.Fprintf(w, "Instructions (%d):\n", len(idl.Instructions))
			for _, ix := range idl.Instructions {
				fmt.Fprintf(w, "\n  %s  [%s]\n", ix.Name, discriminatorString(ix))
				for _, arg := range ix.Args {
					fmt.Fprintf(w, "    arg     %-24s %s\n", arg.Name, arg.Type.String())
				}
				if names := ix.AccountNames(); len(names) > 0 {
					fmt.Fprintf(w, "    accounts %s\n", strings.Join(names, ", "))
				}
			}
			return nil
		},
	}
}

// discriminatorString shows the resolved discriminator bytes. ParseIDL fills
// them in for Shank discriminants and Anchor sighashes.
func discriminatorString(ix decoder.IDLInstruction) string {
	if ix.Discriminant != nil {
		return fmt.Sprintf("%s, %s %d", hex.EncodeToString(ix.Discriminator), ix.Discriminant.Type, ix.Discriminant.Value)
	}
	return hex.EncodeToString(ix.Discriminator)
}
