package cmd

import (
	"fmt"

	"github.com/origamihpc/origami/pkg/fasta"
	"github.com/urfave/cli/v2"
)

// RenameFasta rewrites the design headers of a FASTA file under a
// common prefix. With no --output the file is rewritten in place.
func RenameFasta(c *cli.Context) error {
	in := c.String("input")
	out := c.String("output")
	if out == "" {
		out = in
	}

	if err := fasta.RenameDesigns(in, out, c.String("prefix")); err != nil {
		return err
	}
	fmt.Printf("renamed designs written to %s\n", out)
	return nil
}
