package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vbonduro/facet/internal/flatten"
)

func newFlattenCmd(_ *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "flatten [file]",
		Short: "Collapse a JSON image description into one paragraph",
		Long:  "Reads a JSON document from file, or stdin when no file is given, and prints the flattened paragraph.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r io.Reader = cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				r = f
			}
			data, err := io.ReadAll(r)
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), flatten.String(string(data), limit))
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", flatten.DefaultLimit, "maximum paragraph length in characters")
	return cmd
}
