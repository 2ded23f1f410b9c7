package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vbonduro/facet/internal/domain"
	"github.com/vbonduro/facet/internal/service"
	"github.com/vbonduro/facet/internal/store"
)

func newLibraryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage saved prompts and gems",
	}
	cmd.AddCommand(newLibraryImportCmd(c), newLibraryListCmd(c))
	return cmd
}

func newLibraryImportCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Add the items of a YAML file to the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()

			entries, err := service.ParseLibraryYAML(f)
			if err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			added, err := a.svc.ImportLibrary(cmd.Context(), entries)
			if errors.Is(err, store.ErrLibraryFull) {
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d items; the library is full (%d items)\n",
					added, len(entries), store.LibraryCapacity)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d items\n", added)
			return nil
		},
	}
}

func newLibraryListCmd(c *cli) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List library items, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t := domain.LibraryItemType(typ)
			if t != "" && !t.Valid() {
				return fmt.Errorf("invalid type %q", typ)
			}
			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.svc.ListLibrary(cmd.Context(), t)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tNAME\tCREATED")
			for _, it := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", it.ID, it.Type, it.Name, it.CreatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "only items of this type: prompt or gem")
	return cmd
}
