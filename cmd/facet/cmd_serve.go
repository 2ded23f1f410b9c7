package main

import (
	"github.com/spf13/cobra"

	"github.com/vbonduro/facet/internal/web"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the comparison session over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			server := web.NewServer(a.svc, c.logger)
			defer server.Close()
			return server.ListenAndServe(c.cfg.ListenAddr)
		},
	}
}
