// Command facet compares how several instructions describe the same image.
// It serves the comparison session over HTTP and offers one-shot commands for
// analysis, paragraph flattening, and library seeding.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vbonduro/facet/internal/config"
	"github.com/vbonduro/facet/internal/logging"
)

// cli carries what every subcommand needs once the root has initialized.
type cli struct {
	cfg     *config.Config
	logger  *slog.Logger
	cleanup func()
}

func newRootCmd() *cobra.Command {
	c := &cli{cleanup: func() {}}

	root := &cobra.Command{
		Use:           "facet",
		Short:         "Run one image through several instructions side by side",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c.cfg = config.Load()
			logger, cleanup, err := logging.New(c.cfg.LogLevel, c.cfg.LogFormat, c.cfg.LogFile)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			c.logger = logger
			c.cleanup = cleanup
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			c.cleanup()
		},
	}

	root.AddCommand(
		newServeCmd(c),
		newAnalyzeCmd(c),
		newFlattenCmd(c),
		newLibraryCmd(c),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
