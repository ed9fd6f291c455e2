package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/indexchat/indexchat/internal/config"
)

// newBuildCmd creates the one-shot rebuild command.
func newBuildCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the index from the input directory",
		Long: `Scan the input directory once and rebuild the vector index from
scratch. The previous index generation is discarded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			if offline {
				cfg.Embeddings.Provider = config.ProviderStatic
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			runner, err := buildRunner(cfg, provider, cfg.FrameInterval())
			if err != nil {
				return err
			}

			stats, err := runner.Rebuild(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed %d of %d files (%d skipped, %d failed)\n",
				stats.FilesIndexed, stats.FilesSeen, stats.FilesSkipped, stats.FilesFailed)
			fmt.Fprintf(out, "%d entries in %s\n", stats.Entries, stats.Duration.Round(10*time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no network or credentials)")
	return cmd
}
