package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/indexchat/indexchat/internal/config"
	"github.com/indexchat/indexchat/internal/watcher"
)

// newWatchCmd creates the continuous watch-and-rebuild command.
func newWatchCmd() *cobra.Command {
	var offline bool
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the input directory and rebuild on changes",
		Long: `Build the index, then keep watching the input directory. Change
bursts are debounced; each quiet period triggers at most one full
rebuild. Stop with Ctrl-C.`,
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

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !skipInitial {
				if _, err := runner.Rebuild(ctx); err != nil {
					return err
				}
			}

			w, err := watcher.New(cfg.Paths.InputDir, cfg.Debounce(), func(ctx context.Context) error {
				_, err := runner.Rebuild(ctx)
				return err
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (debounce %s). Ctrl-C to stop.\n",
				cfg.Paths.InputDir, cfg.Debounce())

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return w.Run(ctx)
			})
			g.Go(func() error {
				<-ctx.Done()
				w.Stop()
				return nil
			})

			if err := g.Wait(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no network or credentials)")
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Skip the initial rebuild and only react to changes")
	return cmd
}
