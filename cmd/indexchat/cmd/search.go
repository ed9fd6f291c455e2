package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/indexchat/indexchat/internal/config"
	ierr "github.com/indexchat/indexchat/internal/errors"
	"github.com/indexchat/indexchat/internal/store"
)

// newSearchCmd creates the query command.
func newSearchCmd() *cobra.Command {
	var kindFlag string
	var topK int
	var offline bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Long: `Embed the query with the configured text model and return the
nearest entries of the requested content kind.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}
			if offline {
				cfg.Embeddings.Provider = config.ProviderStatic
			}

			kind := store.ContentKind(kindFlag)
			if !kind.Valid() {
				return ierr.New(ierr.ErrCodeInvalidInput,
					"kind must be 'text', 'image', or 'audio'", nil).
					WithDetail("kind", kindFlag)
			}

			provider, err := buildProvider(cfg)
			if err != nil {
				return err
			}
			query, err := provider.Text.EmbedText(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Paths.IndexPath)
			if err != nil {
				return err
			}
			defer st.Close()

			results, err := st.Search(cmd.Context(), kind, query, topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%2d. [%.3f] %s\n", i+1, r.Score, r.Entry.TextLabel)
				if r.Entry.Metadata != "" {
					fmt.Fprintf(out, "    %s (%s)\n", r.Entry.SourceName, r.Entry.Metadata)
				} else {
					fmt.Fprintf(out, "    %s\n", r.Entry.SourceName)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kindFlag, "kind", "text", "Content kind to search: text, image, or audio")
	cmd.Flags().IntVar(&topK, "k", 5, "Number of results")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no network or credentials)")
	return cmd
}
