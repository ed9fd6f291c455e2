package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/indexchat/indexchat/internal/config"
	"github.com/indexchat/indexchat/internal/store"
)

// StatsOutput is the JSON output format for index stats.
type StatsOutput struct {
	Generation  string         `json:"generation"`
	Status      string         `json:"status"`
	Counts      map[string]int `json:"counts"`
	Dimensions  map[string]int `json:"dimensions"`
	Accelerated map[string]bool `json:"accelerated"`
}

// newStatsCmd creates the index statistics command.
func newStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Display the current index generation, its status, and per-kind
entry counts and dimensionalities.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(".")
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.Paths.IndexPath)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			gen, status, err := st.Generation(ctx)
			if err != nil {
				return err
			}
			counts, err := st.Counts(ctx)
			if err != nil {
				return err
			}
			dims := st.Dims()

			output := StatsOutput{
				Generation:  gen,
				Status:      status,
				Counts:      make(map[string]int, len(store.Kinds)),
				Dimensions:  make(map[string]int, len(store.Kinds)),
				Accelerated: make(map[string]bool, len(store.Kinds)),
			}
			for _, kind := range store.Kinds {
				output.Counts[string(kind)] = counts[kind]
				output.Dimensions[string(kind)] = dims.For(kind)
				output.Accelerated[string(kind)] = st.Accelerated(kind)
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(output)
			}

			fmt.Fprintf(out, "Generation: %s (%s)\n", gen, status)
			for _, kind := range store.Kinds {
				accel := "linear"
				if st.Accelerated(kind) {
					accel = "accelerated"
				}
				fmt.Fprintf(out, "  %-5s  %6d entries  %4d dims  %s\n",
					kind, counts[kind], dims.For(kind), accel)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
