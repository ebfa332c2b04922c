package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Nik0lay1/project-mind-mcp/internal/app"
)

// statsOutput is the JSON shape of the stats command.
type statsOutput struct {
	Index  *app.IndexStats `json:"index"`
	Caches app.CacheReport `json:"caches"`
}

// newStatsCmd creates the stats command.
func newStatsCmd(opts *globalOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index and cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			s, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := s.app.IndexStats(ctx)
			if err != nil {
				return err
			}
			report := s.app.CacheStatistics()

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(statsOutput{Index: st, Caches: report})
			}
			p := opts.printer(cmd)
			p.IndexStats(st)
			p.CacheReport(report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output statistics as JSON")

	return cmd
}
