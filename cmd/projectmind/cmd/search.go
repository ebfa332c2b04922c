package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Nik0lay1/project-mind-mcp/internal/search"
)

// newSearchCmd creates the search command.
func newSearchCmd(opts *globalOptions) *cobra.Command {
	var (
		req        search.Request
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the index",
		Example: `  projectmind search "retry with backoff"
  projectmind search -n 10 --type .go --exclude vendor "open the database"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			s, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			req.Query = strings.Join(args, " ")
			results, err := s.app.Search(ctx, req)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			opts.printer(cmd).Results(results)
			return nil
		},
	}

	cmd.Flags().IntVarP(&req.N, "results", "n", search.DefaultResults, "Number of results (1-50)")
	cmd.Flags().StringSliceVar(&req.FileTypes, "type", nil, "Only files with these extensions, e.g. .go,.py")
	cmd.Flags().StringSliceVar(&req.ExcludeDirs, "exclude", nil, "Skip sources whose path contains any of these")
	cmd.Flags().Float64Var(&req.MinRelevance, "min-relevance", 0, "Minimum relevance between 0 and 1")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")

	return cmd
}
