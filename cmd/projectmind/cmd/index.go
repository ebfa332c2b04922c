package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/Nik0lay1/project-mind-mcp/internal/index"
)

// newIndexCmd creates the index command.
func newIndexCmd(opts *globalOptions) *cobra.Command {
	var force, changed, jsonOutput bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the project",
		Long: `Index every indexable file under the project root. Files whose size and
modification time are unchanged since the last run are skipped unless --force
is given. --changed runs the incremental pass used by the watcher.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			s, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			var summary *index.Summary
			title := "Index complete"
			if changed {
				title = "Incremental index complete"
				summary, err = s.app.IndexIncremental(ctx)
			} else {
				summary, err = s.app.IndexFull(ctx, force)
			}
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			opts.printer(cmd).Summary(title, summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Clear the index and re-embed every file")
	cmd.Flags().BoolVar(&changed, "changed", false, "Index only added, modified and deleted files")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the run summary as JSON")
	cmd.MarkFlagsMutuallyExclusive("force", "changed")

	return cmd
}
