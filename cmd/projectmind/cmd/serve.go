package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/mcp"
)

type serveOptions struct {
	transport    string
	indexOnStart bool
	watch        bool
}

// newServeCmd creates the serve command.
func newServeCmd(opts *globalOptions) *cobra.Command {
	so := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve MCP tools on stdio",
		Long: `Start the MCP server. Stdout carries JSON-RPC only; logs go to
.ai/projectmind.log under the project root.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts, so)
		},
	}

	cmd.Flags().StringVar(&so.transport, "transport", "stdio", "Transport (stdio)")
	cmd.Flags().BoolVar(&so.indexOnStart, "index", true, "Index changed files before serving")
	cmd.Flags().BoolVar(&so.watch, "watch", false, "Re-index changed files while serving")

	return cmd
}

// runServe opens the project and serves MCP until the client disconnects or
// a signal arrives. Nothing is written to stdout before the server starts.
func runServe(cmd *cobra.Command, opts *globalOptions, so serveOptions) error {
	if so.transport == "" {
		so.transport = "stdio"
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	s, err := opts.open(ctx, true)
	if err != nil {
		return err
	}
	defer s.Close()
	logger := s.app.Logger()

	if so.indexOnStart {
		summary, err := s.app.IndexIncremental(ctx)
		if err != nil {
			// The tools still work against the previous index.
			logger.Error("startup_index_failed", perrors.LogAttrs(err)...)
		} else {
			logger.Info("startup_index_complete",
				slog.Int("added", summary.Added),
				slog.Int("changed", summary.Changed),
				slog.Int("removed", summary.Removed))
		}
	}

	srv, err := mcp.NewServer(s.app, logger)
	if err != nil {
		return err
	}

	if so.watch {
		watchCtx, stopWatch := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := watchProject(watchCtx, s.app, nil); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("watch_stopped", perrors.LogAttrs(err)...)
			}
		}()
		// The watcher must be gone before the project is closed.
		defer func() {
			stopWatch()
			<-done
		}()
	}

	return srv.Serve(ctx, so.transport)
}
