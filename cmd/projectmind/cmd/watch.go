package cmd

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Nik0lay1/project-mind-mcp/internal/app"
	"github.com/Nik0lay1/project-mind-mcp/internal/index"
	"github.com/Nik0lay1/project-mind-mcp/internal/watcher"
)

// newWatchCmd creates the watch command.
func newWatchCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-index changed files as they are saved",
		Long: `Run an incremental index, then watch the project and re-run it after each
burst of file changes settles. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			s, err := opts.open(ctx, false)
			if err != nil {
				return err
			}
			defer s.Close()

			p := opts.printer(cmd)
			summary, err := s.app.IndexIncremental(ctx)
			if err != nil {
				return err
			}
			p.Summary("Initial index", summary)
			p.Success("Watching " + s.app.Root() + " (Ctrl-C to stop)")

			err = watchProject(ctx, s.app, func(sum *index.Summary) {
				p.Summary("Re-indexed", sum)
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	return cmd
}

// watchProject runs a watcher and its index trigger until ctx ends.
func watchProject(ctx context.Context, appCtx *app.Context, onSummary func(*index.Summary)) error {
	sc := appCtx.Scanner()
	w, err := watcher.New(watcher.Options{
		Root:           appCtx.Root(),
		DebounceWindow: appCtx.Config().Debounce(),
		IgnoreDir:      sc.IsIgnoredDir,
		Filter:         sc.ShouldIndex,
		Logger:         appCtx.Logger(),
	})
	if err != nil {
		return err
	}

	trigger := watcher.NewTrigger(appCtx.IndexIncremental, appCtx.Logger())
	trigger.OnSummary = onSummary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Start(gctx)
	})
	g.Go(func() error {
		err := trigger.Run(gctx, w.Events())
		_ = w.Stop()
		return err
	})
	g.Go(func() error {
		for err := range w.Errors() {
			appCtx.Logger().Warn("watch_error", slog.String("error", err.Error()))
		}
		return nil
	})
	return g.Wait()
}
