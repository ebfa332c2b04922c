// Package cmd provides the CLI commands for projectmind.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Nik0lay1/project-mind-mcp/internal/app"
	"github.com/Nik0lay1/project-mind-mcp/internal/config"
	"github.com/Nik0lay1/project-mind-mcp/internal/logging"
	"github.com/Nik0lay1/project-mind-mcp/internal/ui"
	"github.com/Nik0lay1/project-mind-mcp/pkg/version"
)

// globalOptions holds persistent flags shared by every subcommand.
type globalOptions struct {
	root     string
	logLevel string
	verbose  bool
	plain    bool
}

// NewRootCmd creates the root command for the projectmind CLI.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "projectmind",
		Short: "Incremental semantic index of a codebase, served over MCP",
		Long: `projectmind keeps a vector index of a project's source files up to date
and answers semantic searches over it, as CLI commands or as an MCP server
for AI coding assistants.

Run 'projectmind' with no arguments to index changed files and serve MCP on stdio.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return cmd.Help()
			}
			return runServe(cmd, opts, serveOptions{indexOnStart: true})
		},
	}
	cmd.SetVersionTemplate("projectmind version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.root, "root", "", "Project root (default: nearest directory with .git or .projectmind.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Mirror logs to stderr")
	cmd.PersistentFlags().BoolVar(&opts.plain, "plain", false, "Plain output without colors or boxes")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newIndexCmd(opts))
	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command, printing any error to stderr.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil {
		ui.NewPrinter(ui.NewConfig(os.Stderr)).Error(err)
	}
	return err
}

// resolveRoot returns the --root flag or the discovered project root.
func (o *globalOptions) resolveRoot() (string, error) {
	if o.root != "" {
		return o.root, nil
	}
	return config.FindProjectRoot(".")
}

// session is an opened project plus its logging cleanup.
type session struct {
	app     *app.Context
	cleanup func()
}

func (s *session) Close() {
	if err := s.app.Close(); err != nil {
		slog.Warn("close_failed", slog.String("error", err.Error()))
	}
	s.cleanup()
}

// open loads configuration, sets up file logging and wires the project.
// mcpMode keeps logs off stderr regardless of --verbose.
func (o *globalOptions) open(ctx context.Context, mcpMode bool) (*session, error) {
	root, err := o.resolveRoot()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	level := cfg.Server.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logCfg := logging.MCPConfig(root, level)
	logCfg.WriteToStderr = o.verbose && !mcpMode
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return nil, fmt.Errorf("setup logging: %w", err)
	}

	appCtx, err := app.New(ctx, app.Options{Root: root, Config: cfg, Logger: slog.Default()})
	if err != nil {
		cleanup()
		return nil, err
	}
	return &session{app: appCtx, cleanup: cleanup}, nil
}

// printer returns a ui.Printer for the command's output.
func (o *globalOptions) printer(cmd *cobra.Command) *ui.Printer {
	return ui.NewPrinter(ui.NewConfig(cmd.OutOrStdout(), ui.WithForcePlain(o.plain)))
}

// signalContext derives a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
