package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Nik0lay1/project-mind-mcp/configs"
	"github.com/Nik0lay1/project-mind-mcp/internal/app"
	"github.com/Nik0lay1/project-mind-mcp/internal/config"
)

// newInitCmd creates the init command.
func newInitCmd(opts *globalOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .projectmind.yaml, .ai/.indexignore and project memory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root := opts.root
			if root == "" {
				wd, err := os.Getwd()
				if err != nil {
					return err
				}
				root = wd
			}

			p := opts.printer(cmd)
			files := []struct {
				path    string
				content string
			}{
				{filepath.Join(root, ".projectmind.yaml"), configs.ProjectConfigTemplate},
				{config.DataPath(root, config.IndexIgnoreFile), configs.IndexIgnoreTemplate},
			}
			for _, f := range files {
				written, err := writeIfAbsent(f.path, f.content, force)
				if err != nil {
					return err
				}
				rel, _ := filepath.Rel(root, f.path)
				if written {
					p.Success("Wrote " + rel)
				} else {
					p.Warn(rel + " exists; use --force to overwrite")
				}
			}

			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			mem, err := app.NewMemory(root, cfg, slog.Default())
			if err != nil {
				return err
			}
			created, err := mem.Init(cmd.Context())
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, mem.Path())
			if created {
				p.Success("Wrote " + rel)
			} else {
				p.Warn(rel + " exists; kept")
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Detected a %s project. Run 'projectmind index' next.\n",
				config.DetectProjectType(root))
			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")

	return cmd
}

func writeIfAbsent(path, content string, force bool) (bool, error) {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	return true, os.WriteFile(path, []byte(content), 0o644)
}
