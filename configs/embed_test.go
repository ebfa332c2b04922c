package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nik0lay1/project-mind-mcp/internal/config"
	"github.com/Nik0lay1/project-mind-mcp/internal/scanner"
)

func TestProjectConfigTemplate_LoadsAsDefaults(t *testing.T) {
	// Given: the template written as a project config
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".projectmind.yaml"), []byte(ProjectConfigTemplate), 0o644))

	// When: loading it
	cfg, err := config.Load(dir)

	// Then: nothing is overridden
	require.NoError(t, err)
	assert.Equal(t, config.NewConfig().Cache, cfg.Cache)
	assert.Equal(t, config.NewConfig().Indexing, cfg.Indexing)
}

func TestIndexIgnoreTemplate_SkipsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".indexignore")
	require.NoError(t, os.WriteFile(path, []byte(IndexIgnoreTemplate), 0o644))

	patterns, err := scanner.LoadIgnorePatterns(path)

	require.NoError(t, err)
	assert.Equal(t, []string{".min.js", ".lock", "coverage/"}, patterns)
}
