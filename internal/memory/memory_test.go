package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/fingerprint"
	"github.com/Nik0lay1/project-mind-mcp/internal/logging"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newManager(t *testing.T, opts Options) (*Manager, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)}
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), ".ai", FileName)
	}
	opts.Language = "go"
	opts.Logger = logging.Discard()
	opts.Now = clk.Now
	m, err := New(opts)
	require.NoError(t, err)
	return m, clk
}

func initialized(t *testing.T) (*Manager, *clock) {
	t.Helper()
	m, clk := newManager(t, Options{})
	created, err := m.Init(context.Background())
	require.NoError(t, err)
	require.True(t, created)
	return m, clk
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestNew_RequiresPath(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeConfigInvalid))
}

func TestManager_InitWritesTemplateOnce(t *testing.T) {
	// Given: a fresh memory file
	m, _ := initialized(t)
	require.NoError(t, os.WriteFile(m.Path(), []byte("# Mine\n"), 0o644))

	// When: initializing again
	created, err := m.Init(context.Background())

	// Then: the existing file is left alone
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "# Mine\n", readFile(t, m.Path()))
}

func TestManager_TemplateNamesLanguage(t *testing.T) {
	m, _ := initialized(t)

	content := readFile(t, m.Path())

	assert.True(t, strings.HasPrefix(content, "# Project Memory\n"))
	assert.Contains(t, content, "- Language: go\n")
	assert.Contains(t, content, "## Recent Decisions\n- Project initialized.\n")
}

func TestManager_ReadTruncates(t *testing.T) {
	m, _ := initialized(t)
	lines := make([]string, 150)
	for i := range lines {
		lines[i] = "line"
	}
	require.NoError(t, os.WriteFile(m.Path(), []byte(strings.Join(lines, "\n")), 0o644))

	tests := []struct {
		name     string
		maxLines int
		omitted  int
		lines    int
	}{
		{"default limit", DefaultReadLines, 50, 100},
		{"full", 0, 0, 150},
		{"larger than file", 500, 0, 150},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := m.Read(tt.maxLines)

			require.NoError(t, err)
			assert.Equal(t, 150, ex.TotalLines)
			assert.Equal(t, tt.omitted, ex.Omitted)
			assert.Len(t, strings.Split(ex.Text, "\n"), tt.lines)
		})
	}
}

func TestManager_ReadRejectsNegativeLimit(t *testing.T) {
	m, _ := initialized(t)

	_, err := m.Read(-1)

	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeInvalidInput))
}

func TestManager_MissingFileIsNotFound(t *testing.T) {
	m, _ := newManager(t, Options{})

	_, err := m.Read(0)
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeFileNotFound))

	err = m.Update(context.Background(), "", "note")
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeFileNotFound))

	_, statErr := os.Stat(m.Path())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestManager_UpdateAppendsSection(t *testing.T) {
	// Given: an initialized memory
	m, _ := initialized(t)
	before := readFile(t, m.Path())

	// When: appending two updates, one without a section
	require.NoError(t, m.Update(context.Background(), "Architecture", "Use HNSW."))
	require.NoError(t, m.Update(context.Background(), "  ", "Keep caches bounded."))

	// Then: both land at the end with their headings
	assert.Equal(t,
		before+"\n\n### Update (Architecture)\nUse HNSW.\n\n### Update (Recent Decisions)\nKeep caches bounded.",
		readFile(t, m.Path()))
}

func TestManager_UpdateRejectsEmptyContent(t *testing.T) {
	m, _ := initialized(t)

	err := m.Update(context.Background(), "x", " \n ")

	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeInvalidInput))
}

func TestManager_Clear(t *testing.T) {
	tests := []struct {
		name         string
		keepTemplate bool
		want         func(m *Manager) string
	}{
		{"keep template", true, func(m *Manager) string { return m.Template("Memory cleared.") }},
		{"wipe", false, func(*Manager) string { return "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := initialized(t)
			require.NoError(t, m.Update(context.Background(), "", "something"))

			require.NoError(t, m.Clear(context.Background(), tt.keepTemplate))

			assert.Equal(t, tt.want(m), readFile(t, m.Path()))
		})
	}
}

func TestManager_DeleteSectionRemovesNestedSubsections(t *testing.T) {
	// Given: a memory with a nested subsection under Tech Stack
	m, _ := initialized(t)
	content := strings.Join([]string{
		"# Project Memory",
		"",
		"## Status",
		"- done",
		"",
		"## Tech Stack",
		"- Go",
		"### Storage",
		"- HNSW",
		"",
		"## Recent Decisions",
		"- none",
	}, "\n")
	require.NoError(t, os.WriteFile(m.Path(), []byte(content), 0o644))

	// When: deleting it case-insensitively
	removed, err := m.DeleteSection(context.Background(), "tech stack")

	// Then: the section and its subsection are gone and the rest stays
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, strings.Join([]string{
		"# Project Memory",
		"",
		"## Status",
		"- done",
		"",
		"## Recent Decisions",
		"- none",
	}, "\n"), readFile(t, m.Path()))
}

func TestManager_DeleteSectionKeepsTitle(t *testing.T) {
	m, _ := initialized(t)
	before := readFile(t, m.Path())

	removed, err := m.DeleteSection(context.Background(), "Project Memory")

	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, before, readFile(t, m.Path()))
}

func TestManager_DeleteSectionRequiresName(t *testing.T) {
	m, _ := initialized(t)

	_, err := m.DeleteSection(context.Background(), "")

	assert.True(t, perrors.HasCode(err, perrors.ErrCodeInvalidInput))
}

// failingRenameFS fails every rename so writes never reach their target.
type failingRenameFS struct {
	fingerprint.OSFileSystem
}

func (failingRenameFS) Rename(string, string) error {
	return errors.New("rename refused")
}

func TestManager_FailedWriteKeepsPreviousContent(t *testing.T) {
	// Given: an initialized memory and a filesystem that cannot rename
	m, _ := initialized(t)
	before := readFile(t, m.Path())
	broken, _ := newManager(t, Options{Path: m.Path(), FileSystem: failingRenameFS{}})

	// When: updating
	err := broken.Update(context.Background(), "", "lost")

	// Then: the error is a commit failure and the file is untouched
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeCommitFailed))
	assert.Equal(t, before, readFile(t, m.Path()))

	entries, err := os.ReadDir(filepath.Dir(m.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover temp file %s", e.Name())
	}
}

func TestManager_CancelledContext(t *testing.T) {
	m, _ := initialized(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Update(ctx, "", "note")

	assert.ErrorIs(t, err, context.Canceled)
}
