package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

func TestManager_SaveVersionCopiesMemory(t *testing.T) {
	// Given: an initialized memory
	m, _ := initialized(t)
	content := readFile(t, m.Path())

	// When: saving a version
	v, err := m.SaveVersion(context.Background(), " before refactor ")

	// Then: the copy and its metadata are in the history directory
	require.NoError(t, err)
	assert.Equal(t, "20250601_143000", v.ID)
	assert.Equal(t, "before refactor", v.Description)
	assert.Equal(t, "memory_20250601_143000.md", v.FileName())
	assert.Equal(t, content, readFile(t, filepath.Join(m.HistoryDir(), v.FileName())))
	assert.FileExists(t, filepath.Join(m.HistoryDir(), "memory_20250601_143000.meta.json"))
}

func TestManager_SaveVersionSameSecondGetsSuffix(t *testing.T) {
	m, _ := initialized(t)

	first, err := m.SaveVersion(context.Background(), "a")
	require.NoError(t, err)
	second, err := m.SaveVersion(context.Background(), "b")
	require.NoError(t, err)

	assert.Equal(t, "20250601_143000", first.ID)
	assert.Equal(t, "20250601_143000_2", second.ID)
}

func TestManager_ListVersionsNewestFirst(t *testing.T) {
	// Given: versions saved a minute apart and one corrupt metadata file
	m, clk := initialized(t)
	_, err := m.SaveVersion(context.Background(), "old")
	require.NoError(t, err)
	clk.now = clk.now.Add(time.Minute)
	_, err = m.SaveVersion(context.Background(), "new")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(m.HistoryDir(), "memory_20250101_000000.meta.json"), []byte("{"), 0o644))

	// When: listing
	versions, err := m.ListVersions()

	// Then: readable versions come back newest first
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, "20250601_143100", versions[0].ID)
	assert.Equal(t, "new", versions[0].Description)
	assert.Equal(t, "20250601_143000", versions[1].ID)
}

func TestManager_ListVersionsEmpty(t *testing.T) {
	m, _ := newManager(t, Options{})

	versions, err := m.ListVersions()

	require.NoError(t, err)
	assert.Empty(t, versions)
}

func TestManager_RestoreBacksUpCurrentMemory(t *testing.T) {
	// Given: a saved version followed by further edits
	m, clk := initialized(t)
	original := readFile(t, m.Path())
	saved, err := m.SaveVersion(context.Background(), "baseline")
	require.NoError(t, err)
	require.NoError(t, m.Update(context.Background(), "", "later edit"))
	edited := readFile(t, m.Path())
	clk.now = clk.now.Add(time.Hour)

	// When: restoring the baseline
	backup, err := m.Restore(context.Background(), saved.ID)

	// Then: the memory is back and the edited state was saved first
	require.NoError(t, err)
	assert.Equal(t, original, readFile(t, m.Path()))
	require.NotNil(t, backup)
	assert.Equal(t, restoreBackupNote, backup.Description)
	assert.Equal(t, edited, readFile(t, filepath.Join(m.HistoryDir(), backup.FileName())))

	versions, err := m.ListVersions()
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestManager_RestoreErrors(t *testing.T) {
	m, _ := initialized(t)

	tests := []struct {
		name string
		id   string
		code string
	}{
		{"path traversal", "../../etc/passwd", perrors.ErrCodeInvalidInput},
		{"malformed", "yesterday", perrors.ErrCodeInvalidInput},
		{"unknown version", "20240101_000000", perrors.ErrCodeFileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Restore(context.Background(), tt.id)

			require.Error(t, err)
			assert.True(t, perrors.HasCode(err, tt.code), "got %v", err)
		})
	}
}
