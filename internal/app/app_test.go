package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nik0lay1/project-mind-mcp/internal/config"
	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/logging"
	"github.com/Nik0lay1/project-mind-mcp/internal/search"
	"github.com/Nik0lay1/project-mind-mcp/internal/vectorstore"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newContext(t *testing.T, root string) *Context {
	t.Helper()
	c, err := New(context.Background(), Options{
		Root:   root,
		Config: config.NewConfig(),
		Logger: logging.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sampleProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "db/conn.go", "func openDatabaseConnection(dsn string) (*sql.DB, error) {\n\treturn sql.Open(\"pgx\", dsn)\n}\n")
	writeFile(t, root, "web/server.go", "func serveHTTPRequests(addr string) error {\n\treturn http.ListenAndServe(addr, nil)\n}\n")
	writeFile(t, root, "docs/intro.md", "# Intro\n\nThis project indexes source trees for semantic search.\n")
	return root
}

func TestContext_IndexAndSearch(t *testing.T) {
	// Given: a small project
	root := sampleProject(t)
	c := newContext(t, root)
	ctx := context.Background()

	// When: indexing it in full
	summary, err := c.IndexFull(ctx, false)

	// Then: every file is added and searchable
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Added)

	results, err := c.Search(ctx, search.Request{Query: "open database connection", N: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "db/conn.go", results[0].Source)
	assert.Greater(t, results[0].Relevance, 0.5)

	stats, err := c.IndexStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TrackedFiles)
	assert.Equal(t, stats.TableChunks, stats.Chunks)
	assert.False(t, stats.LastIndexed.IsZero())
}

func TestContext_IncrementalPicksUpChanges(t *testing.T) {
	root := sampleProject(t)
	c := newContext(t, root)
	ctx := context.Background()
	_, err := c.IndexFull(ctx, false)
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, "web", "server.go")))
	writeFile(t, root, "cache/lru.go", "func evictLeastRecentlyUsed() {}\n")

	summary, err := c.IndexIncremental(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, summary.Added)
	assert.Equal(t, 1, summary.Removed)
	assert.Equal(t, 2, summary.Unchanged)

	results, err := c.Search(ctx, search.Request{Query: "serve http requests", N: 5, ExcludeDirs: []string{"docs/"}})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "web/server.go", r.Source)
	}
}

func TestContext_IndexInvalidatesQueryCache(t *testing.T) {
	root := sampleProject(t)
	c := newContext(t, root)
	ctx := context.Background()
	_, err := c.IndexFull(ctx, false)
	require.NoError(t, err)

	_, err = c.Search(ctx, search.Request{Query: "evict least recently used"})
	require.NoError(t, err)
	writeFile(t, root, "cache/lru.go", "func evictLeastRecentlyUsed() {}\n")
	_, err = c.IndexIncremental(ctx)
	require.NoError(t, err)

	results, err := c.Search(ctx, search.Request{Query: "evict least recently used", N: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cache/lru.go", results[0].Source)
}

func TestContext_StateSurvivesReopen(t *testing.T) {
	// Given: an indexed project whose context was closed
	root := sampleProject(t)
	ctx := context.Background()
	first := newContext(t, root)
	_, err := first.IndexFull(ctx, false)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	// When: a new context runs an incremental index
	second := newContext(t, root)
	summary, err := second.IndexIncremental(ctx)

	// Then: nothing is re-indexed and search still works
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Unchanged)
	assert.Zero(t, summary.Added)
	results, err := second.Search(ctx, search.Request{Query: "serve http requests", N: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "web/server.go", results[0].Source)
}

func TestContext_LostVectorStoreForcesRebuild(t *testing.T) {
	// Given: a fingerprint table whose vector store files were deleted
	root := sampleProject(t)
	ctx := context.Background()
	first := newContext(t, root)
	_, err := first.IndexFull(ctx, false)
	require.NoError(t, err)
	require.NoError(t, first.Close())
	graph := config.DataPath(root, config.VectorStoreDir, VectorIndexFile)
	require.NoError(t, os.Remove(vectorstore.MetaPath(graph)))

	// When: reopening and running an incremental index
	second := newContext(t, root)
	summary, err := second.IndexIncremental(ctx)

	// Then: the run is promoted to a forced rebuild
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Added)
	stats, err := second.IndexStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TableChunks, stats.Chunks)

	summary, err = second.IndexIncremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Unchanged)
}

func TestContext_ReadThroughCache(t *testing.T) {
	root := sampleProject(t)
	c := newContext(t, root)

	content, err := c.ReadThroughCache("docs/intro.md")
	require.NoError(t, err)
	assert.Contains(t, content, "# Intro")

	_, err = c.ReadThroughCache(filepath.Join(root, "docs", "intro.md"))
	require.NoError(t, err)

	report := c.CacheStatistics()
	assert.Equal(t, uint64(1), report.FileCache.Hits)
	assert.Equal(t, uint64(1), report.FileCache.Misses)
	assert.Equal(t, 300, report.QueryTTLSeconds)
}

func TestContext_ReadThroughCache_RejectsEscapes(t *testing.T) {
	root := sampleProject(t)
	outsideDir := t.TempDir()
	writeFile(t, outsideDir, "secret.txt", "nope")
	c := newContext(t, root)

	for _, p := range []string{"../secret.txt", filepath.Join(outsideDir, "secret.txt"), ""} {
		_, err := c.ReadThroughCache(p)
		assert.True(t, perrors.HasCode(err, perrors.ErrCodeInvalidPath), "path %q", p)
	}

	require.NoError(t, os.Symlink(filepath.Join(outsideDir, "secret.txt"), filepath.Join(root, "link.txt")))
	_, err := c.ReadThroughCache("link.txt")
	assert.True(t, perrors.HasCode(err, perrors.ErrCodeInvalidPath))
}

func TestContext_SearchValidation(t *testing.T) {
	c := newContext(t, sampleProject(t))

	_, err := c.Search(context.Background(), search.Request{Query: "x", N: 51})

	assert.True(t, perrors.HasCode(err, perrors.ErrCodeInvalidQuery))
}

func TestContext_IndexIgnoreFile(t *testing.T) {
	root := sampleProject(t)
	writeFile(t, root, ".ai/.indexignore", "docs/\n")
	c := newContext(t, root)

	summary, err := c.IndexFull(context.Background(), false)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Added)
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(context.Background(), Options{})
	assert.Error(t, err)
}

func TestContext_CloseIsIdempotent(t *testing.T) {
	c := newContext(t, t.TempDir())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestNew_CreatesProjectMemory(t *testing.T) {
	// Given: a Go project without a memory file
	root := sampleProject(t)
	writeFile(t, root, "go.mod", "module example.com/x\n")

	// When: wiring a Context
	c := newContext(t, root)

	// Then: the memory template exists and names the language
	ex, err := c.Memory().Read(0)
	require.NoError(t, err)
	assert.Contains(t, ex.Text, "- Language: go\n")
	assert.Equal(t, filepath.Join(root, ".ai", "memory.md"), c.Memory().Path())
}

func TestNew_KeepsExistingMemory(t *testing.T) {
	root := sampleProject(t)
	writeFile(t, root, ".ai/memory.md", "# Notes\n")

	c := newContext(t, root)

	ex, err := c.Memory().Read(0)
	require.NoError(t, err)
	assert.Equal(t, "# Notes\n", ex.Text)
}
