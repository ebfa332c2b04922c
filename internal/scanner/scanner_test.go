package scanner

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nik0lay1/project-mind-mcp/internal/logging"
)

func createFile(t *testing.T, root, rel string, size int) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644))
}

func newScanner(t *testing.T, opts Options) *Scanner {
	t.Helper()
	opts.Logger = logging.Discard()
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestScanner_Enumerate_AppliesRules(t *testing.T) {
	// Given: a tree mixing indexable, ignored, binary and sensitive files
	root := t.TempDir()
	for _, rel := range []string{
		"main.go",
		"docs/guide.md",
		"Makefile",
		"src/app.py",
		"node_modules/lib/index.js",
		".git/HEAD",
		".ai/index_metadata.json",
		"pkg.egg-info/PKG-INFO",
		"logo.png",
		"data.xlsx",
		".env",
		"certs/server.pem",
		"generated/big_gen.go",
	} {
		createFile(t, root, rel, 10)
	}
	createFile(t, root, "huge.txt", 2048)

	s := newScanner(t, Options{
		RootDir:        root,
		IgnorePatterns: []string{"generated/"},
		MaxFileSize:    1024,
	})

	// When: enumerating
	files, err := s.Enumerate(context.Background())

	// Then: only indexable files remain, sorted and slash separated
	require.NoError(t, err)
	assert.Equal(t, []string{"Makefile", "docs/guide.md", "main.go", "src/app.py"}, files)
}

func TestScanner_Enumerate_LogsOversizedFiles(t *testing.T) {
	// Given: a file over the size limit and a logger that records output
	root := t.TempDir()
	createFile(t, root, "big.txt", 64)
	var buf bytes.Buffer
	s, err := New(Options{
		RootDir:     root,
		MaxFileSize: 16,
		Logger:      slog.New(slog.NewJSONHandler(&buf, nil)),
	})
	require.NoError(t, err)

	// When: enumerating
	files, err := s.Enumerate(context.Background())

	// Then: the file is skipped and the log carries the size-limit code
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Contains(t, buf.String(), `"msg":"file_too_large_skipped"`)
	assert.Contains(t, buf.String(), `"error_code":"ERR_204_FILE_TOO_LARGE"`)
	assert.Contains(t, buf.String(), `"detail_file":"big.txt"`)
}

func TestScanner_Enumerate_CancelledContext(t *testing.T) {
	root := t.TempDir()
	createFile(t, root, "a.go", 1)
	s := newScanner(t, Options{RootDir: root})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Enumerate(ctx)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestScanner_Enumerate_MissingRoot(t *testing.T) {
	s := newScanner(t, Options{RootDir: filepath.Join(t.TempDir(), "nope")})

	_, err := s.Enumerate(context.Background())

	assert.Error(t, err)
}

func TestScanner_ShouldIndex(t *testing.T) {
	s := newScanner(t, Options{RootDir: t.TempDir(), IgnorePatterns: []string{"fixtures"}})

	tests := []struct {
		path string
		want bool
	}{
		{"main.go", true},
		{"README", true},
		{"a/b/c.ts", true},
		{"image.jpg", false},
		{"notes.docx", false},
		{"id_rsa", false},
		{".env.local", false},
		{"test/fixtures/x.go", false},
		{"venv/lib/site.py", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, s.ShouldIndex(tt.path))
		})
	}
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestLoadIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".indexignore")
	require.NoError(t, os.WriteFile(path, []byte("# comment\n\nvendor/\n  tmp  \nvendor/\n"), 0o644))

	patterns, err := LoadIgnorePatterns(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"vendor/", "tmp"}, patterns)

	patterns, err = LoadIgnorePatterns(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, patterns)
}

func TestDetectLanguage(t *testing.T) {
	assert.Equal(t, "go", DetectLanguage("internal/x.go"))
	assert.Equal(t, "markdown", DetectLanguage("README.md"))
	assert.Equal(t, "", DetectLanguage("Makefile"))
	assert.Equal(t, "", DetectLanguage(".bashrc"))
}
