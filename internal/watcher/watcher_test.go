package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nik0lay1/project-mind-mcp/internal/logging"
)

func startWatcher(t *testing.T, root string) *Watcher {
	t.Helper()
	w, err := New(Options{
		Root:           root,
		DebounceWindow: 30 * time.Millisecond,
		IgnoreDir:      func(name string) bool { return name == "node_modules" || name == ".ai" },
		Filter:         func(rel string) bool { return strings.HasSuffix(rel, ".go") },
		Logger:         logging.Discard(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	go func() { _ = w.Start(ctx) }()
	// Let Start register the tree.
	time.Sleep(100 * time.Millisecond)
	return w
}

func collect(t *testing.T, w *Watcher, want string) []FileEvent {
	t.Helper()
	var all []FileEvent
	deadline := time.After(3 * time.Second)
	for {
		select {
		case batch := <-w.Events():
			all = append(all, batch...)
			for _, ev := range batch {
				if ev.Path == want {
					return all
				}
			}
		case <-deadline:
			t.Fatalf("no event for %s; got %v", want, all)
			return nil
		}
	}
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "CONFIG_CHANGE", OpConfigChange.String())
	assert.Equal(t, "UNKNOWN", Operation(99).String())
}

func TestNew_RequiresRoot(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestOptions_WithDefaults(t *testing.T) {
	opts := Options{Root: "x"}.WithDefaults()
	assert.Equal(t, 500*time.Millisecond, opts.DebounceWindow)
	assert.Equal(t, 16, opts.EventBufferSize)
	assert.NotNil(t, opts.IgnoreDir)
	assert.NotNil(t, opts.Logger)
}

func TestWatcher_ReportsIndexableFiles(t *testing.T) {
	// Given: a watched project
	root := t.TempDir()
	w := startWatcher(t, root)

	// When: a source file is written
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	// Then: it arrives as a relative path
	events := collect(t, w, "main.go")
	assert.Equal(t, "main.go", events[len(events)-1].Path)
}

func TestWatcher_SkipsFilteredFilesAndIgnoredDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0o755))
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep.go"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.go"), []byte("x"), 0o644))

	for _, ev := range collect(t, w, "keep.go") {
		assert.NotEqual(t, "node_modules/dep.go", ev.Path)
		assert.NotEqual(t, "image.png", ev.Path)
	}
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	sub := filepath.Join(root, "pkg")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "lib.go"), []byte("package pkg"), 0o644))

	collect(t, w, "pkg/lib.go")
}

func TestWatcher_ConfigFileIsConfigChange(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root)

	require.NoError(t, os.WriteFile(filepath.Join(root, ".projectmind.yaml"), []byte("version: 1\n"), 0o644))

	events := collect(t, w, ".projectmind.yaml")
	assert.Equal(t, OpConfigChange, events[len(events)-1].Operation)
}

func TestWatcher_StopClosesChannels(t *testing.T) {
	w, err := New(Options{Root: t.TempDir(), Logger: logging.Discard()})
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}
