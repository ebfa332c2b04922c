package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nik0lay1/project-mind-mcp/internal/index"
	"github.com/Nik0lay1/project-mind-mcp/internal/logging"
	"github.com/Nik0lay1/project-mind-mcp/internal/search"
	"github.com/Nik0lay1/project-mind-mcp/internal/watcher"
)

// TestWatcher_SavedFileBecomesSearchable wires a watcher and trigger to a
// real project and waits for a new file to show up in search.
func TestWatcher_SavedFileBecomesSearchable(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	// Given: an indexed project under watch
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main\n\nfunc main() {}\n")
	appCtx := openApp(t, root)
	_, err := appCtx.IndexFull(context.Background(), false)
	require.NoError(t, err)

	sc := appCtx.Scanner()
	w, err := watcher.New(watcher.Options{
		Root:           root,
		DebounceWindow: 50 * time.Millisecond,
		IgnoreDir:      sc.IsIgnoredDir,
		Filter:         sc.ShouldIndex,
		Logger:         logging.Discard(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	defer func() { _ = w.Stop() }()

	runs := make(chan *index.Summary, 10)
	trigger := watcher.NewTrigger(appCtx.IndexIncremental, logging.Discard())
	trigger.OnSummary = func(s *index.Summary) { runs <- s }
	go func() { _ = trigger.Run(ctx, w.Events()) }()
	time.Sleep(200 * time.Millisecond)

	// When: a new file is saved
	writeFile(t, root, "billing/invoice.go", "package billing\n\nfunc CalculateInvoiceTotal(lines []Line) Money { return sum(lines) }\n")

	// Then: an incremental run picks it up and search finds it
	deadline := time.After(5 * time.Second)
	for added := 0; added == 0; {
		select {
		case s := <-runs:
			added += s.Added
		case <-deadline:
			t.Fatal("no incremental run indexed the new file")
		}
	}

	results, err := appCtx.Search(ctx, search.Request{Query: "calculate invoice total", N: 1})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "billing/invoice.go", results[0].Source)
}
