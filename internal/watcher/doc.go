// Package watcher turns file system changes under a project root into
// incremental index runs.
//
// A Watcher registers every non-ignored directory with fsnotify, filters
// events through the same rules the indexer's walker uses, and coalesces
// bursts through a Debouncer. A Trigger consumes the debounced batches and
// runs one incremental index per burst:
//
//	w, err := watcher.New(watcher.Options{Root: root, IgnoreDir: s.IsIgnoredDir, Filter: s.ShouldIndex})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go func() { _ = w.Start(ctx) }()
//
//	trigger := watcher.NewTrigger(appCtx.IndexIncremental, logger)
//	return trigger.Run(ctx, w.Events())
package watcher
