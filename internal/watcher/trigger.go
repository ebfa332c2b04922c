package watcher

import (
	"context"
	"errors"
	"log/slog"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/index"
)

// RunFunc performs one incremental index pass.
type RunFunc func(ctx context.Context) (*index.Summary, error)

// Trigger runs an incremental index pass per debounced batch. Batches that
// queue up while a pass is running are folded into the next pass.
type Trigger struct {
	run    RunFunc
	logger *slog.Logger

	// OnSummary, when set, receives every successful pass.
	OnSummary func(*index.Summary)
}

// NewTrigger creates a Trigger around run.
func NewTrigger(run RunFunc, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{run: run, logger: logger}
}

// Run consumes batches until events is closed or ctx ends. Pass failures are
// logged and do not stop the loop; a cancelled context does.
func (t *Trigger) Run(ctx context.Context, events <-chan []FileEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			batch = drain(batch, events)
			if err := t.handle(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// drain appends every batch already waiting on events.
func drain(batch []FileEvent, events <-chan []FileEvent) []FileEvent {
	for {
		select {
		case more, ok := <-events:
			if !ok {
				return batch
			}
			batch = append(batch, more...)
		default:
			return batch
		}
	}
}

func (t *Trigger) handle(ctx context.Context, batch []FileEvent) error {
	for _, ev := range batch {
		if ev.Operation == OpConfigChange {
			t.logger.Warn("config_changed", slog.String("path", ev.Path),
				slog.String("hint", "restart to apply the new configuration"))
		}
	}

	summary, err := t.run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return err
	case perrors.HasCode(err, perrors.ErrCodeIndexBusy):
		// A pass is already running; it sees these changes when it scans.
		t.logger.Debug("watch_index_busy", slog.Int("events", len(batch)))
		return nil
	default:
		t.logger.Error("watch_index_failed",
			append([]any{slog.Int("events", len(batch))}, perrors.LogAttrs(err)...)...)
		return nil
	}

	t.logger.Info("watch_index_complete",
		slog.Int("events", len(batch)),
		slog.Int("added", summary.Added),
		slog.Int("changed", summary.Changed),
		slog.Int("removed", summary.Removed),
		slog.Int("chunks", summary.Chunks),
		slog.Duration("duration", summary.Duration))
	if t.OnSummary != nil {
		t.OnSummary(summary)
	}
	return nil
}
