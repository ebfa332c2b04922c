// Package index keeps the vector sink in step with the project tree.
//
// An Indexer scans the tree, diffs it against the fingerprint table from the
// previous run and pushes only new, changed and removed files to the sink.
// The table is committed after every batch the sink acknowledges, so the
// durable table never claims a chunk set the sink does not hold.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Nik0lay1/project-mind-mcp/internal/batch"
	"github.com/Nik0lay1/project-mind-mcp/internal/cache"
	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/fingerprint"
)

// DefaultUpsertBatchSize bounds the units sent in a single Upsert call.
const DefaultUpsertBatchSize = 100

// State is the indexer's position in a run.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateDiffing
	StateSyncing
	StateCommitting
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateDiffing:
		return "diffing"
	case StateSyncing:
		return "syncing"
	case StateCommitting:
		return "committing"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Walker lists indexable files as paths relative to the project root.
type Walker interface {
	Enumerate(ctx context.Context) ([]string, error)
}

// Chunker splits file content into ordered chunks.
type Chunker interface {
	Chunk(text string) []string
}

// Sink is the external vector store.
type Sink interface {
	Upsert(ctx context.Context, units []batch.PendingUnit) error
	Delete(ctx context.Context, ids []string) error
	Clear(ctx context.Context) error
}

// TableStore persists the fingerprint table.
type TableStore interface {
	Load(ctx context.Context) (*fingerprint.Table, error)
	Commit(ctx context.Context, t *fingerprint.Table) error
}

// ContentReader returns the text of the file at an absolute path.
type ContentReader func(path string) (string, error)

// Config holds an Indexer's collaborators and limits.
type Config struct {
	Root    string
	Walker  Walker
	Chunker Chunker
	Sink    Sink
	Store   TableStore

	// Reader defaults to cache.ReadText.
	Reader ContentReader

	// MaxBytes and MaxUnits bound each batch; see batch.Options.
	MaxBytes int64
	MaxUnits int

	// UpsertBatchSize splits a flushed batch into several Upsert calls.
	UpsertBatchSize int

	// Retry governs Upsert and Delete calls. Zero value uses the default.
	Retry perrors.RetryConfig

	Logger *slog.Logger
	Now    func() time.Time
}

// Summary reports what a run did.
type Summary struct {
	Added     int           `json:"added"`
	Changed   int           `json:"changed"`
	Removed   int           `json:"removed"`
	Unchanged int           `json:"unchanged"`
	Skipped   int           `json:"skipped"`
	Chunks    int           `json:"chunks"`
	Batches   int           `json:"batches"`
	Duration  time.Duration `json:"duration"`
	// Aborted means the run stopped early; completed files were committed.
	Aborted bool `json:"aborted"`
}

// Indexer runs incremental and full indexing. Only one run may be active.
type Indexer struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool

	state atomic.Int32
}

// New validates cfg and returns an Indexer.
func New(cfg Config) (*Indexer, error) {
	switch {
	case cfg.Root == "":
		return nil, perrors.ConfigError("index root is required", nil)
	case cfg.Walker == nil:
		return nil, perrors.ConfigError("walker is required", nil)
	case cfg.Chunker == nil:
		return nil, perrors.ConfigError("chunker is required", nil)
	case cfg.Sink == nil:
		return nil, perrors.ConfigError("sink is required", nil)
	case cfg.Store == nil:
		return nil, perrors.ConfigError("fingerprint store is required", nil)
	case cfg.MaxBytes < 0 || cfg.MaxUnits < 0 || cfg.UpsertBatchSize < 0:
		return nil, perrors.ConfigError("batch limits must not be negative", nil)
	}

	if cfg.Reader == nil {
		cfg.Reader = cache.ReadText
	}
	if cfg.UpsertBatchSize == 0 {
		cfg.UpsertBatchSize = DefaultUpsertBatchSize
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.InitialDelay == 0 && cfg.Retry.Multiplier == 0 {
		retryIf := cfg.Retry.RetryIf
		cfg.Retry = perrors.DefaultRetryConfig()
		cfg.Retry.RetryIf = retryIf
	}
	if cfg.Retry.RetryIf == nil {
		cfg.Retry.RetryIf = isTransient
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Indexer{cfg: cfg, logger: logger}, nil
}

// State returns the current run state.
func (ix *Indexer) State() State {
	return State(ix.state.Load())
}

// IsRunning reports whether a run is in progress.
func (ix *Indexer) IsRunning() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.running
}

func (ix *Indexer) setState(s State) {
	ix.state.Store(int32(s))
}

// IndexIncremental syncs only new, changed and removed files.
func (ix *Indexer) IndexIncremental(ctx context.Context) (*Summary, error) {
	return ix.run(ctx, runOptions{})
}

// IndexFull re-syncs every file. With force, the sink is cleared and an
// empty table is committed before anything is re-added.
func (ix *Indexer) IndexFull(ctx context.Context, force bool) (*Summary, error) {
	return ix.run(ctx, runOptions{full: true, force: force})
}

type runOptions struct {
	full  bool
	force bool
}

func (ix *Indexer) acquire() bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.running {
		return false
	}
	ix.running = true
	return true
}

func (ix *Indexer) release() {
	ix.mu.Lock()
	ix.running = false
	ix.mu.Unlock()
}

func (ix *Indexer) run(ctx context.Context, opts runOptions) (*Summary, error) {
	if !ix.acquire() {
		return nil, perrors.New(perrors.ErrCodeIndexBusy, "an indexing run is already in progress", nil)
	}
	defer ix.release()

	start := ix.cfg.Now()
	ix.logger.Info("index_run_started",
		slog.String("root", ix.cfg.Root),
		slog.Bool("full", opts.full),
		slog.Bool("force", opts.force))

	summary := &Summary{}
	err := ix.execute(ctx, opts, summary)
	summary.Duration = ix.cfg.Now().Sub(start)

	if err != nil {
		summary.Aborted = true
		ix.setState(StateAborted)
		attrs := append([]any{slog.Duration("duration", summary.Duration)}, perrors.LogAttrs(err)...)
		ix.logger.Warn("index_run_aborted", attrs...)
		return summary, err
	}

	ix.setState(StateIdle)
	ix.logger.Info("index_run_complete",
		slog.Int("added", summary.Added),
		slog.Int("changed", summary.Changed),
		slog.Int("removed", summary.Removed),
		slog.Int("unchanged", summary.Unchanged),
		slog.Int("skipped", summary.Skipped),
		slog.Int("chunks", summary.Chunks),
		slog.Int("batches", summary.Batches),
		slog.Duration("duration", summary.Duration))
	return summary, nil
}

func (ix *Indexer) execute(ctx context.Context, opts runOptions, summary *Summary) error {
	ix.setState(StateScanning)
	table, err := ix.cfg.Store.Load(ctx)
	if err != nil {
		return err
	}

	if opts.force {
		// The empty table goes to disk before the sink is cleared so the
		// durable table never lists chunks the sink has dropped.
		table = fingerprint.NewTable()
		if err := ix.cfg.Store.Commit(ctx, table); err != nil {
			return err
		}
		if err := ix.cfg.Sink.Clear(ctx); err != nil {
			return perrors.New(perrors.ErrCodeIndexFailed, "clear vector sink", err)
		}
	}

	scanned, err := ix.scan(ctx)
	if err != nil {
		return err
	}
	summary.Skipped += len(scanned.failed)

	ix.setState(StateDiffing)
	d := diff(table, scanned.files, scanned.failed)
	if opts.full {
		d.resynced, d.unchanged = d.unchanged, nil
		sortPaths(d.resynced)
	}
	summary.Unchanged = len(d.unchanged)
	ix.logger.Debug("index_diff",
		slog.Int("new", len(d.added)),
		slog.Int("changed", len(d.changed)),
		slog.Int("removed", len(d.removed)),
		slog.Int("unchanged", len(d.unchanged)),
		slog.Int("resynced", len(d.resynced)))

	ix.setState(StateSyncing)
	s, err := ix.newSyncRun(table, summary)
	if err != nil {
		return err
	}
	syncErr := s.syncAll(ctx, d, scanned.files)

	if syncErr != nil && ctx.Err() == nil {
		return syncErr
	}

	// Cancelled runs still flush and commit what was already read.
	finalCtx := ctx
	if syncErr != nil {
		finalCtx = context.WithoutCancel(ctx)
	}

	ix.setState(StateCommitting)
	if err := s.finish(finalCtx); err != nil {
		return err
	}

	if syncErr != nil {
		return fmt.Errorf("indexing cancelled: %w", ctx.Err())
	}
	return nil
}

func isTransient(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
