// Package batch accumulates pending content units and hands them to a sink
// in groups bounded by an estimated byte total and an optional unit count.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// DefaultMaxBytes is the byte ceiling used when none is configured.
const DefaultMaxBytes int64 = 100 * 1024 * 1024

// unitOverhead approximates per-unit bookkeeping beyond the raw strings.
const unitOverhead = 64

// PendingUnit is one chunk of content waiting to be upserted.
type PendingUnit struct {
	ID         string
	Text       string
	Source     string
	ChunkIndex int
	// Cost is the estimated in-memory size in bytes. Zero means estimate it.
	Cost int64
}

// NewUnit builds a unit with its cost estimated.
func NewUnit(id, text, source string, chunkIndex int) PendingUnit {
	u := PendingUnit{ID: id, Text: text, Source: source, ChunkIndex: chunkIndex}
	u.Cost = EstimateCost(u)
	return u
}

// EstimateCost returns the approximate byte footprint of u.
func EstimateCost(u PendingUnit) int64 {
	return int64(len(u.Text)+len(u.ID)+len(u.Source)) + unitOverhead
}

// Sink receives a full batch. The slice must not be retained after return.
type Sink func(ctx context.Context, units []PendingUnit) error

// Options configures a Batcher.
type Options struct {
	// MaxBytes is the estimated byte ceiling. Zero selects DefaultMaxBytes.
	MaxBytes int64
	// MaxUnits caps the units per batch. Zero means unlimited.
	MaxUnits int
	Sink     Sink
	Logger   *slog.Logger
}

// Stats is a snapshot of batcher activity.
type Stats struct {
	TotalUnits    int   `json:"total_units"`
	TotalBatches  int   `json:"total_batches"`
	BufferedUnits int   `json:"buffered_units"`
	BufferedBytes int64 `json:"buffered_bytes"`
	MaxBytes      int64 `json:"max_bytes"`
}

// Batcher buffers units and flushes them to its sink. A Batcher belongs to
// a single indexing run and is not safe for concurrent use.
type Batcher struct {
	maxBytes int64
	maxUnits int
	sink     Sink
	logger   *slog.Logger

	units []PendingUnit
	bytes int64

	totalUnits   int
	totalBatches int
}

// New validates opts and returns a Batcher.
func New(opts Options) (*Batcher, error) {
	if opts.MaxBytes < 0 {
		return nil, perrors.ConfigError(fmt.Sprintf("batch byte ceiling must be positive, got %d", opts.MaxBytes), nil)
	}
	if opts.MaxBytes == 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxUnits < 0 {
		return nil, perrors.ConfigError(fmt.Sprintf("batch unit ceiling must not be negative, got %d", opts.MaxUnits), nil)
	}
	if opts.Sink == nil {
		return nil, perrors.ConfigError("batch sink is required", nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Batcher{
		maxBytes: opts.MaxBytes,
		maxUnits: opts.MaxUnits,
		sink:     opts.Sink,
		logger:   logger,
	}, nil
}

// Add buffers u. If u would push the batch past a ceiling, the current batch
// is flushed first; when that flush fails the error is returned and u is not
// added. A single unit larger than the byte ceiling is still accepted into
// an empty batch.
func (b *Batcher) Add(ctx context.Context, u PendingUnit) error {
	if u.Cost <= 0 {
		u.Cost = EstimateCost(u)
	}

	if len(b.units) > 0 && b.wouldOverflow(u.Cost) {
		if err := b.Flush(ctx); err != nil {
			return err
		}
	}

	b.units = append(b.units, u)
	b.bytes += u.Cost
	b.totalUnits++
	return nil
}

func (b *Batcher) wouldOverflow(cost int64) bool {
	if b.bytes+cost > b.maxBytes {
		return true
	}
	return b.maxUnits > 0 && len(b.units)+1 > b.maxUnits
}

// Flush sends the buffered units to the sink. On success the buffer is
// cleared; on failure it is left exactly as it was and the sink's error is
// returned, so the caller may retry the same batch. Flushing an empty
// batcher does nothing.
func (b *Batcher) Flush(ctx context.Context) error {
	if len(b.units) == 0 {
		return nil
	}

	start := time.Now()
	if err := b.sink(ctx, b.units); err != nil {
		b.logger.Debug("batch_flush_failed",
			slog.Int("units", len(b.units)),
			slog.Int64("bytes", b.bytes),
			slog.String("error", err.Error()))
		return err
	}

	b.totalBatches++
	b.logger.Debug("batch_flush",
		slog.Int("units", len(b.units)),
		slog.Int64("bytes", b.bytes),
		slog.Duration("duration", time.Since(start)))

	b.units = nil
	b.bytes = 0
	return nil
}

// Finalize flushes any remaining partial batch.
func (b *Batcher) Finalize(ctx context.Context) error {
	return b.Flush(ctx)
}

// Len returns the number of buffered units.
func (b *Batcher) Len() int {
	return len(b.units)
}

// Bytes returns the estimated size of the buffered units.
func (b *Batcher) Bytes() int64 {
	return b.bytes
}

// Pending returns a copy of the buffered units.
func (b *Batcher) Pending() []PendingUnit {
	out := make([]PendingUnit, len(b.units))
	copy(out, b.units)
	return out
}

// Stats returns a snapshot of counters.
func (b *Batcher) Stats() Stats {
	return Stats{
		TotalUnits:    b.totalUnits,
		TotalBatches:  b.totalBatches,
		BufferedUnits: len(b.units),
		BufferedBytes: b.bytes,
		MaxBytes:      b.maxBytes,
	}
}
