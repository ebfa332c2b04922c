package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Nik0lay1/project-mind-mcp/internal/batch"
	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/fingerprint"
)

// ChunkID names chunk i of the file at path.
func ChunkID(path string, i int) string {
	return fmt.Sprintf("%s#%d", path, i)
}

// syncKind says how a synced file is counted in the summary.
type syncKind int

const (
	kindAdded syncKind = iota
	kindChanged
	// kindResynced is a known file re-read by a full run although its size
	// and modification time did not change.
	kindResynced
)

// pendingFile is a file whose chunks are buffered but not all acknowledged.
type pendingFile struct {
	path      string
	stat      fileStat
	hash      string
	ids       []string
	prevIDs   []string
	kind      syncKind
	remaining int
}

// syncRun carries the mutable state of one Syncing phase.
type syncRun struct {
	ix      *Indexer
	table   *fingerprint.Table
	summary *Summary
	batcher *batch.Batcher
	pending map[string]*pendingFile
	dirty   bool
}

func (ix *Indexer) newSyncRun(table *fingerprint.Table, summary *Summary) (*syncRun, error) {
	s := &syncRun{
		ix:      ix,
		table:   table,
		summary: summary,
		pending: make(map[string]*pendingFile),
	}
	b, err := batch.New(batch.Options{
		MaxBytes: ix.cfg.MaxBytes,
		MaxUnits: ix.cfg.MaxUnits,
		Sink:     s.flush,
		Logger:   ix.logger,
	})
	if err != nil {
		return nil, err
	}
	s.batcher = b
	return s, nil
}

func (s *syncRun) syncAll(ctx context.Context, d diffResult, files map[string]fileStat) error {
	if err := s.syncRemoved(ctx, d.removed); err != nil {
		return err
	}
	for _, p := range d.added {
		if err := s.syncFile(ctx, p, files[p], kindAdded); err != nil {
			return err
		}
	}
	for _, p := range d.changed {
		if err := s.syncFile(ctx, p, files[p], kindChanged); err != nil {
			return err
		}
	}
	for _, p := range d.resynced {
		if err := s.syncFile(ctx, p, files[p], kindResynced); err != nil {
			return err
		}
	}
	return nil
}

func (s *syncRun) syncRemoved(ctx context.Context, removed []string) error {
	for _, p := range removed {
		if err := ctx.Err(); err != nil {
			return err
		}
		fp, _ := s.table.Get(p)
		if len(fp.ChunkIDs) > 0 {
			if err := s.deleteChunks(ctx, fp.ChunkIDs); err != nil {
				return err
			}
		}
		s.table.Delete(p)
		s.summary.Removed++
		s.dirty = true
		s.ix.logger.Debug("file_removed",
			slog.String("file", p),
			slog.Int("chunks", len(fp.ChunkIDs)))
	}
	if len(removed) == 0 {
		return nil
	}
	return s.commit(ctx)
}

func (s *syncRun) syncFile(ctx context.Context, p string, st fileStat, kind syncKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	content, err := s.ix.cfg.Reader(s.ix.absPath(p))
	if err != nil {
		attrs := append([]any{slog.String("file", p)}, perrors.LogAttrs(err)...)
		s.ix.logger.Warn("file_unreadable", attrs...)
		s.summary.Skipped++
		return nil
	}

	chunks := s.ix.cfg.Chunker.Chunk(content)
	prev, _ := s.table.Get(p)
	pf := &pendingFile{
		path:      p,
		stat:      st,
		hash:      fingerprint.HashContent(content),
		prevIDs:   prev.ChunkIDs,
		kind:      kind,
		remaining: len(chunks),
	}
	for i := range chunks {
		pf.ids = append(pf.ids, ChunkID(p, i))
	}

	if len(chunks) == 0 {
		return s.complete(ctx, pf)
	}

	s.pending[p] = pf
	for i, text := range chunks {
		if err := s.batcher.Add(ctx, batch.NewUnit(pf.ids[i], text, p, i)); err != nil {
			return err
		}
	}
	return nil
}

// flush is the batcher's sink. It upserts the batch, records every file
// whose chunks are now all acknowledged and commits the table.
func (s *syncRun) flush(ctx context.Context, units []batch.PendingUnit) error {
	size := s.ix.cfg.UpsertBatchSize
	for start := 0; start < len(units); start += size {
		part := units[start:min(start+size, len(units))]
		err := perrors.Retry(ctx, s.ix.cfg.Retry, func() error {
			return s.ix.cfg.Sink.Upsert(ctx, part)
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return perrors.New(perrors.ErrCodeIndexFailed, "upsert chunks", err).
				WithDetail("units", fmt.Sprint(len(part)))
		}
	}
	s.summary.Batches++
	s.summary.Chunks += len(units)

	var done []*pendingFile
	for _, u := range units {
		pf, ok := s.pending[u.Source]
		if !ok {
			continue
		}
		pf.remaining--
		if pf.remaining == 0 {
			done = append(done, pf)
			delete(s.pending, u.Source)
		}
	}
	for _, pf := range done {
		if err := s.complete(ctx, pf); err != nil {
			return err
		}
	}
	if len(done) == 0 {
		return nil
	}
	return s.commit(ctx)
}

// complete records pf in the table after dropping chunk IDs that the new
// content no longer produces.
func (s *syncRun) complete(ctx context.Context, pf *pendingFile) error {
	if stale := staleIDs(pf.prevIDs, pf.ids); len(stale) > 0 {
		if err := s.deleteChunks(ctx, stale); err != nil {
			return err
		}
	}

	s.table.Put(fingerprint.FileFingerprint{
		Path:        pf.path,
		Size:        pf.stat.size,
		ModTime:     pf.stat.modTime,
		ContentHash: pf.hash,
		ChunkIDs:    pf.ids,
		IndexedAt:   s.ix.cfg.Now(),
	})
	switch pf.kind {
	case kindAdded:
		s.summary.Added++
	case kindChanged:
		s.summary.Changed++
	case kindResynced:
		s.summary.Unchanged++
	}
	s.dirty = true
	return nil
}

func (s *syncRun) deleteChunks(ctx context.Context, ids []string) error {
	err := perrors.Retry(ctx, s.ix.cfg.Retry, func() error {
		return s.ix.cfg.Sink.Delete(ctx, ids)
	})
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return perrors.New(perrors.ErrCodeIndexFailed, "delete chunks", err).
			WithDetail("chunks", fmt.Sprint(len(ids)))
	}
	return nil
}

func (s *syncRun) commit(ctx context.Context) error {
	if !s.dirty {
		return nil
	}
	cfg := s.ix.cfg.Retry
	cfg.RetryIf = perrors.IsRetryable
	if err := perrors.Retry(ctx, cfg, func() error {
		return s.ix.cfg.Store.Commit(ctx, s.table)
	}); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// finish flushes the open batch and commits whatever is left.
func (s *syncRun) finish(ctx context.Context) error {
	if err := s.batcher.Finalize(ctx); err != nil {
		return err
	}
	if n := len(s.pending); n > 0 {
		s.ix.logger.Debug("files_left_pending", slog.Int("files", n))
	}
	return s.commit(ctx)
}

func staleIDs(prev, next []string) []string {
	if len(prev) == 0 {
		return nil
	}
	keep := make(map[string]struct{}, len(next))
	for _, id := range next {
		keep[id] = struct{}{}
	}
	var stale []string
	for _, id := range prev {
		if _, ok := keep[id]; !ok {
			stale = append(stale, id)
		}
	}
	return stale
}
