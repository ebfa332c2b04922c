package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Nik0lay1/project-mind-mcp/internal/fingerprint"
)

// statConcurrency bounds parallel stat calls during a scan.
const statConcurrency = 8

type fileStat struct {
	size    int64
	modTime time.Time
}

type scanResult struct {
	files  map[string]fileStat
	failed map[string]struct{}
}

// scan enumerates the tree and stats every path. Paths that vanish between
// listing and stat are dropped; paths that cannot be stat'ed for any other
// reason are reported as failed and keep their previous fingerprint.
func (ix *Indexer) scan(ctx context.Context) (*scanResult, error) {
	paths, err := ix.cfg.Walker.Enumerate(ctx)
	if err != nil {
		return nil, err
	}

	res := &scanResult{
		files:  make(map[string]fileStat, len(paths)),
		failed: make(map[string]struct{}),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statConcurrency)
	for _, p := range paths {
		rel := fingerprint.NormalizePath(p)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, err := os.Stat(ix.absPath(rel))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, fs.ErrNotExist):
				return nil
			case err != nil:
				ix.logger.Warn("file_stat_failed",
					slog.String("file", rel),
					slog.String("error", err.Error()))
				res.failed[rel] = struct{}{}
				return nil
			case info.IsDir():
				return nil
			}
			res.files[rel] = fileStat{size: info.Size(), modTime: info.ModTime().UTC()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return res, nil
}

func (ix *Indexer) absPath(rel string) string {
	return filepath.Join(ix.cfg.Root, filepath.FromSlash(rel))
}

type diffResult struct {
	added     []string
	changed   []string
	removed   []string
	unchanged []string
	// resynced holds unchanged files that a full run re-syncs anyway.
	resynced []string
}

// diff buckets the scanned files against the table. Files whose stat failed
// are neither removed nor re-synced.
func diff(table *fingerprint.Table, files map[string]fileStat, failed map[string]struct{}) diffResult {
	var d diffResult
	for p, st := range files {
		fp, ok := table.Get(p)
		switch {
		case !ok:
			d.added = append(d.added, p)
		case fp.Changed(st.size, st.modTime):
			d.changed = append(d.changed, p)
		default:
			d.unchanged = append(d.unchanged, p)
		}
	}
	for _, p := range table.Paths() {
		if _, ok := files[p]; ok {
			continue
		}
		if _, ok := failed[p]; ok {
			continue
		}
		d.removed = append(d.removed, p)
	}

	sortPaths(d.added)
	sortPaths(d.changed)
	sortPaths(d.unchanged)
	return d
}

func sortPaths(paths []string) {
	sort.Strings(paths)
}
