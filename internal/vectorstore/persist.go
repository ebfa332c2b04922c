package vectorstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// snapshotVersion is bumped when the .meta layout changes.
const snapshotVersion = 1

// snapshot is the .meta file. GraphSum ties it to the graph file written
// just before it, so a crash between the two writes is detected on load.
type snapshot struct {
	Version    int
	Model      string
	Dimensions int
	Metric     string
	NextKey    uint64
	Keys       map[string]uint64
	Docs       map[uint64]Document
	GraphLen   int
	GraphSum   uint64
}

// MetaPath returns the metadata path for a graph file path.
func MetaPath(path string) string {
	return path + ".meta"
}

func (s *Store) save() error {
	var graphBuf bytes.Buffer
	if s.graph.Len() > 0 {
		if err := s.graph.Export(&graphBuf); err != nil {
			return perrors.New(perrors.ErrCodeVectorStoreIO, "failed to export vector graph", err)
		}
	}

	snap := snapshot{
		Version:    snapshotVersion,
		Model:      s.embedder.ModelName(),
		Dimensions: s.cfg.Dimensions,
		Metric:     s.cfg.Metric,
		NextKey:    s.nextKey,
		Keys:       s.idMap,
		Docs:       s.docs,
		GraphLen:   s.graph.Len(),
		GraphSum:   xxhash.Sum64(graphBuf.Bytes()),
	}
	var metaBuf bytes.Buffer
	if err := gob.NewEncoder(&metaBuf).Encode(snap); err != nil {
		return perrors.New(perrors.ErrCodeVectorStoreIO, "failed to encode vector metadata", err)
	}

	if err := writeAtomic(s.path, graphBuf.Bytes()); err != nil {
		return perrors.New(perrors.ErrCodeVectorStoreIO, "failed to write vector graph", err).
			WithDetail("path", s.path)
	}
	if err := writeAtomic(MetaPath(s.path), metaBuf.Bytes()); err != nil {
		return perrors.New(perrors.ErrCodeVectorStoreIO, "failed to write vector metadata", err).
			WithDetail("path", MetaPath(s.path))
	}

	s.logger.Debug("vector_store_saved",
		slog.String("path", s.path),
		slog.Int("chunks", len(s.idMap)),
		slog.Int("graph_nodes", snap.GraphLen))
	return nil
}

// load replaces the in-memory state with the files at s.path. A missing
// metadata file yields an error matching fs.ErrNotExist.
func (s *Store) load() error {
	metaData, err := os.ReadFile(MetaPath(s.path))
	if err != nil {
		return err
	}
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(metaData)).Decode(&snap); err != nil {
		return perrors.New(perrors.ErrCodeCorruptIndex, "vector metadata is unreadable", err)
	}

	switch {
	case snap.Version != snapshotVersion:
		return corrupt("unsupported vector metadata version", "version", snap.Version)
	case snap.Model != s.embedder.ModelName():
		return corrupt("vector store was built with another model", "model", snap.Model)
	case snap.Dimensions != s.cfg.Dimensions:
		return corrupt("vector store dimensions changed", "dimensions", snap.Dimensions)
	case snap.Metric != s.cfg.Metric:
		return corrupt("vector store metric changed", "metric", snap.Metric)
	}

	graphData, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return corrupt("vector graph file is missing", "path", s.path)
	}
	if err != nil {
		return perrors.New(perrors.ErrCodeVectorStoreIO, "failed to read vector graph", err)
	}
	if xxhash.Sum64(graphData) != snap.GraphSum {
		return corrupt("vector graph does not match its metadata", "path", s.path)
	}

	graph := s.newGraph()
	if snap.GraphLen > 0 {
		if err := graph.Import(bytes.NewReader(graphData)); err != nil {
			return perrors.New(perrors.ErrCodeCorruptIndex, "failed to import vector graph", err)
		}
	}
	if graph.Len() != snap.GraphLen {
		return corrupt("vector graph node count mismatch", "nodes", graph.Len())
	}

	s.graph = graph
	s.nextKey = snap.NextKey
	s.idMap = snap.Keys
	s.docs = snap.Docs
	if s.idMap == nil {
		s.idMap = make(map[string]uint64)
	}
	if s.docs == nil {
		s.docs = make(map[uint64]Document)
	}
	return nil
}

func corrupt(msg, key string, value any) error {
	return perrors.New(perrors.ErrCodeCorruptIndex, msg, nil).WithDetail(key, fmt.Sprint(value))
}

// writeAtomic replaces path with data through a synced temp file in the
// same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	renamed = true
	return nil
}
