// Package fingerprint records per-file indexing state across runs.
//
// The table maps a project-relative path to the size, modification time,
// content hash and chunk identifiers of the file as last indexed. It is
// persisted as one JSON document that is replaced atomically on commit, so a
// reader always sees either the previous or the new table in full.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SchemaVersion is the on-disk table format version.
const SchemaVersion = 1

// FileFingerprint is the recorded state of one indexed file.
type FileFingerprint struct {
	// Path is relative to the project root, slash separated.
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`

	// ContentHash is the sha256 of the indexed content. It is kept for
	// auditing and is not used for change detection.
	ContentHash string `json:"content_hash,omitempty"`

	// ChunkIDs are the identifiers of this file's chunks in the vector sink,
	// in chunk order.
	ChunkIDs  []string  `json:"chunk_ids"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Validate reports why fp cannot be trusted, or nil.
func (fp FileFingerprint) Validate() error {
	if fp.Path == "" {
		return errors.New("empty path")
	}
	if filepath.IsAbs(fp.Path) || strings.HasPrefix(fp.Path, "/") {
		return fmt.Errorf("absolute path %q", fp.Path)
	}
	clean := path.Clean(fp.Path)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("path %q escapes the project root", fp.Path)
	}
	if fp.Size < 0 {
		return fmt.Errorf("negative size %d", fp.Size)
	}
	if fp.ModTime.IsZero() {
		return errors.New("missing modification time")
	}
	return nil
}

// Changed reports whether a file with the given size and modification time
// differs from what fp recorded. Content is never read.
func (fp FileFingerprint) Changed(size int64, modTime time.Time) bool {
	return fp.Size != size || !fp.ModTime.Equal(modTime)
}

// Verify reports whether content matches the recorded hash. An empty hash
// never matches.
func (fp FileFingerprint) Verify(content string) bool {
	return fp.ContentHash != "" && fp.ContentHash == HashContent(content)
}

// HashContent returns the hex sha256 of content.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NormalizePath converts a relative OS path to the table's key form.
func NormalizePath(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

// Table is the in-memory fingerprint table. It is not safe for concurrent
// mutation; the indexer owns it for the duration of a run.
type Table struct {
	SchemaVersion int                        `json:"schema_version"`
	SavedAt       time.Time                  `json:"saved_at"`
	Files         map[string]FileFingerprint `json:"files"`
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		SchemaVersion: SchemaVersion,
		Files:         make(map[string]FileFingerprint),
	}
}

// Get returns the fingerprint for p.
func (t *Table) Get(p string) (FileFingerprint, bool) {
	fp, ok := t.Files[p]
	return fp, ok
}

// Put records fp, normalizing its path and timestamps.
func (t *Table) Put(fp FileFingerprint) {
	fp.Path = NormalizePath(fp.Path)
	fp.ModTime = fp.ModTime.UTC()
	fp.IndexedAt = fp.IndexedAt.UTC()
	if t.Files == nil {
		t.Files = make(map[string]FileFingerprint)
	}
	t.Files[fp.Path] = fp
}

// Delete drops the fingerprint for p.
func (t *Table) Delete(p string) {
	delete(t.Files, p)
}

// Len returns the number of tracked files.
func (t *Table) Len() int {
	return len(t.Files)
}

// Paths returns the tracked paths in sorted order.
func (t *Table) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// ChunkCount returns the total number of chunk identifiers recorded.
func (t *Table) ChunkCount() int {
	n := 0
	for _, fp := range t.Files {
		n += len(fp.ChunkIDs)
	}
	return n
}

// Stats summarizes the table.
type Stats struct {
	TotalFiles  int       `json:"total_files"`
	TotalChunks int       `json:"total_chunks"`
	LastIndexed time.Time `json:"last_indexed,omitempty"`
}

// Stats returns the file count, chunk count and most recent index time.
func (t *Table) Stats() Stats {
	s := Stats{TotalFiles: len(t.Files), TotalChunks: t.ChunkCount()}
	for _, fp := range t.Files {
		if fp.IndexedAt.After(s.LastIndexed) {
			s.LastIndexed = fp.IndexedAt
		}
	}
	return s
}
