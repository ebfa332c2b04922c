package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"path/filepath"
	"syscall"
	"time"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// DefaultLockTimeout bounds how long Commit waits for another writer.
const DefaultLockTimeout = 5 * time.Second

// Store loads and atomically commits the fingerprint table at one path.
type Store struct {
	path        string
	fs          FileSystem
	lockTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithFileSystem replaces the OS filesystem.
func WithFileSystem(fs FileSystem) Option {
	return func(s *Store) { s.fs = fs }
}

// WithLockTimeout sets the commit lock wait. Non-positive values keep the default.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithLogger sets the logger used for recovery warnings.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for SavedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a store for the table file at path.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:        path,
		fs:          OSFileSystem{},
		lockTimeout: DefaultLockTimeout,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the table file path.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the path of the advisory lock guarding commits.
func (s *Store) LockPath() string {
	return filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+".lock")
}

type rawTable struct {
	SchemaVersion int                        `json:"schema_version"`
	SavedAt       time.Time                  `json:"saved_at"`
	Files         map[string]json.RawMessage `json:"files"`
}

// Load reads the committed table. A missing file yields an empty table. A
// table that cannot be parsed is logged and replaced by an empty one, which
// makes the next run re-index everything. Individual entries that fail
// validation are dropped and the rest are kept.
func (s *Store) Load(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.fs.ReadFile(s.path)
	if errors.Is(err, iofs.ErrNotExist) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeFileUnreadable, "read fingerprint table", err).
			WithDetail("path", s.path)
	}

	var raw rawTable
	if err := json.Unmarshal(data, &raw); err != nil {
		s.logger.Warn("fingerprint_table_corrupt",
			slog.String("path", s.path),
			slog.String("error", err.Error()))
		return NewTable(), nil
	}
	if raw.SchemaVersion > SchemaVersion {
		s.logger.Warn("fingerprint_table_unsupported_version",
			slog.String("path", s.path),
			slog.Int("version", raw.SchemaVersion))
		return NewTable(), nil
	}

	table := NewTable()
	table.SavedAt = raw.SavedAt
	dropped := 0
	for key, msg := range raw.Files {
		fp, err := decodeEntry(key, msg)
		if err != nil {
			dropped++
			s.logger.Warn("fingerprint_entry_dropped",
				slog.String("file", key),
				slog.String("reason", err.Error()))
			continue
		}
		table.Put(fp)
	}
	if dropped > 0 {
		s.logger.Warn("fingerprint_entries_dropped",
			slog.String("path", s.path),
			slog.Int("dropped", dropped),
			slog.Int("kept", table.Len()))
	}

	return table, nil
}

func decodeEntry(key string, msg json.RawMessage) (FileFingerprint, error) {
	var fp FileFingerprint
	if err := json.Unmarshal(msg, &fp); err != nil {
		return fp, err
	}
	if fp.Path != key {
		return fp, fmt.Errorf("key %q does not match path %q", key, fp.Path)
	}
	return fp, fp.Validate()
}

// Commit replaces the on-disk table with t. The new content is written to a
// temp file in the same directory, synced and renamed over the old file while
// holding an advisory lock, so readers see either the old table or the new
// one. t.SavedAt is set to the commit time.
func (s *Store) Commit(ctx context.Context, t *Table) error {
	if t == nil {
		return perrors.InternalError("commit of nil fingerprint table", nil)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return commitError("create directory", err)
	}

	lock := NewFileLock(s.LockPath())
	if err := lock.LockContext(ctx, s.lockTimeout); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	t.SchemaVersion = SchemaVersion
	t.SavedAt = s.now().UTC()
	if t.Files == nil {
		t.Files = make(map[string]FileFingerprint)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return perrors.InternalError("encode fingerprint table", err)
	}

	if err := s.replace(data); err != nil {
		return err
	}

	s.logger.Debug("fingerprint_table_committed",
		slog.String("path", s.path),
		slog.Int("files", t.Len()))
	return nil
}

func (s *Store) replace(data []byte) error {
	err := WriteFileAtomic(s.fs, s.path, data)
	if err == nil {
		return nil
	}
	var we *WriteError
	if errors.As(err, &we) {
		return commitError(we.Op, we.Err)
	}
	return commitError("write", err)
}

func commitError(op string, err error) error {
	msg := fmt.Sprintf("commit fingerprint table: %s", op)
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return perrors.New(perrors.ErrCodeDiskFull, msg, err).
			WithSuggestion("free disk space and re-run indexing")
	case errors.Is(err, iofs.ErrPermission):
		return perrors.New(perrors.ErrCodeFilePermission, msg, err)
	default:
		return perrors.New(perrors.ErrCodeCommitFailed, msg, err)
	}
}
