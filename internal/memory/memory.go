// Package memory keeps the project memory file, a markdown notebook that AI
// clients read and append decisions to, together with its saved versions.
//
// Every write replaces the file atomically under an advisory lock, so a crash
// or a concurrent writer never leaves a half-written memory file behind.
package memory

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
	"github.com/Nik0lay1/project-mind-mcp/internal/fingerprint"
)

const (
	// FileName is the memory file, relative to the data directory.
	FileName = "memory.md"
	// HistoryDirName holds saved versions, relative to the data directory.
	HistoryDirName = "memory_history"

	// DefaultReadLines is how many lines a read returns unless asked otherwise.
	DefaultReadLines = 100
	// DefaultSection labels updates that name no section.
	DefaultSection = "Recent Decisions"

	defaultLockTimeout = 5 * time.Second
)

// Options configures a Manager.
type Options struct {
	// Path is the memory file. Required.
	Path string
	// HistoryDir holds versions. Defaults to memory_history next to Path.
	HistoryDir string
	// Language fills the template's tech stack line.
	Language string

	LockTimeout time.Duration
	FileSystem  fingerprint.FileSystem
	Logger      *slog.Logger
	Now         func() time.Time
}

// Manager reads and rewrites one memory file. It is safe for concurrent use.
type Manager struct {
	path        string
	historyDir  string
	language    string
	lockTimeout time.Duration
	fs          fingerprint.FileSystem
	logger      *slog.Logger
	now         func() time.Time

	mu sync.Mutex
}

// New returns a Manager for opts.Path. Nothing is created on disk.
func New(opts Options) (*Manager, error) {
	if opts.Path == "" {
		return nil, perrors.ConfigError("memory file path is required", nil)
	}
	m := &Manager{
		path:        opts.Path,
		historyDir:  opts.HistoryDir,
		language:    opts.Language,
		lockTimeout: opts.LockTimeout,
		fs:          opts.FileSystem,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if m.historyDir == "" {
		m.historyDir = filepath.Join(filepath.Dir(m.path), HistoryDirName)
	}
	if m.lockTimeout <= 0 {
		m.lockTimeout = defaultLockTimeout
	}
	if m.fs == nil {
		m.fs = fingerprint.OSFileSystem{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Path returns the memory file path.
func (m *Manager) Path() string { return m.path }

// HistoryDir returns the directory holding saved versions.
func (m *Manager) HistoryDir() string { return m.historyDir }

// Template returns the initial memory content. note becomes the first entry
// under Recent Decisions.
func (m *Manager) Template(note string) string {
	return fmt.Sprintf(`# Project Memory

## Status
- [ ] Initial Setup

## Tech Stack
- Language: %s
- Framework:

## Recent Decisions
- %s
`, m.language, note)
}

// Init writes the template when no memory file exists yet. It reports
// whether the file was created.
func (m *Manager) Init(ctx context.Context) (bool, error) {
	created := false
	err := m.withLock(ctx, func() error {
		if _, err := m.fs.ReadFile(m.path); err == nil {
			return nil
		} else if !errors.Is(err, iofs.ErrNotExist) {
			return readError(m.path, err)
		}
		if err := m.write(m.path, m.Template("Project initialized.")); err != nil {
			return err
		}
		created = true
		return nil
	})
	if created {
		m.logger.Info("memory_initialized", slog.String("path", m.path))
	}
	return created, err
}

// Excerpt is the result of a read.
type Excerpt struct {
	Text string
	// TotalLines counts every line in the file.
	TotalLines int
	// Omitted is how many trailing lines were cut off.
	Omitted int
}

// Read returns the first maxLines lines of the memory. maxLines of zero
// returns everything; negative values are rejected.
func (m *Manager) Read(maxLines int) (Excerpt, error) {
	if maxLines < 0 {
		return Excerpt{}, perrors.ValidationError(
			fmt.Sprintf("max_lines must be positive, got %d", maxLines), nil)
	}
	content, err := m.load()
	if err != nil {
		return Excerpt{}, err
	}

	lines := strings.Split(content, "\n")
	ex := Excerpt{Text: content, TotalLines: len(lines)}
	if maxLines == 0 || len(lines) <= maxLines {
		return ex, nil
	}
	ex.Text = strings.Join(lines[:maxLines], "\n")
	ex.Omitted = len(lines) - maxLines
	return ex, nil
}

// Update appends content under an "### Update (section)" heading at the end
// of the memory. An empty section selects DefaultSection.
func (m *Manager) Update(ctx context.Context, section, content string) error {
	if strings.TrimSpace(content) == "" {
		return perrors.ValidationError("memory content cannot be empty", nil)
	}
	section = strings.TrimSpace(section)
	if section == "" {
		section = DefaultSection
	}

	err := m.withLock(ctx, func() error {
		current, err := m.load()
		if err != nil {
			return err
		}
		return m.write(m.path, current+fmt.Sprintf("\n\n### Update (%s)\n%s", section, content))
	})
	if err != nil {
		return err
	}
	m.logger.Info("memory_updated", slog.String("section", section))
	return nil
}

// Clear empties the memory. With keepTemplate the template is written back.
func (m *Manager) Clear(ctx context.Context, keepTemplate bool) error {
	content := ""
	if keepTemplate {
		content = m.Template("Memory cleared.")
	}
	err := m.withLock(ctx, func() error {
		if _, err := m.load(); err != nil {
			return err
		}
		return m.write(m.path, content)
	})
	if err != nil {
		return err
	}
	m.logger.Info("memory_cleared", slog.Bool("keep_template", keepTemplate))
	return nil
}

// DeleteSection removes every section whose heading contains name, case
// insensitively, together with its nested subsections. It returns how many
// sections were removed.
func (m *Manager) DeleteSection(ctx context.Context, name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, perrors.ValidationError("section name cannot be empty", nil)
	}

	removed := 0
	err := m.withLock(ctx, func() error {
		current, err := m.load()
		if err != nil {
			return err
		}
		var next string
		next, removed = deleteSections(current, name)
		if removed == 0 {
			return nil
		}
		return m.write(m.path, next)
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		m.logger.Info("memory_section_deleted",
			slog.String("section", name),
			slog.Int("removed", removed))
	}
	return removed, nil
}

// headingLevel returns the number of leading '#' of a markdown heading, or
// zero for any other line.
func headingLevel(line string) int {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level == len(line) || line[level] != ' ' {
		return 0
	}
	return level
}

func deleteSections(content, name string) (string, int) {
	needle := strings.ToLower(name)
	lines := strings.Split(content, "\n")
	kept := make([]string, 0, len(lines))

	removed := 0
	skipLevel := 0
	for _, line := range lines {
		level := headingLevel(line)
		if skipLevel > 0 {
			if level == 0 || level > skipLevel {
				continue
			}
			skipLevel = 0
		}
		// The document title is never a section.
		if level >= 2 && strings.Contains(strings.ToLower(line[level:]), needle) {
			skipLevel = level
			removed++
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n"), removed
}

func (m *Manager) load() (string, error) {
	data, err := m.fs.ReadFile(m.path)
	if errors.Is(err, iofs.ErrNotExist) {
		return "", perrors.New(perrors.ErrCodeFileNotFound, "memory file not found", err).
			WithDetail("path", m.path).
			WithSuggestion("Restart the server or run 'projectmind init' to create it.")
	}
	if err != nil {
		return "", readError(m.path, err)
	}
	return string(data), nil
}

// withLock runs fn holding both the in-process mutex and the file lock.
func (m *Manager) withLock(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fs.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return writeError("create directory", err)
	}
	lock := fingerprint.NewFileLock(m.lockPath())
	if err := lock.LockContext(ctx, m.lockTimeout); err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()
	return fn()
}

func (m *Manager) lockPath() string {
	return filepath.Join(filepath.Dir(m.path), "."+filepath.Base(m.path)+".lock")
}

func (m *Manager) write(path, content string) error {
	err := fingerprint.WriteFileAtomic(m.fs, path, []byte(content))
	if err == nil {
		return nil
	}
	var we *fingerprint.WriteError
	if errors.As(err, &we) {
		return writeError(we.Op, we.Err)
	}
	return writeError("write", err)
}

func readError(path string, err error) error {
	return perrors.New(perrors.ErrCodeFileUnreadable, "read memory file", err).
		WithDetail("path", path)
}

func writeError(op string, err error) error {
	msg := "write memory: " + op
	switch {
	case errors.Is(err, syscall.ENOSPC):
		return perrors.New(perrors.ErrCodeDiskFull, msg, err)
	case errors.Is(err, iofs.ErrPermission):
		return perrors.New(perrors.ErrCodeFilePermission, msg, err)
	default:
		return perrors.New(perrors.ErrCodeCommitFailed, msg, err)
	}
}
