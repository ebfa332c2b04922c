package scanner

import (
	"bufio"
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// Options configures a Scanner.
type Options struct {
	// RootDir is the project root directory to scan.
	RootDir string

	// IgnoredDirs replaces DefaultIgnoredDirs when non-nil.
	IgnoredDirs []string

	// IgnorePatterns are substrings; a file whose slash-separated relative
	// path contains any of them is skipped.
	IgnorePatterns []string

	// MaxFileSize is the maximum file size in bytes (0 = 10MB default).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool

	Logger *slog.Logger
}

// Scanner discovers indexable files in a project directory.
type Scanner struct {
	opts        Options
	ignoredDirs []string
	logger      *slog.Logger
}

// New creates a Scanner for opts.RootDir.
func New(opts Options) (*Scanner, error) {
	if opts.RootDir == "" {
		return nil, errors.New("scanner root directory is required")
	}
	abs, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, err
	}
	opts.RootDir = abs
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	dirs := opts.IgnoredDirs
	if dirs == nil {
		dirs = DefaultIgnoredDirs
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scanner{opts: opts, ignoredDirs: dirs, logger: logger}, nil
}

// Root returns the absolute root directory.
func (s *Scanner) Root() string {
	return s.opts.RootDir
}

// Enumerate returns the slash-separated relative paths of every indexable
// file, sorted.
func (s *Scanner) Enumerate(ctx context.Context) ([]string, error) {
	var files []string
	root := s.opts.RootDir

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			return nil // Skip entries we can't access
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if s.IsIgnoredDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 && !s.opts.FollowSymlinks {
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		if !s.ShouldIndex(rel) {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		if info.Size() > s.opts.MaxFileSize {
			skipErr := perrors.New(perrors.ErrCodeFileTooLarge, "file exceeds the size limit", nil).
				WithDetail("file", rel)
			attrs := append([]any{
				slog.Int64("size", info.Size()),
				slog.Int64("max", s.opts.MaxFileSize),
			}, perrors.LogAttrs(skipErr)...)
			s.logger.Info("file_too_large_skipped", attrs...)
			return nil
		}

		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// IsIgnoredDir reports whether a directory with this base name is skipped.
func (s *Scanner) IsIgnoredDir(name string) bool {
	for _, pattern := range s.ignoredDirs {
		if !strings.Contains(pattern, "*") {
			if name == pattern {
				return true
			}
			continue
		}
		if ok, err := filepath.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// ShouldIndex applies the extension, sensitive-file and ignore-pattern
// rules to a slash-separated relative path. Size is not checked.
func (s *Scanner) ShouldIndex(rel string) bool {
	for _, part := range strings.Split(rel, "/")[:strings.Count(rel, "/")] {
		if s.IsIgnoredDir(part) {
			return false
		}
	}
	if !IsIndexableExtension(extension(rel)) {
		return false
	}
	base := rel
	if i := strings.LastIndex(rel, "/"); i >= 0 {
		base = rel[i+1:]
	}
	if isSensitive(base) {
		return false
	}
	for _, pattern := range s.opts.IgnorePatterns {
		if strings.Contains(rel, pattern) {
			return false
		}
	}
	return true
}

func isSensitive(base string) bool {
	for _, pattern := range sensitiveFilePatterns {
		if ok, err := filepath.Match(pattern, base); err == nil && ok {
			return true
		}
	}
	return false
}

// LoadIgnorePatterns reads one substring pattern per line from path.
// Blank lines and lines starting with '#' are skipped. A missing file
// yields no patterns.
func LoadIgnorePatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	seen := make(map[string]struct{})
	var patterns []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		patterns = append(patterns, line)
	}
	return patterns, sc.Err()
}
