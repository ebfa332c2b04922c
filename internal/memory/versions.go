package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// versionIDLayout formats the timestamp part of a version ID.
const versionIDLayout = "20060102_150405"

// restoreBackupNote describes the version saved automatically by Restore.
const restoreBackupNote = "Auto-backup before restore"

// versionIDPattern matches IDs produced by SaveVersion. A numeric suffix
// separates versions saved within the same second.
var versionIDPattern = regexp.MustCompile(`^\d{8}_\d{6}(_\d+)?$`)

// Version describes one saved copy of the memory file.
type Version struct {
	ID          string    `json:"timestamp"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// FileName returns the name of the saved copy inside the history directory.
func (v Version) FileName() string {
	return "memory_" + v.ID + ".md"
}

func (m *Manager) versionPath(id string) string {
	return filepath.Join(m.historyDir, "memory_"+id+".md")
}

func (m *Manager) metaPath(id string) string {
	return filepath.Join(m.historyDir, "memory_"+id+".meta.json")
}

// SaveVersion copies the current memory into the history directory.
func (m *Manager) SaveVersion(ctx context.Context, description string) (Version, error) {
	var v Version
	err := m.withLock(ctx, func() error {
		var err error
		v, err = m.saveVersionLocked(description)
		return err
	})
	if err != nil {
		return Version{}, err
	}
	m.logger.Info("memory_version_saved",
		slog.String("version", v.ID),
		slog.String("description", v.Description))
	return v, nil
}

func (m *Manager) saveVersionLocked(description string) (Version, error) {
	content, err := m.load()
	if err != nil {
		return Version{}, err
	}
	if err := m.fs.MkdirAll(m.historyDir, 0o755); err != nil {
		return Version{}, writeError("create history directory", err)
	}

	now := m.now()
	v := Version{
		ID:          m.nextVersionID(now),
		Description: strings.TrimSpace(description),
		CreatedAt:   now.UTC(),
	}
	meta, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Version{}, perrors.InternalError("encode memory version metadata", err)
	}

	// The copy is written before its metadata so a listed version always
	// has content behind it.
	if err := m.write(m.versionPath(v.ID), content); err != nil {
		return Version{}, err
	}
	if err := m.write(m.metaPath(v.ID), string(meta)); err != nil {
		return Version{}, err
	}
	return v, nil
}

// nextVersionID returns the timestamp ID for now, adding a suffix when a
// version with that ID already exists.
func (m *Manager) nextVersionID(now time.Time) string {
	base := now.Format(versionIDLayout)
	id := base
	for n := 2; ; n++ {
		// A read error, normally ErrNotExist, means the ID is free. Other
		// errors resurface when the copy is written.
		if _, err := m.fs.ReadFile(m.versionPath(id)); err != nil {
			return id
		}
		id = fmt.Sprintf("%s_%d", base, n)
	}
}

// ListVersions returns saved versions, newest first. Versions whose metadata
// cannot be read are logged and left out.
func (m *Manager) ListVersions() ([]Version, error) {
	matches, err := filepath.Glob(filepath.Join(m.historyDir, "memory_*.meta.json"))
	if err != nil {
		return nil, perrors.InternalError("list memory versions", err)
	}

	versions := make([]Version, 0, len(matches))
	for _, path := range matches {
		v, err := m.readMeta(path)
		if err != nil {
			m.logger.Warn("memory_version_unreadable",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		versions = append(versions, v)
	}

	sort.Slice(versions, func(i, j int) bool {
		if !versions[i].CreatedAt.Equal(versions[j].CreatedAt) {
			return versions[i].CreatedAt.After(versions[j].CreatedAt)
		}
		return versions[i].ID > versions[j].ID
	})
	return versions, nil
}

func (m *Manager) readMeta(path string) (Version, error) {
	data, err := m.fs.ReadFile(path)
	if err != nil {
		return Version{}, err
	}
	var v Version
	if err := json.Unmarshal(data, &v); err != nil {
		return Version{}, err
	}
	if !versionIDPattern.MatchString(v.ID) {
		return Version{}, fmt.Errorf("invalid version id %q", v.ID)
	}
	if _, err := os.Stat(m.versionPath(v.ID)); err != nil {
		return Version{}, err
	}
	return v, nil
}

// Restore replaces the memory with the saved version id. The current memory
// is saved as a new version first, when there is one, and that backup is
// returned.
func (m *Manager) Restore(ctx context.Context, id string) (*Version, error) {
	id = strings.TrimSpace(id)
	if !versionIDPattern.MatchString(id) {
		return nil, perrors.ValidationError(
			fmt.Sprintf("invalid version %q, expected YYYYMMDD_HHMMSS", id), nil)
	}

	var backup *Version
	err := m.withLock(ctx, func() error {
		data, err := m.fs.ReadFile(m.versionPath(id))
		if errors.Is(err, iofs.ErrNotExist) {
			return perrors.New(perrors.ErrCodeFileNotFound, "memory version not found: "+id, err).
				WithSuggestion("Call list_memory_versions to see saved versions.")
		}
		if err != nil {
			return readError(m.versionPath(id), err)
		}

		if _, err := m.fs.ReadFile(m.path); err == nil {
			v, err := m.saveVersionLocked(restoreBackupNote)
			if err != nil {
				return err
			}
			backup = &v
		}
		return m.write(m.path, string(data))
	})
	if err != nil {
		return nil, err
	}

	attrs := []any{slog.String("version", id)}
	if backup != nil {
		attrs = append(attrs, slog.String("backup", backup.ID))
	}
	m.logger.Info("memory_restored", attrs...)
	return backup, nil
}
