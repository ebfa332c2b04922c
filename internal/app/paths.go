package app

import (
	"path/filepath"
	"strings"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

// resolve maps path to an absolute path inside the root. Symlinks are
// followed when the target exists, so a link pointing outside is rejected.
func (c *Context) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", perrors.New(perrors.ErrCodeInvalidPath, "path is empty", nil)
	}
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(c.root, abs)
	}
	abs = filepath.Clean(abs)

	if !within(c.root, abs) {
		return "", outside(path)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		root := c.root
		if r, err := filepath.EvalSymlinks(root); err == nil {
			root = r
		}
		if !within(root, real) {
			return "", outside(path)
		}
	}
	return abs, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func outside(path string) error {
	return perrors.New(perrors.ErrCodeInvalidPath, "path is outside the project root", nil).
		WithDetail("path", path)
}
