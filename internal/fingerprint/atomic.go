package fingerprint

import "path/filepath"

// WriteError reports which step of an atomic replace failed.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// WriteFileAtomic replaces path with data. The bytes go to a temp file in the
// same directory, which is synced and renamed over path, so readers see the
// old content or the new content and never a mix. The temp file is removed
// on failure. Syncing the directory after the rename is best effort.
//
// Callers serialize writers themselves, typically with a FileLock.
func WriteFileAtomic(fsys FileSystem, path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := fsys.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &WriteError{Op: "create temp file", Err: err}
	}
	tmpName := tmp.Name()

	renamed := false
	defer func() {
		if !renamed {
			_ = fsys.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return &WriteError{Op: "write temp file", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return &WriteError{Op: "sync temp file", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Op: "close temp file", Err: err}
	}
	if err := fsys.Rename(tmpName, path); err != nil {
		return &WriteError{Op: "rename temp file", Err: err}
	}
	renamed = true

	_ = fsys.SyncDir(dir)
	return nil
}
