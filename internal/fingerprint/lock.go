package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	perrors "github.com/Nik0lay1/project-mind-mcp/internal/errors"
)

const lockRetryDelay = 50 * time.Millisecond

// FileLock is an exclusive advisory lock on a path, shared across processes.
// gofrs/flock picks flock(2) or LockFileEx depending on the platform.
type FileLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewFileLock creates a lock backed by the file at path.
func NewFileLock(path string) *FileLock {
	return &FileLock{
		path:  path,
		flock: flock.New(path),
	}
}

// LockContext acquires the lock, waiting at most timeout. It returns a
// retryable ERR_207_LOCK_TIMEOUT if the wait runs out, or ctx's error if ctx
// ends first.
func (l *FileLock) LockContext(ctx context.Context, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	acquired, err := l.flock.TryLockContext(waitCtx, lockRetryDelay)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if acquired {
			_ = l.flock.Unlock()
		}
		return ctxErr
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return perrors.New(perrors.ErrCodeLockTimeout,
			fmt.Sprintf("lock %s held by another writer for more than %s", l.path, timeout), nil).
			WithSuggestion("another indexing run is committing; retry shortly")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. Calling it on an unlocked FileLock is a no-op.
func (l *FileLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false

	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}
