package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrSyncLocked is returned when another process holds the vault's sync lock.
var ErrSyncLocked = errors.New("another sync is already running for this vault")

// Lock is an exclusive advisory lock on a vault's state directory.
type Lock struct {
	file *os.File
}

// AcquireLock takes the sync lock for the vault rooted at root without blocking.
func AcquireLock(root string) (*Lock, error) {
	dir := filepath.Join(root, StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", StateDir, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "sync.lock"), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open sync lock: %w", err)
	}
	if err := lockFileExclusiveNonBlocking(f); err != nil {
		f.Close()
		if isWouldBlockError(err) {
			return nil, ErrSyncLocked
		}
		return nil, fmt.Errorf("failed to acquire sync lock: %w", err)
	}
	return &Lock{file: f}, nil
}

// Release drops the lock. It is safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
