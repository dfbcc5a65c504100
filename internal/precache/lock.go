package precache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the name of the run lock inside the data directory.
const LockFile = "precache.lock"

// Locker is a non-blocking mutual exclusion lock shared between processes.
type Locker interface {
	TryLock() (bool, error)
	Unlock() error
}

// NewFileLock returns a Locker backed by an flock(2) lock on dir/LockFile.
func NewFileLock(dir string) (Locker, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return flock.New(filepath.Join(dir, LockFile)), nil
}
