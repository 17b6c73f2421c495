package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// lock file guarding merge-and-persist across invocations. The scheduler
// already enforces non-overlapping runs; this makes a concurrent manual
// run safe rather than merely unlikely.
const lockFileName = ".lock"

// staleLockAge is how old a lock file has to be before a new invocation
// assumes the holder crashed and takes the lock over.
const staleLockAge = 15 * time.Minute

// Lock acquires the advisory cache lock. It fails fast when another live
// invocation holds it.
func (s *Store) Lock() error {
	path := filepath.Join(s.dir, lockFileName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		fmt.Fprintf(f, "%d\n", os.Getpid())
		return f.Close()
	}
	if !os.IsExist(err) {
		return fmt.Errorf("acquiring cache lock: %w", err)
	}

	info, statErr := os.Stat(path)
	if statErr == nil && time.Since(info.ModTime()) > staleLockAge {
		s.logger.Warn().Str("path", path).Msg("Taking over stale cache lock")
		os.Remove(path)
		return s.Lock()
	}

	return fmt.Errorf("cache is locked by another invocation (%s)", path)
}

// Unlock releases the advisory cache lock.
func (s *Store) Unlock() {
	if err := os.Remove(filepath.Join(s.dir, lockFileName)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn().Err(err).Msg("Failed to remove cache lock")
	}
}
