// Package filelock implements the Locker port with advisory file locks.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"github.com/ericfisherdev/isitmaintained/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Locker = (*Locker)(nil)

// ErrAlreadyReleased is returned when a lock is released a second time.
var ErrAlreadyReleased = errors.New("lock already released")

// Locker acquires named locks as files in a shared directory. Every process
// using the same directory contends for the same lock files.
type Locker struct {
	dir string
}

// NewLocker creates a Locker storing lock files in dir. The directory is
// created on first acquisition if it does not exist.
func NewLocker(dir string) *Locker {
	return &Locker{dir: dir}
}

// TryAcquire takes the lock named name without blocking.
func (l *Locker) TryAcquire(name string) (driven.ProcessLock, bool, error) {
	if err := os.MkdirAll(l.dir, 0o750); err != nil {
		return nil, false, fmt.Errorf("create lock directory %s: %w", l.dir, err)
	}

	fl := flock.New(l.Path(name))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %q at %s: %w", name, fl.Path(), err)
	}
	if !locked {
		return nil, false, nil
	}

	return &fileLock{name: name, fl: fl}, true, nil
}

// Path returns the lock file used for name. Characters outside
// [A-Za-z0-9._-] are replaced so job names like "stats:update" map to
// portable file names.
func (l *Locker) Path(name string) string {
	return filepath.Join(l.dir, sanitize(name)+".lock")
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}

// fileLock is a held lock. The lock file is left in place on release.
type fileLock struct {
	name     string
	fl       *flock.Flock
	mu       sync.Mutex
	released bool
}

// Release unlocks the file. A second call returns ErrAlreadyReleased.
func (f *fileLock) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.released {
		return fmt.Errorf("release lock %q: %w", f.name, ErrAlreadyReleased)
	}
	f.released = true

	if err := f.fl.Unlock(); err != nil {
		return fmt.Errorf("release lock %q: %w", f.name, err)
	}
	return nil
}
