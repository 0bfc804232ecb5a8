// Package lockedfile provides a mutex backed by an advisory file lock, so
// that concurrent runs sharing a directory serialize.
package lockedfile

import (
	"fmt"
	"os"
)

// A Mutex is an inter-process mutual exclusion lock on a file.
type Mutex struct {
	Path string
}

// MutexAt returns a Mutex for the file at path. The file is created on the
// first Lock and never removed.
func MutexAt(path string) *Mutex {
	if path == "" {
		panic("lockedfile.MutexAt: path must be non-empty")
	}
	return &Mutex{Path: path}
}

// Lock blocks until the mutex is held and returns the function releasing it.
func (mu *Mutex) Lock() (unlock func(), err error) {
	f, err := os.OpenFile(mu.Path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, err
	}
	if err := lock(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock %s: %w", mu.Path, err)
	}
	return func() {
		unlockFile(f)
		f.Close()
	}, nil
}

// TryLock is like Lock but returns ErrLocked instead of waiting.
func (mu *Mutex) TryLock() (unlock func(), err error) {
	f, err := os.OpenFile(mu.Path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, err
	}
	if err := tryLock(f); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		unlockFile(f)
		f.Close()
	}, nil
}
