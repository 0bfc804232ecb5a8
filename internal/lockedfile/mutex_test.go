//go:build unix

package lockedfile

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestMutexExcludes(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")
	unlock, err := MutexAt(path).Lock()
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	if _, err := MutexAt(path).TryLock(); !errors.Is(err, ErrLocked) {
		t.Fatalf("TryLock while held = %v, want ErrLocked", err)
	}

	acquired := make(chan struct{})
	go func() {
		u, err := MutexAt(path).Lock()
		if err != nil {
			t.Error(err)
			close(acquired)
			return
		}
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock did not wait")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("second Lock never acquired the mutex")
	}
}
