//go:build unix

package pipeline

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/liballeg/allegro-android/internal/lockedfile"
)

func TestLockWaitsForOtherRun(t *testing.T) {
	out := quiet(t)
	dest := t.TempDir()
	held, err := lockedfile.MutexAt(filepath.Join(dest, LockFile)).Lock()
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error)
	go func() {
		unlock, err := lock(dest)
		if err == nil {
			unlock()
		}
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("lock returned %v while another run held it", err)
	case <-time.After(50 * time.Millisecond):
	}
	held()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("lock never acquired")
	}
	if !strings.Contains(out.String(), "waiting for another run") {
		t.Fatalf("output = %q", out.String())
	}
}
