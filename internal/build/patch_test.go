package build

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liballeg/allegro-android/internal/recipe"
	"github.com/liballeg/allegro-android/internal/runner"
)

func TestApplyPatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "configure")
	if err := os.WriteFile(path, []byte("CFLAGS=\"-O3 -mno-ieee-fp\"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	var log bytes.Buffer
	tr := runner.NewTranscript(&log)
	p := recipe.Patch{File: "configure", Old: " -mno-ieee-fp", New: ""}

	if err := applyPatch(dir, p, tr); err != nil {
		t.Fatalf("applyPatch: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "CFLAGS=\"-O3\"\n" {
		t.Fatalf("patched = %q", data)
	}
	if fi, _ := os.Stat(path); fi.Mode().Perm() != 0o755 {
		t.Errorf("mode = %v, want 0755", fi.Mode())
	}
	if !strings.Contains(log.String(), "patch "+path) || !strings.Contains(log.String(), "@@") {
		t.Errorf("transcript = %q, want the diff", log.String())
	}

	// Applying again is a no-op.
	if err := applyPatch(dir, p, tr); err != nil {
		t.Fatalf("second applyPatch: %v", err)
	}
}

func TestApplyPatchMissing(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte("all:\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := applyPatch(dir, recipe.Patch{File: "Makefile", Old: "-lm", New: "-lc"}, nil)
	if err == nil {
		t.Fatal("patch without a match succeeded")
	}
	if err := applyPatch(dir, recipe.Patch{File: "nope", Old: "a"}, nil); err == nil {
		t.Fatal("patch of a missing file succeeded")
	}
}

func TestCopyHeaders(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "minimp3_ex.h"), []byte("ex"), 0o644); err != nil {
		t.Fatal(err)
	}
	include := filepath.Join(t.TempDir(), "include")
	if err := copyHeaders(dir, include, []string{"minimp3_ex.h"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(include, "minimp3_ex.h")); err != nil {
		t.Fatal(err)
	}
	if err := copyHeaders(dir, include, []string{"missing.h"}); err == nil {
		t.Fatal("missing header was not reported")
	}
}
