package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/liballeg/allegro-android/internal/fsutil"
	"github.com/liballeg/allegro-android/internal/recipe"
	"github.com/liballeg/allegro-android/internal/runner"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// applyPatch replaces every p.Old in p.File under dir with p.New and writes
// the resulting diff to tr. A file that no longer contains p.Old but does
// contain p.New was patched by an earlier run; with an empty p.New that is
// any file without p.Old.
func applyPatch(dir string, p recipe.Patch, tr *runner.Transcript) error {
	path := filepath.Join(dir, filepath.FromSlash(p.File))
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("patch %s: %w", p.File, err)
	}
	orig := string(data)
	if !strings.Contains(orig, p.Old) {
		if strings.Contains(orig, p.New) {
			return nil
		}
		return fmt.Errorf("patch %s: %q not found", p.File, p.Old)
	}
	patched := strings.ReplaceAll(orig, p.Old, p.New)

	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(orig, dmp.DiffMain(orig, patched, false))
	tr.Printf("patch %s\n%s", path, dmp.PatchToText(patches))

	fi, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(patched), fi.Mode().Perm())
}

// copyHeaders copies the listed headers of a header-only dependency from
// dir to include.
func copyHeaders(dir, include string, headers []string) error {
	if len(headers) == 0 {
		return fmt.Errorf("no headers to install from %s", dir)
	}
	for _, h := range headers {
		src := filepath.Join(dir, filepath.FromSlash(h))
		if err := fsutil.CopyFile(filepath.Join(include, filepath.Base(src)), src); err != nil {
			return fmt.Errorf("install header %s: %w", h, err)
		}
	}
	return nil
}
