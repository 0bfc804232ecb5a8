package build

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// stalePattern matches Allegro libraries left in a prefix by earlier builds.
const stalePattern = "lib/**/liballeg*"

// RemoveStale deletes Allegro libraries from prefix so CMake cannot pick up
// an old build while the new one configures. It returns the removed paths.
func RemoveStale(prefix string) ([]string, error) {
	if _, err := os.Stat(prefix); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(prefix), stalePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	removed := make([]string, 0, len(matches))
	for _, match := range matches {
		path := filepath.Join(prefix, filepath.FromSlash(match))
		if err := os.Remove(path); err != nil {
			return removed, err
		}
		removed = append(removed, path)
	}
	return removed, nil
}
