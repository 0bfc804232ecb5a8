// Package version derives the Allegro version string from its headers.
package version

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Header is the Allegro header defining the version, relative to the
// source tree.
const Header = "include/allegro5/base.h"

// Defines are the version components in the order they are joined.
var Defines = []string{
	"ALLEGRO_VERSION",
	"ALLEGRO_SUB_VERSION",
	"ALLEGRO_WIP_VERSION",
	"ALLEGRO_RELEASE_NUMBER",
}

var defineRe = regexp.MustCompile(`^\s*#\s*define\s+(\w+)\s+(\S+)`)

// Parse reads the version components from a header and returns them
// joined with dots, followed by suffix.
func Parse(data []byte, suffix string) (string, error) {
	values := map[string]string{}
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		m := defineRe.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		if _, ok := values[m[1]]; !ok {
			values[m[1]] = m[2]
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}

	parts := make([]string, 0, len(Defines))
	for _, name := range Defines {
		v, ok := values[name]
		if !ok {
			return "", fmt.Errorf("%s is not defined", name)
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, ".") + suffix, nil
}

// FromSource derives the version of the Allegro tree at dir.
func FromSource(dir, suffix string) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(Header))
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	v, err := Parse(data, suffix)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
