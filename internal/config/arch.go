package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Arch describes one Android ABI.
type Arch struct {
	// Name is the ABI tag, e.g. "arm64-v8a".
	Name string
	// MinAPI is the lowest Android API level targeted for the ABI.
	MinAPI int
	// Host is the autotools --host triple.
	Host string
	// Clang is the prefix of the NDK clang driver (before the API level).
	Clang string
	// Prefix is the install root of the ABI's dependencies, output-<arch>.
	Prefix string
	// BuildRoot holds per-dependency build copies, build-<arch>.
	BuildRoot string
}

type archInfo struct {
	host  string
	clang string
}

var knownArchs = map[string]archInfo{
	"armeabi-v7a": {host: "arm-linux-androideabi", clang: "armv7a-linux-androideabi"},
	"arm64-v8a":   {host: "aarch64-linux-android", clang: "aarch64-linux-android"},
	"x86":         {host: "i686-linux-android", clang: "i686-linux-android"},
	"x86_64":      {host: "x86_64-linux-android", clang: "x86_64-linux-android"},
}

// KnownArchs returns the supported ABI tags in sorted order.
func KnownArchs() []string {
	names := make([]string, 0, len(knownArchs))
	for name := range knownArchs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseArchList splits a comma separated list of ABI tags. Empty elements are
// ignored and duplicates are removed, keeping the first occurrence.
func ParseArchList(list string) ([]string, error) {
	var names []string
	seen := map[string]bool{}
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		if _, ok := knownArchs[name]; !ok {
			return nil, fmt.Errorf("unknown architecture %q (known: %s)", name, strings.Join(KnownArchs(), ", "))
		}
		seen[name] = true
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("empty architecture list %q", list)
	}
	return names, nil
}

// Archs resolves the configured architectures against the destination path.
func (s *Settings) Archs(path string) ([]Arch, error) {
	archs := make([]Arch, 0, len(s.Architectures))
	for _, name := range s.Architectures {
		info, ok := knownArchs[name]
		if !ok {
			return nil, fmt.Errorf("unknown architecture %q (known: %s)", name, strings.Join(KnownArchs(), ", "))
		}
		api := s.MinAPI[name]
		if api <= 0 {
			return nil, fmt.Errorf("no minimum API level for %s", name)
		}
		archs = append(archs, Arch{
			Name:      name,
			MinAPI:    api,
			Host:      info.host,
			Clang:     info.clang,
			Prefix:    filepath.Join(path, "output-"+name),
			BuildRoot: filepath.Join(path, "build-"+name),
		})
	}
	return archs, nil
}

// Compiler returns the file name of the NDK clang driver for api.
func (a Arch) Compiler(api int) string {
	return fmt.Sprintf("%s%d-clang", a.Clang, api)
}

