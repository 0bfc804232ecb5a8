package build

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/liballeg/allegro-android/internal/config"
	"github.com/liballeg/allegro-android/internal/recipe"
	"github.com/qiniu/x/log"
	"golang.org/x/mod/sumdb/dirhash"
)

// Prefix layout:
//
//	output-<arch>/
//	  .stamps.json    # dependency name → stampEntry
//	  include/
//	  lib/
const stampsFile = ".stamps.json"

// stampEntry records a successful dependency build.
type stampEntry struct {
	URL         string    `json:"url"`
	SourceHash  string    `json:"source_hash,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	BuildTime   time.Time `json:"build_time"`
}

// stamps maps dependency names to their last successful build.
type stamps struct {
	Deps map[string]*stampEntry `json:"deps"`
}

func (s *stamps) get(name string) (*stampEntry, bool) {
	entry, ok := s.Deps[name]
	return entry, ok
}

func (s *stamps) set(name string, entry *stampEntry) {
	if s.Deps == nil {
		s.Deps = make(map[string]*stampEntry)
	}
	s.Deps[name] = entry
}

func (s *stamps) remove(name string) {
	delete(s.Deps, name)
}

// matches reports whether name was built from the same sources with the
// same settings. A missing source hash never matches.
func (s *stamps) matches(name, hash, fp string) bool {
	entry, ok := s.get(name)
	return ok && hash != "" && entry.SourceHash == hash && entry.Fingerprint == fp
}

// loadStamps reads the stamps of prefix. A missing file is empty.
func loadStamps(prefix string) (*stamps, error) {
	data, err := os.ReadFile(filepath.Join(prefix, stampsFile))
	if errors.Is(err, fs.ErrNotExist) {
		return &stamps{}, nil
	}
	if err != nil {
		return nil, err
	}
	var st stamps
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *stamps) save(prefix string) error {
	if err := os.MkdirAll(prefix, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(prefix, stampsFile), data, 0o644)
}

// sourceHash hashes the pristine source tree of r. An empty result means
// the tree could not be hashed and the dependency is always rebuilt.
func sourceHash(dir string, r *recipe.Recipe) string {
	h, err := dirhash.HashDir(dir, r.Name, dirhash.Hash1)
	if err != nil {
		log.Debugf("hash %s: %v", dir, err)
		return ""
	}
	return h
}

// fingerprint identifies everything besides the sources that changes a
// dependency build for a. debug is part of it because recipe conditions
// can select arguments on it.
func fingerprint(r *recipe.Recipe, a config.Arch, ndk string, debug bool) string {
	data, _ := json.Marshal(r)
	h := sha256.New()
	h.Write(data)
	for _, s := range []string{a.Name, a.Host, a.Clang, strconv.Itoa(a.MinAPI), ndk, strconv.FormatBool(debug)} {
		h.Write([]byte{0})
		h.Write([]byte(strings.TrimSpace(s)))
	}
	return hex.EncodeToString(h.Sum(nil))
}
