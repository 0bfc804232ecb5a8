package buildsys

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/liballeg/allegro-android/internal/env"
)

// BuildSystem captures shared capabilities of build helpers (CMake, Autotools, etc).
// It keeps the common lifecycle and dependency/env setup; implementations add their own extras.
type BuildSystem interface {
	// Use makes an installed prefix visible to the build.
	Use(prefix string)

	// Basic paths.
	Source(dir string)
	InstallDir(dir string)

	// Environment helper.
	Env(key, val string)

	// Lifecycle.
	Configure(ctx context.Context, args ...string) error
	Build(ctx context.Context, args ...string) error
	Install(ctx context.Context, args ...string) error

	// Where artifacts land.
	OutputDir() string
}

// UsePrefix points e at the headers, libraries and pkg-config files
// installed under prefix. Directories that do not exist are skipped.
func UsePrefix(e env.Env, prefix string) {
	includeDir := filepath.Join(prefix, "include")
	libDir := filepath.Join(prefix, "lib")
	pkgconfigDir := filepath.Join(libDir, "pkgconfig")

	if exists(pkgconfigDir) {
		prependOnce(e, "PKG_CONFIG_PATH", pkgconfigDir)
	}
	if exists(prefix) {
		prependOnce(e, "CMAKE_PREFIX_PATH", prefix)
	}
	if exists(includeDir) {
		prependOnce(e, "CMAKE_INCLUDE_PATH", includeDir)
		appendFlagOnce(e, "CPPFLAGS", "-I"+includeDir)
	}
	if exists(libDir) {
		prependOnce(e, "CMAKE_LIBRARY_PATH", libDir)
		appendFlagOnce(e, "LDFLAGS", "-L"+libDir)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func prependOnce(e env.Env, key, value string) {
	for _, v := range filepath.SplitList(e.Get(key)) {
		if v == value {
			return
		}
	}
	e.Prepend(key, value)
}

func appendFlagOnce(e env.Env, key, flag string) {
	for _, f := range strings.Fields(e.Get(key)) {
		if f == flag {
			return
		}
	}
	e.AppendFlag(key, flag)
}
