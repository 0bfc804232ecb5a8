package autotools

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/liballeg/allegro-android/internal/env"
	"github.com/liballeg/allegro-android/internal/runner"
	"github.com/liballeg/allegro-android/pkgs/buildsys"
)

// AutoTools wraps common Autotools build steps with chainable configuration.
// Builds run inside the source tree, which is expected to be a private copy.
type AutoTools struct {
	r          runner.Runner
	SourceDir  string
	installDir string
	host       string
	jobs       int
	env        env.Env
}

var _ buildsys.BuildSystem = (*AutoTools)(nil)

// New creates a new AutoTools helper running commands through r with the
// environment e. e is copied.
func New(r runner.Runner, e env.Env) *AutoTools {
	return &AutoTools{
		r:   r,
		env: e.Clone(),
	}
}

func (a *AutoTools) Source(dir string) {
	a.SourceDir = dir
}

func (a *AutoTools) InstallDir(dir string) {
	a.installDir = dir
}

// Host sets the --host triple for cross compiling.
func (a *AutoTools) Host(triple string) *AutoTools {
	a.host = triple
	return a
}

// Jobs sets the make job count. Zero leaves it to make.
func (a *AutoTools) Jobs(n int) *AutoTools {
	a.jobs = n
	return a
}

func (a *AutoTools) Env(key, value string) {
	a.env.Set(key, value)
}

// Use configures the build environment to use the prefix.
func (a *AutoTools) Use(prefix string) {
	buildsys.UsePrefix(a.env, prefix)
}

// Configure runs ./configure for a static cross build: host triple,
// install prefix, no shared libraries and position independent code.
func (a *AutoTools) Configure(ctx context.Context, args ...string) error {
	configArgs := []string{}
	if a.host != "" {
		configArgs = append(configArgs, "--host="+a.host)
	}
	if a.installDir != "" {
		configArgs = append(configArgs, "--prefix="+a.installDir)
	}
	configArgs = append(configArgs, "--disable-shared", "--enable-static", "--with-pic")
	configArgs = append(configArgs, args...)

	return a.run(ctx, "./configure", configArgs)
}

// Build runs make (or provided args) in the source directory.
func (a *AutoTools) Build(ctx context.Context, args ...string) error {
	if len(args) > 0 {
		return a.run(ctx, args[0], args[1:])
	}
	cmdArgs := []string{}
	if a.jobs > 0 {
		cmdArgs = append(cmdArgs, fmt.Sprintf("-j%d", a.jobs))
	}
	return a.run(ctx, "make", cmdArgs)
}

// Install runs make install (or provided args) in the source directory.
func (a *AutoTools) Install(ctx context.Context, args ...string) error {
	cmdArgs := []string{"make", "install"}
	if len(args) > 0 {
		cmdArgs = args
	}
	return a.run(ctx, cmdArgs[0], cmdArgs[1:])
}

// OutputDir returns the install dir if set, otherwise the source dir.
func (a *AutoTools) OutputDir() string {
	if a.installDir != "" {
		return a.installDir
	}
	return a.SourceDir
}

// Environ returns the environment commands run with.
func (a *AutoTools) Environ() env.Env {
	return a.env
}

func (a *AutoTools) run(ctx context.Context, bin string, args []string) error {
	dir := a.SourceDir
	if dir == "" {
		dir = "."
	}
	return a.r.Run(ctx, runner.Cmd{
		Name: bin,
		Args: args,
		Dir:  filepath.Clean(dir),
		Env:  a.env,
	})
}
