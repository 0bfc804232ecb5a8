// Package build runs the per-ABI dependency builds and the Allegro build.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/liballeg/allegro-android/internal/config"
	"github.com/liballeg/allegro-android/internal/env"
	"github.com/liballeg/allegro-android/internal/fetch"
	"github.com/liballeg/allegro-android/internal/fsutil"
	"github.com/liballeg/allegro-android/internal/msg"
	"github.com/liballeg/allegro-android/internal/recipe"
	"github.com/liballeg/allegro-android/internal/runner"
	"github.com/liballeg/allegro-android/internal/toolchain"
	"github.com/liballeg/allegro-android/pkgs/buildsys/autotools"
	"github.com/liballeg/allegro-android/pkgs/buildsys/cmake"
	"github.com/qiniu/x/log"
	"golang.org/x/sync/errgroup"
)

// Builder builds the dependencies and Allegro for a list of ABIs.
type Builder struct {
	Dest       string
	Runner     runner.Runner
	Fetcher    *fetch.Fetcher
	Toolchain  *toolchain.Toolchain
	Settings   *config.Settings
	Transcript *runner.Transcript

	Policy   runner.Policy
	Debug    bool
	Force    bool // rebuild dependencies even when their stamp matches
	Parallel int  // ABIs built at once; values below 1 mean 1

	mu       sync.Mutex
	failures []error
}

// source is an unpacked dependency shared by every ABI.
type source struct {
	recipe *recipe.Recipe
	dir    string
	hash   string
}

// Failures returns every failed command of the builds run so far.
func (b *Builder) Failures() []error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]error(nil), b.failures...)
}

func (b *Builder) record(errs []error) {
	b.mu.Lock()
	b.failures = append(b.failures, errs...)
	b.mu.Unlock()
}

// InstallDeps unpacks every recipe and builds it for each ABI, installing
// into the ABI prefix. A download or unpack error stops the run; failed
// build commands are handled according to b.Policy.
func (b *Builder) InstallDeps(ctx context.Context, archs []config.Arch) error {
	msg.Step("installing dependencies")
	sources := make([]source, 0, len(b.Settings.Recipes))
	for i := range b.Settings.Recipes {
		r := &b.Settings.Recipes[i]
		dir, err := b.Fetcher.Unpack(ctx, r.URL, r.Archive, "")
		if err != nil {
			return err
		}
		sources = append(sources, source{recipe: r, dir: dir, hash: sourceHash(dir, r)})
	}

	return b.forEachArch(ctx, archs, func(ctx context.Context, a config.Arch, steps *runner.Steps) error {
		return b.installArch(ctx, a, sources, steps)
	})
}

// forEachArch runs fn for every ABI, at most b.Parallel at a time.
func (b *Builder) forEachArch(ctx context.Context, archs []config.Arch, fn func(context.Context, config.Arch, *runner.Steps) error) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.Parallel, 1))
	for _, a := range archs {
		g.Go(func() error {
			steps := &runner.Steps{Policy: b.Policy}
			err := fn(ctx, a, steps)
			b.record(steps.Errs())
			if err != nil {
				return fmt.Errorf("%s: %w", a.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *Builder) installArch(ctx context.Context, a config.Arch, sources []source, steps *runner.Steps) error {
	for _, dir := range []string{a.Prefix, a.BuildRoot} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	st, err := loadStamps(a.Prefix)
	if err != nil {
		log.Warnf("%s: ignoring unreadable stamps: %v", a.Name, err)
		st = &stamps{}
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		fp := fingerprint(src.recipe, a, b.Toolchain.NDK, b.Debug)
		if !b.Force && st.matches(src.recipe.Name, src.hash, fp) {
			msg.Info("%s for %s is up to date", src.recipe.Name, a.Name)
			continue
		}
		// A copy made from other pristine sources is stale.
		prev, ok := st.get(src.recipe.Name)
		stale := ok && prev.SourceHash != src.hash

		msg.Step("building %s for %s", src.recipe.Name, a.Name)
		before := len(steps.Errs())
		if err := b.buildDep(ctx, a, src, stale, steps); err != nil {
			return err
		}
		if len(steps.Errs()) > before {
			st.remove(src.recipe.Name)
		} else {
			st.set(src.recipe.Name, &stampEntry{
				URL:         src.recipe.URL,
				SourceHash:  src.hash,
				Fingerprint: fp,
				BuildTime:   time.Now(),
			})
		}
		if err := st.save(a.Prefix); err != nil {
			return err
		}
	}
	return nil
}

// depDir returns the build copy of the unpacked sources in srcDir for a.
// It is named after the unpacked folder, so a new version gets a fresh copy.
func depDir(a config.Arch, srcDir string) string {
	return filepath.Join(a.BuildRoot, filepath.Base(srcDir))
}

// buildDep builds one dependency for one ABI, copying the sources first
// when there is no copy or recopy is set. The returned error means the run
// must stop; command failures go through steps.
func (b *Builder) buildDep(ctx context.Context, a config.Arch, src source, recopy bool, steps *runner.Steps) error {
	r := src.recipe
	dir := depDir(a, src.dir)
	if recopy {
		log.Debugf("%s: replacing stale copy %s", a.Name, dir)
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
	}
	if _, err := os.Stat(dir); err != nil {
		if err := fsutil.CopyTree(src.dir, dir); err != nil {
			return fmt.Errorf("failed to copy %s sources: %w", r.Name, err)
		}
	}

	for _, p := range r.Patches {
		if err := steps.Check(applyPatch(dir, p, b.Transcript)); err != nil {
			return err
		}
	}

	if r.Kind == recipe.Headers {
		return steps.Check(copyHeaders(dir, filepath.Join(a.Prefix, "include"), r.Headers))
	}

	args, err := r.ArgsFor(recipe.Cond{Arch: a.Name, API: a.MinAPI, Debug: b.Debug}, a.Prefix, a.Host)
	if err != nil {
		return err
	}

	e := b.Toolchain.Env(a)
	switch r.Kind {
	case recipe.Autotools:
		at := autotools.New(b.Runner, e)
		at.Source(dir)
		at.InstallDir(a.Prefix)
		at.Host(a.Host).Jobs(b.Settings.Jobs)
		at.Use(a.Prefix)
		return runSteps(ctx, steps, args, at.Configure, at.Build, at.Install)
	case recipe.CMake:
		c := b.newCMake(e, a, dir, filepath.Join(dir, "build-android"), "Release")
		return runSteps(ctx, steps, args, c.Configure, c.Build, c.Install)
	}
	return fmt.Errorf("recipe %s: unknown kind %q", r.Name, r.Kind)
}

func (b *Builder) newCMake(e env.Env, a config.Arch, src, buildDir, buildType string) *cmake.CMake {
	c := cmake.New(b.Runner, e)
	c.Source(src)
	c.BuildDir(buildDir).Jobs(b.Settings.Jobs)
	c.InstallDir(a.Prefix)
	c.Toolchain(b.Toolchain.CMakeFile())
	c.Generator("Unix Makefiles")
	c.BuildType(buildType)
	c.Define("ANDROID_ABI", a.Name)
	c.Define("ANDROID_PLATFORM", "android-"+strconv.Itoa(a.MinAPI))
	c.Define("CMAKE_FIND_ROOT_PATH", a.Prefix)
	c.Use(a.Prefix)
	return c
}

// runSteps runs configure with args, then build and install, recording
// failures in steps.
func runSteps(ctx context.Context, steps *runner.Steps, args []string, configure, build, install func(context.Context, ...string) error) error {
	if err := steps.Check(configure(ctx, args...)); err != nil {
		return err
	}
	if err := steps.Check(build(ctx)); err != nil {
		return err
	}
	return steps.Check(install(ctx))
}

// ErrNoSource is returned by BuildAllegro without an Allegro source tree.
var ErrNoSource = errors.New("no Allegro source tree")

// BuildDir returns the Allegro CMake binary directory of a.
func (b *Builder) BuildDir(a config.Arch) string {
	name := "build-android-" + a.Name
	if b.Debug {
		name += "-debug"
	}
	return filepath.Join(b.Dest, name)
}

// BuildAllegro configures, builds and installs Allegro from src for every
// ABI, linking against the dependencies in the ABI prefix.
func (b *Builder) BuildAllegro(ctx context.Context, archs []config.Arch, src string) error {
	if src == "" {
		return ErrNoSource
	}
	msg.Step("building Allegro")
	return b.forEachArch(ctx, archs, func(ctx context.Context, a config.Arch, steps *runner.Steps) error {
		msg.Step("building Allegro for %s", a.Name)
		removed, err := RemoveStale(a.Prefix)
		if err != nil {
			return err
		}
		for _, p := range removed {
			log.Debugf("%s: removed %s", a.Name, p)
		}

		buildDir := b.BuildDir(a)
		if err := os.MkdirAll(buildDir, 0o755); err != nil {
			return err
		}
		buildType := "Release"
		if b.Debug {
			buildType = "Debug"
		}
		c := b.newCMake(b.Toolchain.Env(a), a, src, buildDir, buildType)
		c.Define("ANDROID_TARGET", "android-"+strconv.Itoa(b.Settings.TargetAPI))
		for _, name := range []string{"WANT_DEMO", "WANT_EXAMPLES", "WANT_TESTS", "WANT_DOCS"} {
			c.DefineBool(name, false)
		}
		for key, value := range depVars(b.Settings.Recipes, a.Prefix) {
			c.Define(key, value)
		}
		return runSteps(ctx, steps, nil, c.Configure, c.Build, c.Install)
	})
}

// depVars resolves the CMake variables of every recipe against prefix.
func depVars(recipes []recipe.Recipe, prefix string) map[string]string {
	vars := map[string]string{}
	for _, r := range recipes {
		keys := make([]string, 0, len(r.Vars))
		for k := range r.Vars {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			var paths []string
			for _, rel := range strings.Split(r.Vars[k], ";") {
				paths = append(paths, filepath.Join(prefix, filepath.FromSlash(rel)))
			}
			vars[k] = strings.Join(paths, ";")
		}
	}
	return vars
}
