// Package pipeline runs the toolchain, install, build, package and dist
// stages for one destination directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/liballeg/allegro-android/internal/build"
	"github.com/liballeg/allegro-android/internal/config"
	"github.com/liballeg/allegro-android/internal/env"
	"github.com/liballeg/allegro-android/internal/fetch"
	"github.com/liballeg/allegro-android/internal/lockedfile"
	"github.com/liballeg/allegro-android/internal/msg"
	"github.com/liballeg/allegro-android/internal/pkg"
	"github.com/liballeg/allegro-android/internal/runner"
	"github.com/liballeg/allegro-android/internal/toolchain"
	"github.com/liballeg/allegro-android/internal/version"
	"github.com/qiniu/x/log"
)

// LockFile serializes runs sharing a destination.
const LockFile = ".lock"

// NeedAllegro is printed when the build stage has no Allegro source.
const NeedAllegro = "Need -a option to build!"

// ErrFailed is returned when a run finished but some commands failed.
var ErrFailed = errors.New("some commands failed")

// Options selects the stages and inputs of a run.
type Options struct {
	Path    string // destination, the working directory when empty
	Allegro string // Allegro source: local path or git:<url>
	Config  string // settings file, <Path>/allegro-android.toml when empty
	Arch    string // comma separated ABI list overriding the settings

	NoToolchain bool
	NoInstall   bool
	NoBuild     bool
	NoPackage   bool
	NoDist      bool

	Debug         bool
	VersionSuffix string
	Jobs          int // make jobs, the settings value when zero
	Parallel      int // ABIs built concurrently
	FailFast      bool
	Force         bool
	Zip           bool
	Publish       bool

	// Runner runs the external commands. Nil runs them for real, writing
	// the transcript.
	Runner runner.Runner
	// Env is the base environment of every command. Nil is the process
	// environment.
	Env    env.Env
	Client *http.Client
	// Settings replaces the settings file when set.
	Settings *config.Settings
}

// Resolve loads the settings and applies the flag overrides of o.
func Resolve(o *Options) (*config.Settings, []config.Arch, error) {
	s := o.Settings
	if s == nil {
		var err error
		if s, err = config.Load(o.Config, o.Path); err != nil {
			return nil, nil, err
		}
	}
	if o.Arch != "" {
		names, err := config.ParseArchList(o.Arch)
		if err != nil {
			return nil, nil, err
		}
		s.Architectures = names
	}
	if o.Jobs > 0 {
		s.Jobs = o.Jobs
	}
	if o.FailFast {
		s.OnFailure = runner.Abort.String()
	}
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	archs, err := s.Archs(o.Path)
	if err != nil {
		return nil, nil, err
	}
	return s, archs, nil
}

type run struct {
	opts     *Options
	settings *config.Settings
	archs    []config.Arch
	allegro  string // resolved Allegro source tree
	fetcher  *fetch.Fetcher
	runner   runner.Runner
	tr       *runner.Transcript
	steps    runner.Steps
	tc       *toolchain.Toolchain
	builder  *build.Builder
}

// Run executes the selected stages in order. Skipping a stage never skips
// the stages after it; they use what earlier runs left on disk. Download,
// unpack and setup errors stop the run. Failed commands stop it only under
// the abort policy; otherwise Run finishes and returns ErrFailed.
func Run(ctx context.Context, o Options) error {
	if o.Path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		o.Path = wd
	}
	path, err := filepath.Abs(o.Path)
	if err != nil {
		return err
	}
	o.Path = path
	if err := os.MkdirAll(o.Path, 0o755); err != nil {
		return err
	}

	unlock, err := lock(o.Path)
	if err != nil {
		return err
	}
	defer unlock()

	s, archs, err := Resolve(&o)
	if err != nil {
		return err
	}

	tr, err := runner.OpenTranscript(filepath.Join(o.Path, runner.TranscriptFile))
	if err != nil {
		return fmt.Errorf("failed to open transcript: %w", err)
	}
	defer tr.Close()
	id := uuid.New().String()
	tr.Header(id, time.Now())
	log.Debugf("run %s in %s", id, o.Path)

	if o.Env == nil {
		o.Env = env.Current()
	}
	r := &run{
		opts:     &o,
		settings: s,
		archs:    archs,
		fetcher:  fetch.New(o.Path),
		runner:   o.Runner,
		tr:       tr,
		steps:    runner.Steps{Policy: s.Policy()},
	}
	if r.runner == nil {
		r.runner = &runner.Exec{Transcript: tr}
	}
	if o.Client != nil {
		r.fetcher.Client = o.Client
	}
	return r.do(ctx)
}

// lock takes the destination lock, telling the user when another run holds
// it and waiting for that run to finish.
func lock(dest string) (unlock func(), err error) {
	mu := lockedfile.MutexAt(filepath.Join(dest, LockFile))
	unlock, err = mu.TryLock()
	if !errors.Is(err, lockedfile.ErrLocked) {
		return unlock, err
	}
	msg.Info("waiting for another run in %s", dest)
	return mu.Lock()
}

func (r *run) do(ctx context.Context) error {
	o := r.opts
	if err := r.toolchain(ctx); err != nil {
		return err
	}
	r.builder = &build.Builder{
		Dest:       o.Path,
		Runner:     r.runner,
		Fetcher:    r.fetcher,
		Toolchain:  r.tc,
		Settings:   r.settings,
		Transcript: r.tr,
		Policy:     r.settings.Policy(),
		Debug:      o.Debug,
		Force:      o.Force,
		Parallel:   o.Parallel,
	}

	if !o.NoInstall {
		if err := r.builder.InstallDeps(ctx, r.archs); err != nil {
			return fmt.Errorf("install: %w", err)
		}
	}
	if !o.NoBuild {
		if o.Allegro == "" {
			fmt.Fprintln(msg.Stdout(), NeedAllegro)
			return r.finish()
		}
		if err := r.source(ctx); err != nil {
			return err
		}
		if err := r.builder.BuildAllegro(ctx, r.archs, r.allegro); err != nil {
			return fmt.Errorf("build: %w", err)
		}
	}
	if !o.NoPackage || !o.NoDist {
		if err := r.pkg(ctx); err != nil {
			return err
		}
	}
	return r.finish()
}

func (r *run) toolchain(ctx context.Context) error {
	if r.opts.NoToolchain {
		r.tc = toolchain.Locate(r.fetcher, r.settings, r.opts.Env)
	} else {
		tc, err := toolchain.Acquire(ctx, r.fetcher, r.settings, r.opts.Env)
		if err != nil {
			return fmt.Errorf("toolchain: %w", err)
		}
		r.tc = tc
		if err := r.steps.Check(tc.InstallComponents(ctx, r.runner, r.settings.SDKComponents)); err != nil {
			return err
		}
	}
	log.Debugf("jdk %s, sdk %s, ndk %s", r.tc.JDK, r.tc.SDK, r.tc.NDK)
	return nil
}

// source resolves the Allegro source tree once.
func (r *run) source(ctx context.Context) error {
	if r.allegro != "" || r.opts.Allegro == "" {
		return nil
	}
	dir, err := r.fetcher.Source(ctx, r.opts.Allegro)
	if err != nil {
		return fmt.Errorf("allegro: %w", err)
	}
	r.allegro = dir
	return nil
}

// resolveVersion derives the version from the Allegro sources, or from
// the headers installed into the first prefix when there are none.
func (r *run) resolveVersion(ctx context.Context) (string, error) {
	if err := r.source(ctx); err != nil {
		return "", err
	}
	dirs := []string{}
	if r.allegro != "" {
		dirs = append(dirs, r.allegro)
	}
	for _, a := range r.archs {
		dirs = append(dirs, a.Prefix)
	}
	var firstErr error
	for _, dir := range dirs {
		v, err := version.FromSource(dir, r.opts.VersionSuffix)
		if err == nil {
			return v, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = errors.New("no Allegro headers")
	}
	return "", fmt.Errorf("cannot derive the Allegro version: %w", firstErr)
}

func (r *run) pkg(ctx context.Context) error {
	o := r.opts
	v, err := r.resolveVersion(ctx)
	if err != nil {
		return err
	}
	msg.Info("Allegro %s", v)

	r.settings.BuildTools = r.buildTools()
	p := pkg.New(o.Path, r.allegro, r.tc, r.settings, v)
	p.Debug = o.Debug

	if !o.NoPackage {
		if err := p.Assemble(r.archs); err != nil {
			return fmt.Errorf("package: %w", err)
		}
		if o.Zip {
			zip, err := p.Zip(o.Path)
			if err != nil {
				return err
			}
			msg.Info("wrote %s", zip)
		}
	}
	if !o.NoDist {
		aars, err := p.Dist(ctx, r.runner, o.Publish, filepath.Join(o.Path, pkg.PublishDir))
		if err := r.steps.Check(err); err != nil {
			return fmt.Errorf("dist: %w", err)
		}
		for _, aar := range aars {
			msg.Info("wrote %s", aar)
		}
	}
	return nil
}

// buildTools returns the configured build-tools version when the SDK has
// it, the newest installed one otherwise.
func (r *run) buildTools() string {
	want := r.settings.BuildTools
	if want != "" {
		if _, err := os.Stat(filepath.Join(r.tc.SDK, "build-tools", want)); err == nil {
			return want
		}
	}
	latest, err := toolchain.LatestBuildTools(r.tc.SDK)
	if err != nil || latest == "" {
		return want
	}
	if want != "" {
		msg.Warn("build-tools %s not installed, using %s", want, latest)
	}
	return latest
}

func (r *run) finish() error {
	failures := append(r.steps.Errs(), r.builder.Failures()...)
	if len(failures) == 0 {
		return nil
	}
	for _, err := range failures {
		log.Debugf("failed: %v", err)
	}
	msg.Warn("%d command(s) failed, see %s", len(failures), filepath.Join(r.opts.Path, runner.TranscriptFile))
	return fmt.Errorf("%w: %d failed", ErrFailed, len(failures))
}

// Version derives the Allegro version of o.Allegro without running any
// stage.
func Version(ctx context.Context, o Options) (string, error) {
	if o.Allegro == "" {
		return "", errors.New("no Allegro source given")
	}
	dest := o.Path
	if dest == "" {
		dest = "."
	}
	dir, err := fetch.New(dest).Source(ctx, o.Allegro)
	if err != nil {
		return "", err
	}
	return version.FromSource(dir, o.VersionSuffix)
}
