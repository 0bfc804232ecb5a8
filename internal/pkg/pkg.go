// Package pkg assembles the Gradle project wrapping the built libraries and
// runs Gradle to produce the AAR.
package pkg

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"text/template"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/liballeg/allegro-android/internal/config"
	"github.com/liballeg/allegro-android/internal/fsutil"
	"github.com/liballeg/allegro-android/internal/msg"
	"github.com/liballeg/allegro-android/internal/runner"
	"github.com/liballeg/allegro-android/internal/toolchain"
	"github.com/qiniu/x/log"
)

//go:embed skeleton
var skeleton embed.FS

const (
	// ProjectDir is the Gradle project directory under the destination.
	ProjectDir = "gradle_project"
	// PublishDir receives the AARs produced by Dist.
	PublishDir = "publish"
	// Module is the Gradle library module holding the native libraries.
	Module = "allegro"
)

// Templates lists the project files rendered with Data. Files missing from
// the project are skipped.
var Templates = []string{
	"build.gradle",
	"settings.gradle",
	"gradle.properties",
	"local.properties",
	"allegro/build.gradle",
	"allegro/src/main/AndroidManifest.xml",
}

// ErrNoLibraries is returned by Assemble when no ABI produced a library.
var ErrNoLibraries = errors.New("no shared libraries to package")

// Data is the template data of the project files.
type Data struct {
	Version      string
	JDK          string
	SDK          string
	NDK          string
	BuildTools   string
	GradlePlugin string
	CompileSDK   int
	MinSDK       int
	Archs        []string
}

// Project is the Gradle project of one destination.
type Project struct {
	// Dir is <dest>/gradle_project.
	Dir string
	// Allegro is the Allegro source tree. It may be empty.
	Allegro   string
	Toolchain *toolchain.Toolchain
	Settings  *config.Settings
	Version   string
	Debug     bool
}

// New returns the project under dest.
func New(dest, allegro string, t *toolchain.Toolchain, s *config.Settings, version string) *Project {
	return &Project{
		Dir:       filepath.Join(dest, ProjectDir),
		Allegro:   allegro,
		Toolchain: t,
		Settings:  s,
		Version:   version,
	}
}

// Data returns the template data for archs.
func (p *Project) Data(archs []config.Arch) Data {
	d := Data{
		Version:      p.Version,
		JDK:          p.Toolchain.JDK,
		SDK:          p.Toolchain.SDK,
		NDK:          p.Toolchain.NDK,
		BuildTools:   p.Settings.BuildTools,
		GradlePlugin: p.Settings.GradlePlugin,
		CompileSDK:   p.Settings.TargetAPI,
	}
	for _, a := range archs {
		d.Archs = append(d.Archs, a.Name)
		if d.MinSDK == 0 || a.MinAPI < d.MinSDK {
			d.MinSDK = a.MinAPI
		}
	}
	return d
}

// Render executes text as a template with [[ ]] delimiters, so Gradle's
// own ${...} and {...} pass through untouched.
func Render(name, text string, data any) ([]byte, error) {
	tmpl, err := template.New(name).Delims("[[", "]]").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Assemble recreates the project and copies the libraries and headers of
// every ABI into it. ABIs without libraries are skipped with a warning.
func (p *Project) Assemble(archs []config.Arch) error {
	msg.Step("assembling %s", p.Dir)
	if err := os.RemoveAll(p.Dir); err != nil {
		return err
	}
	if err := p.copyProject(); err != nil {
		return err
	}
	if err := p.render(p.Data(archs)); err != nil {
		return err
	}

	packaged := 0
	for _, a := range archs {
		n, err := p.copyArch(a)
		if err != nil {
			return fmt.Errorf("%s: %w", a.Name, err)
		}
		if n == 0 {
			msg.Warn("no libraries for %s in %s", a.Name, a.Prefix)
			continue
		}
		packaged++
	}
	if packaged == 0 {
		return ErrNoLibraries
	}
	return nil
}

// copyProject copies the Allegro gradle_project when the source tree has
// one, the embedded skeleton otherwise.
func (p *Project) copyProject() error {
	if p.Allegro != "" {
		tree := filepath.Join(p.Allegro, "android", ProjectDir)
		if fi, err := os.Stat(tree); err == nil && fi.IsDir() {
			log.Debugf("using %s", tree)
			return fsutil.CopyTree(tree, p.Dir)
		}
	}
	sub, err := fs.Sub(skeleton, "skeleton")
	if err != nil {
		return err
	}
	if err := os.CopyFS(p.Dir, sub); err != nil {
		return err
	}
	if p.Allegro == "" {
		return nil
	}
	activity := filepath.Join(p.Allegro, "android", "allegro_activity", "src")
	if _, err := os.Stat(activity); err != nil {
		return nil
	}
	return fsutil.Merge(filepath.Join(p.Dir, Module, "src", "main", "java", "org", "liballeg", "android"), activity)
}

func (p *Project) render(data Data) error {
	for _, name := range Templates {
		path := filepath.Join(p.Dir, filepath.FromSlash(name))
		text, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		out, err := Render(name, string(text), data)
		if err != nil {
			return fmt.Errorf("render %s: %w", name, err)
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// copyArch copies lib/*.so to jniLibs/<arch> and include to
// jniIncludes/<arch>. It returns the number of libraries copied.
func (p *Project) copyArch(a config.Arch) (int, error) {
	main := filepath.Join(p.Dir, Module, "src", "main")
	libs, err := doublestar.Glob(os.DirFS(a.Prefix), "lib/*.so", doublestar.WithFilesOnly())
	if err != nil {
		return 0, err
	}
	for _, lib := range libs {
		dst := filepath.Join(main, "jniLibs", a.Name, filepath.Base(lib))
		if err := fsutil.CopyFile(dst, filepath.Join(a.Prefix, filepath.FromSlash(lib))); err != nil {
			return 0, err
		}
	}
	include := filepath.Join(a.Prefix, "include")
	if fi, err := os.Stat(include); err == nil && fi.IsDir() {
		dst := filepath.Join(main, "jniIncludes", a.Name)
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return 0, err
		}
		if err := fsutil.Merge(dst, include); err != nil {
			return 0, err
		}
	}
	return len(libs), nil
}

// Zip writes the project to <dir>/allegro-<version>.zip and returns the
// archive path.
func (p *Project) Zip(dir string) (string, error) {
	dest := filepath.Join(dir, "allegro-"+p.Version+".zip")
	if err := fsutil.ZipDir(p.Dir, dest, ProjectDir); err != nil {
		os.Remove(dest)
		return "", fmt.Errorf("zip %s: %w", p.Dir, err)
	}
	return dest, nil
}

// Task returns the Gradle assemble task for the build type.
func (p *Project) Task() string {
	if p.Debug {
		return "assembleDebug"
	}
	return "assembleRelease"
}

// gradle returns the project's wrapper, or gradle from PATH.
func (p *Project) gradle() string {
	wrapper := filepath.Join(p.Dir, "gradlew")
	if fi, err := os.Stat(wrapper); err == nil && fi.Mode()&0o111 != 0 {
		return wrapper
	}
	return "gradle"
}

// Dist runs Gradle on the project, optionally publishing, and copies the
// produced AARs to out. It returns the copied paths.
func (p *Project) Dist(ctx context.Context, r runner.Runner, publish bool, out string) ([]string, error) {
	msg.Step("running gradle %s", p.Task())
	args := []string{p.Task()}
	if publish {
		args = append(args, "publish")
	}
	err := r.Run(ctx, runner.Cmd{
		Name: p.gradle(),
		Args: args,
		Dir:  p.Dir,
		Env:  p.Toolchain.HostEnv(),
	})
	if err != nil {
		return nil, err
	}

	outputs := filepath.Join(p.Dir, Module, "build", "outputs", "aar")
	aars, err := doublestar.Glob(os.DirFS(outputs), "*.aar", doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}
	if len(aars) == 0 {
		return nil, fmt.Errorf("gradle produced no AAR in %s", outputs)
	}
	copied := make([]string, 0, len(aars))
	for _, aar := range aars {
		dst := filepath.Join(out, filepath.Base(aar))
		if err := fsutil.CopyFile(dst, filepath.Join(outputs, aar)); err != nil {
			return copied, err
		}
		copied = append(copied, dst)
	}
	return copied, nil
}
