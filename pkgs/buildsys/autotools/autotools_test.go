package autotools

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/liballeg/allegro-android/internal/env"
	"github.com/liballeg/allegro-android/internal/msg"
	"github.com/liballeg/allegro-android/internal/runner"
	"github.com/liballeg/allegro-android/internal/runner/runnertest"
)

func TestUseSetsEnv(t *testing.T) {
	tempDir := t.TempDir()
	includeDir := filepath.Join(tempDir, "include")
	libDir := filepath.Join(tempDir, "lib")
	for _, dir := range []string{includeDir, libDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}

	base := env.Env{}
	a := New(&runnertest.Recorder{}, base)
	a.Use(tempDir)

	if got := a.Environ()["CPPFLAGS"]; got != "-I"+includeDir {
		t.Fatalf("CPPFLAGS = %q, want %q", got, "-I"+includeDir)
	}
	if got := a.Environ()["LDFLAGS"]; got != "-L"+libDir {
		t.Fatalf("LDFLAGS = %q, want %q", got, "-L"+libDir)
	}
	if len(base) != 0 {
		t.Fatalf("Use modified the caller's environment: %v", base)
	}
}

func TestOutputDirPrefersInstall(t *testing.T) {
	a := New(&runnertest.Recorder{}, nil)
	a.Source("src")
	if got := a.OutputDir(); got != "src" {
		t.Fatalf("default OutputDir = %q, want %q", got, "src")
	}
	a.InstallDir("custom-install")
	if got := a.OutputDir(); got != "custom-install" {
		t.Fatalf("OutputDir after InstallDir = %q, want %q", got, "custom-install")
	}
}

func TestCommands(t *testing.T) {
	rec := &runnertest.Recorder{}
	a := New(rec, env.Env{"PATH": "/usr/bin"})
	a.Source("/build/ogg")
	a.InstallDir("/out")
	a.Host("aarch64-linux-android").Jobs(4)
	a.Env("CUSTOM", "VAL")
	ctx := context.Background()

	if err := a.Configure(ctx, "--without-png"); err != nil {
		t.Fatal(err)
	}
	if err := a.Build(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.Install(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"./configure --host=aarch64-linux-android --prefix=/out --disable-shared --enable-static --with-pic --without-png",
		"make -j4",
		"make install",
	}
	if got := rec.Lines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("commands = %q\nwant %q", got, want)
	}
	for _, c := range rec.Cmds() {
		if c.Dir != "/build/ogg" {
			t.Errorf("%s ran in %q", c, c.Dir)
		}
		if c.Env["CUSTOM"] != "VAL" || c.Env["PATH"] != "/usr/bin" {
			t.Errorf("%s env = %v", c, c.Env)
		}
	}
}

func TestConfigureBuildInstallE2E(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
	if _, err := exec.LookPath("make"); err != nil {
		t.Skip("make not found in PATH")
	}
	msg.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	t.Cleanup(func() { msg.SetOutput(os.Stdout, os.Stderr) })

	src := t.TempDir()
	installDir := filepath.Join(t.TempDir(), "install")
	configure := `#!/bin/sh
prefix=
for arg; do
	case $arg in
	--prefix=*) prefix=${arg#--prefix=} ;;
	esac
done
printf 'all:\n\techo "$$CUSTOM" > built.txt\ninstall:\n\tmkdir -p %s/lib\n\tcp built.txt %s/lib/\n' "$prefix" "$prefix" > Makefile
`
	if err := os.WriteFile(filepath.Join(src, "configure"), []byte(configure), 0o755); err != nil {
		t.Fatal(err)
	}

	a := New(&runner.Exec{}, env.Current())
	a.Source(src)
	a.InstallDir(installDir)
	a.Env("CUSTOM", "VAL")
	ctx := context.Background()
	if err := a.Configure(ctx); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := a.Build(ctx); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := a.Install(ctx); err != nil {
		t.Fatalf("install: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(installDir, "lib", "built.txt"))
	if err != nil {
		t.Fatalf("installed file missing: %v", err)
	}
	if string(data) != "VAL\n" {
		t.Fatalf("built.txt = %q, want the CUSTOM variable", data)
	}
}
