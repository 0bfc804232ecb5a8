package internal

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liballeg/allegro-android/internal/pipeline"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts = pipeline.Options{}
	verbose = false
	t.Cleanup(func() { opts = pipeline.Options{} })
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFlags(t *testing.T) {
	tests := []struct {
		args  []string
		check func(pipeline.Options) bool
	}{
		{[]string{"-i", "-b", "-k", "-d", "-T"}, func(o pipeline.Options) bool {
			return o.NoInstall && o.NoBuild && o.NoPackage && o.NoDist && o.NoToolchain
		}},
		{[]string{"-A", "x86,arm64-v8a", "-D", "-s", "-rc1"}, func(o pipeline.Options) bool {
			return o.Arch == "x86,arm64-v8a" && o.Debug && o.VersionSuffix == "-rc1"
		}},
		{[]string{"-j", "3", "--parallel", "2", "--fail-fast", "--force", "--zip", "--publish"}, func(o pipeline.Options) bool {
			return o.Jobs == 3 && o.Parallel == 2 && o.FailFast && o.Force && o.Zip && o.Publish
		}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			opts = pipeline.Options{}
			if err := rootCmd.ParseFlags(tt.args); err != nil {
				t.Fatal(err)
			}
			if !tt.check(opts) {
				t.Fatalf("options = %+v", opts)
			}
		})
	}
}

func TestArchsCommand(t *testing.T) {
	out, err := execute(t, "archs", "-p", t.TempDir(), "-A", "arm64-v8a,x86")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("output = %q", out)
	}
	if !strings.HasPrefix(lines[1], "arm64-v8a") || !strings.Contains(lines[1], "aarch64-linux-android21-clang") {
		t.Errorf("arm64 line = %q", lines[1])
	}
	if !strings.Contains(lines[2], "i686-linux-android") {
		t.Errorf("x86 line = %q", lines[2])
	}
}

func TestArchsCommandRejectsUnknown(t *testing.T) {
	if _, err := execute(t, "archs", "-p", t.TempDir(), "-A", "mips"); err == nil {
		t.Fatal("mips accepted")
	}
}

func TestVersionCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "include", "allegro5", "base.h")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	header := "#define ALLEGRO_VERSION 5\n#define ALLEGRO_SUB_VERSION 2\n" +
		"#define ALLEGRO_WIP_VERSION 10\n#define ALLEGRO_RELEASE_NUMBER 0\n"
	if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "version", "-a", dir, "-s", "-git")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out) != "5.2.10.0-git" {
		t.Fatalf("version = %q", out)
	}
}
