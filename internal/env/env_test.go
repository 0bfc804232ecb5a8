package env

import (
	"os"
	"strings"
	"testing"
)

func TestFromEnviron(t *testing.T) {
	e := FromEnviron([]string{"A=1", "B=x=y", "broken", "=nokey", "C="})
	if got := e.Get("A"); got != "1" {
		t.Errorf("A = %q, want %q", got, "1")
	}
	if got := e.Get("B"); got != "x=y" {
		t.Errorf("B = %q, want %q", got, "x=y")
	}
	if _, ok := e["C"]; !ok {
		t.Error("C should be present with an empty value")
	}
	if len(e) != 3 {
		t.Errorf("len = %d, want 3 (%v)", len(e), e)
	}
}

func TestPrepend(t *testing.T) {
	sep := string(os.PathListSeparator)
	e := Env{"PATH": "/usr/bin"}
	e.Prepend("PATH", "/ndk/bin", "", "/sdk/tools")
	if got, want := e.Get("PATH"), strings.Join([]string{"/ndk/bin", "/sdk/tools", "/usr/bin"}, sep); got != want {
		t.Fatalf("PATH = %q, want %q", got, want)
	}

	empty := Env{}
	empty.Prepend("PKG_CONFIG_PATH", "/a")
	if got := empty.Get("PKG_CONFIG_PATH"); got != "/a" {
		t.Fatalf("PKG_CONFIG_PATH = %q, want %q", got, "/a")
	}
}

func TestAppendFlag(t *testing.T) {
	e := Env{}
	e.AppendFlag("CFLAGS", "-fPIC")
	e.AppendFlag("CFLAGS", "-O2")
	if got := e.Get("CFLAGS"); got != "-fPIC -O2" {
		t.Fatalf("CFLAGS = %q", got)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := Env{"CC": "clang-a"}
	b := a.Clone()
	b.Set("CC", "clang-b")
	if a.Get("CC") != "clang-a" {
		t.Fatal("modifying a clone changed the original")
	}
}

func TestMergeAndEnviron(t *testing.T) {
	base := Env{"PATH": "/bin", "HOME": "/root"}
	merged := base.Merge(Env{"PATH": "/ndk:/bin", "CC": "clang"})

	got := merged.Environ()
	want := []string{"CC=clang", "HOME=/root", "PATH=/ndk:/bin"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Fatalf("Environ() = %v, want %v", got, want)
	}
	if base.Get("PATH") != "/bin" {
		t.Fatal("Merge modified its receiver")
	}

	diff := merged.Diff(base)
	if strings.Join(diff, ",") != "CC,PATH" {
		t.Fatalf("Diff = %v, want [CC PATH]", diff)
	}
}
