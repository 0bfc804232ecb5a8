package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/liballeg/allegro-android/internal/env"
	"github.com/liballeg/allegro-android/internal/msg"
)

func quiet(t *testing.T) {
	t.Helper()
	msg.SetOutput(&bytes.Buffer{}, &bytes.Buffer{})
	t.Cleanup(func() { msg.SetOutput(os.Stdout, os.Stderr) })
}

func TestExecRecordsOutput(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
	quiet(t)

	var log bytes.Buffer
	x := &Exec{Transcript: NewTranscript(&log)}
	e := env.Current()
	e.Set("GREETING", "hello")

	err := x.Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "echo $GREETING"}, Env: e})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := log.String()
	if !strings.Contains(got, "sh -c echo $GREETING\n") {
		t.Errorf("transcript missing command line: %q", got)
	}
	if !strings.Contains(got, "hello\n") {
		t.Errorf("transcript missing output: %q", got)
	}
	if strings.Contains(got, "FAILED") {
		t.Errorf("unexpected failure marker: %q", got)
	}
}

func TestExecFailure(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
	quiet(t)

	var log bytes.Buffer
	x := &Exec{Transcript: NewTranscript(&log)}
	err := x.Run(context.Background(), Cmd{Name: "sh", Args: []string{"-c", "echo broken; exit 3"}})

	var cerr *CommandError
	if !errors.As(err, &cerr) {
		t.Fatalf("err = %v, want *CommandError", err)
	}
	if cerr.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", cerr.ExitCode)
	}
	if !strings.Contains(string(cerr.Output), "broken") {
		t.Errorf("Output = %q", cerr.Output)
	}
	if !strings.Contains(log.String(), "FAILED\nbroken\n") {
		t.Errorf("transcript = %q", log.String())
	}
}

func TestExecStdinAndDir(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not found in PATH")
	}
	quiet(t)

	dir := t.TempDir()
	x := &Exec{}
	err := x.Run(context.Background(), Cmd{
		Name:  "sh",
		Args:  []string{"-c", "cat > answer.txt"},
		Dir:   dir,
		Stdin: []byte("y\n"),
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "answer.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "y\n" {
		t.Fatalf("stdin = %q", data)
	}
}

func TestTranscriptRecord(t *testing.T) {
	var log bytes.Buffer
	tr := NewTranscript(&log)
	tr.Record("/src/ogg", "make -j2", true, []byte("error: x"))
	tr.Record("", "make install", false, nil)
	want := "cd /src/ogg\nmake -j2\nFAILED\nerror: x\nmake install\n\n"
	if log.String() != want {
		t.Fatalf("transcript = %q, want %q", log.String(), want)
	}
}

func TestChangedVars(t *testing.T) {
	base := env.Env{"PATH": "/bin", "HOME": "/root"}
	e := env.Env{"PATH": "/ndk:/bin", "HOME": "/root", "CC": "clang"}
	got := changedVars(e, base)
	if strings.Join(got, " ") != "CC=clang PATH=/ndk:/bin" {
		t.Fatalf("changedVars = %q", got)
	}
}

func TestOpenTranscriptAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), TranscriptFile)
	for i := 0; i < 2; i++ {
		tr, err := OpenTranscript(path)
		if err != nil {
			t.Fatal(err)
		}
		tr.Header("run", time.Unix(0, 0).UTC())
		tr.Record("", "make", false, nil)
		if err := tr.Close(); err != nil {
			t.Fatal(err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "#### run run started"); n != 2 {
		t.Fatalf("found %d headers, want 2:\n%s", n, data)
	}
}

func TestSteps(t *testing.T) {
	boom := errors.New("boom")

	s := &Steps{Policy: Continue}
	if err := s.Check(boom); err != nil {
		t.Fatalf("Continue policy returned %v", err)
	}
	if !s.Failed() || len(s.Errs()) != 1 {
		t.Fatal("failure was not recorded")
	}

	s = &Steps{Policy: Abort}
	if err := s.Check(nil); err != nil {
		t.Fatal(err)
	}
	if err := s.Check(boom); !errors.Is(err, boom) {
		t.Fatalf("Abort policy returned %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": Continue, "continue": Continue, "abort": Abort} {
		got, err := ParsePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePolicy("retry"); err == nil {
		t.Error("ParsePolicy(retry) should fail")
	}
}
