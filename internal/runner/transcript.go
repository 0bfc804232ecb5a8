package runner

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// TranscriptFile is the name of the command log kept in the destination
// directory.
const TranscriptFile = "install_android.log"

// Transcript is an append-only log of every command and its output. It is
// safe for concurrent use; every call writes one complete record.
type Transcript struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// NewTranscript returns a transcript writing to w.
func NewTranscript(w io.Writer) *Transcript {
	return &Transcript{w: w}
}

// OpenTranscript opens path for appending, creating it if needed.
func OpenTranscript(path string) (*Transcript, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Transcript{w: f, c: f}, nil
}

// Header starts a new run section.
func (t *Transcript) Header(runID string, now time.Time) {
	t.Printf("#### run %s started %s\n", runID, now.Format(time.RFC3339))
}

// Record writes one finished command as a single record: the directory it
// ran in, the command line, the failure marker and the captured output.
// Records of commands running in parallel never interleave.
func (t *Transcript) Record(dir, line string, failed bool, out []byte) {
	if t == nil {
		return
	}
	var b strings.Builder
	if dir != "" {
		b.WriteString("cd " + dir + "\n")
	}
	b.WriteString(line + "\n")
	if failed {
		b.WriteString("FAILED\n")
	}
	b.Write(out)
	b.WriteString("\n")

	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.w, b.String())
}

// Printf writes a formatted record.
func (t *Transcript) Printf(format string, a ...any) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, format, a...)
}

// Write implements io.Writer.
func (t *Transcript) Write(p []byte) (int, error) {
	if t == nil {
		return len(p), nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w.Write(p)
}

// Close closes the underlying file, if any.
func (t *Transcript) Close() error {
	if t == nil || t.c == nil {
		return nil
	}
	return t.c.Close()
}
