// Package runnertest provides a recording runner.Runner for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"github.com/liballeg/allegro-android/internal/runner"
)

// Recorder records commands instead of running them.
type Recorder struct {
	mu   sync.Mutex
	cmds []runner.Cmd

	// Fail makes every command whose line contains one of the substrings
	// fail with exit status 1.
	Fail []string
	// Hook, if set, is called for every command before it is recorded as
	// successful. A non-nil error fails the command.
	Hook func(c runner.Cmd) error
}

var _ runner.Runner = (*Recorder)(nil)

func (r *Recorder) Run(ctx context.Context, c runner.Cmd) error {
	r.mu.Lock()
	r.cmds = append(r.cmds, c)
	r.mu.Unlock()

	line := c.String()
	for _, f := range r.Fail {
		if strings.Contains(line, f) {
			return &runner.CommandError{Cmd: line, ExitCode: 1}
		}
	}
	if r.Hook != nil {
		if err := r.Hook(c); err != nil {
			return &runner.CommandError{Cmd: line, ExitCode: 1, Err: err}
		}
	}
	return nil
}

// Cmds returns the recorded commands in order.
func (r *Recorder) Cmds() []runner.Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]runner.Cmd(nil), r.cmds...)
}

// Lines returns the recorded command lines.
func (r *Recorder) Lines() []string {
	var lines []string
	for _, c := range r.Cmds() {
		lines = append(lines, c.String())
	}
	return lines
}

// Count returns how many recorded lines contain s.
func (r *Recorder) Count(s string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.Contains(l, s) {
			n++
		}
	}
	return n
}
