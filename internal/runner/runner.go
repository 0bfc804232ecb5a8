// Package runner executes external commands with explicit environments and
// records them in the run transcript.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/liballeg/allegro-android/internal/env"
	"github.com/liballeg/allegro-android/internal/msg"
	"github.com/qiniu/x/log"
)

// Cmd describes one external command.
type Cmd struct {
	Name  string
	Args  []string
	Dir   string  // working directory, "" for the current one
	Env   env.Env // complete environment; nil inherits the process environment
	Stdin []byte
}

// String returns the command line as echoed to the console.
func (c Cmd) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, c.Name)
	parts = append(parts, c.Args...)
	return strings.Join(parts, " ")
}

// CommandError reports a command that could not be started or exited with a
// non-zero status.
type CommandError struct {
	Cmd      string
	ExitCode int
	Output   []byte
	Err      error
}

func (e *CommandError) Error() string {
	if e.ExitCode > 0 {
		return fmt.Sprintf("%s: exit status %d", e.Cmd, e.ExitCode)
	}
	return fmt.Sprintf("%s: %v", e.Cmd, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Runner runs commands.
type Runner interface {
	Run(ctx context.Context, c Cmd) error
}

// Exec runs commands as subprocesses, echoing them to the console and
// appending them with their combined output to a transcript.
type Exec struct {
	Transcript *Transcript
}

var _ Runner = (*Exec)(nil)

// Run runs c and waits for it to finish. The combined output goes to the
// transcript. A failure prints the FAILED banner and returns a
// *CommandError.
func (x *Exec) Run(ctx context.Context, c Cmd) error {
	line := c.String()
	msg.Command(line)

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if c.Env != nil {
		cmd.Env = c.Env.Environ()
		log.Debugf("%s: env %s", c.Name, strings.Join(changedVars(c.Env, env.Current()), " "))
	}
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	x.Transcript.Record(c.Dir, line, err != nil, out.Bytes())
	if err == nil {
		return nil
	}

	cerr := &CommandError{Cmd: line, ExitCode: -1, Output: out.Bytes(), Err: err}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cerr.ExitCode = exitErr.ExitCode()
	}
	msg.Failed()
	log.Debugf("%s failed: %v", c.Name, err)
	return cerr
}

// changedVars returns the "key=value" pairs of e that differ from base.
func changedVars(e, base env.Env) []string {
	keys := e.Diff(base)
	vars := make([]string, len(keys))
	for i, k := range keys {
		vars[i] = k + "=" + e[k]
	}
	return vars
}
