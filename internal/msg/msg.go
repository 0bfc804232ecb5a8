// Package msg prints user facing progress messages.
package msg

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	mu     sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects normal and error output. Tests use it to silence the
// console.
func SetOutput(out, errOut io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	stdout, stderr = out, errOut
}

// Stdout returns the writer used for normal output.
func Stdout() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return stdout
}

func printLabel(w *io.Writer, label, format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprint(*w, label)
	fmt.Fprint(*w, ": ")
	fmt.Fprintf(*w, format, a...)
	fmt.Fprint(*w, "\n")
}

func Error(format string, a ...any) {
	printLabel(&stderr, color.HiRedString("error"), format, a...)
}

func Warn(format string, a ...any) {
	printLabel(&stdout, color.YellowString("warn"), format, a...)
}

func Fatal(format string, a ...any) {
	printLabel(&stderr, color.RedString("fatal"), format, a...)
	os.Exit(1)
}

func Info(format string, a ...any) {
	printLabel(&stdout, color.HiGreenString("info"), format, a...)
}

// Step announces the start of a pipeline stage or unit of work.
func Step(format string, a ...any) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(stdout, "%s %s\n", color.HiCyanString("==>"), fmt.Sprintf(format, a...))
}

// Command echoes a command line before it runs.
func Command(line string) {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintln(stdout, line)
}

// Failed prints the banner that marks a failed command.
func Failed() {
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprint(stderr, color.RedString(" ______\n/FAILED\\\n´`´`´`´`\n"))
}

// IndentWriter prefixes every line written through it with Indent.
type IndentWriter struct {
	Indent    string
	W         io.Writer
	didIndent bool
}

func (w *IndentWriter) Write(p []byte) (n int, err error) {
	buf := make([]byte, 0, len(p)+len(w.Indent))
	for _, c := range p {
		if !w.didIndent {
			buf = append(buf, w.Indent...)
			w.didIndent = true
		}
		buf = append(buf, c)
		if c == '\n' || c == '\r' {
			w.didIndent = false
		}
	}
	if _, err := w.W.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}
