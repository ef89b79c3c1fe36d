// Package obslog provides the runner's structured debug/verbose output.
//
// It is deliberately not a general logging facade: it exists to narrate box
// lifecycle and supervisor invocations during --verbose runs, in the same
// disabled-when-nil, write-to-stderr style the pack's CLI debug loggers use.
// A proper leveled logger was considered and rejected; see the project's
// grounding ledger for why this stays hand-rolled.
package obslog

import (
	"fmt"
	"io"
	"strings"
)

// Logger narrates runner activity. The zero value and a Logger built with a
// nil output are both fully functional no-ops, so call sites never need a
// nil check of their own.
type Logger struct {
	output io.Writer
}

// New creates a Logger writing to output. Pass nil to disable all output.
func New(output io.Writer) *Logger {
	return &Logger{output: output}
}

// Enabled reports whether this logger actually writes anywhere.
func (l *Logger) Enabled() bool {
	return l != nil && l.output != nil
}

// Section starts a labeled block of related log lines.
func (l *Logger) Section(name string) {
	if !l.Enabled() {
		return
	}

	fmt.Fprintf(l.output, "\n=== %s ===\n", name)
}

// Logf writes one formatted line.
func (l *Logger) Logf(format string, args ...any) {
	if !l.Enabled() {
		return
	}

	fmt.Fprintf(l.output, format+"\n", args...)
}

// Bulletf writes one indented bullet line.
func (l *Logger) Bulletf(format string, args ...any) {
	if !l.Enabled() {
		return
	}

	fmt.Fprintf(l.output, "  • "+format+"\n", args...)
}

// Command narrates a supervisor invocation's argument vector, grouped onto
// one line for readability (unlike the raw slice exec.Command receives).
func (l *Logger) Command(label string, argv []string) {
	if !l.Enabled() {
		return
	}

	l.Bulletf("%s: %s", label, strings.Join(argv, " "))
}

// BoxEvent narrates a box lifecycle transition (init/run/cleanup) with its
// outcome.
func (l *Logger) BoxEvent(boxID uint32, action string, err error) {
	if !l.Enabled() {
		return
	}

	if err != nil {
		l.Bulletf("box %d: %s failed: %v", boxID, action, err)

		return
	}

	l.Bulletf("box %d: %s ok", boxID, action)
}

// Result narrates a classified execution outcome.
func (l *Logger) Result(label, summary string) {
	if !l.Enabled() {
		return
	}

	l.Bulletf("%s: %s", label, summary)
}
