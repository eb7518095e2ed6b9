package cli

import (
	"fmt"
	"io"
)

// IO handles command output and the reporting of errors and warnings.
//
// Warnings are printed to stderr both before the first line of normal output
// and again at the end, so they survive truncation by head or tail. Errors
// reported through Error are printed immediately. Either makes the exit code
// non-zero.
type IO struct {
	in       io.Reader
	out      io.Writer
	errOut   io.Writer
	warnings []string
	errors   int
	started  bool
}

// NewIO creates a new IO instance.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// Warn adds a warning with the action the user should take.
func (o *IO) Warn(issue string, action string) {
	o.warnings = append(o.warnings, fmt.Sprintf("%s: %s", issue, action))
}

// Error reports a non-fatal error, for example one raised by a tree
// notification while the command itself carried on.
func (o *IO) Error(err error) {
	o.errors++
	_, _ = fmt.Fprintln(o.errOut, "error:", err)
}

// Println writes to stdout. On first call, any collected warnings
// are printed to stderr first.
func (o *IO) Println(a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.flushWarningsStart()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Out returns the stdout writer.
func (o *IO) Out() io.Writer {
	o.flushWarningsStart()

	return o.out
}

// In returns the stdin reader.
func (o *IO) In() io.Reader {
	return o.in
}

// Finish prints warnings to stderr and returns the exit code.
func (o *IO) Finish() int {
	o.flushWarningsStart()

	for _, w := range o.warnings {
		_, _ = fmt.Fprintln(o.errOut, "warning:", w)
	}

	if len(o.warnings) > 0 || o.errors > 0 {
		return 1
	}

	return 0
}

func (o *IO) flushWarningsStart() {
	if !o.started && len(o.warnings) > 0 {
		for _, w := range o.warnings {
			_, _ = fmt.Fprintln(o.errOut, "warning:", w)
		}

		o.started = true
	}
}
