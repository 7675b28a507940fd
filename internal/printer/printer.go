// Package printer writes colored user-facing CLI output.
package printer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
)

// Printer writes to an output and an error stream. Colors follow
// fatih/color's NO_COLOR and TTY detection.
type Printer struct {
	out io.Writer
	err io.Writer
}

// New creates a Printer. Nil writers default to stdout and stderr.
func New(out, errOut io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Printer{out: out, err: errOut}
}

// Success prints a success message in green with a checkmark prefix.
func (p *Printer) Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(p.out, msg)
}

// Info prints an informational message in the default color.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.out, format, a...)
}

// Warning prints a warning in yellow to the error stream.
func (p *Printer) Warning(format string, a ...any) {
	yellow.Fprintf(p.err, "! %s", fmt.Sprintf(format, a...))
}

// Step prints a step message with emphasis.
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.out, "→ %s", fmt.Sprintf(format, a...))
}

// Heading prints a bold line.
func (p *Printer) Heading(format string, a ...any) {
	bold.Fprintf(p.out, format, a...)
}

// Error prints a formatted error with title, explanation and suggestions to
// the error stream and returns a plain error for cobra.
func (p *Printer) Error(title, explanation string, suggestions []string) error {
	red.Fprintf(p.err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(p.err, "%s\n", explanation)
	}

	if len(suggestions) > 0 {
		fmt.Fprintf(p.err, "\n")
		if len(suggestions) == 1 {
			fmt.Fprintf(p.err, "%s\n", suggestions[0])
		} else {
			fmt.Fprintf(p.err, "Either:\n")
			for i, s := range suggestions {
				fmt.Fprintf(p.err, "  %d. %s\n", i+1, s)
			}
		}
	}

	return fmt.Errorf("%s", title)
}
