// Package printer writes colored operator output for the feedctl CLI.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)

	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

// SetOutput redirects normal and error output. Used by tests.
func SetOutput(stdout, stderr io.Writer) {
	out, errOut = stdout, stderr
}

// Success prints a green line with a checkmark.
func Success(format string, a ...any) {
	green.Fprintf(out, "✓ %s\n", fmt.Sprintf(format, a...))
}

// Step prints a cyan progress line for multi-step commands.
func Step(format string, a ...any) {
	cyan.Fprintf(out, "→ %s\n", fmt.Sprintf(format, a...))
}

// Warning prints a yellow line.
func Warning(format string, a ...any) {
	yellow.Fprintf(out, "! %s\n", fmt.Sprintf(format, a...))
}

// Info prints an uncolored line.
func Info(format string, a ...any) {
	fmt.Fprintf(out, format+"\n", a...)
}

// Fields prints key/value pairs aligned on the key column, sorted by key.
func Fields(fields map[string]any) {
	keys := make([]string, 0, len(fields))
	width := 0
	for k := range fields {
		keys = append(keys, k)
		width = max(width, len(k))
	}
	sort.Strings(keys)
	for _, k := range keys {
		faint.Fprintf(out, "  %s%s  ", k, strings.Repeat(" ", width-len(k)))
		fmt.Fprintf(out, "%v\n", fields[k])
	}
}

// Error prints title in red plus an explanation and optional hints to
// stderr, and returns an error carrying only the title. Commands return it
// with SilenceErrors set so cobra does not print it again.
func Error(title string, err error, hints ...string) error {
	red.Fprintf(errOut, "✗ %s\n", title)
	if err != nil {
		fmt.Fprintf(errOut, "  %v\n", err)
	}
	for _, h := range hints {
		faint.Fprintf(errOut, "  hint: %s\n", h)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", title, err)
	}
	return fmt.Errorf("%s", title)
}
