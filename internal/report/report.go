// Package report prints progress lines of the form "[tag] message".
package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	colorReset = "\x1b[0m"
	colorDim   = "\x1b[2m"
	colorRed   = "\x1b[31m"
	colorCyan  = "\x1b[36m"
)

// Reporter writes tagged lines. Infof output is shown only when verbose;
// warnings and errors are always shown.
type Reporter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	color   bool
}

// New creates a reporter writing to w. Colors are used only when w is a terminal.
func New(w io.Writer, verbose bool) *Reporter {
	r := &Reporter{w: w, verbose: verbose}
	if f, ok := w.(*os.File); ok {
		r.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return r
}

// Stderr is New(os.Stderr, verbose).
func Stderr(verbose bool) *Reporter { return New(os.Stderr, verbose) }

// Verbose reports whether Infof lines are printed.
func (r *Reporter) Verbose() bool { return r.verbose }

func (r *Reporter) line(color, tag, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.color {
		fmt.Fprintf(r.w, "%s[%s]%s %s\n", color, tag, colorReset, msg)
		return
	}
	fmt.Fprintf(r.w, "[%s] %s\n", tag, msg)
}

// Infof prints a progress line when verbose.
func (r *Reporter) Infof(tag, format string, args ...any) {
	if r.verbose {
		r.line(colorCyan, tag, format, args...)
	}
}

// Warnf prints a warning line.
func (r *Reporter) Warnf(tag, format string, args ...any) {
	r.line(colorDim, tag, "warning: "+format, args...)
}

// Errorf prints an error line.
func (r *Reporter) Errorf(tag, format string, args ...any) {
	r.line(colorRed, tag, "error: "+format, args...)
}
