package main

import (
	"fmt"
	"io"
)

// Reporter handles progress and verbose output.
type Reporter struct {
	w       io.Writer
	verbose bool
}

// NewReporter creates a reporter that writes to w. Quiet suppresses
// everything; verbose adds detail lines.
func NewReporter(w io.Writer, quiet, verbose bool) *Reporter {
	if quiet {
		return &Reporter{w: io.Discard}
	}
	return &Reporter{w: w, verbose: verbose}
}

func (r *Reporter) Progress(format string, args ...any) {
	fmt.Fprintf(r.w, format, args...)
}

func (r *Reporter) Verbose(format string, args ...any) {
	if r.verbose {
		fmt.Fprintf(r.w, format, args...)
	}
}
