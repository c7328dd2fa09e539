package ui

import (
	"fmt"
	"io"

	"github.com/rbright/livescribe/internal/session"
	"github.com/rbright/livescribe/internal/transcript"
)

// PrinterTimeLayout formats line timestamps in headless output.
const PrinterTimeLayout = "15:04:05"

// Printer writes each newly finalized line once, for headless sessions.
type Printer struct {
	w io.Writer

	printed   int
	last      transcript.Line
	lastError string
}

// NewPrinter returns a printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print emits lines from v that were not printed yet. A reset (detected when the previously
// printed tail no longer matches) restarts from the first line.
func (p *Printer) Print(v session.View) error {
	if p.printed > len(v.Lines) || (p.printed > 0 && v.Lines[p.printed-1] != p.last) {
		p.printed = 0
	}

	for _, line := range v.Lines[p.printed:] {
		if _, err := fmt.Fprintf(p.w, "[%s] %s\n", line.Timestamp.Format(PrinterTimeLayout), line.Text); err != nil {
			return err
		}
		p.last = line
		p.printed++
	}

	if v.LastError != "" && v.LastError != p.lastError {
		if _, err := fmt.Fprintf(p.w, "! recognition error: %s\n", v.LastError); err != nil {
			return err
		}
	}
	p.lastError = v.LastError
	return nil
}
