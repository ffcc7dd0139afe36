// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package progress renders run progress on the terminal: a spinner while
// engines load and a bar over the measured conversions.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/schollz/progressbar/v3"
)

// Reporter receives harness progress. Implementations must be safe for
// concurrent Advance calls.
type Reporter interface {
	// Loading is called before extractors are built.
	Loading(engine string, handles int)

	// Begin is called once extractors are ready, with the total number of
	// conversions the run will attempt.
	Begin(total int)

	// Advance records one finished conversion.
	Advance()

	// Done is called when the measured loop ends.
	Done()
}

// Nop discards progress.
type Nop struct{}

func (Nop) Loading(string, int) {}
func (Nop) Begin(int)           {}
func (Nop) Advance()            {}
func (Nop) Done()               {}

// Terminal draws progress on w (normally stderr).
type Terminal struct {
	w       io.Writer
	spinner *spinner.Spinner
	bar     *progressbar.ProgressBar
}

// NewTerminal returns a Reporter drawing on w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

// Loading starts the spinner.
func (t *Terminal) Loading(engine string, handles int) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(t.w))
	s.Suffix = fmt.Sprintf(" Loading %s (%d extractor(s))", engine, handles)
	s.Start()
	t.spinner = s
}

// Begin stops the spinner and starts the "Benchmarking" bar.
func (t *Terminal) Begin(total int) {
	t.stopSpinner()
	t.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(t.w),
		progressbar.OptionSetDescription("Benchmarking"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("conv"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(t.w)
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Advance moves the bar by one conversion.
func (t *Terminal) Advance() {
	if t.bar != nil {
		_ = t.bar.Add(1)
	}
}

// Done finishes the bar, or stops the spinner if the run ended early.
func (t *Terminal) Done() {
	t.stopSpinner()
	if t.bar != nil {
		_ = t.bar.Finish()
		t.bar = nil
	}
}

func (t *Terminal) stopSpinner() {
	if t.spinner != nil {
		t.spinner.Stop()
		t.spinner = nil
	}
}
