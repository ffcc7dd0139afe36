// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/pdf-throughput/pkg/types"
)

// Output formats accepted by Encode.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// PrintStart writes the lines shown before the measured loop.
func PrintStart(w io.Writer, cfg types.RunConfig) {
	fmt.Fprintf(w, "Converting %s to markdown...\n", cfg.PDFPath)
	if cfg.TraceMemory {
		fmt.Fprintln(w, "Tracing memory")
	}
}

// Print writes the human-readable summary.
func Print(w io.Writer, s types.RunSummary) error {
	ew := &errWriter{w: w}
	ew.printf("Converted %d pages in %.2f seconds.\n", s.PageCount, s.MeanSeconds)
	ew.printf("Throughput: %.2f pages/second (%d samples, %d failed)\n", s.PagesPerSecond, s.Samples, s.Failures)
	if s.Parallel > 1 {
		ew.printf("Aggregate throughput: %.2f pages/second across %d extractors\n", s.AggregatePagesPerSecond, s.Parallel)
	}
	if s.PeakDeviceGB != nil {
		ew.printf("Max GPU VRAM: %.2f GB (process-wide)\n", *s.PeakDeviceGB)
	}
	if s.CurrentMemoryGB != nil && s.PeakMemoryGB != nil {
		ew.printf("Current memory usage: %s GB\n", formatGB(*s.CurrentMemoryGB))
		ew.printf("Peak memory usage: %s GB\n", formatGB(*s.PeakMemoryGB))
	}
	for _, msg := range s.Errors {
		ew.printf("  failed: %s\n", msg)
	}
	return ew.err
}

// Encode writes s in the given format. An empty format means text.
func Encode(w io.Writer, s types.RunSummary, format string) error {
	switch format {
	case FormatText, "":
		return Print(w, s)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(s); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported format %q: use text, json, or yaml", format)
	}
}

// formatGB prints memory figures unrounded.
func formatGB(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
