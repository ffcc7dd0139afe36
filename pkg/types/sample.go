// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Sample is one measured conversion attempt. The Markdown text is not kept;
// only its length is.
type Sample struct {
	// Iteration is the zero-based loop index that produced the sample.
	Iteration int

	// Handle is the ID of the extractor handle that ran the conversion.
	Handle int

	// Start is when the converter call began.
	Start time.Time

	// Elapsed is the wall-clock time of the converter call.
	Elapsed time.Duration

	// MarkdownLen is the length of the produced Markdown in bytes.
	MarkdownLen int

	// Err is non-nil when the conversion failed.
	Err error
}

// Succeeded reports whether the conversion produced Markdown.
func (s Sample) Succeeded() bool {
	return s.Err == nil
}

// End returns when the converter call returned (or was abandoned).
func (s Sample) End() time.Time {
	return s.Start.Add(s.Elapsed)
}

// RunSummary is the read-only result of a harness run.
type RunSummary struct {
	Engine    string `json:"engine" yaml:"engine"`
	PDFPath   string `json:"pdf_path" yaml:"pdf_path"`
	PageCount int    `json:"page_count" yaml:"page_count"`
	Loops     int    `json:"loops" yaml:"loops"`
	Parallel  int    `json:"parallel" yaml:"parallel"`

	// Samples counts every attempt, failed ones included.
	Samples  int `json:"samples" yaml:"samples"`
	Failures int `json:"failures" yaml:"failures"`

	// MeanSeconds is the mean elapsed time of successful samples.
	MeanSeconds float64 `json:"mean_seconds" yaml:"mean_seconds"`

	// PagesPerSecond is PageCount divided by MeanSeconds.
	PagesPerSecond float64 `json:"pages_per_second" yaml:"pages_per_second"`

	// AggregatePagesPerSecond is pages converted by all successful samples
	// divided by WallSeconds. It equals PagesPerSecond in serial runs up to
	// loop overhead and exceeds it when extractors overlap.
	AggregatePagesPerSecond float64 `json:"aggregate_pages_per_second" yaml:"aggregate_pages_per_second"`

	// WallSeconds is the duration of the whole measured window.
	WallSeconds float64 `json:"wall_seconds" yaml:"wall_seconds"`

	// PeakDeviceGB is the accelerator high-water mark in GiB of this process
	// and its engine processes, other GPU tenants excluded. It is
	// process-wide: it cannot be attributed to individual handles.
	PeakDeviceGB *float64 `json:"peak_device_gb,omitempty" yaml:"peak_device_gb,omitempty"`

	// CurrentMemoryGB and PeakMemoryGB are set only when tracing (GB, 1e9).
	CurrentMemoryGB *float64 `json:"current_memory_gb,omitempty" yaml:"current_memory_gb,omitempty"`
	PeakMemoryGB    *float64 `json:"peak_memory_gb,omitempty" yaml:"peak_memory_gb,omitempty"`

	// Errors lists distinct failure messages in first-seen order.
	Errors []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}
