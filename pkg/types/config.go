// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"time"
)

// HTTPConfig holds shared HTTP settings used by engines that talk to a
// conversion server.
type HTTPConfig struct {
	// URL is the base URL of the server (e.g. "http://localhost:9998").
	URL string `json:"url" yaml:"url"`

	// Timeout is the per-request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ContainerEngineConfig configures an engine served by a long-lived worker
// container. Each extractor starts one container, waits until HealthPath
// answers 200, and then POSTs every PDF to ConvertPath. The response body is
// the Markdown.
type ContainerEngineConfig struct {
	// Image is the container image reference (e.g. "marker:latest").
	Image string `json:"image" yaml:"image"`

	// Port is the port the worker listens on inside the container
	// (default "8000").
	Port string `json:"port" yaml:"port"`

	// ConvertPath receives the PDF (default "/convert").
	ConvertPath string `json:"convert_path" yaml:"convert_path"`

	// HealthPath answers 200 once models are loaded (default "/health").
	HealthPath string `json:"health_path" yaml:"health_path"`

	// StartTimeout bounds container start-up plus model loading
	// (default 10m).
	StartTimeout time.Duration `json:"start_timeout" yaml:"start_timeout"`

	// GPUs is passed to the runtime as --gpus when set (e.g. "all").
	GPUs string `json:"gpus,omitempty" yaml:"gpus,omitempty"`
}

// TikaConfig holds settings for the Apache Tika engine.
type TikaConfig struct {
	HTTPConfig `yaml:",inline"`

	// SkipOCR is sent as the X-Tika-OCRskipOcr header (default true).
	SkipOCR bool `json:"skip_ocr" yaml:"skip_ocr"`

	// Autostart starts Image in a container when no server answers at URL.
	Autostart bool `json:"autostart" yaml:"autostart"`

	// Image is the Tika server image used by Autostart.
	Image string `json:"image" yaml:"image"`

	// StartTimeout bounds how long Setup waits for an autostarted server.
	StartTimeout time.Duration `json:"start_timeout" yaml:"start_timeout"`
}

// UnstructuredConfig holds settings for the Unstructured partition API.
type UnstructuredConfig struct {
	HTTPConfig `yaml:",inline"`

	// Strategy is the partition strategy (default "hi_res").
	Strategy string `json:"strategy" yaml:"strategy"`

	// Model is the hi_res layout model (default "yolox").
	Model string `json:"model" yaml:"model"`

	// InferTables requests table structure inference.
	InferTables bool `json:"infer_tables" yaml:"infer_tables"`

	// APIKey is sent as the unstructured-api-key header when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// OCRConfig holds settings for the Tesseract engine.
type OCRConfig struct {
	// Languages are Tesseract language codes (default ["eng"]).
	Languages []string `json:"languages" yaml:"languages"`

	// DPI is the page rendering resolution (default 300).
	DPI float64 `json:"dpi" yaml:"dpi"`
}

// EnginesConfig groups the per-engine settings.
type EnginesConfig struct {
	Marker       ContainerEngineConfig `json:"marker" yaml:"marker"`
	Markitdown   ContainerEngineConfig `json:"markitdown" yaml:"markitdown"`
	MinerU       ContainerEngineConfig `json:"mineru" yaml:"mineru"`
	Tika         TikaConfig            `json:"tika" yaml:"tika"`
	Unstructured UnstructuredConfig    `json:"unstructured" yaml:"unstructured"`
	OCR          OCRConfig             `json:"ocr" yaml:"ocr"`
}

// LogConfig selects the diagnostic logger output.
type LogConfig struct {
	// Level is a zerolog level name (default "info").
	Level string `json:"level" yaml:"level"`

	// Format is "console" or "json" (default "console").
	Format string `json:"format" yaml:"format"`
}

// RunConfig is the immutable input to one harness run.
type RunConfig struct {
	// PDFPath is the PDF every conversion reads.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// Loops is the number of measured iterations (default 10).
	Loops int `json:"loops" yaml:"loops"`

	// Parallel is the number of extractor handles converting concurrently
	// in each iteration (default 1).
	Parallel int `json:"parallel" yaml:"parallel"`

	// TraceMemory enables the process memory tracer and forces Loops to 1.
	TraceMemory bool `json:"trace_memory" yaml:"trace_memory"`

	// Timeout bounds a single conversion call. Zero disables it.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// SampleInterval is the memory sampling period (default 50ms).
	SampleInterval time.Duration `json:"sample_interval" yaml:"sample_interval"`
}

// Validate reports configuration errors that make a run meaningless.
func (c RunConfig) Validate() error {
	if c.PDFPath == "" {
		return fmt.Errorf("pdf path is required")
	}
	if c.Loops < 1 {
		return fmt.Errorf("loops must be at least 1, got %d", c.Loops)
	}
	if c.Parallel < 1 {
		return fmt.Errorf("parallel must be at least 1, got %d", c.Parallel)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %v", c.Timeout)
	}
	return nil
}

// Effective returns the configuration actually executed: memory tracing
// only supports a single iteration.
func (c RunConfig) Effective() RunConfig {
	if c.TraceMemory {
		c.Loops = 1
	}
	return c
}

// Config groups everything read from the config file and environment.
type Config struct {
	Bench   RunConfig     `json:"bench" yaml:"bench"`
	Engines EnginesConfig `json:"engines" yaml:"engines"`
	Log     LogConfig     `json:"log" yaml:"log"`
}
