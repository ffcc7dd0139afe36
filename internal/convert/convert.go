// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert implements PDF-to-Markdown conversion engines behind one
// interface, selected by name from a Registry.
package convert

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pdiddy/pdf-throughput/internal/container"
	"github.com/pdiddy/pdf-throughput/internal/secrets"
	"github.com/pdiddy/pdf-throughput/pkg/types"
)

// Engine names.
const (
	EngineMarker       = "marker"
	EngineMarkitdown   = "markitdown"
	EngineMinerU       = "mineru"
	EngineFitz         = "fitz"
	EngineOCR          = "ocr"
	EnginePDFText      = "pdftext"
	EngineTika         = "tika"
	EngineUnstructured = "unstructured"
)

// DefaultEngine is the primary conversion pipeline.
const DefaultEngine = EngineMarker

// Converter transforms a PDF file into Markdown text. A Converter is owned
// by one caller at a time; implementations may keep per-instance caches
// without locking. Converters holding native resources also implement
// io.Closer.
type Converter interface {
	// Convert reads the PDF at pdfPath and returns its Markdown content.
	Convert(ctx context.Context, pdfPath string) (string, error)
}

// Engine describes one conversion backend.
type Engine struct {
	Name        string
	Description string

	// Setup performs process-wide initialization (starting a server,
	// probing a runtime). It is idempotent and must run before any
	// converter is used concurrently. Nil when the engine needs none.
	Setup func(ctx context.Context) error

	// New builds an independent converter. Calling it N times yields N
	// converters that share no mutable state.
	New func(ctx context.Context) (Converter, error)
}

// Options carries dependencies shared by the engines.
type Options struct {
	// Secrets supplies credentials such as the Unstructured API key.
	Secrets secrets.Secrets

	// DetectRuntime finds the container runtime. Defaults to
	// container.DetectRuntime.
	DetectRuntime func(ctx context.Context) (container.Runtime, error)
}

// Registry holds the configured engines.
type Registry struct {
	opts    Options
	engines map[string]Engine

	rtOnce sync.Once
	rt     container.Runtime
	rtErr  error

	tika *tikaServer
}

// NewRegistry builds the engine set for cfg. Zero values in cfg are replaced
// with the engine defaults.
func NewRegistry(cfg types.EnginesConfig, opts Options) *Registry {
	cfg = withDefaults(cfg)
	if opts.DetectRuntime == nil {
		opts.DetectRuntime = container.DetectRuntime
	}
	cfg.Unstructured.APIKey = opts.Secrets.Default(secrets.UnstructuredAPIKey, cfg.Unstructured.APIKey)

	r := &Registry{opts: opts, engines: make(map[string]Engine)}
	r.tika = newTikaServer(cfg.Tika, r.runtime)

	r.add(r.containerEngine(EngineMarker, "primary layout/model pipeline (worker container)", cfg.Marker))
	r.add(r.containerEngine(EngineMarkitdown, "markitdown (worker container)", cfg.Markitdown))
	r.add(r.containerEngine(EngineMinerU, "MinerU magic-pdf (worker container)", cfg.MinerU))
	r.add(Engine{
		Name:        EngineFitz,
		Description: "MuPDF page HTML to Markdown (in process)",
		New: func(context.Context) (Converter, error) {
			return NewFitzConverter(), nil
		},
	})
	r.add(Engine{
		Name:        EngineOCR,
		Description: "MuPDF rendering + Tesseract OCR (in process)",
		New: func(context.Context) (Converter, error) {
			c, err := NewOCRConverter(cfg.OCR)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	})
	r.add(Engine{
		Name:        EnginePDFText,
		Description: "embedded text layer, pure Go (in process)",
		New: func(context.Context) (Converter, error) {
			return NewPDFTextConverter(), nil
		},
	})
	r.add(Engine{
		Name:        EngineTika,
		Description: "Apache Tika server, XHTML to Markdown",
		Setup:       r.tika.Setup,
		New: func(context.Context) (Converter, error) {
			return NewTikaConverter(cfg.Tika), nil
		},
	})
	r.add(Engine{
		Name:        EngineUnstructured,
		Description: "Unstructured partition API, elements to Markdown",
		New: func(context.Context) (Converter, error) {
			return NewUnstructuredConverter(cfg.Unstructured), nil
		},
	})
	return r
}

func (r *Registry) add(e Engine) {
	r.engines[e.Name] = e
}

// Lookup returns the engine registered under name.
func (r *Registry) Lookup(name string) (Engine, error) {
	e, ok := r.engines[name]
	if !ok {
		return Engine{}, fmt.Errorf("unknown engine %q (available: %v)", name, r.Names())
	}
	return e, nil
}

// Names returns the registered engine names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.engines))
	for n := range r.engines {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Close releases process-wide resources started by engine Setup, such as an
// autostarted Tika container.
func (r *Registry) Close(ctx context.Context) error {
	return r.tika.Close(ctx)
}

// runtime detects the container runtime once per registry.
func (r *Registry) runtime(ctx context.Context) (container.Runtime, error) {
	r.rtOnce.Do(func() {
		r.rt, r.rtErr = r.opts.DetectRuntime(ctx)
	})
	return r.rt, r.rtErr
}

// containerEngine starts one worker container per converter. Closing the
// converter stops its container.
func (r *Registry) containerEngine(name, desc string, cfg types.ContainerEngineConfig) Engine {
	return Engine{
		Name:        name,
		Description: desc,
		Setup: func(ctx context.Context) error {
			_, err := r.runtime(ctx)
			return err
		},
		New: func(ctx context.Context) (Converter, error) {
			rt, err := r.runtime(ctx)
			if err != nil {
				return nil, err
			}
			c, err := NewContainerConverter(ctx, rt, cfg)
			if err != nil {
				return nil, err
			}
			return c, nil
		},
	}
}

func withDefaults(cfg types.EnginesConfig) types.EnginesConfig {
	cfg.Marker = containerDefaults(cfg.Marker, "marker:latest")
	cfg.Markitdown = containerDefaults(cfg.Markitdown, "markitdown:latest")
	cfg.MinerU = containerDefaults(cfg.MinerU, "mineru:latest")

	if cfg.Tika.URL == "" {
		cfg.Tika.URL = "http://localhost:9998"
	}
	if cfg.Tika.Timeout == 0 {
		cfg.Tika.Timeout = 600 * time.Second
	}
	if cfg.Tika.Image == "" {
		cfg.Tika.Image = "apache/tika:latest"
	}
	if cfg.Tika.StartTimeout == 0 {
		cfg.Tika.StartTimeout = 60 * time.Second
	}

	if cfg.Unstructured.URL == "" {
		cfg.Unstructured.URL = "http://localhost:8000"
	}
	if cfg.Unstructured.Timeout == 0 {
		cfg.Unstructured.Timeout = 600 * time.Second
	}
	if cfg.Unstructured.Strategy == "" {
		cfg.Unstructured.Strategy = "hi_res"
	}
	if cfg.Unstructured.Model == "" {
		cfg.Unstructured.Model = "yolox"
	}

	if len(cfg.OCR.Languages) == 0 {
		cfg.OCR.Languages = []string{"eng"}
	}
	if cfg.OCR.DPI == 0 {
		cfg.OCR.DPI = 300
	}
	return cfg
}

func containerDefaults(cfg types.ContainerEngineConfig, image string) types.ContainerEngineConfig {
	if cfg.Image == "" {
		cfg.Image = image
	}
	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	if cfg.ConvertPath == "" {
		cfg.ConvertPath = "/convert"
	}
	if cfg.HealthPath == "" {
		cfg.HealthPath = "/health"
	}
	if cfg.StartTimeout == 0 {
		cfg.StartTimeout = 10 * time.Minute
	}
	return cfg
}
