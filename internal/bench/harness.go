// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package bench measures conversion throughput. A Harness builds a fixed
// set of extractor handles for one engine, drives them through the measured
// loops (serially or one goroutine per handle), and summarizes the samples
// together with memory high-water marks.
package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/pdf-throughput/internal/convert"
	"github.com/pdiddy/pdf-throughput/internal/memtrace"
	"github.com/pdiddy/pdf-throughput/internal/pdfmeta"
	"github.com/pdiddy/pdf-throughput/internal/progress"
	"github.com/pdiddy/pdf-throughput/pkg/types"
)

// Harness runs one benchmark for one engine. The zero value of every field
// except Engine is usable.
type Harness struct {
	Engine convert.Engine

	// PageCount reads the page count without converting. Defaults to
	// pdfmeta.PageCount.
	PageCount func(path string) (int, error)

	// Processes collects the processes a run owns. Extractors whose engine
	// runs in its own process tree (a worker container) are added to it once
	// built. Defaults to the current process tree.
	Processes *memtrace.ProcessTree

	// ProcessProbe is sampled when RunConfig.TraceMemory is set. Defaults
	// to a probe of Processes.
	ProcessProbe memtrace.Probe

	// DeviceProbe, when set, is sampled across every run. It should read
	// the accelerator memory of Processes; the figure covers all extractors
	// together.
	DeviceProbe memtrace.Probe

	Progress progress.Reporter
	Logger   zerolog.Logger
}

// Result is a finished run. Samples are ordered by iteration; within an
// iteration by handle ID.
type Result struct {
	Summary types.RunSummary
	Samples []types.Sample
}

// Run executes cfg. Setup, page counting, and extractor construction happen
// before the measured window. Individual conversion failures are recorded
// in samples; Run fails only on input, initialization, or tracer errors, or
// when every sample failed (a *RunError, returned with the Result).
func (h *Harness) Run(ctx context.Context, cfg types.RunConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.Effective()

	log := h.Logger.With().Str("engine", h.Engine.Name).Logger()
	ctx = log.WithContext(ctx)
	prog := h.Progress
	if prog == nil {
		prog = progress.Nop{}
	}

	pageCount := h.PageCount
	if pageCount == nil {
		pageCount = pdfmeta.PageCount
	}
	pages, err := pageCount(cfg.PDFPath)
	if err != nil {
		return nil, &InputError{Path: cfg.PDFPath, Err: err}
	}
	log.Debug().Str("pdf", cfg.PDFPath).Int("pages", pages).Msg("page count read")

	prog.Loading(h.Engine.Name, cfg.Parallel)
	handles, err := h.prepare(ctx, cfg.Parallel)
	if err != nil {
		prog.Done()
		return nil, err
	}
	defer closeHandles(log, handles)
	log.Info().Int("extractors", len(handles)).Msg("extractors ready")

	tree := h.Processes
	if tree == nil {
		tree = memtrace.NewProcessTree()
	}
	for _, hd := range handles {
		if pid := hd.PID(); pid > 0 {
			tree.Add(pid)
			log.Debug().Int("handle", hd.ID).Int32("pid", pid).Msg("tracing engine process")
		}
	}

	tracers, err := h.startTracers(ctx, cfg, tree)
	if err != nil {
		prog.Done()
		return nil, err
	}

	prog.Begin(cfg.Loops * cfg.Parallel)
	samples := make([]types.Sample, 0, cfg.Loops*cfg.Parallel)
	windowStart := time.Now()
	for iter := 0; iter < cfg.Loops; iter++ {
		if err := ctx.Err(); err != nil {
			prog.Done()
			tracers.stop(log)
			return nil, err
		}
		batch := runIteration(ctx, handles, iter, cfg, prog)
		for _, s := range batch {
			if s.Err != nil {
				log.Warn().Err(s.Err).Msg("conversion failed")
			}
		}
		samples = append(samples, batch...)
		log.Debug().Int("iteration", iter).Int("samples", len(samples)).Msg("iteration complete")
	}
	wall := time.Since(windowStart)
	prog.Done()

	summary := summarize(h.Engine.Name, cfg, pages, samples, wall)
	if err := tracers.apply(log, &summary); err != nil {
		return nil, err
	}

	res := &Result{Summary: summary, Samples: samples}
	if summary.Samples > 0 && summary.Failures == summary.Samples {
		return res, &RunError{
			Engine:   h.Engine.Name,
			Failures: summary.Failures,
			Err:      fmt.Errorf("%w: %w", ErrNoSuccessfulSamples, firstError(samples)),
		}
	}
	return res, nil
}

// prepare runs engine setup once, then builds n handles concurrently. On any
// failure every handle already built is closed.
func (h *Harness) prepare(ctx context.Context, n int) ([]*Handle, error) {
	if h.Engine.Setup != nil {
		if err := h.Engine.Setup(ctx); err != nil {
			return nil, &InitializationError{Engine: h.Engine.Name, Handle: -1, Err: err}
		}
	}

	handles := make([]*Handle, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range handles {
		g.Go(func() error {
			hd, err := NewHandle(gctx, i, h.Engine)
			if err != nil {
				return err
			}
			handles[i] = hd
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeHandles(*zerolog.Ctx(ctx), handles)
		return nil, err
	}
	return handles, nil
}

// runIteration converts once per handle. A single handle runs on the
// calling goroutine; otherwise each handle gets its own worker and the call
// returns only after all of them finish.
func runIteration(ctx context.Context, handles []*Handle, iter int, cfg types.RunConfig, prog progress.Reporter) []types.Sample {
	out := make([]types.Sample, len(handles))
	if len(handles) == 1 {
		out[0] = handles[0].Convert(ctx, iter, cfg.PDFPath, cfg.Timeout)
		prog.Advance()
		return out
	}

	p := pool.New().WithMaxGoroutines(len(handles))
	for i, hd := range handles {
		p.Go(func() {
			out[i] = hd.Convert(ctx, iter, cfg.PDFPath, cfg.Timeout)
			prog.Advance()
		})
	}
	p.Wait()
	return out
}

func closeHandles(log zerolog.Logger, handles []*Handle) {
	for _, hd := range handles {
		if hd == nil {
			continue
		}
		if err := hd.Close(); err != nil {
			log.Warn().Err(err).Int("handle", hd.ID).Msg("closing extractor")
		}
	}
}

func summarize(engine string, cfg types.RunConfig, pages int, samples []types.Sample, wall time.Duration) types.RunSummary {
	s := types.RunSummary{
		Engine:      engine,
		PDFPath:     cfg.PDFPath,
		PageCount:   pages,
		Loops:       cfg.Loops,
		Parallel:    cfg.Parallel,
		Samples:     len(samples),
		WallSeconds: wall.Seconds(),
	}

	var total time.Duration
	ok := 0
	seen := make(map[string]bool)
	for _, sm := range samples {
		if sm.Succeeded() {
			total += sm.Elapsed
			ok++
			continue
		}
		s.Failures++
		msg := causeMessage(sm.Err)
		if !seen[msg] {
			seen[msg] = true
			s.Errors = append(s.Errors, msg)
		}
	}

	if ok > 0 {
		s.MeanSeconds = total.Seconds() / float64(ok)
		if s.MeanSeconds > 0 {
			s.PagesPerSecond = float64(pages) / s.MeanSeconds
		}
		if s.WallSeconds > 0 {
			s.AggregatePagesPerSecond = float64(pages*ok) / s.WallSeconds
		}
	}
	return s
}

// causeMessage strips the per-sample prefix so repeated failures collapse.
func causeMessage(err error) string {
	var ce *ConversionError
	if errors.As(err, &ce) {
		return ce.Err.Error()
	}
	return err.Error()
}

func firstError(samples []types.Sample) error {
	for _, s := range samples {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}
