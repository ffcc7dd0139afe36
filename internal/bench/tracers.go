// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bench

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf-throughput/internal/memtrace"
	"github.com/pdiddy/pdf-throughput/pkg/types"
)

// runTracers holds the tracers active over one measured window. Both are
// started and stopped on the harness goroutine.
type runTracers struct {
	device  *memtrace.Tracer
	process *memtrace.Tracer
}

func (h *Harness) startTracers(ctx context.Context, cfg types.RunConfig, tree *memtrace.ProcessTree) (*runTracers, error) {
	t := &runTracers{}
	if h.DeviceProbe != nil {
		t.device = memtrace.New(h.DeviceProbe, cfg.SampleInterval)
		if err := t.device.Start(ctx); err != nil {
			return nil, &TracerMisuseError{Op: "start", Err: err}
		}
	}
	if cfg.TraceMemory {
		probe := h.ProcessProbe
		if probe == nil {
			probe = memtrace.NewProcessProbe(tree)
		}
		t.process = memtrace.New(probe, cfg.SampleInterval)
		if err := t.process.Start(ctx); err != nil {
			if t.device != nil {
				t.device.Stop()
			}
			return nil, &TracerMisuseError{Op: "start", Err: err}
		}
	}
	return t, nil
}

// apply stops the tracers and records their readings in s. A probe that
// never produced a reading is logged and left out of the summary.
func (t *runTracers) apply(log zerolog.Logger, s *types.RunSummary) error {
	var misuse error
	if t.device != nil {
		r, err := t.device.Stop()
		switch {
		case errors.Is(err, memtrace.ErrNotStarted):
			misuse = &TracerMisuseError{Op: "stop", Err: err}
		case err != nil:
			log.Warn().Err(err).Str("probe", t.device.Name()).Msg("device memory unavailable")
		default:
			gb := float64(r.Peak) / memtrace.GiB
			s.PeakDeviceGB = &gb
		}
	}
	if t.process != nil {
		r, err := t.process.Stop()
		switch {
		case errors.Is(err, memtrace.ErrNotStarted):
			misuse = &TracerMisuseError{Op: "stop", Err: err}
		case err != nil:
			log.Warn().Err(err).Str("probe", t.process.Name()).Msg("process memory unavailable")
		default:
			cur := float64(r.Current) / memtrace.GB
			peak := float64(r.Peak) / memtrace.GB
			s.CurrentMemoryGB, s.PeakMemoryGB = &cur, &peak
			log.Debug().Int("samples", r.Samples).Msg("process memory traced")
		}
	}
	return misuse
}

// stop ends tracing without recording readings.
func (t *runTracers) stop(log zerolog.Logger) {
	var discard types.RunSummary
	if err := t.apply(log, &discard); err != nil {
		log.Warn().Err(err).Msg("stopping memory tracers")
	}
}
