// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package memtrace tracks peak memory usage over a measurement window.
//
// A Tracer polls a Probe on a single background goroutine, so concurrent
// work inside the window never races on the peak. Probes report
// process-wide figures: when several extractors run at once the peak covers
// all of them and cannot be split per extractor.
package memtrace

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultInterval is the sampling period used when none is configured.
const DefaultInterval = 50 * time.Millisecond

var (
	// ErrAlreadyStarted is returned by Start on a tracer that was started before.
	ErrAlreadyStarted = errors.New("memory tracer already started")

	// ErrNotStarted is returned by Stop on a tracer that is not running.
	ErrNotStarted = errors.New("memory tracer not started")
)

// Probe reads one memory figure in bytes.
type Probe interface {
	// Name identifies the probe in logs (e.g. "process", "nvidia").
	Name() string

	// Usage returns the current usage in bytes.
	Usage(ctx context.Context) (uint64, error)
}

// Reading is the result of a finished trace.
type Reading struct {
	// Current is the usage observed when the trace stopped.
	Current uint64

	// Peak is the highest usage observed since Start. Peak >= Current.
	Peak uint64

	// Samples is the number of successful probe reads.
	Samples int
}

// Tracer records the high-water mark of a Probe between Start and Stop.
// Start and Stop belong to one owner goroutine; a Tracer is single use.
type Tracer struct {
	probe    Probe
	interval time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	peak    uint64
	last    uint64
	samples int
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a tracer that samples probe every interval. A non-positive
// interval selects DefaultInterval.
func New(probe Probe, interval time.Duration) *Tracer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracer{probe: probe, interval: interval}
}

// Name returns the probe name.
func (t *Tracer) Name() string {
	return t.probe.Name()
}

// Start takes an initial sample and begins background sampling.
func (t *Tracer) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	t.started = true
	t.mu.Unlock()

	t.sample(ctx)

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.loop(ctx)
	return nil
}

// Stop ends sampling, takes a final sample, and returns the reading.
func (t *Tracer) Stop() (Reading, error) {
	t.mu.Lock()
	if !t.started || t.stopped {
		t.mu.Unlock()
		return Reading{}, ErrNotStarted
	}
	t.stopped = true
	t.mu.Unlock()

	t.cancel()
	<-t.done

	current, err := t.probe.Usage(context.Background())

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		if t.samples == 0 {
			return Reading{}, fmt.Errorf("reading %s memory: %w", t.probe.Name(), err)
		}
		current = t.last
	} else {
		t.samples++
	}
	if current > t.peak {
		t.peak = current
	}
	return Reading{Current: current, Peak: t.peak, Samples: t.samples}, nil
}

// LastError returns the most recent probe error seen while sampling.
func (t *Tracer) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

func (t *Tracer) loop(ctx context.Context) {
	defer close(t.done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.sample(ctx)
		}
	}
}

func (t *Tracer) sample(ctx context.Context) {
	v, err := t.probe.Usage(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.lastErr = err
		return
	}
	t.samples++
	t.last = v
	if v > t.peak {
		t.peak = v
	}
}

// Bytes per reporting unit.
const (
	GB  = 1e9
	GiB = 1 << 30
)
