// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bench

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pdiddy/pdf-throughput/internal/convert"
)

// fakeConverter returns canned Markdown after an optional delay. fail
// decides per call (1-based) whether to return an error.
type fakeConverter struct {
	output string
	delay  time.Duration
	fail   func(call int) error
	block  <-chan struct{}
	pid    int32

	calls  int
	closed *atomic.Int32
}

func (f *fakeConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	f.calls++
	if f.block != nil {
		<-f.block
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.fail != nil {
		if err := f.fail(f.calls); err != nil {
			return "", err
		}
	}
	return f.output, nil
}

func (f *fakeConverter) PID() int32 { return f.pid }

func (f *fakeConverter) Close() error {
	if f.closed != nil {
		f.closed.Add(1)
	}
	return nil
}

// fakeEngine counts constructions and can fail the n-th one.
type fakeEngine struct {
	name      string
	output    string
	delay     time.Duration
	fail      func(call int) error
	failBuild int // 1-based construction to fail; 0 never
	setupErr  error
	pidBase   int32 // converters report pidBase+build when set

	builds atomic.Int32
	setups atomic.Int32
	closed atomic.Int32
}

func (e *fakeEngine) engine() convert.Engine {
	name := e.name
	if name == "" {
		name = "fake"
	}
	return convert.Engine{
		Name: name,
		Setup: func(context.Context) error {
			e.setups.Add(1)
			return e.setupErr
		},
		New: func(context.Context) (convert.Converter, error) {
			n := int(e.builds.Add(1))
			if e.failBuild != 0 && n == e.failBuild {
				return nil, fmt.Errorf("model weights missing (build %d)", n)
			}
			out := e.output
			if out == "" {
				out = "# Title\n\nBody."
			}
			c := &fakeConverter{output: out, delay: e.delay, fail: e.fail, closed: &e.closed}
			if e.pidBase > 0 {
				c.pid = e.pidBase + int32(n)
			}
			return c, nil
		},
	}
}

// gateConverter makes every call of a round wait until all width calls of
// that round have arrived, proving the round's calls overlap.
type gateConverter struct {
	width   int
	arrived *atomic.Int64
}

func (g *gateConverter) Convert(ctx context.Context, _ string) (string, error) {
	n := g.arrived.Add(1)
	round := (n - 1) / int64(g.width)
	want := (round + 1) * int64(g.width)
	deadline := time.Now().Add(2 * time.Second)
	for g.arrived.Load() < want {
		if time.Now().After(deadline) {
			return "", errors.New("peers never arrived")
		}
		time.Sleep(time.Millisecond)
	}
	return "ok", nil
}

// fixedProbe reports a fixed sequence of values, then repeats the last.
type fixedProbe struct {
	name string
	mu   sync.Mutex
	vals []uint64
	i    int
	err  error
}

func (p *fixedProbe) Name() string { return p.name }

func (p *fixedProbe) Usage(context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	v := p.vals[p.i]
	if p.i < len(p.vals)-1 {
		p.i++
	}
	return v, nil
}

func fixedPages(n int) func(string) (int, error) {
	return func(string) (int, error) { return n, nil }
}
