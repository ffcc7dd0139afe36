// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pdiddy/pdf-throughput/internal/convert"
	"github.com/pdiddy/pdf-throughput/pkg/types"
)

// Handle owns one initialized converter. A handle is driven by at most one
// goroutine at a time; the harness never shares it between workers.
type Handle struct {
	ID int

	engine string
	conv   convert.Converter

	// busy holds a token while a converter call is in flight, including a
	// call abandoned after a timeout.
	busy chan struct{}
}

// NewHandle builds an extractor with the engine constructor. Construction
// happens outside any timed region.
func NewHandle(ctx context.Context, id int, engine convert.Engine) (*Handle, error) {
	conv, err := engine.New(ctx)
	if err != nil {
		return nil, &InitializationError{Engine: engine.Name, Handle: id, Err: err}
	}
	if conv == nil {
		return nil, &InitializationError{Engine: engine.Name, Handle: id, Err: errors.New("constructor returned no converter")}
	}
	return &Handle{ID: id, engine: engine.Name, conv: conv, busy: make(chan struct{}, 1)}, nil
}

type callResult struct {
	start   time.Time
	elapsed time.Duration
	md      string
	err     error
}

// Convert runs one conversion of pdfPath and returns its sample. The clock
// covers only the converter call. A positive timeout abandons the call when
// it expires: the sample fails with ErrTimeout and the handle stays busy
// until the call returns.
func (h *Handle) Convert(ctx context.Context, iteration int, pdfPath string, timeout time.Duration) types.Sample {
	select {
	case h.busy <- struct{}{}:
	default:
		return h.sample(iteration, callResult{start: time.Now(), err: ErrHandleBusy})
	}

	if timeout <= 0 {
		r := h.call(ctx, pdfPath)
		<-h.busy
		return h.sample(iteration, r)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callResult, 1)
	start := time.Now()
	go func() {
		r := h.call(callCtx, pdfPath)
		<-h.busy
		done <- r
	}()

	select {
	case r := <-done:
		return h.sample(iteration, timeoutCause(ctx, callCtx, r))
	case <-callCtx.Done():
		// The converter may have returned in the same instant.
		select {
		case r := <-done:
			return h.sample(iteration, timeoutCause(ctx, callCtx, r))
		default:
		}
		err := ErrTimeout
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return h.sample(iteration, callResult{start: start, elapsed: time.Since(start), err: err})
	}
}

// timeoutCause reports a converter that gave up on the per-call deadline
// as a timeout rather than as its own context error.
func timeoutCause(ctx, callCtx context.Context, r callResult) callResult {
	if r.err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		r.err = ErrTimeout
	}
	return r
}

func (h *Handle) call(ctx context.Context, pdfPath string) callResult {
	start := time.Now()
	md, err := h.conv.Convert(ctx, pdfPath)
	return callResult{start: start, elapsed: time.Since(start), md: md, err: err}
}

func (h *Handle) sample(iteration int, r callResult) types.Sample {
	s := types.Sample{
		Iteration:   iteration,
		Handle:      h.ID,
		Start:       r.start,
		Elapsed:     r.elapsed,
		MarkdownLen: len(r.md),
	}
	err := r.err
	if err == nil && strings.TrimSpace(r.md) == "" {
		err = ErrEmptyOutput
	}
	if err != nil {
		s.Err = &ConversionError{Engine: h.engine, Handle: h.ID, Iteration: iteration, Err: err}
	}
	return s
}

// PID returns the root process of an engine running outside this process,
// or 0.
func (h *Handle) PID() int32 {
	if o, ok := h.conv.(convert.ProcessOwner); ok {
		return o.PID()
	}
	return 0
}

// Close releases the converter when it implements io.Closer. A handle with
// an abandoned call still running is left open and reports ErrHandleBusy.
func (h *Handle) Close() error {
	select {
	case h.busy <- struct{}{}:
	default:
		return fmt.Errorf("closing extractor %d: %w", h.ID, ErrHandleBusy)
	}
	defer func() { <-h.busy }()

	if c, ok := h.conv.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
