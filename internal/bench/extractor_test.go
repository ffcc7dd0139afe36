// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bench

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-throughput/internal/convert"
)

func TestNewHandle(t *testing.T) {
	eng := &fakeEngine{}
	h, err := NewHandle(context.Background(), 4, eng.engine())
	require.NoError(t, err)
	assert.Equal(t, 4, h.ID)
	assert.EqualValues(t, 1, eng.builds.Load())

	t.Run("constructor error", func(t *testing.T) {
		eng := &fakeEngine{failBuild: 1}
		_, err := NewHandle(context.Background(), 2, eng.engine())
		var ie *InitializationError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, 2, ie.Handle)
		assert.Equal(t, "fake", ie.Engine)
		assert.Contains(t, err.Error(), "building extractor 2 for engine fake: model weights missing")
	})

	t.Run("nil converter", func(t *testing.T) {
		eng := convert.Engine{Name: "broken", New: func(context.Context) (convert.Converter, error) { return nil, nil }}
		_, err := NewHandle(context.Background(), 0, eng)
		var ie *InitializationError
		require.ErrorAs(t, err, &ie)
	})
}

func TestHandleConvert(t *testing.T) {
	tests := []struct {
		name    string
		conv    *fakeConverter
		wantErr error
		wantLen int
	}{
		{
			name:    "success",
			conv:    &fakeConverter{output: "# Hello"},
			wantLen: 7,
		},
		{
			name:    "engine error",
			conv:    &fakeConverter{output: "x", fail: func(int) error { return errors.New("CUDA out of memory") }},
			wantErr: errors.New("CUDA out of memory"),
		},
		{
			name:    "empty output",
			conv:    &fakeConverter{output: "  \n"},
			wantErr: ErrEmptyOutput,
			wantLen: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handle{ID: 1, engine: "fake", conv: tt.conv, busy: make(chan struct{}, 1)}
			s := h.Convert(context.Background(), 3, "doc.pdf", 0)

			assert.Equal(t, 3, s.Iteration)
			assert.Equal(t, 1, s.Handle)
			assert.Equal(t, tt.wantLen, s.MarkdownLen)
			assert.False(t, s.Start.IsZero())
			if tt.wantErr == nil {
				require.NoError(t, s.Err)
				assert.True(t, s.Succeeded())
				return
			}
			var ce *ConversionError
			require.ErrorAs(t, s.Err, &ce)
			assert.Equal(t, 3, ce.Iteration)
			assert.Equal(t, 1, ce.Handle)
			assert.Contains(t, s.Err.Error(), tt.wantErr.Error())
			if errors.Is(tt.wantErr, ErrEmptyOutput) {
				assert.ErrorIs(t, s.Err, ErrEmptyOutput)
			}
		})
	}
}

func TestHandleConvertElapsedCoversCall(t *testing.T) {
	h := &Handle{engine: "fake", conv: &fakeConverter{output: "x", delay: 30 * time.Millisecond}, busy: make(chan struct{}, 1)}
	s := h.Convert(context.Background(), 0, "doc.pdf", time.Second)
	require.NoError(t, s.Err)
	assert.GreaterOrEqual(t, s.Elapsed, 30*time.Millisecond)
	assert.Less(t, s.Elapsed, time.Second)
}

func TestHandleTimeoutMarksBusy(t *testing.T) {
	release := make(chan struct{})
	closed := &atomic.Int32{}
	conv := &fakeConverter{output: "late", block: release, closed: closed}
	h := &Handle{ID: 0, engine: "fake", conv: conv, busy: make(chan struct{}, 1)}

	s := h.Convert(context.Background(), 0, "doc.pdf", 20*time.Millisecond)
	assert.ErrorIs(t, s.Err, ErrTimeout)
	assert.GreaterOrEqual(t, s.Elapsed, 20*time.Millisecond)

	s = h.Convert(context.Background(), 1, "doc.pdf", 20*time.Millisecond)
	assert.ErrorIs(t, s.Err, ErrHandleBusy)
	assert.ErrorIs(t, h.Close(), ErrHandleBusy)
	assert.EqualValues(t, 0, closed.Load())

	close(release)
	require.Eventually(t, func() bool {
		return len(h.busy) == 0
	}, time.Second, 5*time.Millisecond)

	s = h.Convert(context.Background(), 2, "doc.pdf", time.Second)
	require.NoError(t, s.Err)
	require.NoError(t, h.Close())
	assert.EqualValues(t, 1, closed.Load())
}

func TestHandleConvertCancelled(t *testing.T) {
	h := &Handle{engine: "fake", conv: &fakeConverter{output: "x", delay: time.Second}, busy: make(chan struct{}, 1)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := h.Convert(ctx, 0, "doc.pdf", time.Minute)
	assert.ErrorIs(t, s.Err, context.Canceled)
}
