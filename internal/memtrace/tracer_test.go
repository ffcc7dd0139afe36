// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memtrace

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqProbe returns values in order and then repeats the last one.
type seqProbe struct {
	mu     sync.Mutex
	values []uint64
	calls  int
	err    error
}

func (p *seqProbe) Name() string { return "seq" }

func (p *seqProbe) Usage(context.Context) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return 0, p.err
	}
	i := p.calls
	if i >= len(p.values) {
		i = len(p.values) - 1
	}
	p.calls++
	return p.values[i], nil
}

func TestTracer_PeakAtLeastCurrent(t *testing.T) {
	probe := &seqProbe{values: []uint64{100, 20}}
	tr := New(probe, time.Hour)

	require.NoError(t, tr.Start(context.Background()))
	r, err := tr.Stop()
	require.NoError(t, err)

	assert.Equal(t, uint64(20), r.Current)
	assert.Equal(t, uint64(100), r.Peak)
	assert.GreaterOrEqual(t, r.Peak, r.Current)
	assert.Equal(t, 2, r.Samples)
}

func TestTracer_BackgroundSamplingRaisesPeak(t *testing.T) {
	probe := &seqProbe{values: []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	tr := New(probe, time.Millisecond)

	require.NoError(t, tr.Start(context.Background()))
	require.Eventually(t, func() bool {
		probe.mu.Lock()
		defer probe.mu.Unlock()
		return probe.calls >= 5
	}, time.Second, time.Millisecond)
	r, err := tr.Stop()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, r.Peak, uint64(5))
	assert.GreaterOrEqual(t, r.Peak, r.Current)
}

func TestTracer_Misuse(t *testing.T) {
	t.Run("stop before start", func(t *testing.T) {
		tr := New(&seqProbe{values: []uint64{1}}, 0)
		_, err := tr.Stop()
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("start twice", func(t *testing.T) {
		tr := New(&seqProbe{values: []uint64{1}}, time.Hour)
		require.NoError(t, tr.Start(context.Background()))
		assert.ErrorIs(t, tr.Start(context.Background()), ErrAlreadyStarted)
		_, err := tr.Stop()
		assert.NoError(t, err)
	})

	t.Run("stop twice", func(t *testing.T) {
		tr := New(&seqProbe{values: []uint64{1}}, time.Hour)
		require.NoError(t, tr.Start(context.Background()))
		_, err := tr.Stop()
		require.NoError(t, err)
		_, err = tr.Stop()
		assert.ErrorIs(t, err, ErrNotStarted)
	})

	t.Run("restart after stop", func(t *testing.T) {
		tr := New(&seqProbe{values: []uint64{1}}, time.Hour)
		require.NoError(t, tr.Start(context.Background()))
		_, err := tr.Stop()
		require.NoError(t, err)
		assert.ErrorIs(t, tr.Start(context.Background()), ErrAlreadyStarted)
	})
}

func TestTracer_ProbeAlwaysFails(t *testing.T) {
	probe := &seqProbe{err: errors.New("no such device")}
	tr := New(probe, time.Hour)

	require.NoError(t, tr.Start(context.Background()))
	_, err := tr.Stop()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such device")
	assert.Error(t, tr.LastError())
}

func TestProcessProbe(t *testing.T) {
	p := NewProcessProbe(nil)
	assert.Equal(t, "process", p.Name())

	rss, err := p.Usage(context.Background())
	require.NoError(t, err)
	assert.Greater(t, rss, uint64(0))
}

func TestProcessTree(t *testing.T) {
	tree := NewProcessTree()
	self, parent := int32(os.Getpid()), int32(os.Getppid())

	pids, err := tree.PIDs(context.Background())
	require.NoError(t, err)
	assert.True(t, pids[self])
	assert.False(t, pids[parent])

	tree.Add(parent)
	tree.Add(parent)
	tree.Add(0)
	assert.Equal(t, []int32{self, parent}, tree.Roots())

	pids, err = tree.PIDs(context.Background())
	require.NoError(t, err)
	assert.True(t, pids[parent])
	assert.True(t, pids[self])
}

func TestProcessTree_ExitedRootSkipped(t *testing.T) {
	tree := NewProcessTree()
	tree.Add(math.MaxInt32 - 1)

	pids, err := tree.PIDs(context.Background())
	require.NoError(t, err)
	assert.True(t, pids[int32(os.Getpid())])
	assert.False(t, pids[math.MaxInt32-1])
}

func TestParseComputeApps(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    []computeApp
		wantErr bool
	}{
		{name: "no compute apps", out: ""},
		{
			name: "one row per process and gpu",
			out:  "101, 1024\n202, 256\n101, 512\n",
			want: []computeApp{{101, 1024 << 20}, {202, 256 << 20}, {101, 512 << 20}},
		},
		{name: "unreported memory skipped", out: "303, [N/A]\n  404 , 10 \n\n", want: []computeApp{{404, 10 << 20}}},
		{name: "missing column", out: "1024\n", wantErr: true},
		{name: "garbage pid", out: "abc, 10\n", wantErr: true},
		{name: "garbage memory", out: "1, lots\n", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseComputeApps([]byte(tt.out))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNvidiaProbe_CountsOnlyOwnTree(t *testing.T) {
	self, parent := os.Getpid(), os.Getppid()
	out := fmt.Sprintf("%d, 2048\n%d, 8192\n%d, 4096\n%d, 1024\n", self, parent, math.MaxInt32-1, self)

	var gotArgs []string
	tree := NewProcessTree()
	p := &NvidiaProbe{tree: tree, run: func(_ context.Context, name string, args ...string) ([]byte, error) {
		gotArgs = append([]string{name}, args...)
		return []byte(out), nil
	}}

	v, err := p.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(3072<<20), v)
	assert.Equal(t, "nvidia-smi", gotArgs[0])
	assert.Contains(t, gotArgs, "--query-compute-apps=pid,used_memory")

	// A registered engine root is attributed to the run.
	tree.Add(int32(parent))
	v, err = p.Usage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64((3072+8192)<<20), v)
}

func TestNvidiaProbe_NoComputeApps(t *testing.T) {
	p := &NvidiaProbe{tree: NewProcessTree(), run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, nil
	}}
	v, err := p.Usage(context.Background())
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestNvidiaProbe_CommandFails(t *testing.T) {
	p := &NvidiaProbe{tree: NewProcessTree(), run: func(context.Context, string, ...string) ([]byte, error) {
		return nil, errors.New("exit status 9")
	}}
	_, err := p.Usage(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nvidia-smi")
}
