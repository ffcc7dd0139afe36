// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package memtrace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessTree is the set of processes whose memory belongs to a run: the
// current process, any engine roots registered with Add (such as the main
// process of a worker container), and all of their descendants.
type ProcessTree struct {
	mu    sync.Mutex
	roots []int32
}

// NewProcessTree returns a tree rooted at the current process.
func NewProcessTree() *ProcessTree {
	return &ProcessTree{roots: []int32{int32(os.Getpid())}}
}

// Add registers pid as an extra root. Non-positive and repeated PIDs are
// ignored.
func (t *ProcessTree) Add(pid int32) {
	if pid <= 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.roots {
		if r == pid {
			return
		}
	}
	t.roots = append(t.roots, pid)
}

// Roots returns the registered roots, the current process first.
func (t *ProcessTree) Roots() []int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int32(nil), t.roots...)
}

// walk visits every live process of the tree once. Roots that have exited
// are skipped; it fails only when no root can be opened.
func (t *ProcessTree) walk(ctx context.Context, visit func(*process.Process)) error {
	seen := make(map[int32]bool)
	var descend func(p *process.Process)
	descend = func(p *process.Process) {
		if seen[p.Pid] {
			return
		}
		seen[p.Pid] = true
		visit(p)
		// No children is reported as an error.
		children, err := p.ChildrenWithContext(ctx)
		if err != nil {
			return
		}
		for _, c := range children {
			descend(c)
		}
	}

	var firstErr error
	opened := 0
	for _, pid := range t.Roots() {
		p, err := process.NewProcessWithContext(ctx, pid)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("opening process %d: %w", pid, err)
			}
			continue
		}
		opened++
		descend(p)
	}
	if opened == 0 {
		return firstErr
	}
	return nil
}

// PIDs returns every live PID in the tree.
func (t *ProcessTree) PIDs(ctx context.Context) (map[int32]bool, error) {
	pids := make(map[int32]bool)
	err := t.walk(ctx, func(p *process.Process) { pids[p.Pid] = true })
	return pids, err
}

// ProcessProbe reports the resident set size summed over a ProcessTree.
// Engines that shell out or run in registered containers are counted
// through the tree.
type ProcessProbe struct {
	tree *ProcessTree
}

// NewProcessProbe returns a probe of tree, or of the current process tree
// when tree is nil.
func NewProcessProbe(tree *ProcessTree) *ProcessProbe {
	if tree == nil {
		tree = NewProcessTree()
	}
	return &ProcessProbe{tree: tree}
}

// Name implements Probe.
func (p *ProcessProbe) Name() string { return "process" }

// Usage implements Probe. Processes that exit mid-walk are skipped.
func (p *ProcessProbe) Usage(ctx context.Context) (uint64, error) {
	var total uint64
	read := 0
	err := p.tree.walk(ctx, func(proc *process.Process) {
		mem, err := proc.MemoryInfoWithContext(ctx)
		if err != nil {
			return
		}
		total += mem.RSS
		read++
	})
	if err != nil {
		return 0, err
	}
	if read == 0 {
		return 0, errors.New("no process memory readable")
	}
	return total, nil
}

// commandRunner runs a command and returns its stdout.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

const binNvidiaSMI = "nvidia-smi"

// NvidiaProbe reports the GPU memory used by the processes of a
// ProcessTree, summed over all visible devices. Other processes sharing the
// GPU are not counted.
type NvidiaProbe struct {
	run  commandRunner
	tree *ProcessTree
}

// DetectDeviceProbe returns an NvidiaProbe over tree when nvidia-smi is on
// PATH and answers a query, or nil when no accelerator can be read.
func DetectDeviceProbe(ctx context.Context, tree *ProcessTree) Probe {
	if _, err := exec.LookPath(binNvidiaSMI); err != nil {
		return nil
	}
	if tree == nil {
		tree = NewProcessTree()
	}
	p := &NvidiaProbe{run: runCommand, tree: tree}
	if _, err := p.Usage(ctx); err != nil {
		return nil
	}
	return p
}

// Name implements Probe.
func (p *NvidiaProbe) Name() string { return "nvidia" }

// Usage implements Probe.
func (p *NvidiaProbe) Usage(ctx context.Context) (uint64, error) {
	out, err := p.run(ctx, binNvidiaSMI, "--query-compute-apps=pid,used_memory", "--format=csv,noheader,nounits")
	if err != nil {
		return 0, fmt.Errorf("querying %s: %w", binNvidiaSMI, err)
	}
	apps, err := parseComputeApps(out)
	if err != nil {
		return 0, err
	}
	if len(apps) == 0 {
		return 0, nil
	}
	pids, err := p.tree.PIDs(ctx)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, a := range apps {
		if pids[a.pid] {
			total += a.used
		}
	}
	return total, nil
}

// computeApp is one row of nvidia-smi --query-compute-apps.
type computeApp struct {
	pid  int32
	used uint64 // bytes
}

// parseComputeApps reads "pid, MiB" rows. A process listed on several GPUs
// appears once per GPU. Rows whose memory is not reported ("[N/A]") are
// skipped.
func parseComputeApps(out []byte) ([]computeApp, error) {
	var apps []computeApp
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("parsing %s output %q: want pid and memory", binNvidiaSMI, line)
		}
		pid, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parsing %s pid %q: %w", binNvidiaSMI, line, err)
		}
		mem := strings.TrimSpace(fields[1])
		if strings.HasPrefix(mem, "[") {
			continue
		}
		mib, err := strconv.ParseUint(mem, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing %s memory %q: %w", binNvidiaSMI, line, err)
		}
		apps = append(apps, computeApp{pid: int32(pid), used: mib << 20})
	}
	return apps, nil
}
