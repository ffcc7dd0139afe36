// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-throughput/internal/container"
	"github.com/pdiddy/pdf-throughput/internal/pdfmeta/pdftest"
)

// fakeRuntime implements container.Runtime for testing. When worker is set,
// every started container serves it on the host port of its first mapping
// until the container is stopped.
type fakeRuntime struct {
	mu sync.Mutex

	imageErr error
	worker   http.Handler
	pid      int32
	pidErr   error

	// onStart runs when Start is called, before the ID is returned.
	onStart  func()
	startErr error

	checked []string
	started []string
	stopped []string
	servers map[string]*httptest.Server
}

func (f *fakeRuntime) Name() string                   { return "fake" }
func (f *fakeRuntime) Available(context.Context) bool { return true }

func (f *fakeRuntime) ImageExists(_ context.Context, image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, image)
	return f.imageErr
}

func (f *fakeRuntime) Start(_ context.Context, image string, opts container.StartOptions) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	f.mu.Lock()
	id := "c0ffee"
	if n := len(f.started); n > 0 {
		id = fmt.Sprintf("c0ffee-%d", n)
	}
	f.started = append(f.started, image+" "+strings.Join(opts.Ports, ","))
	if f.worker != nil {
		srv, err := serveOnMapping(f.worker, opts.Ports[0])
		if err != nil {
			f.mu.Unlock()
			return "", err
		}
		if f.servers == nil {
			f.servers = make(map[string]*httptest.Server)
		}
		f.servers[id] = srv
	}
	f.mu.Unlock()
	if f.onStart != nil {
		f.onStart()
	}
	return id, nil
}

func (f *fakeRuntime) PID(context.Context, string) (int32, error) {
	return f.pid, f.pidErr
}

func (f *fakeRuntime) Stop(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id == "" {
		return errors.New("empty id")
	}
	f.stopped = append(f.stopped, id)
	if srv, ok := f.servers[id]; ok {
		srv.Close()
		delete(f.servers, id)
	}
	return nil
}

func (f *fakeRuntime) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.started)
}

// serveOnMapping listens on the host side of an "ip:host:container" port
// mapping and serves h there.
func serveOnMapping(h http.Handler, mapping string) (*httptest.Server, error) {
	parts := strings.Split(mapping, ":")
	if len(parts) < 2 {
		return nil, fmt.Errorf("bad port mapping %q", mapping)
	}
	l, err := net.Listen("tcp", "127.0.0.1:"+parts[len(parts)-2])
	if err != nil {
		return nil, err
	}
	srv := httptest.NewUnstartedServer(h)
	srv.Listener.Close()
	srv.Listener = l
	srv.Start()
	return srv, nil
}

// fakeWorker is the HTTP side of a conversion worker container.
type fakeWorker struct {
	ready    atomic.Bool
	converts atomic.Int32

	body   string
	status int
}

func newReadyWorker(body string) *fakeWorker {
	w := &fakeWorker{body: body}
	w.ready.Store(true)
	return w
}

func (w *fakeWorker) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		if !w.ready.Load() {
			http.Error(rw, "loading models", http.StatusServiceUnavailable)
		}
	case "/convert":
		data, _ := io.ReadAll(r.Body)
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(data, []byte("%PDF")) {
			http.Error(rw, "expected a PDF", http.StatusBadRequest)
			return
		}
		w.converts.Add(1)
		if w.status != 0 {
			http.Error(rw, "conversion failed", w.status)
			return
		}
		io.WriteString(rw, w.body)
	default:
		http.NotFound(rw, r)
	}
}

// writePDF writes a two-page fixture PDF and returns its path.
func writePDF(t *testing.T) string {
	t.Helper()
	return pdftest.Write(t, 2)
}

// writeFile writes arbitrary bytes under a temp dir.
func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}
