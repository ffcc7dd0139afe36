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
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf-throughput/internal/container"
	"github.com/pdiddy/pdf-throughput/pkg/types"
)

const (
	containerStopTimeout = 30 * time.Second
	pingTimeout          = 5 * time.Second
)

// readyPollInterval is how often a starting server is probed.
var readyPollInterval = 500 * time.Millisecond

// ProcessOwner is implemented by converters whose engine runs in a process
// tree outside this one, such as a container.
type ProcessOwner interface {
	// PID returns the root process of the engine, or 0 when unknown.
	PID() int32
}

// ContainerConverter converts PDFs with a worker container (marker,
// markitdown, MinerU) that stays up for the converter's lifetime. The
// container and its models are loaded once by NewContainerConverter; each
// Convert is a single HTTP round trip to the warm worker.
type ContainerConverter struct {
	runtime container.Runtime
	cfg     types.ContainerEngineConfig
	client  *http.Client

	id      string
	pid     int32
	baseURL string
}

// NewContainerConverter verifies the image, starts a worker container on a
// free loopback port, and waits until the worker reports ready. A worker
// that never becomes ready is stopped before the error is returned.
func NewContainerConverter(ctx context.Context, rt container.Runtime, cfg types.ContainerEngineConfig) (*ContainerConverter, error) {
	if err := rt.ImageExists(ctx, cfg.Image); err != nil {
		return nil, fmt.Errorf("%s image not available in %s: %w", cfg.Image, rt.Name(), err)
	}

	hostPort, err := freePort()
	if err != nil {
		return nil, fmt.Errorf("reserving a port for %s: %w", cfg.Image, err)
	}
	id, err := rt.Start(ctx, cfg.Image, container.StartOptions{
		Ports: []string{"127.0.0.1:" + hostPort + ":" + cfg.Port},
		GPUs:  cfg.GPUs,
	})
	if err != nil {
		return nil, err
	}

	c := &ContainerConverter{
		runtime: rt,
		cfg:     cfg,
		client:  &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		id:      id,
		baseURL: "http://127.0.0.1:" + hostPort,
	}

	log := zerolog.Ctx(ctx).With().Str("image", cfg.Image).Str("container", id).Logger()
	if err := waitReady(ctx, c.client, c.baseURL+cfg.HealthPath, cfg.StartTimeout); err != nil {
		return nil, errors.Join(fmt.Errorf("%s worker: %w", cfg.Image, err), c.Close())
	}
	if pid, err := rt.PID(ctx, id); err != nil {
		log.Debug().Err(err).Msg("container PID unavailable")
	} else {
		c.pid = pid
	}
	log.Debug().Str("url", c.baseURL).Int32("pid", c.pid).Msg("worker container ready")
	return c, nil
}

// Convert posts the PDF at pdfPath to the worker and returns the Markdown
// it answers with.
func (c *ContainerConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.cfg.ConvertPath, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building %s request: %w", c.cfg.Image, err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("Accept", "text/markdown")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("converting %s with %s: %w", pdfPath, c.cfg.Image, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%s returned HTTP %d for %s: %s", c.cfg.Image, resp.StatusCode, pdfPath, strings.TrimSpace(string(msg)))
	}
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading %s output for %s: %w", c.cfg.Image, pdfPath, err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("%s produced empty output for %s", c.cfg.Image, pdfPath)
	}
	return string(out), nil
}

// PID implements ProcessOwner.
func (c *ContainerConverter) PID() int32 { return c.pid }

// Close stops the worker container. It is safe to call more than once.
func (c *ContainerConverter) Close() error {
	if c.id == "" {
		return nil
	}
	id := c.id
	c.id = ""
	c.client.CloseIdleConnections()

	ctx, cancel := context.WithTimeout(context.Background(), containerStopTimeout)
	defer cancel()
	return c.runtime.Stop(ctx, id)
}

// freePort asks the kernel for an unused loopback port.
func freePort() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	return port, err
}

// ping issues a GET and expects 200.
func ping(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d", url, resp.StatusCode)
	}
	return nil
}

// waitReady polls url until it answers 200 or timeout elapses.
func waitReady(ctx context.Context, client *http.Client, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		err := ping(pctx, client, url)
		cancel()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("not ready after %v: %w", timeout, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}
