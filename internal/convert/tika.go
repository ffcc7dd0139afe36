// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf-throughput/internal/container"
	"github.com/pdiddy/pdf-throughput/internal/httputil"
	"github.com/pdiddy/pdf-throughput/pkg/types"
)

const tikaContainerPort = "9998"

// tikaServer makes sure one Tika server is reachable for the whole process.
// Setup runs at most once; every later call returns the first result.
type tikaServer struct {
	cfg     types.TikaConfig
	client  *http.Client
	runtime func(ctx context.Context) (container.Runtime, error)

	once        sync.Once
	err         error
	rt          container.Runtime
	containerID string
}

func newTikaServer(cfg types.TikaConfig, rt func(ctx context.Context) (container.Runtime, error)) *tikaServer {
	return &tikaServer{
		cfg:     cfg,
		client:  &http.Client{Timeout: pingTimeout},
		runtime: rt,
	}
}

// Setup checks that a Tika server answers at the configured URL and, when
// Autostart is set, starts one in a container. Call it from one goroutine
// before any TikaConverter runs.
func (s *tikaServer) Setup(ctx context.Context) error {
	s.once.Do(func() {
		s.err = s.ensure(ctx)
	})
	return s.err
}

func (s *tikaServer) ensure(ctx context.Context) error {
	log := zerolog.Ctx(ctx)
	if err := ping(ctx, s.client, s.versionURL()); err == nil {
		log.Debug().Str("url", s.cfg.URL).Msg("tika server reachable")
		return nil
	} else if !s.cfg.Autostart {
		return fmt.Errorf("no Tika server at %s (enable engines.tika.autostart to start %s): %w",
			s.cfg.URL, s.cfg.Image, err)
	}

	hostPort, err := tikaHostPort(s.cfg.URL)
	if err != nil {
		return err
	}
	rt, err := s.runtime(ctx)
	if err != nil {
		return err
	}
	id, err := rt.Start(ctx, s.cfg.Image, container.StartOptions{Ports: []string{hostPort + ":" + tikaContainerPort}})
	if err != nil {
		return err
	}
	s.rt, s.containerID = rt, id
	log.Info().Str("image", s.cfg.Image).Str("container", id).Msg("started tika server")

	if err := waitReady(ctx, s.client, s.versionURL(), s.cfg.StartTimeout); err != nil {
		return fmt.Errorf("tika server at %s: %w", s.cfg.URL, err)
	}
	return nil
}

func (s *tikaServer) versionURL() string {
	return strings.TrimSuffix(s.cfg.URL, "/") + "/version"
}

// Close stops a container started by Setup.
func (s *tikaServer) Close(ctx context.Context) error {
	if s.containerID == "" {
		return nil
	}
	id := s.containerID
	s.containerID = ""
	return s.rt.Stop(ctx, id)
}

func tikaHostPort(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing tika url %q: %w", raw, err)
	}
	if p := u.Port(); p != "" {
		return p, nil
	}
	return tikaContainerPort, nil
}

// TikaConverter sends the PDF to a Tika server, asks for XHTML, and
// converts the document body to Markdown.
type TikaConverter struct {
	cfg    types.TikaConfig
	client *http.Client
	md     *md.Converter
}

// NewTikaConverter returns a converter with its own HTTP connection pool.
func NewTikaConverter(cfg types.TikaConfig) *TikaConverter {
	return &TikaConverter{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		md: newMarkdownConverter(),
	}
}

// Convert implements Converter.
func (c *TikaConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return "", fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}

	endpoint := strings.TrimSuffix(c.cfg.URL, "/") + "/tika"
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("building tika request: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Content-Type", "application/pdf")
	req.Header.Set("X-Tika-OCRskipOcr", strconv.FormatBool(c.cfg.SkipOCR))

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.cfg.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("tika request for %s: %w", pdfPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("tika returned HTTP %d for %s: %s", resp.StatusCode, pdfPath, strings.TrimSpace(string(msg)))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parsing tika XHTML for %s: %w", pdfPath, err)
	}
	// Drop the <head> metadata block Tika emits.
	body, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("reading tika XHTML body for %s: %w", pdfPath, err)
	}
	return htmlToMarkdown(c.md, body)
}
