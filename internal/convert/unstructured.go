// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"

	"github.com/pdiddy/pdf-throughput/internal/httputil"
	"github.com/pdiddy/pdf-throughput/pkg/types"
)

const unstructuredPartitionPath = "/general/v0/general"

// UnstructuredConverter posts the PDF to an Unstructured partition API and
// renders the returned elements as Markdown.
type UnstructuredConverter struct {
	cfg    types.UnstructuredConfig
	client *http.Client
	md     *md.Converter
}

// NewUnstructuredConverter returns a converter with its own HTTP connection
// pool.
func NewUnstructuredConverter(cfg types.UnstructuredConfig) *UnstructuredConverter {
	return &UnstructuredConverter{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		md: newMarkdownConverter(),
	}
}

// Convert implements Converter.
func (c *UnstructuredConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	body, contentType, err := c.partitionForm(pdfPath)
	if err != nil {
		return "", err
	}

	endpoint := strings.TrimSuffix(c.cfg.URL, "/") + unstructuredPartitionPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building partition request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("unstructured-api-key", c.cfg.APIKey)
	}

	resp, err := httputil.DoWithRetry(ctx, c.client, req, c.cfg.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("partition request for %s: %w", pdfPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("unstructured returned HTTP %d for %s: %s", resp.StatusCode, pdfPath, strings.TrimSpace(string(msg)))
	}

	var elems []Element
	if err := json.NewDecoder(resp.Body).Decode(&elems); err != nil {
		return "", fmt.Errorf("decoding partition response for %s: %w", pdfPath, err)
	}
	return elementsToMarkdown(c.md, elems)
}

func (c *UnstructuredConverter) partitionForm(pdfPath string) ([]byte, string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, "", fmt.Errorf("reading PDF %s: %w", pdfPath, err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", filepath.Base(pdfPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"strategy", c.cfg.Strategy},
		{"hi_res_model_name", c.cfg.Model},
		{"pdf_infer_table_structure", strconv.FormatBool(c.cfg.InferTables)},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
