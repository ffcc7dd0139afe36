//go:build tesseract

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"

	"github.com/pdiddy/pdf-throughput/pkg/types"
)

// OCREnabled reports whether the binary was built with Tesseract support.
const OCREnabled = true

// OCRConverter renders each page with MuPDF and recognizes it with
// Tesseract. Each converter owns one Tesseract client; clients are not safe
// for concurrent use.
type OCRConverter struct {
	client *gosseract.Client
	dpi    float64
}

// NewOCRConverter creates a Tesseract client for cfg.Languages. Missing
// language data fails here, outside the timed region.
func NewOCRConverter(cfg types.OCRConfig) (*OCRConverter, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("configuring tesseract languages %v: %w", cfg.Languages, err)
	}
	return &OCRConverter{client: client, dpi: cfg.DPI}, nil
}

// Convert implements Converter.
func (c *OCRConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer doc.Close()

	var pages []string
	var buf bytes.Buffer
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		img, err := doc.ImageDPI(i, c.dpi)
		if err != nil {
			return "", fmt.Errorf("rendering page %d of %s: %w", i+1, pdfPath, err)
		}
		buf.Reset()
		if err := png.Encode(&buf, img); err != nil {
			return "", fmt.Errorf("encoding page %d of %s: %w", i+1, pdfPath, err)
		}
		if err := c.client.SetImageFromBytes(buf.Bytes()); err != nil {
			return "", fmt.Errorf("loading page %d into tesseract: %w", i+1, err)
		}
		text, err := c.client.Text()
		if err != nil {
			return "", fmt.Errorf("recognizing page %d of %s: %w", i+1, pdfPath, err)
		}
		if md := paragraphs(text); md != "" {
			pages = append(pages, md)
		}
	}
	return strings.Join(pages, pageSeparator), nil
}

// Close releases the Tesseract client.
func (c *OCRConverter) Close() error {
	return c.client.Close()
}
