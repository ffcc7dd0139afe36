// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageSeparator is placed between pages in text-layer output.
const pageSeparator = "\n\n---\n\n"

// PDFTextConverter extracts the embedded text layer in pure Go. Scanned,
// image-only PDFs produce empty output.
type PDFTextConverter struct {
	// fonts caches decoded fonts across pages of one document.
	fonts map[string]*pdf.Font
}

// NewPDFTextConverter returns a text-layer converter.
func NewPDFTextConverter() *PDFTextConverter {
	return &PDFTextConverter{}
}

// Convert implements Converter.
func (c *PDFTextConverter) Convert(ctx context.Context, pdfPath string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("parsing %s: %v", pdfPath, r)
		}
	}()

	f, r, err := pdf.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer f.Close()

	c.fonts = make(map[string]*pdf.Font)
	var parts []string
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := c.fonts[name]; !ok {
				font := p.Font(name)
				c.fonts[name] = &font
			}
		}
		pageText, err := p.GetPlainText(c.fonts)
		if err != nil {
			return "", fmt.Errorf("reading page %d of %s: %w", i, pdfPath, err)
		}
		if trimmed := strings.TrimSpace(pageText); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, pageSeparator), nil
}
