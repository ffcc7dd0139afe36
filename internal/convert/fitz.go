// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/gen2brain/go-fitz"
)

// FitzConverter renders each page to HTML with MuPDF and converts the HTML
// to Markdown. It is the in-process counterpart of pymupdf4llm.
type FitzConverter struct {
	md *md.Converter
}

// NewFitzConverter returns a converter with its own HTML-to-Markdown state.
func NewFitzConverter() *FitzConverter {
	return &FitzConverter{md: newMarkdownConverter()}
}

// Convert implements Converter.
func (c *FitzConverter) Convert(ctx context.Context, pdfPath string) (string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening PDF %s: %w", pdfPath, err)
	}
	defer doc.Close()

	var b strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		html, err := doc.HTML(i, true)
		if err != nil {
			return "", fmt.Errorf("rendering page %d of %s: %w", i+1, pdfPath, err)
		}
		text, err := htmlToMarkdown(c.md, html)
		if err != nil {
			return "", fmt.Errorf("converting page %d of %s: %w", i+1, pdfPath, err)
		}
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String(), nil
}
