// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pdfmeta reads cheap document metadata from PDF files.
package pdfmeta

import (
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

// PageCount returns the number of pages in the PDF at path. It reads the
// cross-reference table and the page tree root only; page content streams
// are never decoded.
func PageCount(path string) (n int, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}

	// The parser panics on some malformed trailers.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening PDF %s: %w", path, err)
	}
	defer f.Close()

	n = r.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("PDF %s has no pages", path)
	}
	return n, nil
}
