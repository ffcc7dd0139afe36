//go:build !tesseract

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"

	"github.com/pdiddy/pdf-throughput/pkg/types"
)

// OCREnabled reports whether the binary was built with Tesseract support.
const OCREnabled = false

// ErrOCRDisabled is returned when the ocr engine is selected in a binary
// built without the tesseract tag.
var ErrOCRDisabled = errors.New("ocr engine not built in: rebuild with -tags tesseract")

// OCRConverter is a placeholder; NewOCRConverter always fails.
type OCRConverter struct{}

// NewOCRConverter fails with ErrOCRDisabled.
func NewOCRConverter(types.OCRConfig) (*OCRConverter, error) {
	return nil, ErrOCRDisabled
}

// Convert fails with ErrOCRDisabled.
func (c *OCRConverter) Convert(context.Context, string) (string, error) {
	return "", ErrOCRDisabled
}
