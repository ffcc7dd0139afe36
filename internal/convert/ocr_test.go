//go:build tesseract

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-throughput/internal/pdfmeta/pdftest"
	"github.com/pdiddy/pdf-throughput/pkg/types"
)

func TestOCRConverter(t *testing.T) {
	c, err := NewOCRConverter(types.OCRConfig{Languages: []string{"eng"}, DPI: 200})
	require.NoError(t, err)
	defer c.Close()

	out, err := c.Convert(context.Background(), pdftest.Write(t, 2))
	require.NoError(t, err)
	assert.Contains(t, out, "Page")
}
