// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pdfmeta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/pdf-throughput/internal/pdfmeta/pdftest"
)

func TestPageCount(t *testing.T) {
	for _, pages := range []int{1, 3, 12} {
		path := pdftest.Write(t, pages)
		got, err := PageCount(path)
		require.NoError(t, err)
		assert.Equal(t, pages, got)
	}
}

func TestPageCount_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{
			name: "missing file",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.pdf")
			},
		},
		{
			name: "directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
		},
		{
			name: "not a pdf",
			setup: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "notes.pdf")
				require.NoError(t, os.WriteFile(p, []byte("plain text, no header"), 0o644))
				return p
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PageCount(tt.setup(t))
			assert.Error(t, err)
		})
	}
}
