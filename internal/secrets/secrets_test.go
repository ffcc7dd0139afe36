// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  Secrets
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, UnstructuredAPIKey, "  uk_abc123  \n")
				writeFile(t, dir, "tika-token", "tk_xyz789")
				return dir
			},
			want: Secrets{
				UnstructuredAPIKey: "uk_abc123",
				"tika-token":       "tk_xyz789",
			},
		},
		{
			name: "returns empty secrets for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips empty files, dotfiles and subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, UnstructuredAPIKey, "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				writeFile(t, dir, ".gitkeep", "")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: Secrets{UnstructuredAPIKey: "valid-key"},
		},
		{
			name: "skips oversized files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "model-weights", strings.Repeat("x", maxSecretSize+1))
				writeFile(t, dir, UnstructuredAPIKey, "k")
				return dir
			},
			want: Secrets{UnstructuredAPIKey: "k"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root can read files without permission bits")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "value123", got.Get("good-key"))
	assert.Empty(t, got.Get("bad-key"))
}

func TestSecretsHelpers(t *testing.T) {
	s := Secrets{UnstructuredAPIKey: "from-file", "b-key": "2"}

	assert.Equal(t, "explicit", s.Default(UnstructuredAPIKey, "explicit"))
	assert.Equal(t, "from-file", s.Default(UnstructuredAPIKey, ""))
	assert.Equal(t, "", s.Default("missing", ""))
	assert.Equal(t, []string{"b-key", UnstructuredAPIKey}, s.Keys())
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
