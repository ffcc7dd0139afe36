// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads engine credentials from a directory of plain-text
// files. Each file is one secret: the filename is the key and the trimmed
// contents are the value.
//
// Known keys: unstructured-api-key.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// UnstructuredAPIKey authenticates against a hosted Unstructured API.
const UnstructuredAPIKey = "unstructured-api-key"

// maxSecretSize skips files that are clearly not a single credential.
const maxSecretSize = 64 << 10

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir. A missing directory is not an error and
// yields empty Secrets. Unreadable or oversized files produce a warning on
// stderr but do not abort.
func Load(dir string) (Secrets, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	s := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		name := entry.Name()

		if info, err := entry.Info(); err == nil && info.Size() > maxSecretSize {
			fmt.Fprintf(os.Stderr, "warning: ignoring secret %s: file larger than %d bytes\n", name, maxSecretSize)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		if value := strings.TrimSpace(string(data)); value != "" {
			s[name] = value
		}
	}
	return s, nil
}

// Get returns the value for key, or "" when absent.
func (s Secrets) Get(key string) string {
	return s[key]
}

// Default returns explicit when it is set, else the secret for key.
// Configured values win over the secrets directory.
func (s Secrets) Default(key, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s[key]
}

// Keys returns the loaded key names in sorted order, for diagnostics that
// must not print values.
func (s Secrets) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
