// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials from a directory of plain-text files.
// Each file in the directory is one secret: the filename is the key name and
// the trimmed file contents are the value. Database generators name a secret
// with passwordSecret instead of writing the password into a page.
package secrets

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Lookup when no secret has the requested name.
var ErrNotFound = errors.New("secret not found")

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			slog.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Store resolves named secrets from a directory, loading it on first use.
type Store struct {
	dir    string
	values map[string]string
}

// NewStore returns a Store over dir. Nothing is read until Lookup.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Lookup returns the secret called name.
func (s *Store) Lookup(name string) (string, error) {
	if s.values == nil {
		values, err := Load(s.dir)
		if err != nil {
			return "", err
		}
		s.values = values
	}
	v, ok := s.values[name]
	if !ok {
		return "", fmt.Errorf("%w: %s in %s", ErrNotFound, name, s.dir)
	}
	return v, nil
}
