// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/gasper/pkg/types"
)

// Dump is the blob written to a generator's dumpTo path.
type Dump struct {
	Rows    []types.Row    `json:"rows" yaml:"rows"`
	Related map[string]any `json:"related" yaml:"related"`
}

// WriteDump writes rows and related under outputDir at rel, creating
// intermediate directories. The blob is YAML when rel ends in .yaml or .yml
// and JSON otherwise. rel cannot escape outputDir. It returns the path
// written.
func WriteDump(outputDir, rel string, rows []types.Row, related map[string]any) (string, error) {
	if rows == nil {
		rows = []types.Row{}
	}
	if related == nil {
		related = map[string]any{}
	}
	dump := Dump{Rows: rows, Related: related}

	path := filepath.Join(outputDir, filepath.FromSlash(filepath.Clean("/"+rel)))

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(dump)
		if err != nil {
			return "", fmt.Errorf("marshaling YAML: %w", err)
		}
	default:
		data, err = json.Marshal(dump)
		if err != nil {
			return "", fmt.Errorf("marshaling JSON: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating dump directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing dump %s: %w", path, err)
	}
	return path, nil
}
