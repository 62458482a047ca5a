// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package site

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/gasper/pkg/types"
)

// LoadSiteConfig reads the site configuration at path. A missing file yields
// an empty configuration.
func LoadSiteConfig(path string) (types.SiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return types.SiteConfig{Data: map[string]any{}}, nil
		}
		return types.SiteConfig{}, fmt.Errorf("reading site config: %w", err)
	}

	var cfg map[string]any
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return types.SiteConfig{}, fmt.Errorf("parsing site config %s: %w", path, err)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	return types.SiteConfig{Data: cfg}, nil
}
