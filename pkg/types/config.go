// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"github.com/spf13/cast"
)

// BuildConfig holds the tool settings for one site build. It is decoded by
// viper from gasper.yaml, GASPER_* environment variables, and flags.
type BuildConfig struct {
	// SiteDir is the root of the source tree.
	SiteDir string `json:"site_dir" yaml:"site_dir" mapstructure:"site_dir"`

	// OutputDir is the output root (default "dist").
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Keep lists top-level entries of the output root that survive cleaning.
	Keep []string `json:"keep" yaml:"keep" mapstructure:"keep"`

	// LayoutDir, IncludeDir, StaticDir, and PostsDir are relative to SiteDir.
	LayoutDir  string `json:"layout_dir" yaml:"layout_dir" mapstructure:"layout_dir"`
	IncludeDir string `json:"include_dir" yaml:"include_dir" mapstructure:"include_dir"`
	StaticDir  string `json:"static_dir" yaml:"static_dir" mapstructure:"static_dir"`
	PostsDir   string `json:"posts_dir" yaml:"posts_dir" mapstructure:"posts_dir"`

	// SiteConfig is the site configuration file, relative to SiteDir.
	SiteConfig string `json:"site_config" yaml:"site_config" mapstructure:"site_config"`

	// SecretsDir holds credential files referenced by passwordSecret.
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`

	// Only restricts the build to a single source file, relative to SiteDir.
	Only string `json:"only,omitempty" yaml:"only,omitempty" mapstructure:"only"`
}

// DefaultBuildConfig returns the conventional layout of a site tree.
func DefaultBuildConfig() BuildConfig {
	return BuildConfig{
		SiteDir:    ".",
		OutputDir:  "dist",
		Keep:       []string{"static", ".git", "CNAME"},
		LayoutDir:  "_layout",
		IncludeDir: "_include",
		StaticDir:  "_static",
		PostsDir:   "_posts",
		SiteConfig: "_config.yaml",
		SecretsDir: ".secrets",
	}
}

// WithDefaults fills empty fields from DefaultBuildConfig.
func (c BuildConfig) WithDefaults() BuildConfig {
	d := DefaultBuildConfig()
	if c.SiteDir == "" {
		c.SiteDir = d.SiteDir
	}
	if c.OutputDir == "" {
		c.OutputDir = d.OutputDir
	}
	if c.Keep == nil {
		c.Keep = d.Keep
	}
	if c.LayoutDir == "" {
		c.LayoutDir = d.LayoutDir
	}
	if c.IncludeDir == "" {
		c.IncludeDir = d.IncludeDir
	}
	if c.StaticDir == "" {
		c.StaticDir = d.StaticDir
	}
	if c.PostsDir == "" {
		c.PostsDir = d.PostsDir
	}
	if c.SiteConfig == "" {
		c.SiteConfig = d.SiteConfig
	}
	if c.SecretsDir == "" {
		c.SecretsDir = d.SecretsDir
	}
	return c
}

// SiteConfig is the user's site configuration. Data is exposed to every
// template as site; URL and Sitemap are read by the pipeline.
type SiteConfig struct {
	Data map[string]any
}

// URL is the base URL used for sitemap entries.
func (s SiteConfig) URL() string {
	return cast.ToString(s.Data["url"])
}

// Sitemap is the sitemap file name under the output root. Empty disables the
// sitemap.
func (s SiteConfig) Sitemap() string {
	return cast.ToString(s.Data["sitemap"])
}
