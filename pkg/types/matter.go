// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the gasper build pipeline:
// document matter, generator specifications and payloads, rows, and the
// build and site configuration.
package types

import (
	"fmt"
	"maps"

	"github.com/spf13/cast"
)

// Reserved matter keys. Every other key is user data and lands in Matter.Extra.
const (
	KeyLayout    = "layout"
	KeyPermalink = "permalink"
	KeyParser    = "parser"
	KeySitemap   = "sitemap"
	KeyGenerator = "generator"
	KeyTitle     = "title"
)

const (
	// ParserText renders a document without Markdown conversion.
	ParserText = "text"

	// SitemapIgnore keeps a document out of the sitemap.
	SitemapIgnore = "ignore"
)

// Matter is the resolved metadata of a document at one point in the pipeline.
// Reserved keys get explicit fields; user-defined keys live in Extra.
type Matter struct {
	// Layout names the parent template under the layout directory.
	Layout string `json:"layout,omitempty" yaml:"layout,omitempty"`

	// Permalink overrides the output path, relative to the output root.
	Permalink string `json:"permalink,omitempty" yaml:"permalink,omitempty"`

	// Parser selects the rendering mode; "text" skips Markdown conversion.
	Parser string `json:"parser,omitempty" yaml:"parser,omitempty"`

	// Sitemap set to "ignore" suppresses sitemap inclusion.
	Sitemap string `json:"sitemap,omitempty" yaml:"sitemap,omitempty"`

	// Generator is the document's generator specification, if any.
	Generator *GeneratorSpec `json:"-" yaml:"-"`

	// Payload is the per-output generator data exposed to templates as
	// page.generator once rows exist.
	Payload *GeneratorPayload `json:"-" yaml:"-"`

	// Extra holds every user-defined key.
	Extra map[string]any `json:"-" yaml:"-"`
}

// ParseMatter converts a decoded frontmatter map into Matter. Reserved keys
// must hold scalar values; generator must be a mapping.
func ParseMatter(m map[string]any) (Matter, error) {
	var matter Matter
	matter.Extra = make(map[string]any, len(m))

	for k, v := range m {
		var err error
		switch k {
		case KeyLayout:
			matter.Layout, err = scalarString(k, v)
		case KeyPermalink:
			matter.Permalink, err = scalarString(k, v)
		case KeyParser:
			matter.Parser, err = scalarString(k, v)
		case KeySitemap:
			matter.Sitemap, err = scalarString(k, v)
		case KeyGenerator:
			if v == nil {
				continue
			}
			raw, ok := v.(map[string]any)
			if !ok {
				return Matter{}, fmt.Errorf("generator must be a mapping, got %T", v)
			}
			spec, specErr := ParseGeneratorSpec(raw)
			if specErr != nil {
				return Matter{}, specErr
			}
			matter.Generator = &spec
		default:
			matter.Extra[k] = v
		}
		if err != nil {
			return Matter{}, err
		}
	}
	return matter, nil
}

func scalarString(key string, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("matter key %q: %w", key, err)
	}
	return s, nil
}

// Map returns the template view of the matter. page.generator is the payload
// when one is attached, otherwise the raw generator specification.
func (m Matter) Map() map[string]any {
	out := make(map[string]any, len(m.Extra)+5)
	maps.Copy(out, m.Extra)
	if m.Layout != "" {
		out[KeyLayout] = m.Layout
	}
	if m.Permalink != "" {
		out[KeyPermalink] = m.Permalink
	}
	if m.Parser != "" {
		out[KeyParser] = m.Parser
	}
	if m.Sitemap != "" {
		out[KeySitemap] = m.Sitemap
	}
	switch {
	case m.Payload != nil:
		out[KeyGenerator] = m.Payload.Map()
	case m.Generator != nil:
		out[KeyGenerator] = m.Generator.Raw
	}
	return out
}

// Merge overlays prior on m and returns the result. Prior values win: they
// come from data closer to the leaf document.
func (m Matter) Merge(prior Matter) Matter {
	out := m.Clone()
	if prior.Layout != "" {
		out.Layout = prior.Layout
	}
	if prior.Permalink != "" {
		out.Permalink = prior.Permalink
	}
	if prior.Parser != "" {
		out.Parser = prior.Parser
	}
	if prior.Sitemap != "" {
		out.Sitemap = prior.Sitemap
	}
	if prior.Generator != nil {
		out.Generator = prior.Generator
	}
	if prior.Payload != nil {
		out.Payload = prior.Payload
	}
	maps.Copy(out.Extra, prior.Extra)
	return out
}

// Clone returns a copy whose Extra map can be modified independently.
func (m Matter) Clone() Matter {
	out := m
	out.Extra = make(map[string]any, len(m.Extra))
	maps.Copy(out.Extra, m.Extra)
	return out
}

// Title returns the title key as a string, or "" when absent.
func (m Matter) Title() string {
	if v, ok := m.Extra[KeyTitle]; ok {
		return cast.ToString(v)
	}
	return ""
}

// IsText reports whether Markdown conversion is disabled.
func (m Matter) IsText() bool {
	return m.Parser == ParserText
}

// SitemapIgnored reports whether the document opts out of the sitemap.
func (m Matter) SitemapIgnored() bool {
	return m.Sitemap == SitemapIgnore
}
