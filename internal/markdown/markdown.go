// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package markdown converts rendered Markdown text into HTML.
package markdown

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Converter transforms Markdown text into HTML. The pipeline consumes it as
// an opaque capability so tests can swap in a fake.
type Converter interface {
	// Convert returns the HTML rendering of src.
	Convert(src string) (string, error)
}

// GoldmarkConverter is the production Converter. Raw HTML in the source is
// passed through, since layouts are commonly written as HTML inside .md files.
type GoldmarkConverter struct {
	md goldmark.Markdown
}

// NewGoldmarkConverter returns a converter with GitHub Flavored Markdown and
// automatic heading IDs enabled.
func NewGoldmarkConverter() *GoldmarkConverter {
	return &GoldmarkConverter{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(
				parser.WithAutoHeadingID(),
			),
			goldmark.WithRendererOptions(
				gmhtml.WithUnsafe(),
			),
		),
	}
}

// Convert renders src to HTML.
func (g *GoldmarkConverter) Convert(src string) (string, error) {
	var buf bytes.Buffer
	if err := g.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}
	return buf.String(), nil
}

// IsMarkdownPath reports whether path names a Markdown file (.md or .markdown).
func IsMarkdownPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}
