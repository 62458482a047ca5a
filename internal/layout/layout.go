// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package layout composes a document through its chain of layout templates.
// Each level extracts frontmatter with the matter of the level below as
// context, renders its body with the content of the level below, and hands
// both to the layout it names.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdiddy/gasper/internal/frontmatter"
	"github.com/pdiddy/gasper/internal/markdown"
	"github.com/pdiddy/gasper/pkg/types"
)

var (
	// ErrLayoutNotFound is returned when no file backs a layout reference.
	ErrLayoutNotFound = errors.New("layout not found")

	// ErrLayoutCycle is returned when a layout chain refers back to a file
	// already in the chain.
	ErrLayoutCycle = errors.New("layout cycle")
)

// Extensions lists the layout file extensions tried, in order.
var Extensions = []string{".md", ".markdown", ".html"}

// Composer renders documents through their layout chains.
type Composer struct {
	Extractor frontmatter.Extractor
	Renderer  frontmatter.Renderer
	Converter markdown.Converter

	// LayoutDir is where layout references are resolved.
	LayoutDir string
}

// Result is the outcome of composing one document.
type Result struct {
	// Output is the outermost layout's rendered output.
	Output string

	// Matter is the leaf document's merged matter.
	Matter types.Matter

	// Chain lists the files rendered, leaf first.
	Chain []string

	// Passes counts body renders: one per file in the chain.
	Passes int
}

// Compose renders the document at path. content is what the document sees as
// content (nil for a leaf) and prior is the matter that overrides the
// document's own frontmatter.
func (c Composer) Compose(path string, content any, prior types.Matter) (Result, error) {
	var res Result
	seen := make(map[string]bool)

	for {
		abs, err := filepath.Abs(path)
		if err != nil {
			return res, fmt.Errorf("resolving %s: %w", path, err)
		}
		if seen[abs] {
			return res, fmt.Errorf("%w: %s refers back to %s", ErrLayoutCycle, res.Chain[len(res.Chain)-1], path)
		}
		seen[abs] = true
		res.Chain = append(res.Chain, path)

		data, err := os.ReadFile(path)
		if err != nil {
			return res, fmt.Errorf("reading %s: %w", path, err)
		}

		own, body, err := c.Extractor.Extract(string(data), prior, false)
		if err != nil {
			var me *frontmatter.MatterError
			if errors.As(err, &me) {
				me.Path = path
				return res, me
			}
			return res, fmt.Errorf("extracting frontmatter from %s: %w", path, err)
		}
		matter := own.Merge(prior)
		if len(res.Chain) == 1 {
			res.Matter = matter
		}

		out, err := c.Renderer.Render(body, matter.Map(), content)
		if err != nil {
			return res, fmt.Errorf("rendering %s: %w", path, err)
		}
		res.Passes++
		if !matter.IsText() {
			if out, err = c.Converter.Convert(out); err != nil {
				return res, fmt.Errorf("converting %s: %w", path, err)
			}
		}

		if matter.Layout == "" {
			res.Output = out
			return res, nil
		}

		next, err := c.Find(matter.Layout)
		if err != nil {
			return res, fmt.Errorf("composing %s: %w", path, err)
		}
		matter.Layout = ""
		path, content, prior = next, out, matter
	}
}

// Find resolves a layout reference to a file under LayoutDir, trying each of
// Extensions in turn.
func (c Composer) Find(name string) (string, error) {
	base := filepath.Join(c.LayoutDir, filepath.FromSlash(name))
	for _, ext := range Extensions {
		candidate := base + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q in %s", ErrLayoutNotFound, name, c.LayoutDir)
}
