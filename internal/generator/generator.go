// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generator multiplies a source document into one output per row of
// its generator, or into a single aggregate output when the generator skips
// per-row expansion.
package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cast"

	"github.com/pdiddy/gasper/internal/frontmatter"
	"github.com/pdiddy/gasper/internal/source"
	"github.com/pdiddy/gasper/pkg/types"
)

// Expander resolves generator specifications into per-output matter.
type Expander struct {
	Source    source.Source
	Extractor frontmatter.Extractor
	Renderer  frontmatter.Renderer

	// OutputDir is the root that dumpTo paths are written under.
	OutputDir string

	Logger *slog.Logger
}

// Expand returns the initial matter of every output generated from the
// document text. scan is the document's raw-mode matter. Without a generator
// there is exactly one output; otherwise each output carries its generator
// payload. Data source failures are returned as errors.
func (e *Expander) Expand(ctx context.Context, text string, scan types.Matter) ([]types.Matter, error) {
	if scan.Generator == nil {
		init, _, err := e.Extractor.Extract(text, scan, false)
		if err != nil {
			return nil, err
		}
		return []types.Matter{init}, nil
	}

	spec := *scan.Generator
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	rows, err := e.Source.Rows(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("generator %s: %w", spec.From, err)
	}
	if rows == nil {
		rows = []types.Row{}
	}

	if spec.Skip {
		related, err := e.Related(ctx, spec, rows, nil, -1)
		if err != nil {
			return nil, err
		}
		if err := e.dump(spec, rows, related); err != nil {
			return nil, err
		}
		payload := &types.GeneratorPayload{Index: -1, Count: len(rows), Related: related, Rows: rows}
		init, err := e.withPayload(text, scan, payload)
		if err != nil {
			return nil, err
		}
		return []types.Matter{init}, nil
	}

	// Per-row related data is dumped keyed by row index.
	perRow := map[string]any{}
	outputs := make([]types.Matter, 0, len(rows))
	for i, row := range rows {
		related, err := e.Related(ctx, spec, rows, row, i)
		if err != nil {
			return nil, err
		}
		if len(related) > 0 {
			perRow[strconv.Itoa(i)] = related
		}
		payload := &types.GeneratorPayload{Row: row, Index: i, Count: len(rows), Related: related, Rows: rows}
		init, err := e.withPayload(text, scan, payload)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, init)
	}
	if err := e.dump(spec, rows, perRow); err != nil {
		return nil, err
	}
	return outputs, nil
}

// dump writes the generator's rows and related data when spec names a
// dumpTo path.
func (e *Expander) dump(spec types.GeneratorSpec, rows []types.Row, related map[string]any) error {
	if spec.DumpTo == "" {
		return nil
	}
	path, err := WriteDump(e.OutputDir, spec.DumpTo, rows, related)
	if err != nil {
		return err
	}
	e.logger().Info("dumped generator rows", "path", path, "rows", len(rows))
	return nil
}

// withPayload re-extracts the document's frontmatter with payload visible as
// page.generator and attaches the payload to the result.
func (e *Expander) withPayload(text string, scan types.Matter, payload *types.GeneratorPayload) (types.Matter, error) {
	prior := scan.Clone()
	prior.Payload = payload
	init, _, err := e.Extractor.Extract(text, prior, false)
	if err != nil {
		return types.Matter{}, err
	}
	init.Payload = payload
	return init, nil
}

// Related evaluates the related block of spec for one row and queries each
// named sub-generator. The block is either a list whose entries are named by
// "name" or "table", or a mapping from name to sub-generator. Sub-generators
// inherit the parent's connection. index is -1 when no row applies.
func (e *Expander) Related(ctx context.Context, spec types.GeneratorSpec, rows []types.Row, row types.Row, index int) (map[string]any, error) {
	related := map[string]any{}
	if spec.Related == nil || spec.Related.IsZero() {
		return related, nil
	}

	page := map[string]any{
		types.KeyGenerator: types.GeneratorPayload{Row: row, Index: index, Count: len(rows), Rows: rows}.Map(),
	}
	resolved, err := frontmatter.Resolve(e.Renderer, *spec.Related, page)
	if err != nil {
		return nil, fmt.Errorf("resolving related for row %d: %w", index, err)
	}

	entries, err := relatedEntries(resolved)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		sub, err := types.ParseGeneratorSpec(entry.raw)
		if err != nil {
			return nil, fmt.Errorf("related %q: %w", entry.name, err)
		}
		sub = sub.Inherit(spec)
		subRows, err := e.Source.Rows(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("related %q: %w", entry.name, err)
		}
		if subRows == nil {
			subRows = []types.Row{}
		}
		related[entry.name] = subRows
	}
	return related, nil
}

type relatedEntry struct {
	name string
	raw  map[string]any
}

func relatedEntries(v any) ([]relatedEntry, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		entries := make([]relatedEntry, 0, len(t))
		for i, item := range t {
			raw, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("related entry %d must be a mapping, got %T", i, item)
			}
			name := cast.ToString(raw["name"])
			if name == "" {
				name = cast.ToString(raw["table"])
			}
			if name == "" {
				return nil, fmt.Errorf("related entry %d needs a name or table", i)
			}
			entries = append(entries, relatedEntry{name: name, raw: raw})
		}
		return entries, nil
	case map[string]any:
		entries := make([]relatedEntry, 0, len(t))
		for name, item := range t {
			raw, ok := item.(map[string]any)
			if !ok && item != nil {
				return nil, fmt.Errorf("related %q must be a mapping, got %T", name, item)
			}
			if raw == nil {
				raw = map[string]any{}
			}
			if _, ok := raw["table"]; !ok {
				raw["table"] = name
			}
			entries = append(entries, relatedEntry{name: name, raw: raw})
		}
		return entries, nil
	}
	return nil, fmt.Errorf("related must be a list or a mapping, got %T", v)
}

func (e *Expander) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}
