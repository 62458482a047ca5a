// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package frontmatter locates and parses the metadata block at the head of a
// source document. Extraction runs in two modes: raw, used by the first scan
// of the tree before any generator row exists, and rendered, used once the
// page context is known.
package frontmatter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/gasper/pkg/types"
)

// ErrMalformed is wrapped by every MatterError.
var ErrMalformed = errors.New("malformed frontmatter")

// MatterError reports a metadata block that is not valid structured data.
// Body is the unrendered document body, written in place of the document
// when generation is abandoned.
type MatterError struct {
	Path  string
	Title string
	Body  string
	Err   error
}

func (e *MatterError) Error() string {
	name := e.Title
	if name == "" {
		name = "untitled document"
	}
	if e.Path != "" {
		return fmt.Sprintf("%s in %s (%s): %v", ErrMalformed, e.Path, name, e.Err)
	}
	return fmt.Sprintf("%s (%s): %v", ErrMalformed, name, e.Err)
}

func (e *MatterError) Unwrap() []error {
	return []error{ErrMalformed, e.Err}
}

// Renderer evaluates template source against a page context.
type Renderer interface {
	Render(src string, page map[string]any, content any) (string, error)
}

// blockPattern matches a "---" line, the block content, and a closing "---"
// line. The content match is non-greedy so the first closing line wins.
var blockPattern = regexp.MustCompile(`(?ms)^---[ \t]*\r?\n(.*?)^---[ \t]*(?:\r?\n|\z)`)

var titlePattern = regexp.MustCompile(`(?m)^title:[ \t]*(.+?)[ \t]*$`)

// Split returns the first metadata block of text and the text with that block
// removed. found is false when text has no block, in which case body is text.
func Split(text string) (block, body string, found bool) {
	loc := blockPattern.FindStringSubmatchIndex(text)
	if loc == nil {
		return "", text, false
	}
	return text[loc[2]:loc[3]], text[:loc[0]] + text[loc[1]:], true
}

// Extractor parses document frontmatter.
type Extractor struct {
	Renderer Renderer
}

// Extract returns the matter and body of text. In raw mode the block is
// parsed without evaluating any template expression: expressions survive as
// literal text, and generator.related is kept as a Deferred fragment. In
// rendered mode the block is first rendered with prior as page.
func (x Extractor) Extract(text string, prior types.Matter, raw bool) (types.Matter, string, error) {
	block, body, found := Split(text)
	if !found {
		return types.Matter{Extra: map[string]any{}}, text, nil
	}

	fail := func(err error) (types.Matter, string, error) {
		return types.Matter{}, body, &MatterError{Title: guessTitle(block), Body: body, Err: err}
	}

	var data map[string]any
	if raw {
		if err := yaml.Unmarshal([]byte(Escape(block)), &data); err != nil {
			return fail(err)
		}
		data = asMap(normalize(data))
		deferRelated(data)
		data = asMap(restore(data))
	} else {
		rendered, err := x.Renderer.Render(block, prior.Map(), nil)
		if err != nil {
			return types.Matter{}, body, fmt.Errorf("rendering frontmatter: %w", err)
		}
		if err := yaml.Unmarshal([]byte(rendered), &data); err != nil {
			return fail(err)
		}
	}

	matter, err := types.ParseMatter(asMap(normalize(data)))
	if err != nil {
		return fail(err)
	}
	return matter, body, nil
}

// Resolve evaluates a Deferred fragment against page and parses the result.
func Resolve(r Renderer, d types.Deferred, page map[string]any) (any, error) {
	if d.IsZero() {
		return nil, nil
	}
	rendered, err := r.Render(d.Source, page, nil)
	if err != nil {
		return nil, fmt.Errorf("rendering related: %w", err)
	}
	var out any
	if err := yaml.Unmarshal([]byte(rendered), &out); err != nil {
		return nil, fmt.Errorf("parsing related: %w: %w", ErrMalformed, err)
	}
	return normalize(out), nil
}

// deferRelated replaces generator.related in escaped data with its source
// text, delimiters restored.
func deferRelated(data map[string]any) {
	gen, ok := data[types.KeyGenerator].(map[string]any)
	if !ok {
		return
	}
	related, ok := gen["related"]
	if !ok || related == nil {
		return
	}
	src, err := yaml.Marshal(related)
	if err != nil {
		return
	}
	gen["related"] = types.Deferred{Source: Unescape(string(src))}
}

func guessTitle(block string) string {
	m := titlePattern.FindStringSubmatch(block)
	if m == nil {
		return ""
	}
	return strings.Trim(m[1], `"'`)
}

// restore unescapes every string in v.
func restore(v any) any {
	switch t := v.(type) {
	case string:
		return Unescape(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[Unescape(k)] = restore(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = restore(val)
		}
		return out
	}
	return v
}

func asMap(v any) map[string]any {
	if m, ok := v.(map[string]any); ok && m != nil {
		return m
	}
	return map[string]any{}
}

// normalize converts the map[any]any values YAML produces for mappings with
// non-string keys into map[string]any so templates can index them.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	}
	return v
}
