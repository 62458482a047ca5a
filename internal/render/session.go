// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render wraps the template engine used for every document, layout,
// frontmatter block, and included template. A Session lives for one build and
// scopes the "current page" that included templates are rendered against.
package render

import (
	"fmt"

	"github.com/flosch/pongo2/v6"

	"github.com/pdiddy/gasper/internal/markdown"
)

func init() {
	// Output is HTML assembled from trusted site sources; escaping would
	// mangle rendered content threaded through layouts.
	pongo2.SetAutoescape(false)
	registerFilters()
}

// Session renders templates for one build. It is not safe for concurrent use.
type Session struct {
	set    *pongo2.TemplateSet
	loader *Loader
	site   map[string]any

	// pages is a stack of the page contexts of the renders in flight. The
	// top is what included templates see as page.
	pages []map[string]any
}

// NewSession creates a render session whose includes resolve under
// includeDir. cache may be shared between sessions; nil creates a private one.
func NewSession(includeDir string, site map[string]any, conv markdown.Converter, cache *Cache) *Session {
	if site == nil {
		site = map[string]any{}
	}
	if cache == nil {
		cache = NewCache()
	}
	s := &Session{site: site}
	s.loader = newLoader(includeDir, s, conv, cache)
	s.set = pongo2.NewSet("gasper", s.loader)
	s.set.Globals["json"] = toJSON
	return s
}

// Render evaluates src with page, content, and the site configuration in
// scope. content is nil for the innermost render of a document.
func (s *Session) Render(src string, page map[string]any, content any) (string, error) {
	if page == nil {
		page = map[string]any{}
	}
	s.pages = append(s.pages, page)
	defer func() { s.pages = s.pages[:len(s.pages)-1] }()

	tpl, err := s.set.FromString(src)
	if err != nil {
		return "", fmt.Errorf("parsing template: %w", err)
	}
	out, err := tpl.Execute(pongo2.Context{
		"page":    page,
		"content": content,
		"site":    s.site,
	})
	if err != nil {
		return "", fmt.Errorf("executing template: %w", err)
	}
	return out, nil
}

// Current returns the page context of the innermost render in flight, or an
// empty map outside any render.
func (s *Session) Current() map[string]any {
	if len(s.pages) == 0 {
		return map[string]any{}
	}
	return s.pages[len(s.pages)-1]
}

// Site returns the site configuration visible to templates.
func (s *Session) Site() map[string]any {
	return s.site
}

// Loader returns the include loader backing this session.
func (s *Session) Loader() *Loader {
	return s.loader
}
