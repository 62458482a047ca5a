// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/gasper/internal/markdown"
)

// ErrTemplateNotFound is returned when an included template does not exist.
var ErrTemplateNotFound = errors.New("template not found")

// ErrIncludeDepth is returned when includes nest deeper than maxIncludeDepth,
// which in practice means a template includes itself.
var ErrIncludeDepth = errors.New("template include depth exceeded")

const maxIncludeDepth = 32

// Loader resolves template references for the engine's include and extends
// tags. The source of an included template is itself rendered against the
// session's current page before the engine parses it, and Markdown templates
// are converted to HTML.
type Loader struct {
	dir     string
	session *Session
	conv    markdown.Converter
	cache   *Cache
	depth   int
}

func newLoader(dir string, session *Session, conv markdown.Converter, cache *Cache) *Loader {
	return &Loader{dir: dir, session: session, conv: conv, cache: cache}
}

// Abs implements pongo2.TemplateLoader. Names are relative to the include
// directory; absolute names are used as-is.
func (l *Loader) Abs(base, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.dir, filepath.FromSlash(name))
}

// Get implements pongo2.TemplateLoader.
func (l *Loader) Get(path string) (io.Reader, error) {
	src, err := l.Resolve(path)
	if err != nil {
		return nil, err
	}
	return strings.NewReader(src), nil
}

// Resolve returns the rendered source of the named template.
func (l *Loader) Resolve(name string) (string, error) {
	path := l.Abs("", name)
	raw, err := l.cache.source(path)
	if err != nil {
		return "", err
	}

	if l.depth >= maxIncludeDepth {
		return "", fmt.Errorf("%w: %s", ErrIncludeDepth, name)
	}
	l.depth++
	defer func() { l.depth-- }()

	out, err := l.session.Render(raw, l.session.Current(), nil)
	if err != nil {
		return "", fmt.Errorf("rendering template %s: %w", name, err)
	}
	if markdown.IsMarkdownPath(path) && l.conv != nil {
		if out, err = l.conv.Convert(out); err != nil {
			return "", fmt.Errorf("rendering template %s: %w", name, err)
		}
	}
	return out, nil
}

// StillValid reports whether the cached source of name matches the file's
// current modification time.
func (l *Loader) StillValid(name string) bool {
	return l.cache.valid(l.Abs("", name))
}

// Cache holds raw template sources keyed by path, invalidated by file
// modification time. One Cache can serve every build of a watch session.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	src     string
	modTime time.Time
}

// NewCache returns an empty template source cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

func (c *Cache) source(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok && e.modTime.Equal(info.ModTime()) {
		return e.src, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading template %s: %w", path, err)
	}
	c.entries[path] = cacheEntry{src: string(data), modTime: info.ModTime()}
	return string(data), nil
}

func (c *Cache) valid(path string) bool {
	c.mu.Lock()
	e, ok := c.entries[path]
	c.mu.Unlock()
	if !ok {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return e.modTime.Equal(info.ModTime())
}
