// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"time"

	"github.com/pdiddy/gasper/internal/frontmatter"
	"github.com/pdiddy/gasper/internal/markdown"
	"github.com/pdiddy/gasper/pkg/types"
)

const (
	// DefaultPostsDir is scanned when a posts generator names no path.
	DefaultPostsDir = "_posts"

	// PostDateLayout formats the date field of a post row.
	PostDateLayout = "Jan 02, 2006"

	// maxMatterPasses bounds the re-extraction of a post's frontmatter.
	// Fields that refer to fields set by an earlier pass settle within it.
	maxMatterPasses = 3
)

// postFilePattern matches YYYY-MM-DD-slug.ext.
var postFilePattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})-(.+)\.[^.]+$`)

// Posts reads a directory of dated documents. Each file becomes a row seeded
// with date, filename, and permalink, extended by its frontmatter, and
// carrying its rendered body as content.
type Posts struct {
	Extractor frontmatter.Extractor
	Renderer  frontmatter.Renderer
	Converter markdown.Converter

	// SiteDir resolves the generator's path.
	SiteDir string

	Logger *slog.Logger
}

// Rows implements Source. Rows follow directory walk order.
func (p *Posts) Rows(ctx context.Context, spec types.GeneratorSpec) ([]types.Row, error) {
	dir := spec.Path
	if dir == "" {
		dir = DefaultPostsDir
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(p.SiteDir, dir)
	}

	var rows []types.Row
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		seed, ok := SeedPost(d.Name())
		if !ok {
			p.logger().Debug("skipping post with undated name", "path", path)
			return nil
		}

		row, err := p.post(path, seed)
		if err != nil {
			var me *frontmatter.MatterError
			if errors.As(err, &me) {
				p.logger().Warn("skipping post", "path", path, "error", err)
				return nil
			}
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning posts in %s: %w", dir, err)
	}

	rows = Project(rows, spec.Only)
	if spec.Unique {
		rows = Dedupe(rows)
	}
	return rows, nil
}

// SeedPost derives the starting fields of a post from its file name. ok is
// false when the name is not YYYY-MM-DD-slug.ext or the date is invalid.
func SeedPost(name string) (types.Row, bool) {
	m := postFilePattern.FindStringSubmatch(name)
	if m == nil {
		return nil, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Year() != year || int(date.Month()) != month || date.Day() != day {
		return nil, false
	}

	slug := m[4]
	return types.Row{
		"date":      date.Format(PostDateLayout),
		"filename":  slug,
		"permalink": fmt.Sprintf("%d/%d/%d/%s", year, month, day, slug),
	}, true
}

func (p *Posts) post(path string, seed types.Row) (types.Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading post %s: %w", path, err)
	}
	text := string(data)

	seeded, err := types.ParseMatter(seed)
	if err != nil {
		return nil, err
	}
	matter, body, err := p.settle(text, seeded)
	if err != nil {
		var me *frontmatter.MatterError
		if errors.As(err, &me) {
			me.Path = path
		}
		return nil, err
	}

	content, err := p.Renderer.Render(body, matter.Map(), nil)
	if err != nil {
		return nil, fmt.Errorf("rendering post %s: %w", path, err)
	}
	if markdown.IsMarkdownPath(path) && !matter.IsText() {
		if content, err = p.Converter.Convert(content); err != nil {
			return nil, fmt.Errorf("converting post %s: %w", path, err)
		}
	}

	row := types.Row(matter.Map())
	row["content"] = content
	return row, nil
}

// settle re-extracts the frontmatter of text with the previous pass's matter
// as context until the matter stops changing or maxMatterPasses is reached.
// Extracted fields override the seeded ones.
func (p *Posts) settle(text string, seeded types.Matter) (types.Matter, string, error) {
	current := seeded
	var body string
	for range maxMatterPasses {
		own, b, err := p.Extractor.Extract(text, current, false)
		if err != nil {
			return types.Matter{}, "", err
		}
		body = b
		next := seeded.Merge(own)
		if reflect.DeepEqual(next.Map(), current.Map()) {
			break
		}
		current = next
	}
	return current, body, nil
}

func (p *Posts) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
