// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package site builds a whole site: it walks the source tree, expands
// generators, composes every output through its layouts, copies static
// files, and writes the sitemap.
package site

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/gasper/internal/frontmatter"
	"github.com/pdiddy/gasper/internal/generator"
	"github.com/pdiddy/gasper/internal/layout"
	"github.com/pdiddy/gasper/internal/markdown"
	"github.com/pdiddy/gasper/internal/render"
	"github.com/pdiddy/gasper/internal/secrets"
	"github.com/pdiddy/gasper/internal/sitemap"
	"github.com/pdiddy/gasper/internal/source"
	"github.com/pdiddy/gasper/pkg/types"
)

// Summary reports the outcome of one build.
type Summary struct {
	ID string

	// Generated counts output documents written.
	Generated int

	// Degraded counts documents written as their raw body because their
	// frontmatter was malformed.
	Degraded int

	// Failed counts outputs that could not be composed.
	Failed int

	// Copied counts files copied without rendering.
	Copied int

	Sitemap  string
	Duration time.Duration
}

// Total returns the number of documents processed.
func (s Summary) Total() int {
	return s.Generated + s.Degraded + s.Failed
}

// HasFailures reports whether any output failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Builder runs full builds of one site. A Builder may run many builds in
// sequence; the template source cache is shared between them and everything
// else is rebuilt each time.
type Builder struct {
	Config    types.BuildConfig
	Converter markdown.Converter
	Logger    *slog.Logger

	cache *render.Cache
}

// NewBuilder returns a builder for cfg.
func NewBuilder(cfg types.BuildConfig, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		Config:    cfg.WithDefaults(),
		Converter: markdown.NewGoldmarkConverter(),
		Logger:    logger,
		cache:     render.NewCache(),
	}
}

// build carries the state of a single build.
type build struct {
	siteDir   string
	outputDir string
	only      string
	log       *slog.Logger

	extractor frontmatter.Extractor
	composer  layout.Composer
	expander  *generator.Expander
	sitemap   *sitemap.Accumulator
	summary   Summary
}

// Build runs one full build. Documents that fail to compose are counted and
// logged, and Build returns an error after the walk when any failed. A data
// source failure stops the build immediately.
func (b *Builder) Build(ctx context.Context) (Summary, error) {
	start := time.Now()
	id := uuid.NewString()
	log := b.Logger.With("build.id", id)
	cfg := b.Config.WithDefaults()

	siteDir, err := filepath.Abs(cfg.SiteDir)
	if err != nil {
		return Summary{ID: id}, fmt.Errorf("resolving site directory: %w", err)
	}
	if info, err := os.Stat(siteDir); err != nil || !info.IsDir() {
		return Summary{ID: id}, fmt.Errorf("site directory %s does not exist", cfg.SiteDir)
	}
	outputDir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return Summary{ID: id}, fmt.Errorf("resolving output directory: %w", err)
	}

	siteCfg, err := LoadSiteConfig(filepath.Join(siteDir, cfg.SiteConfig))
	if err != nil {
		return Summary{ID: id}, err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Summary{ID: id}, fmt.Errorf("creating output directory: %w", err)
	}

	st := &build{siteDir: siteDir, outputDir: outputDir, log: log}
	st.summary.ID = id

	if cfg.Only != "" {
		st.only = filepath.ToSlash(filepath.Clean(cfg.Only))
	} else {
		if err := CleanDir(outputDir, cfg.Keep); err != nil {
			return st.summary, err
		}
		n, err := CopyDir(filepath.Join(siteDir, cfg.StaticDir), filepath.Join(outputDir, "static"))
		if err != nil {
			return st.summary, err
		}
		st.summary.Copied += n
	}

	session := render.NewSession(filepath.Join(siteDir, cfg.IncludeDir), siteCfg.Data, b.Converter, b.cache)
	st.extractor = frontmatter.Extractor{Renderer: session}
	st.composer = layout.Composer{
		Extractor: st.extractor,
		Renderer:  session,
		Converter: b.Converter,
		LayoutDir: filepath.Join(siteDir, cfg.LayoutDir),
	}

	secretsDir := cfg.SecretsDir
	if !filepath.IsAbs(secretsDir) {
		secretsDir = filepath.Join(siteDir, secretsDir)
	}
	db := source.NewDatabase(siteDir, secrets.NewStore(secretsDir))
	defer db.Close()

	registry := source.NewRegistry()
	registry.Register(db, types.FromDatabase, types.FromMySQL, types.FromSQLite)
	registry.Register(&source.Posts{
		Extractor: st.extractor,
		Renderer:  session,
		Converter: b.Converter,
		SiteDir:   siteDir,
		Logger:    log,
	}, types.FromPosts)

	st.expander = &generator.Expander{
		Source:    postsDefault{registry, cfg.PostsDir},
		Extractor: st.extractor,
		Renderer:  session,
		OutputDir: outputDir,
		Logger:    log,
	}

	if name := siteCfg.Sitemap(); name != "" {
		st.sitemap = sitemap.New(siteCfg.URL())
	}

	log.Info("building site", "site", siteDir, "output", outputDir)
	if err := st.walk(ctx); err != nil {
		st.summary.Duration = time.Since(start)
		return st.summary, err
	}

	if st.sitemap != nil && st.only == "" {
		path, err := st.sitemap.Write(outputDir, siteCfg.Sitemap())
		if err != nil {
			return st.summary, err
		}
		st.summary.Sitemap = path
		log.Info("wrote sitemap", "path", path, "urls", st.sitemap.Len())
	}

	st.summary.Duration = time.Since(start)
	log.Info("build finished",
		"generated", st.summary.Generated,
		"degraded", st.summary.Degraded,
		"failed", st.summary.Failed,
		"copied", st.summary.Copied,
		"duration", st.summary.Duration)

	if st.summary.HasFailures() {
		return st.summary, fmt.Errorf("%d of %d documents failed", st.summary.Failed, st.summary.Total())
	}
	return st.summary, nil
}

func (st *build) walk(ctx context.Context) error {
	return filepath.WalkDir(st.siteDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == st.siteDir {
			return nil
		}
		if path == st.outputDir || skipName(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(st.siteDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if st.only != "" && rel != st.only {
			return nil
		}

		if !IsDocument(rel) {
			if err := CopyFile(path, filepath.Join(st.outputDir, filepath.FromSlash(rel))); err != nil {
				return err
			}
			st.summary.Copied++
			return nil
		}
		return st.document(ctx, path, rel)
	})
}

// skipName reports whether a walked entry is excluded from the build.
// Underscore entries hold layouts, includes, posts, and static files;
// dot entries hold tool state.
func skipName(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// document generates every output of one source document. The returned
// error aborts the build.
func (st *build) document(ctx context.Context, path, rel string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", rel, err)
	}
	text := string(data)

	scan, _, err := st.extractor.Extract(text, types.Matter{}, true)
	if err != nil {
		return st.degrade(path, rel, "", err)
	}

	outputs, err := st.expander.Expand(ctx, text, scan)
	if err != nil {
		var me *frontmatter.MatterError
		if errors.As(err, &me) {
			return st.degrade(path, rel, "", err)
		}
		return fmt.Errorf("expanding %s: %w", rel, err)
	}

	for _, init := range outputs {
		res, err := st.composer.Compose(path, nil, init)
		if err != nil {
			if derr := st.degrade(path, rel, init.Permalink, err); derr != nil {
				st.summary.Failed++
				st.log.Error("document failed", "src", rel, "error", derr)
			}
			continue
		}

		target := Target(rel, res.Matter.Permalink)
		if err := writeOutput(filepath.Join(st.outputDir, filepath.FromSlash(target)), []byte(res.Output)); err != nil {
			return fmt.Errorf("writing %s: %w", target, err)
		}
		st.summary.Generated++
		st.log.Info("wrote document", "src", rel, "target", target, "layouts", len(res.Chain)-1)

		if st.sitemap != nil && !res.Matter.SitemapIgnored() {
			st.sitemap.Record(target)
		}
	}
	return nil
}

// degrade writes the raw body of a document whose own frontmatter is
// malformed. Any other error, including malformed frontmatter in one of its
// layouts, is returned unchanged for the caller to count.
func (st *build) degrade(path, rel, permalink string, err error) error {
	var me *frontmatter.MatterError
	if !errors.As(err, &me) || (me.Path != "" && me.Path != path) {
		return err
	}
	target := Target(rel, permalink)
	if werr := writeOutput(filepath.Join(st.outputDir, filepath.FromSlash(target)), []byte(me.Body)); werr != nil {
		return fmt.Errorf("writing %s: %w", target, werr)
	}
	st.summary.Degraded++

	title := me.Title
	if title == "" {
		title = "untitled document"
	}
	st.log.Warn("malformed frontmatter, wrote raw body", "src", rel, "title", title, "error", me.Err)
	return nil
}

// postsDefault fills in the configured posts directory for posts generators
// that name no path.
type postsDefault struct {
	source.Source
	dir string
}

func (p postsDefault) Rows(ctx context.Context, spec types.GeneratorSpec) ([]types.Row, error) {
	if spec.From == types.FromPosts && spec.Path == "" {
		spec.Path = p.dir
	}
	return p.Source.Rows(ctx, spec)
}
