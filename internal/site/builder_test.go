// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package site

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/gasper/internal/markdown"
	"github.com/pdiddy/gasper/pkg/types"
)

// plainConverter leaves its input unchanged so outputs are easy to compare.
type plainConverter struct{}

func (plainConverter) Convert(src string) (string, error) { return src, nil }

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readOutput(t *testing.T, out, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func newBuilder(t *testing.T, siteDir string) (*Builder, string) {
	t.Helper()
	out := filepath.Join(t.TempDir(), "dist")
	cfg := types.BuildConfig{SiteDir: siteDir, OutputDir: out}
	b := NewBuilder(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	b.Converter = plainConverter{}
	return b, out
}

// newSite lays out a small site with a two-level layout chain, an include,
// a static directory, and a copied asset.
func newSite(t *testing.T) string {
	t.Helper()
	site := t.TempDir()
	writeFile(t, site, "_config.yaml", "title: Demo\nurl: https://demo.test\nsitemap: sitemap.xml\n")
	writeFile(t, site, "_layout/base.html", "<html>{{ site.title }}|{{ page.title }}|{{ content }}</html>")
	writeFile(t, site, "_layout/post.html", "---\nlayout: base\n---\n<article>{{ content }}</article>")
	writeFile(t, site, "_include/footer.html", "footer for {{ page.title }}")
	writeFile(t, site, "_static/css/site.css", "body{}")
	writeFile(t, site, "index.md", "---\ntitle: Home\nlayout: base\n---\nwelcome {% include \"footer.html\" %}")
	writeFile(t, site, "about.md", "---\ntitle: About\nlayout: post\n---\nabout us")
	writeFile(t, site, "feed.xml", "---\npermalink: feed.xml\nparser: text\nsitemap: ignore\n---\n<feed>{{ site.title }}</feed>")
	writeFile(t, site, "img/logo.png", "png")
	writeFile(t, site, "_drafts/wip.md", "---\ntitle: WIP\n---\nnot yet")
	return site
}

func TestBuild(t *testing.T) {
	site := newSite(t)
	b, out := newBuilder(t, site)

	summary, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, summary.ID)
	assert.Equal(t, 3, summary.Generated)
	assert.Zero(t, summary.Degraded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 2, summary.Copied, "static file and image")
	assert.Equal(t, 3, summary.Total())
	assert.False(t, summary.HasFailures())

	assert.Equal(t, "<html>Demo|Home|welcome footer for Home</html>", readOutput(t, out, "index.html"))
	assert.Equal(t, "<html>Demo|About|<article>about us</article></html>", readOutput(t, out, "about/index.html"))
	assert.Equal(t, "<feed>Demo</feed>", readOutput(t, out, "feed.xml"))
	assert.Equal(t, "png", readOutput(t, out, "img/logo.png"))
	assert.Equal(t, "body{}", readOutput(t, out, "static/css/site.css"))

	assert.NoFileExists(t, filepath.Join(out, "_drafts", "wip.md"))
	assert.NoDirExists(t, filepath.Join(out, "wip"))
}

func TestBuildSitemap(t *testing.T) {
	site := newSite(t)
	b, out := newBuilder(t, site)

	summary, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "sitemap.xml"), summary.Sitemap)

	sm := readOutput(t, out, "sitemap.xml")
	assert.Contains(t, sm, "<loc>https://demo.test/</loc>")
	assert.Contains(t, sm, "<loc>https://demo.test/about/</loc>")
	assert.NotContains(t, sm, "feed.xml", "sitemap: ignore opts out")
}

func TestBuildWithoutSitemapKey(t *testing.T) {
	site := t.TempDir()
	writeFile(t, site, "index.html", "hi")
	b, out := newBuilder(t, site)

	summary, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Sitemap)
	assert.NoFileExists(t, filepath.Join(out, "sitemap.xml"))
	assert.Equal(t, "hi", readOutput(t, out, "index.html"))
}

func TestBuildCleansOutputKeepingEntries(t *testing.T) {
	site := newSite(t)
	b, out := newBuilder(t, site)
	writeFile(t, out, "stale/index.html", "old")
	writeFile(t, out, "CNAME", "demo.test")
	writeFile(t, out, ".git/HEAD", "ref")

	_, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(out, "stale"))
	assert.Equal(t, "demo.test", readOutput(t, out, "CNAME"))
	assert.Equal(t, "ref", readOutput(t, out, ".git/HEAD"))
}

func TestBuildOnly(t *testing.T) {
	site := newSite(t)
	b, out := newBuilder(t, site)
	writeFile(t, out, "stale/index.html", "old")
	b.Config.Only = "about.md"

	summary, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Generated)
	assert.FileExists(t, filepath.Join(out, "about", "index.html"))
	assert.NoFileExists(t, filepath.Join(out, "index.html"))
	assert.FileExists(t, filepath.Join(out, "stale", "index.html"), "no cleaning")
	assert.NoFileExists(t, filepath.Join(out, "sitemap.xml"))
}

func TestBuildGeneratorFromSQLite(t *testing.T) {
	site := t.TempDir()
	db, err := sql.Open("sqlite3", filepath.Join(site, "data.db"))
	require.NoError(t, err)
	for _, stmt := range []string{
		`CREATE TABLE people (id INTEGER, name TEXT)`,
		`INSERT INTO people VALUES (1, 'ada')`,
		`INSERT INTO people VALUES (2, 'bob')`,
		`CREATE TABLE pets (owner INTEGER, pet TEXT)`,
		`INSERT INTO pets VALUES (1, 'rex')`,
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	writeFile(t, site, "_config.yaml", "url: https://demo.test\nsitemap: sitemap.xml\n")
	writeFile(t, site, "people.html", "---\n"+
		"title: {{ page.generator.row.name }}\n"+
		"permalink: people/{{ page.generator.row.name }}\n"+
		"generator:\n"+
		"  from: sqlite\n  database: data.db\n  table: people\n  order: id\n"+
		"  dumpTo: data/people.json\n"+
		"  related:\n"+
		"    - table: pets\n"+
		"      where: owner = {{ page.generator.row.id }}\n"+
		"---\n"+
		"{{ page.title }} ({{ page.generator.index }}/{{ page.generator.count }})"+
		"{% for p in page.generator.related.pets %} {{ p.pet }}{% endfor %}")

	b, out := newBuilder(t, site)
	summary, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Generated)

	assert.Equal(t, "ada (0/2) rex", readOutput(t, out, "people/ada/index.html"))
	assert.Equal(t, "bob (1/2)", readOutput(t, out, "people/bob/index.html"))
	assert.Contains(t, readOutput(t, out, "data/people.json"), `"ada"`)

	sm := readOutput(t, out, "sitemap.xml")
	assert.Contains(t, sm, "https://demo.test/people/ada/")
	assert.Contains(t, sm, "https://demo.test/people/bob/")
}

func TestBuildPostsIndex(t *testing.T) {
	site := t.TempDir()
	writeFile(t, site, "_posts/2024-03-05-hello.md", "---\ntitle: Hello\n---\nfirst")
	writeFile(t, site, "_posts/2024-04-01-again.md", "---\ntitle: Again\n---\nsecond")
	writeFile(t, site, "blog.html", "---\n"+
		"parser: text\n"+
		"generator:\n  from: posts\n  skip: true\n"+
		"---\n"+
		"{% for p in page.generator.rows %}[{{ p.title }} {{ p.permalink }}]{% endfor %}")

	b, out := newBuilder(t, site)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	got := readOutput(t, out, "blog/index.html")
	assert.Contains(t, got, "[Hello 2024/3/5/hello]")
	assert.Contains(t, got, "[Again 2024/4/1/again]")
	assert.NoDirExists(t, filepath.Join(out, "_posts"))
}

func TestBuildDegradesMalformedFrontmatter(t *testing.T) {
	site := t.TempDir()
	writeFile(t, site, "broken.md", "---\ntitle: Broken\nkey: [unclosed\n---\nraw {{ body }}")
	writeFile(t, site, "index.md", "fine")

	b, out := newBuilder(t, site)
	summary, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Degraded)
	assert.Equal(t, 1, summary.Generated)
	assert.Equal(t, "raw {{ body }}", readOutput(t, out, "broken/index.html"))
}

func TestBuildFailures(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "missing layout", doc: "---\nlayout: nowhere\n---\nx", want: "1 of 2 documents failed"},
		{name: "template error", doc: "{% if %}", want: "1 of 2 documents failed"},
		{name: "layout cycle", doc: "---\nlayout: loop\n---\nx", want: "1 of 2 documents failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := t.TempDir()
			writeFile(t, site, "_layout/loop.html", "---\nlayout: loop\n---\n{{ content }}")
			writeFile(t, site, "bad.md", tt.doc)
			writeFile(t, site, "good.md", "ok")

			b, out := newBuilder(t, site)
			summary, err := b.Build(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 1, summary.Failed)
			assert.True(t, summary.HasFailures())
			assert.Equal(t, "ok", readOutput(t, out, "good/index.html"), "other documents still build")
		})
	}
}

func TestBuildMalformedLayoutFails(t *testing.T) {
	site := t.TempDir()
	writeFile(t, site, "_layout/bad.html", "---\nkey: [unclosed\n---\n{{ content }}")
	writeFile(t, site, "page.md", "---\nlayout: bad\n---\nx")

	b, _ := newBuilder(t, site)
	summary, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.Degraded)
}

func TestBuildDataSourceErrorAborts(t *testing.T) {
	site := t.TempDir()
	writeFile(t, site, "people.html", "---\ngenerator:\n  from: sqlite\n  database: missing.db\n  table: people\n---\n")

	b, _ := newBuilder(t, site)
	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expanding people.html")
}

func TestBuildMissingSiteDir(t *testing.T) {
	b, _ := newBuilder(t, filepath.Join(t.TempDir(), "nope"))
	_, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestBuildCanceled(t *testing.T) {
	site := newSite(t)
	b, _ := newBuilder(t, site)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Build(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBuildRepeatable(t *testing.T) {
	site := newSite(t)
	b, out := newBuilder(t, site)

	_, err := b.Build(context.Background())
	require.NoError(t, err)
	writeFile(t, site, "about.md", "---\ntitle: About us\nlayout: post\n---\nchanged")

	_, err = b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "<html>Demo|About us|<article>changed</article></html>", readOutput(t, out, "about/index.html"))
}

func TestBuildMarkdown(t *testing.T) {
	site := t.TempDir()
	writeFile(t, site, "index.md", "# Title\n\nbody")

	b, out := newBuilder(t, site)
	b.Converter = markdown.NewGoldmarkConverter()

	_, err := b.Build(context.Background())
	require.NoError(t, err)
	got := readOutput(t, out, "index.html")
	assert.Contains(t, got, "Title</h1>")
	assert.Contains(t, got, "<p>body</p>")
}
