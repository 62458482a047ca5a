// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/gasper/internal/frontmatter"
	"github.com/pdiddy/gasper/internal/render"
	"github.com/pdiddy/gasper/pkg/types"
)

// wrapConverter marks converted output so tests can see each conversion.
type wrapConverter struct{}

func (wrapConverter) Convert(src string) (string, error) {
	return "<md>" + src + "</md>", nil
}

func newComposer(t *testing.T) (Composer, string) {
	t.Helper()
	root := t.TempDir()
	layouts := filepath.Join(root, "_layout")
	require.NoError(t, os.MkdirAll(layouts, 0o755))

	session := render.NewSession(filepath.Join(root, "_include"), map[string]any{"name": "Site"}, wrapConverter{}, nil)
	return Composer{
		Extractor: frontmatter.Extractor{Renderer: session},
		Renderer:  session,
		Converter: wrapConverter{},
		LayoutDir: layouts,
	}, root
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestComposeNoLayout(t *testing.T) {
	c, root := newComposer(t)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "converted",
			doc:  "---\ntitle: Hi\n---\n# {{ page.title }}",
			want: "<md># Hi</md>",
		},
		{
			name: "text parser skips conversion",
			doc:  "---\ntitle: Hi\nparser: text\n---\n{{ page.title }} on {{ site.name }}",
			want: "Hi on Site",
		},
		{
			name: "no frontmatter",
			doc:  "plain",
			want: "<md>plain</md>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(root, "doc.md"), tt.doc)
			res, err := c.Compose(path, nil, types.Matter{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Output)
			assert.Equal(t, 1, res.Passes)
		})
	}
}

func TestComposeThreadsContent(t *testing.T) {
	c, root := newComposer(t)
	writeFile(t, filepath.Join(c.LayoutDir, "inner.html"), "---\nlayout: outer\nparser: text\n---\nA[{{ content }}]")
	writeFile(t, filepath.Join(c.LayoutDir, "outer.html"), "---\nparser: text\n---\nB({{ content }}|{{ page.title }})")
	path := writeFile(t, filepath.Join(root, "post.md"), "---\ntitle: Leaf\nlayout: inner\n---\nleaf")

	res, err := c.Compose(path, nil, types.Matter{})
	require.NoError(t, err)
	assert.Equal(t, "B(A[<md>leaf</md>]|Leaf)", res.Output)
	assert.Equal(t, 3, res.Passes)
	assert.Len(t, res.Chain, 3)
	assert.Equal(t, "Leaf", res.Matter.Title())
	assert.Equal(t, "inner", res.Matter.Layout)
}

func TestComposePriorMatterWins(t *testing.T) {
	c, root := newComposer(t)
	path := writeFile(t, filepath.Join(root, "doc.html"), "---\ntitle: Own\nparser: text\n---\n{{ page.title }}")

	res, err := c.Compose(path, nil, types.Matter{Extra: map[string]any{"title": "Prior"}})
	require.NoError(t, err)
	assert.Equal(t, "Prior", res.Output)
}

func TestComposeLayoutSeesPageOfLeaf(t *testing.T) {
	c, root := newComposer(t)
	writeFile(t, filepath.Join(c.LayoutDir, "base.html"), "---\nparser: text\nheading: \"{{ page.title }}!\"\n---\n<h1>{{ page.heading }}</h1>{{ content }}")
	path := writeFile(t, filepath.Join(root, "doc.html"), "---\ntitle: Hello\nlayout: base\nparser: text\n---\nbody")

	res, err := c.Compose(path, nil, types.Matter{})
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hello!</h1>body", res.Output)
}

func TestFindExtensionOrder(t *testing.T) {
	c, _ := newComposer(t)
	writeFile(t, filepath.Join(c.LayoutDir, "base.html"), "html")
	writeFile(t, filepath.Join(c.LayoutDir, "base.markdown"), "markdown")

	got, err := c.Find("base")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.LayoutDir, "base.markdown"), got)

	writeFile(t, filepath.Join(c.LayoutDir, "base.md"), "md")
	got, err = c.Find("base")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.LayoutDir, "base.md"), got)
}

func TestComposeErrors(t *testing.T) {
	tests := []struct {
		name    string
		layouts map[string]string
		doc     string
		wantErr error
	}{
		{
			name:    "missing layout",
			doc:     "---\nlayout: nowhere\n---\nx",
			wantErr: ErrLayoutNotFound,
		},
		{
			name:    "self cycle",
			layouts: map[string]string{"a.html": "---\nlayout: a\n---\n{{ content }}"},
			doc:     "---\nlayout: a\n---\nx",
			wantErr: ErrLayoutCycle,
		},
		{
			name: "two step cycle",
			layouts: map[string]string{
				"a.html": "---\nlayout: b\n---\n{{ content }}",
				"b.html": "---\nlayout: a\n---\n{{ content }}",
			},
			doc:     "---\nlayout: a\n---\nx",
			wantErr: ErrLayoutCycle,
		},
		{
			name:    "malformed layout matter",
			layouts: map[string]string{"bad.html": "---\nkey: [oops\n---\n{{ content }}"},
			doc:     "---\nlayout: bad\n---\nx",
			wantErr: frontmatter.ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, root := newComposer(t)
			for name, src := range tt.layouts {
				writeFile(t, filepath.Join(c.LayoutDir, name), src)
			}
			path := writeFile(t, filepath.Join(root, "doc.md"), tt.doc)

			_, err := c.Compose(path, nil, types.Matter{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), err.Error())
		})
	}
}

func TestComposeMalformedReportsPath(t *testing.T) {
	c, root := newComposer(t)
	path := writeFile(t, filepath.Join(root, "doc.md"), "---\ntitle: Broken\nkey: [oops\n---\nraw {{ body }}")

	_, err := c.Compose(path, nil, types.Matter{})
	var me *frontmatter.MatterError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, path, me.Path)
	assert.Equal(t, "Broken", me.Title)
	assert.Equal(t, "raw {{ body }}", me.Body)
}

// A chain of k layouts takes k+1 render passes and nests content in order.
func TestComposeChainProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	parameters.Rng.Seed(1234)
	properties := gopter.NewProperties(parameters)

	properties.Property("k layouts render k+1 times", prop.ForAll(
		func(k int) bool {
			c, root := newComposer(t)
			want := "leaf"
			for i := range k {
				matter := "parser: text\n"
				if i+1 < k {
					matter += fmt.Sprintf("layout: l%d\n", i+1)
				}
				writeFile(t, filepath.Join(c.LayoutDir, fmt.Sprintf("l%d.html", i)),
					fmt.Sprintf("---\n%s---\n%d(%s)", matter, i, "{{ content }}"))
				want = fmt.Sprintf("%d(%s)", i, want)
			}
			doc := "---\nparser: text\n"
			if k > 0 {
				doc += "layout: l0\n"
			}
			doc += "---\nleaf"
			path := writeFile(t, filepath.Join(root, "doc.html"), doc)

			res, err := c.Compose(path, nil, types.Matter{})
			if err != nil {
				return false
			}
			return res.Passes == k+1 && res.Output == want && strings.Count(res.Output, "(") == k
		},
		gen.IntRange(0, 6),
	))

	properties.TestingRun(t)
}
