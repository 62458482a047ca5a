// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package site

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// scaffoldFiles is the starter site written by Scaffold. The post name is
// filled in with the scaffold date.
var scaffoldFiles = []struct {
	path    string
	content string
}{
	{"_config.yaml", "title: My Site\nurl: http://localhost:8080\nsitemap: sitemap.xml\n"},
	{"_layout/base.html", `<!doctype html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{ page.title }} | {{ site.title }}</title>
  <link rel="stylesheet" href="/static/site.css">
</head>
<body>
{{ content }}
{% include "footer.html" %}
</body>
</html>
`},
	{"_layout/post.md", "---\nlayout: base\n---\n# {{ page.title }}\n\n*{{ page.date }}*\n\n{{ content }}\n"},
	{"_include/footer.html", "<footer>{{ site.title }}</footer>\n"},
	{"_static/site.css", "body { font-family: sans-serif; max-width: 40em; margin: auto; }\n"},
	{"index.md", `---
title: Home
layout: base
generator:
  from: posts
  skip: true
---
# {{ site.title }}

{% for post in page.generator.rows %}
- [{{ post.title }}](/{{ post.permalink }}/) ({{ post.date }})
{% endfor %}
`},
	{"blog.md", "---\nlayout: post\npermalink: \"{{ page.generator.row.permalink }}\"\ntitle: \"{{ page.generator.row.title }}\"\ndate: \"{{ page.generator.row.date }}\"\ngenerator:\n  from: posts\n---\n{{ page.generator.row.content }}\n"},
	{"_posts/%s-welcome.md", "---\ntitle: Welcome\n---\nThis is your first post.\n"},
}

// Scaffold writes a starter site under dir. Existing files are left alone.
// It returns the paths written, relative to dir.
func Scaffold(dir string, now time.Time) ([]string, error) {
	var written []string
	for _, f := range scaffoldFiles {
		rel := f.path
		if rel == "_posts/%s-welcome.md" {
			rel = fmt.Sprintf(rel, now.Format("2006-01-02"))
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := writeOutput(path, []byte(f.content)); err != nil {
			return written, fmt.Errorf("scaffolding %s: %w", rel, err)
		}
		written = append(written, rel)
	}
	return written, nil
}
