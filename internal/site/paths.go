// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package site

import (
	"path"
	"strings"
)

// documentExts are rendered through the pipeline. Other files are copied.
var documentExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".xml":      true,
	".txt":      true,
	".json":     true,
}

// prettyExts are written as directory indexes.
var prettyExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".html":     true,
}

// verbatimExts are permalink extensions written as files rather than
// directory indexes.
var verbatimExts = map[string]bool{
	"html": true,
	"txt":  true,
	"xml":  true,
	"json": true,
	"exe":  true,
	"bin":  true,
}

// IsDocument reports whether name is rendered rather than copied.
func IsDocument(name string) bool {
	return documentExts[strings.ToLower(path.Ext(name))]
}

// OutputPath maps a slash separated source path, relative to the site root,
// to its output path relative to the output root. index.md, index.markdown,
// and index.html map to their directory; other Markdown and HTML documents
// map to a directory named after the file; everything else keeps its path.
func OutputPath(rel string) string {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	dir, base := path.Split(rel)
	ext := strings.ToLower(path.Ext(base))
	if !prettyExts[ext] {
		return rel
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "index" {
		return path.Join(dir, "index.html")
	}
	return path.Join(dir, stem, "index.html")
}

// PermalinkPath maps a permalink to an output path relative to the output
// root. Permalinks ending in an allowed extension name a file; anything else
// names a directory.
func PermalinkPath(permalink string) string {
	p := strings.TrimPrefix(path.Clean("/"+permalink), "/")
	if verbatimExts[strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))] {
		return p
	}
	return path.Join(p, "index.html")
}

// Target returns the output path of a document: its permalink when set,
// otherwise the mapping of its source path.
func Target(rel, permalink string) string {
	if strings.TrimSpace(permalink) != "" {
		return PermalinkPath(permalink)
	}
	return OutputPath(rel)
}
