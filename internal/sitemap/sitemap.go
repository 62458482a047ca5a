// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sitemap collects the URLs of one build and renders them as a
// sitemaps.org urlset.
package sitemap

import (
	"encoding/xml"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	xmlns          = "http://www.sitemaps.org/schemas/sitemap/0.9"
	xmlnsXSI       = "http://www.w3.org/2001/XMLSchema-instance"
	schemaLocation = "http://www.sitemaps.org/schemas/sitemap/0.9 http://www.sitemaps.org/schemas/sitemap/0.9/sitemap.xsd"
)

// Accumulator holds the URLs recorded during a single build. Construct one per
// build.
type Accumulator struct {
	base string
	urls []string
	seen map[string]bool
}

// New returns an empty accumulator for a site served at baseURL.
func New(baseURL string) *Accumulator {
	return &Accumulator{base: strings.TrimRight(baseURL, "/"), seen: make(map[string]bool)}
}

// Record adds the URL of the document written at outputPath, a slash
// separated path relative to the output root. An index.html leaf maps to its
// directory, and a final segment without a "." gets a trailing slash. It
// returns the recorded URL.
func (a *Accumulator) Record(outputPath string) string {
	p := strings.Trim(path.Clean("/"+filepath.ToSlash(outputPath)), "/")
	if p == "index.html" {
		p = ""
	} else {
		p = strings.TrimSuffix(p, "/index.html")
	}

	u := a.base + "/" + p
	if p != "" && !strings.Contains(path.Base(p), ".") {
		u += "/"
	}
	if !a.seen[u] {
		a.seen[u] = true
		a.urls = append(a.urls, u)
	}
	return u
}

// URLs returns the recorded URLs in recording order.
func (a *Accumulator) URLs() []string {
	return append([]string(nil), a.urls...)
}

// Len returns the number of recorded URLs.
func (a *Accumulator) Len() int {
	return len(a.urls)
}

// Priority returns the sitemap priority of a recorded URL: "1.0" for at most
// one path segment beyond the base, "0.8" for two, "0.7" for more. A trailing
// slash counts as an empty final segment.
func (a *Accumulator) Priority(u string) string {
	rest := strings.TrimPrefix(u, a.base)
	rest = strings.TrimPrefix(rest, "/")
	switch n := len(strings.Split(rest, "/")); {
	case n <= 1:
		return "1.0"
	case n == 2:
		return "0.8"
	default:
		return "0.7"
	}
}

type urlset struct {
	XMLName        xml.Name `xml:"urlset"`
	Xmlns          string   `xml:"xmlns,attr"`
	XSI            string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	URLs           []entry  `xml:"url"`
}

type entry struct {
	Loc      string `xml:"loc"`
	Priority string `xml:"priority"`
}

// Emit renders the sitemap document.
func (a *Accumulator) Emit() ([]byte, error) {
	set := urlset{Xmlns: xmlns, XSI: xmlnsXSI, SchemaLocation: schemaLocation}
	for _, u := range a.urls {
		set.URLs = append(set.URLs, entry{Loc: u, Priority: a.Priority(u)})
	}
	data, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling sitemap: %w", err)
	}
	return append([]byte(xml.Header), append(data, '\n')...), nil
}

// Write emits the sitemap to name under outputDir and returns the path.
func (a *Accumulator) Write(outputDir, name string) (string, error) {
	data, err := a.Emit()
	if err != nil {
		return "", err
	}
	target := filepath.Join(outputDir, filepath.FromSlash(path.Clean("/"+name)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating sitemap directory: %w", err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return "", fmt.Errorf("writing sitemap: %w", err)
	}
	return target, nil
}
