// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package frontmatter

import "strings"

// Sentinels stand in for template delimiters while a raw block is parsed as
// YAML. A bare "{{" would otherwise open a flow mapping.
const (
	sentinelOpenExpr  = "⟪⟪"
	sentinelCloseExpr = "⟫⟫"
	sentinelOpenTag   = "⟪%"
	sentinelCloseTag  = "%⟫"
)

var (
	escaper = strings.NewReplacer(
		"{{", sentinelOpenExpr,
		"}}", sentinelCloseExpr,
		"{%", sentinelOpenTag,
		"%}", sentinelCloseTag,
	)
	unescaper = strings.NewReplacer(
		sentinelOpenExpr, "{{",
		sentinelCloseExpr, "}}",
		sentinelOpenTag, "{%",
		sentinelCloseTag, "%}",
	)
)

// Escape replaces template delimiters in s with inert sentinels.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Unescape reverses Escape.
func Unescape(s string) string {
	return unescaper.Replace(s)
}
