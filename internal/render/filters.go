// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package render

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/flosch/pongo2/v6"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

func registerFilters() {
	for name, fn := range map[string]pongo2.FilterFunction{
		"slugify": filterSlugify,
		"tojson":  filterJSON,
	} {
		var err error
		if pongo2.FilterExists(name) {
			err = pongo2.ReplaceFilter(name, fn)
		} else {
			err = pongo2.RegisterFilter(name, fn)
		}
		if err != nil {
			panic(err)
		}
	}
}

// Slugify lowercases s, strips accents, and joins the remaining letter and
// digit runs with hyphens: "Héllo, World!" becomes "hello-world".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}

func filterSlugify(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsValue(Slugify(in.String())), nil
}

func filterJSON(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	return pongo2.AsSafeValue(toJSON(in.Interface())), nil
}

// toJSON is exposed to templates as the json(value) global.
func toJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}
