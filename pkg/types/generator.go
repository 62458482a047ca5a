// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"go.yaml.in/yaml/v3"
)

// Generator source kinds accepted in the "from" key.
const (
	FromDatabase = "database"
	FromMySQL    = "mysql"
	FromSQLite   = "sqlite"
	FromPosts    = "posts"
)

// Row is one record produced by a data source. Rows are not modified after
// the source returns them.
type Row map[string]any

// Deferred holds a structured-data fragment in source form. Its template
// expressions are evaluated only when a row context exists.
type Deferred struct {
	Source string
}

// IsZero reports whether the fragment is empty.
func (d Deferred) IsZero() bool {
	return strings.TrimSpace(d.Source) == ""
}

// GeneratorSpec describes a row-producing data source that multiplies one
// source document into many outputs.
type GeneratorSpec struct {
	// From selects the source kind: database, mysql, sqlite, or posts.
	From string

	// Driver overrides the database/sql driver ("mysql" or "sqlite3").
	Driver string

	Host           string
	Port           int
	User           string
	Password       string
	PasswordSecret string
	Database       string
	Table          string

	// Where, Order, and Limit are applied at the source.
	Where string
	Order string
	Limit int

	// Only restricts output rows to these fields.
	Only []string

	// Unique drops rows whose stringified values repeat an earlier row.
	Unique bool

	// Path is the posts directory, relative to the site root.
	Path string

	// Related holds named sub-generators evaluated once per row.
	Related *Deferred

	// DumpTo is a path under the output root for the raw row data.
	DumpTo string

	// Skip produces a single output carrying every row instead of one
	// output per row.
	Skip bool

	// Raw is the specification as written.
	Raw map[string]any
}

// ParseGeneratorSpec reads a generator mapping. Both the documented key
// names and the short forms (db, username) are accepted.
func ParseGeneratorSpec(raw map[string]any) (GeneratorSpec, error) {
	spec := GeneratorSpec{Raw: raw}
	var err error

	str := func(keys ...string) string {
		for _, k := range keys {
			if v, ok := raw[k]; ok && v != nil && err == nil {
				var s string
				s, err = cast.ToStringE(v)
				if err != nil {
					err = fmt.Errorf("generator key %q: %w", k, err)
				}
				return s
			}
		}
		return ""
	}
	integer := func(key string) int {
		v, ok := raw[key]
		if !ok || v == nil || err != nil {
			return 0
		}
		n, convErr := cast.ToIntE(v)
		if convErr != nil {
			err = fmt.Errorf("generator key %q: %w", key, convErr)
		}
		return n
	}
	boolean := func(key string) bool {
		v, ok := raw[key]
		if !ok || v == nil || err != nil {
			return false
		}
		b, convErr := cast.ToBoolE(v)
		if convErr != nil {
			err = fmt.Errorf("generator key %q: %w", key, convErr)
		}
		return b
	}

	spec.From = strings.ToLower(str("from"))
	spec.Driver = str("driver")
	spec.Host = str("host")
	spec.Port = integer("port")
	spec.User = str("user", "username")
	spec.Password = str("password")
	spec.PasswordSecret = str("passwordSecret", "password_secret")
	spec.Database = str("database", "db")
	spec.Table = str("table")
	spec.Where = str("where")
	spec.Order = str("order")
	spec.Limit = integer("limit")
	spec.Unique = boolean("unique")
	spec.Path = str("path")
	spec.DumpTo = str("dumpTo", "dump_to")
	spec.Skip = boolean("skip")
	if err != nil {
		return GeneratorSpec{}, err
	}

	spec.Only = parseOnly(raw["only"])

	related, relErr := parseRelated(raw["related"])
	if relErr != nil {
		return GeneratorSpec{}, relErr
	}
	spec.Related = related

	return spec, nil
}

// parseOnly accepts "id, name" or a list of names.
func parseOnly(v any) []string {
	if v == nil {
		return nil
	}
	var fields []string
	if s, ok := v.(string); ok {
		fields = strings.Split(s, ",")
	} else {
		fields = cast.ToStringSlice(v)
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseRelated(v any) (*Deferred, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case Deferred:
		return &r, nil
	case *Deferred:
		return r, nil
	default:
		data, err := yaml.Marshal(r)
		if err != nil {
			return nil, fmt.Errorf("generator key \"related\": %w", err)
		}
		return &Deferred{Source: string(data)}, nil
	}
}

// IsDatabase reports whether the spec queries a SQL database.
func (s GeneratorSpec) IsDatabase() bool {
	switch s.From {
	case FromDatabase, FromMySQL, FromSQLite:
		return true
	}
	return false
}

// Validate checks that the fields required by the source kind are present.
func (s GeneratorSpec) Validate() error {
	switch {
	case s.From == "":
		return fmt.Errorf("generator: missing \"from\"")
	case s.IsDatabase() && s.Table == "":
		return fmt.Errorf("generator: %s source requires \"table\"", s.From)
	}
	return nil
}

// Inherit fills connection fields left empty in s from parent. Related
// sub-generators use it to share the parent's database connection.
func (s GeneratorSpec) Inherit(parent GeneratorSpec) GeneratorSpec {
	if s.From == "" {
		s.From = parent.From
	}
	if s.Driver == "" {
		s.Driver = parent.Driver
	}
	if s.Host == "" {
		s.Host = parent.Host
	}
	if s.Port == 0 {
		s.Port = parent.Port
	}
	if s.User == "" {
		s.User = parent.User
	}
	if s.Password == "" && s.PasswordSecret == "" {
		s.Password = parent.Password
		s.PasswordSecret = parent.PasswordSecret
	}
	if s.Database == "" {
		s.Database = parent.Database
	}
	if s.Path == "" && s.From == parent.From {
		s.Path = parent.Path
	}
	return s
}

// GeneratorPayload is the per-output generator data seen by templates as
// page.generator.
type GeneratorPayload struct {
	// Row is the current row, nil for an aggregate (skip) output.
	Row Row `json:"row" yaml:"row"`

	// Index is the row position, -1 for an aggregate output.
	Index int `json:"index" yaml:"index"`

	Count   int            `json:"count" yaml:"count"`
	Related map[string]any `json:"related" yaml:"related"`
	Rows    []Row          `json:"rows" yaml:"rows"`
}

// Map returns the template view of the payload.
func (p GeneratorPayload) Map() map[string]any {
	var row any
	if p.Row != nil {
		row = map[string]any(p.Row)
	}
	related := p.Related
	if related == nil {
		related = map[string]any{}
	}
	return map[string]any{
		"row":     row,
		"index":   p.Index,
		"count":   p.Count,
		"related": related,
		"rows":    p.Rows,
	}
}
