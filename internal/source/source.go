// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package source implements the row-producing data sources behind generator
// specifications: SQL databases and a directory of dated posts.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/pdiddy/gasper/pkg/types"
)

// ErrUnknownSource is returned for a generator whose "from" names no
// registered source.
var ErrUnknownSource = errors.New("unknown generator source")

// Source produces the rows a generator specification describes.
type Source interface {
	Rows(ctx context.Context, spec types.GeneratorSpec) ([]types.Row, error)
}

// Registry dispatches specifications to sources by their "from" value.
type Registry struct {
	sources map[string]Source
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register binds one or more "from" values to s.
func (r *Registry) Register(s Source, from ...string) {
	for _, f := range from {
		r.sources[strings.ToLower(f)] = s
	}
}

// Rows implements Source.
func (r *Registry) Rows(ctx context.Context, spec types.GeneratorSpec) ([]types.Row, error) {
	s, ok := r.sources[spec.From]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, spec.From)
	}
	return s.Rows(ctx, spec)
}

// Project keeps only the named fields of each row. A nil or empty only
// returns rows unchanged.
func Project(rows []types.Row, only []string) []types.Row {
	if len(only) == 0 {
		return rows
	}
	out := make([]types.Row, len(rows))
	for i, row := range rows {
		projected := make(types.Row, len(only))
		for _, f := range only {
			if v, ok := row[f]; ok {
				projected[f] = v
			}
		}
		out[i] = projected
	}
	return out
}

// Dedupe drops every row whose stringified values equal those of an earlier
// row, preserving first-seen order.
func Dedupe(rows []types.Row) []types.Row {
	seen := make(map[string]bool, len(rows))
	out := make([]types.Row, 0, len(rows))
	for _, row := range rows {
		key := rowKey(row)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out
}

// rowKey joins a row's values in field-name order. The unit separator keeps
// ("1", "12") apart from ("11", "2").
func rowKey(row types.Row) string {
	fields := make([]string, 0, len(row))
	for k := range row {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	var b strings.Builder
	for i, k := range fields {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		s, err := cast.ToStringE(row[k])
		if err != nil {
			s = fmt.Sprint(row[k])
		}
		b.WriteString(s)
	}
	return b.String()
}
