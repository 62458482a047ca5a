// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/gasper/pkg/types"
)

const (
	driverMySQL  = "mysql"
	driverSQLite = "sqlite3"

	defaultMySQLHost = "127.0.0.1"
	defaultMySQLPort = 3306
)

// identPattern matches a table name, optionally qualified by a schema.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

// envRefPattern matches a value that is exactly one environment reference.
var envRefPattern = regexp.MustCompile(`^\$(\{[A-Za-z_][A-Za-z0-9_]*\}|[A-Za-z_][A-Za-z0-9_]*)$`)

// orderPrefix matches a leading "BY", accepted for pages written as
// "order: BY id DESC".
var orderPrefix = regexp.MustCompile(`(?i)^\s*by\s+`)

// SecretLookup resolves a named secret.
type SecretLookup interface {
	Lookup(name string) (string, error)
}

// Database queries MySQL or SQLite tables. Connections are opened on first
// use and shared until Close.
type Database struct {
	// SiteDir resolves relative SQLite database paths.
	SiteDir string

	// Secrets resolves passwordSecret. Nil disables secret lookup.
	Secrets SecretLookup

	mu    sync.Mutex
	conns map[string]*sql.DB
}

// NewDatabase returns a database source for the site rooted at siteDir.
func NewDatabase(siteDir string, secrets SecretLookup) *Database {
	return &Database{SiteDir: siteDir, Secrets: secrets, conns: make(map[string]*sql.DB)}
}

// Close releases every open connection.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for dsn, db := range d.conns {
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing database: %w", err)
		}
		delete(d.conns, dsn)
	}
	return firstErr
}

// Rows implements Source. The query applies where, order, and limit at the
// database; only and unique are applied to the result.
func (d *Database) Rows(ctx context.Context, spec types.GeneratorSpec) ([]types.Row, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	driver := d.driver(spec)

	db, err := d.open(driver, spec)
	if err != nil {
		return nil, err
	}

	query, err := buildQuery(driver, spec)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", spec.Table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading columns of %s: %w", spec.Table, err)
	}

	var result []types.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", spec.Table, err)
		}

		row := make(types.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
				continue
			}
			row[col] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s rows: %w", spec.Table, err)
	}

	result = Project(result, spec.Only)
	if spec.Unique {
		result = Dedupe(result)
	}
	return result, nil
}

func (d *Database) driver(spec types.GeneratorSpec) string {
	switch {
	case spec.Driver == "sqlite" || spec.Driver == driverSQLite:
		return driverSQLite
	case spec.Driver != "":
		return spec.Driver
	case spec.From == types.FromSQLite:
		return driverSQLite
	}
	return driverMySQL
}

func (d *Database) open(driver string, spec types.GeneratorSpec) (*sql.DB, error) {
	dsn, err := d.dsn(driver, spec)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conns == nil {
		d.conns = make(map[string]*sql.DB)
	}
	key := driver + "|" + dsn
	if db, ok := d.conns[key]; ok {
		return db, nil
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	d.conns[key] = db
	return db, nil
}

func (d *Database) dsn(driver string, spec types.GeneratorSpec) (string, error) {
	if driver == driverSQLite {
		if spec.Database == "" {
			return "", fmt.Errorf("generator: sqlite source requires \"database\"")
		}
		path := spec.Database
		if !filepath.IsAbs(path) && path != ":memory:" {
			path = filepath.Join(d.SiteDir, path)
		}
		return "file:" + path + "?mode=ro", nil
	}

	password, err := d.password(spec)
	if err != nil {
		return "", err
	}
	host := spec.Host
	if host == "" {
		host = defaultMySQLHost
	}
	port := spec.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	user, err := fromEnv(spec.User)
	if err != nil {
		return "", err
	}
	if user == "" && password != "" {
		return "", fmt.Errorf("generator: a database password requires \"user\"")
	}

	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, strconv.Itoa(port))
	cfg.DBName = spec.Database
	return cfg.FormatDSN(), nil
}

// password returns the inline password or the named secret.
func (d *Database) password(spec types.GeneratorSpec) (string, error) {
	if spec.PasswordSecret == "" {
		return fromEnv(spec.Password)
	}
	if d.Secrets == nil {
		return "", fmt.Errorf("generator: passwordSecret %q given but no secrets directory is configured", spec.PasswordSecret)
	}
	pw, err := d.Secrets.Lookup(spec.PasswordSecret)
	if err != nil {
		return "", fmt.Errorf("resolving database password: %w", err)
	}
	return pw, nil
}

// fromEnv resolves a value written as $NAME or ${NAME}. Anything else is
// returned unchanged. Referencing an unset variable is an error.
func fromEnv(v string) (string, error) {
	if !envRefPattern.MatchString(v) {
		return v, nil
	}
	name := strings.Trim(v[1:], "{}")
	val, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("generator: environment variable %s is not set", name)
	}
	return val, nil
}

// buildQuery assembles the SELECT for spec. where and order are SQL
// fragments written by the site author and are used as given.
func buildQuery(driver string, spec types.GeneratorSpec) (string, error) {
	if !identPattern.MatchString(spec.Table) {
		return "", fmt.Errorf("generator: invalid table name %q", spec.Table)
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(driver, spec.Table))
	if w := strings.TrimSpace(spec.Where); w != "" {
		b.WriteString(" WHERE ")
		b.WriteString(w)
	}
	if o := strings.TrimSpace(orderPrefix.ReplaceAllString(spec.Order, "")); o != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(o)
	}
	if spec.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", spec.Limit)
	}
	return b.String(), nil
}

func quoteIdent(driver, ident string) string {
	q := `"`
	if driver == driverMySQL {
		q = "`"
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		parts[i] = q + p + q
	}
	return strings.Join(parts, ".")
}
