// Package sqlstore reads the platform's storage tables over database/sql.
// The same queries serve the sqlite and postgres engines; a Dialect covers
// the differences.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fledge/pkg/types"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dialect describes how one engine spells parameters and where the tables
// live.
type Dialect struct {
	Name string
	// Schema qualifies every table when set.
	Schema      string
	placeholder func(n int) string
}

// SQLite is the dialect of the embedded engine.
var SQLite = Dialect{Name: "sqlite", placeholder: func(int) string { return "?" }}

// Postgres returns the postgres dialect for tables in schema.
func Postgres(schema string) Dialect {
	return Dialect{
		Name:        "postgres",
		Schema:      strings.TrimSpace(schema),
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
	}
}

func (d Dialect) param(n int) string {
	if d.placeholder == nil {
		return "?"
	}
	return d.placeholder(n)
}

func (d Dialect) table(name string) (string, error) {
	quoted, err := quoteIdent(name)
	if err != nil {
		return "", err
	}
	if d.Schema == "" {
		return quoted, nil
	}
	schema, err := quoteIdent(d.Schema)
	if err != nil {
		return "", err
	}
	return schema + "." + quoted, nil
}

func quoteIdent(name string) (string, error) {
	if !identifierRe.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return `"` + name + `"`, nil
}

// Store implements the storage queries the support bundle needs.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the handle for schema setup and seeding.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.dialect }

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// QueryTable reads table as generic rows. Column values keep their driver
// types except byte slices, which become strings.
func (s *Store) QueryTable(ctx context.Context, table string, q types.Query) (types.TableResult, error) {
	query, err := s.selectStatement(table, q)
	if err != nil {
		return types.TableResult{}, fmt.Errorf("query table %s: %w", table, err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return types.TableResult{}, fmt.Errorf("query table %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return types.TableResult{}, fmt.Errorf("columns of %s: %w", table, err)
	}

	out := make([]types.Row, 0)
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return types.TableResult{}, fmt.Errorf("scan %s row: %w", table, err)
		}
		row := make(types.Row, len(cols))
		for i, col := range cols {
			row[col] = normalize(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return types.TableResult{}, fmt.Errorf("iterate %s rows: %w", table, err)
	}
	return types.TableResult{Count: len(out), Rows: out}, nil
}

func (s *Store) selectStatement(table string, q types.Query) (string, error) {
	from, err := s.dialect.table(table)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(from)
	for i, o := range q.OrderBy {
		col, err := quoteIdent(o.Column)
		if err != nil {
			return "", err
		}
		dir := types.Ascending
		switch o.Direction {
		case "", types.Ascending:
		case types.Descending:
			dir = types.Descending
		default:
			return "", fmt.Errorf("invalid sort direction %q", o.Direction)
		}
		if i == 0 {
			b.WriteString(" ORDER BY ")
		} else {
			b.WriteString(", ")
		}
		b.WriteString(col + " " + string(dir))
	}
	if q.Limit < 0 {
		return "", fmt.Errorf("invalid limit %d", q.Limit)
	}
	if q.Limit > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(q.Limit))
	}
	return b.String(), nil
}

// ChildCategories lists the configuration categories registered as
// children of parent, by key.
func (s *Store) ChildCategories(ctx context.Context, parent string) ([]types.Category, error) {
	children, err := s.dialect.table("category_children")
	if err != nil {
		return nil, err
	}
	config, err := s.dialect.table("configuration")
	if err != nil {
		return nil, err
	}

	query := `SELECT c."key", c."description", c."display_name" FROM ` + children + ` cc ` +
		`JOIN ` + config + ` c ON c."key" = cc."child" ` +
		`WHERE cc."parent" = ` + s.dialect.param(1) + ` ORDER BY c."key"`
	rows, err := s.db.QueryContext(ctx, query, parent)
	if err != nil {
		return nil, fmt.Errorf("list child categories of %q: %w", parent, err)
	}
	defer rows.Close()

	out := make([]types.Category, 0)
	for rows.Next() {
		var c types.Category
		var display sql.NullString
		if err := rows.Scan(&c.Key, &c.Description, &display); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		c.DisplayName = display.String
		if c.DisplayName == "" {
			c.DisplayName = c.Key
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return out, nil
}

func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
