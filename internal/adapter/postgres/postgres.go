// Package postgres connects to a platform storage layer backed by
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"fledge/internal/adapter/sqlstore"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// DefaultSchema is where the platform creates its tables.
const DefaultSchema = "fledge"

// Open connects with dsn and verifies the connection. Tables are read from
// schema, DefaultSchema when empty.
func Open(ctx context.Context, dsn, schema string) (*sqlstore.Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("open postgres storage: dsn is required")
	}
	if strings.TrimSpace(schema) == "" {
		schema = DefaultSchema
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres storage: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres storage: %w", err)
	}
	// Bundle builds are short and sequential.
	db.SetMaxOpenConns(2)
	return sqlstore.New(db, sqlstore.Postgres(schema)), nil
}
