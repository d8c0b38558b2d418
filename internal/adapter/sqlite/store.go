// Package sqlite opens the embedded storage database the platform writes
// its configuration, audit log and statistics to.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"

	"fledge/internal/adapter/sqlstore"

	_ "modernc.org/sqlite"
)

// Open opens the existing database at path read-only. A missing file is an
// error: the platform owns the database and a new empty one would only
// yield empty table dumps.
func Open(path string) (*sqlstore.Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("open storage db: %s is a directory", path)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect storage db: %w", err)
	}
	return sqlstore.New(db, sqlstore.SQLite), nil
}
