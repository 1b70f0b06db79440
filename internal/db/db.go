// Package db opens the shared SQLite database used by all stores.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// Open opens (or creates) the SQLite database at path. A single connection
// is used so concurrent store calls serialize instead of hitting
// SQLITE_BUSY. Each store creates its own tables via InitTables.
func Open(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	return conn, nil
}
