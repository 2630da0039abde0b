// Package dirindex maintains a path to resource identifier index of a
// directory tree, with an optional SQLite snapshot store.
package dirindex

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS entries (
	path     TEXT PRIMARY KEY,
	id       TEXT NOT NULL,
	size     INTEGER NOT NULL,
	mod_time INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_id ON entries(id);
`

// DB wraps a sql.DB holding persisted index snapshots.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("dirindex: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dirindex: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("dirindex: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
