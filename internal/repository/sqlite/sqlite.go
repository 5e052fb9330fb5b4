// Package sqlite implements the repository interfaces on SQLite through the
// pure-Go modernc.org/sqlite driver, so the binary needs no C toolchain.
//
// dbPath examples:
//   - "~/.sandbox/sandbox.db" → file-based database (persistent)
//   - ":memory:"              → in-memory database (tests)
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and implements repository.RunRepository.
type DB struct {
	conn *sql.DB
}

// New opens the database, creating its directory if needed, and runs
// migrations.
func New(dbPath string) (*DB, error) {
	inMemory := dbPath == ":memory:"
	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	if inMemory {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets the history endpoints read while a finished run is written.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps it idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			package        TEXT NOT NULL DEFAULT '',
			workspace      TEXT NOT NULL DEFAULT '',
			success        INTEGER NOT NULL DEFAULT 0,
			failed_stage   TEXT NOT NULL DEFAULT '',
			outcome        TEXT NOT NULL DEFAULT '{}',
			job_descriptor TEXT NOT NULL DEFAULT '',
			published_keys TEXT NOT NULL DEFAULT '[]',
			submitted_by   TEXT NOT NULL DEFAULT '',
			created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
		CREATE INDEX IF NOT EXISTS idx_runs_submitted_by ON runs(submitted_by);
	`)
	if err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}
	return nil
}
