package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

// startupPragmas run once per open, before any ledger transaction. WAL lets
// read-only API queries proceed while a position mutation commits; the busy
// timeout covers the brief overlap.
var startupPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// Database owns the engine's SQLite handle. The ledger is its only writer;
// every Open/Close commits here before the in-memory book changes.
type Database struct {
	DB *sql.DB
}

// New opens the position store at path, creating the file and its parent
// directory on first run.
func New(path string) (*Database, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: position mutations are serialized by construction,
	// so two scan-loop writes can never interleave inside SQLite.
	db.SetMaxOpenConns(1)

	for _, pragma := range startupPragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	return &Database{DB: db}, nil
}

// Close releases the underlying handle. Safe on a nil receiver so shutdown
// paths need no guard.
func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	return d.DB.Close()
}
