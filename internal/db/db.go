// Package db provides SQLite persistence for tickets and permission roles.
//
// The database is stored at ~/.tickets/tickets.db by default.
// Use Open() to connect and Init() to create the schema.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a point lookup targets a row that does not
// exist. Callers must check for it with errors.Is; every other error from
// this package is a storage fault.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS tickets (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id TEXT NOT NULL,
	owner_name TEXT NOT NULL,
	description TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'open',
	claimed_by TEXT NOT NULL DEFAULT '',
	world TEXT NOT NULL DEFAULT '',
	x REAL NOT NULL DEFAULT 0,
	y REAL NOT NULL DEFAULT 0,
	z REAL NOT NULL DEFAULT 0,
	pitch REAL NOT NULL DEFAULT 0,
	yaw REAL NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS roles (
	name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS role_members (
	role TEXT NOT NULL REFERENCES roles(name),
	identity TEXT NOT NULL,
	PRIMARY KEY (role, identity)
);

CREATE TABLE IF NOT EXISTS role_permissions (
	role TEXT NOT NULL REFERENCES roles(name),
	permission TEXT NOT NULL,
	PRIMARY KEY (role, permission)
);

CREATE INDEX IF NOT EXISTS idx_tickets_owner ON tickets(owner_id);
CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
CREATE INDEX IF NOT EXISTS idx_role_members_identity ON role_members(identity);
`

// DB wraps a SQL database connection with ticket-system operations.
type DB struct {
	*sql.DB
}

// DefaultPath returns the default database path (~/.tickets/tickets.db)
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".tickets", "tickets.db"), nil
}

// Open opens or creates the database at the given path
func Open(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// The pragmas must be part of the DSN so they apply to every
	// connection in the database/sql pool, not just the one that
	// happens to serve an Exec below.
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// Concurrent callers share one file; wait for locks instead of
	// failing immediately, but never indefinitely.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &DB{db}, nil
}

// Init creates the schema and the built-in default role.
func (db *DB) Init() error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// The default role always exists so auto-enrollment has a target.
	if _, err := db.Exec(`INSERT OR IGNORE INTO roles (name) VALUES ('default')`); err != nil {
		return fmt.Errorf("failed to create default role: %w", err)
	}

	return nil
}
