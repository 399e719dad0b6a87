// Package db provides the SQLite database connection and schema for irlightd.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Transition history - append-only audit trail. Believed state is
	// never restored from it; every run starts uninitialized.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device TEXT NOT NULL,
			origin TEXT NOT NULL,
			from_resolved INTEGER NOT NULL,
			from_on INTEGER NOT NULL,
			from_step INTEGER NOT NULL,
			to_on INTEGER NOT NULL,
			to_step INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transitions_device_ts ON transitions(device, created_at);
	`)
	if err != nil {
		return fmt.Errorf("failed to create transitions table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}
