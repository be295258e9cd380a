package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// InMemory is the path of a private, non persistent database
const InMemory = ":memory:"

// Database manages SQLite operations
type Database struct {
	path string
	db   *sql.DB
}

// New creates a new database instance backed by the file at path
func New(path string) *Database {
	if path == "" {
		path = "./data/eseal.db"
	}
	return &Database{path: path}
}

// Initialize opens the database and creates the tables
func (d *Database) Initialize() error {
	if d.path != InMemory {
		if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", d.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if d.path == InMemory {
		// every connection to :memory: is a different database
		db.SetMaxOpenConns(1)
	}
	d.db = db

	// Create tables
	if err := d.createTables(); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	slog.Info("Database initialized", "path", d.path)
	return nil
}

// createTables creates all necessary tables
func (d *Database) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS seals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seal_id TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			seal_type TEXT NOT NULL,
			image_format TEXT NOT NULL,
			algorithm TEXT NOT NULL,
			signer_subject TEXT,
			signer_fingerprint TEXT,
			valid_start DATETIME NOT NULL,
			valid_end DATETIME NOT NULL,
			data BLOB NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS verifications (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seal_id TEXT,
			status TEXT NOT NULL,
			detail TEXT,
			verified_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS verifications_seal_id ON verifications (seal_id)`,
	}

	for _, query := range queries {
		if _, err := d.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}
