package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// connParams are go-sqlite3 DSN parameters. The driver applies them to every
// connection it opens.
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"on"},
}

// Store is the run journal.
type Store struct {
	db *sql.DB
}

// Open opens the journal at path and creates its tables if they are missing.
// The path ":memory:" gives a private journal that is gone after Close.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}

	// A run has one recorder, and a second connection to ":memory:" would
	// be a different database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal tables in %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the journal.
func (s *Store) Close() error {
	return s.db.Close()
}
