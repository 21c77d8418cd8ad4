package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"chat_backend/internal/store/migrations"
	"chat_backend/internal/store/sqlstore"
)

// Open opens a SQLite database with the given DSN. An in-memory DSN is pinned
// to a single connection so every query sees the same database.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// Migrate brings the schema to the latest embedded version.
func Migrate(db *sql.DB) error {
	return migrations.MigrateUp(db, migrations.SQLite)
}

// NewStore opens, migrates and wraps a SQLite database.
func NewStore(dsn string) (*sqlstore.Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return sqlstore.New(db, sqlstore.SQLite), nil
}
