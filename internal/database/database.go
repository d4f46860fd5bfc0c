// Package database opens the choreboard SQLite store and brings its schema up
// to date from the embedded migrations.
package database

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// dsnOptions is applied to every pooled connection, in the modernc driver's
// _pragma connection-string form (mattn-style ?_foreign_keys=on parameters
// are silently ignored by this driver). WAL keeps dashboard reads from
// blocking the sweep loop's writes; busy_timeout absorbs short write
// contention; foreign_keys enforces the cascade and set-null rules the
// schema relies on.
const dsnOptions = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

// Open opens (or creates) the database at path and runs any pending
// migrations. Pass ":memory:" for a throwaway test store.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if path == ":memory:" {
		// Each connection to :memory: gets its own private database; pin
		// the pool to one connection so every caller sees the same store.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}
