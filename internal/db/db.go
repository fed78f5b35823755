// Package db opens the blogc SQLite database. It holds the comments of every
// blog post and, with the sqlite token backend, the one-time upload tokens.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	dataDir  = ".blogc"
	dataFile = "comments.db"

	// busyTimeout covers a comment write racing the widget's list,
	// pagination and chart reads, which arrive together.
	busyTimeout = 5 * time.Second
)

// DefaultPath returns ~/.blogc/comments.db. The disk blob store keeps
// images in the images directory next to it.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, dataDir, dataFile), nil
}

// Open opens (or creates) the database at path and runs migrations.
// Every pooled connection uses WAL and the busy timeout.
func Open(path string) (*sql.DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := checkJournal(db); err != nil {
		return nil, closeOnError(db, err)
	}
	if err := migrate(db); err != nil {
		return nil, closeOnError(db, fmt.Errorf("running migrations: %w", err))
	}
	return db, nil
}

// dsn puts the pragmas in go-sqlite3 connection parameters. A PRAGMA run
// through db.Exec would only reach one connection of the pool.
func dsn(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	return path + "?" + q.Encode()
}

// checkJournal fails when SQLite could not switch the file to WAL, for
// example on a filesystem without shared memory support.
func checkJournal(db *sql.DB) error {
	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("reading journal_mode: %w", err)
	}
	if mode != "wal" {
		return fmt.Errorf("journal_mode is %q, want wal", mode)
	}
	return nil
}

func closeOnError(db *sql.DB, err error) error {
	if closeErr := db.Close(); closeErr != nil {
		return fmt.Errorf("%w (also failed to close: %v)", err, closeErr)
	}
	return err
}
