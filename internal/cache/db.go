// Package cache persists the last-good view of conversations, messages,
// and drafts in a profile-local SQLite database. The in-memory stores are
// hydrated from here on startup so the client renders something useful
// before the first fetch completes, and failed loads keep showing the
// last synced state even across restarts.
package cache

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection for the profile-owned cache.db.
type DB struct {
	*sql.DB
}

// Open creates a SQLite connection with WAL mode and the usual pragmas.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	return &DB{db}, nil
}
