// Package history keeps a persistent record of executed statements in a
// local SQLite database so past work can be searched and replayed.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS statements (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	statement   TEXT NOT NULL,
	engine      TEXT,
	database_name TEXT,
	executed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	duration_ms INTEGER,
	row_count   INTEGER,
	is_error    BOOLEAN DEFAULT FALSE
)`

// Entry is a single executed statement. Statement text may reference
// parameter placeholders; parameter values are never recorded.
type Entry struct {
	ID         int64
	Statement  string
	Engine     string
	Database   string
	ExecutedAt time.Time
	DurationMS int64
	RowCount   int64
	IsError    bool
}

// Store is a SQLite-backed statement log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: create table: %w", err)
	}
	return &Store{db: db}, nil
}

// Add records an executed statement.
func (s *Store) Add(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statements (statement, engine, database_name, executed_at, duration_ms, row_count, is_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Statement, e.Engine, e.Database, e.ExecutedAt, e.DurationMS, e.RowCount, e.IsError,
	)
	if err != nil {
		return fmt.Errorf("history add: %w", err)
	}
	return nil
}

// Search returns entries whose statement text matches pattern using SQL
// LIKE, most recent first, limited to limit rows.
func (s *Store) Search(ctx context.Context, pattern string, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, statement, engine, database_name, executed_at, duration_ms, row_count, is_error
		 FROM statements
		 WHERE statement LIKE ?
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history search: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the most recent entries, limited to limit rows.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, statement, engine, database_name, executed_at, duration_ms, row_count, is_error
		 FROM statements
		 ORDER BY executed_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history recent: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM statements`); err != nil {
		return fmt.Errorf("history clear: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID,
			&e.Statement,
			&e.Engine,
			&e.Database,
			&e.ExecutedAt,
			&e.DurationMS,
			&e.RowCount,
			&e.IsError,
		); err != nil {
			return nil, fmt.Errorf("history scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}
	return entries, nil
}
