package secret

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const createTableSQL = `CREATE TABLE IF NOT EXISTS secrets (
	id         TEXT PRIMARY KEY,
	secret     TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteStore is a file-backed Store. The database file is created with
// 0600 permissions; it is the local fallback for platforms without a
// native keychain.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the secret database at path and ensures
// the schema exists.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("secret: create dir: %w", err)
	}

	// Pre-create so the file never exists with default permissions.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("secret: create db file: %w", err)
	}
	f.Close()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("secret: open db: %w", err)
	}

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("secret: create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Set upserts the secret for id.
func (s *SQLiteStore) Set(ctx context.Context, id, secret string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO secrets (id, secret, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET secret = excluded.secret, updated_at = CURRENT_TIMESTAMP`,
		id, secret,
	)
	if err != nil {
		return fmt.Errorf("secret set %q: %w", id, err)
	}
	return nil
}

// Get returns the secret for id, or (_, false, nil) when absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (string, bool, error) {
	var secret string
	err := s.db.QueryRowContext(ctx,
		`SELECT secret FROM secrets WHERE id = ?`, id,
	).Scan(&secret)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("secret get %q: %w", id, err)
	}
	return secret, true, nil
}

// Delete removes the secret for id. Deleting a missing id is a no-op.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("secret delete %q: %w", id, err)
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
