package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAddAndRecent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	for i := range 5 {
		err := s.Add(ctx, Entry{
			Statement:  "SELECT " + string(rune('A'+i)),
			Engine:     "postgres",
			Database:   "chinook",
			ExecutedAt: base.Add(time.Duration(i) * time.Minute),
			DurationMS: int64(10 * (i + 1)),
			RowCount:   int64(i + 1),
		})
		if err != nil {
			t.Fatalf("Add() entry %d error = %v", i, err)
		}
	}

	entries, err := s.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent(3) error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Recent(3) returned %d entries, want 3", len(entries))
	}

	// Most recent first: E, D, C
	wantStatements := []string{"SELECT E", "SELECT D", "SELECT C"}
	for i, want := range wantStatements {
		if entries[i].Statement != want {
			t.Errorf("entries[%d].Statement = %q, want %q", i, entries[i].Statement, want)
		}
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC()
	statements := []string{
		"SELECT * FROM users",
		"INSERT INTO users (name) VALUES ($1)",
		"SELECT * FROM orders",
		"UPDATE users SET name = $1",
		"SELECT count(*) FROM users",
	}
	for i, q := range statements {
		err := s.Add(ctx, Entry{
			Statement:  q,
			Engine:     "postgres",
			ExecutedAt: now.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	entries, err := s.Search(ctx, "%users%", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("Search(%%users%%) returned %d entries, want 4", len(entries))
	}
	if entries[0].Statement != "SELECT count(*) FROM users" {
		t.Errorf("entries[0].Statement = %q, want the most recent match", entries[0].Statement)
	}
}

func TestSearchPatterns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	now := time.Now().UTC()
	statements := []string{
		"CREATE TABLE products (id INT)",
		"DROP TABLE products",
		"ALTER TABLE users ADD COLUMN email TEXT",
		"SELECT * FROM products",
	}
	for i, q := range statements {
		if err := s.Add(ctx, Entry{Statement: q, Engine: "postgres", ExecutedAt: now.Add(time.Duration(i) * time.Second)}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	tests := []struct {
		name    string
		pattern string
		want    int
	}{
		{"match TABLE", "%TABLE%", 3},
		{"match products", "%products%", 3},
		{"prefix SELECT", "SELECT%", 1},
		{"no match", "%TRUNCATE%", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := s.Search(ctx, tt.pattern, 100)
			if err != nil {
				t.Fatalf("Search(%q) error = %v", tt.pattern, err)
			}
			if len(results) != tt.want {
				t.Errorf("Search(%q) returned %d entries, want %d", tt.pattern, len(results), tt.want)
			}
		})
	}
}

func TestRecentEmpty(t *testing.T) {
	entries, err := openTestStore(t).Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Recent() on empty store = %d entries, want 0", len(entries))
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i := range 3 {
		if err := s.Add(ctx, Entry{Statement: "SELECT " + string(rune('A'+i)), ExecutedAt: time.Now().UTC()}); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	after, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(after) != 0 {
		t.Errorf("Recent() after clear = %d entries, want 0", len(after))
	}
}

func TestEntryFieldsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	execAt := time.Date(2025, 3, 15, 14, 30, 0, 0, time.UTC)
	entry := Entry{
		Statement:  "SELECT * FROM big_table WHERE id > $1",
		Engine:     "postgres",
		Database:   "analytics",
		ExecutedAt: execAt,
		DurationMS: 1234,
		RowCount:   5678,
		IsError:    true,
	}
	if err := s.Add(ctx, entry); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	entries, err := s.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent(1) error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Recent(1) returned %d entries, want 1", len(entries))
	}

	got := entries[0]
	if got.ID == 0 {
		t.Error("ID should be non-zero after insert")
	}
	if got.Statement != entry.Statement || got.Engine != entry.Engine || got.Database != entry.Database {
		t.Errorf("entry = %+v, want %+v", got, entry)
	}
	if got.DurationMS != entry.DurationMS || got.RowCount != entry.RowCount || !got.IsError {
		t.Errorf("entry = %+v, want %+v", got, entry)
	}
	// SQLite may lose sub-second precision.
	if got.ExecutedAt.Sub(execAt).Abs() > time.Second {
		t.Errorf("ExecutedAt = %v, want approximately %v", got.ExecutedAt, execAt)
	}
}

func TestCloseAndReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i := range 3 {
		err := s1.Add(ctx, Entry{
			Statement:  "statement_" + string(rune('A'+i)),
			Engine:     "postgres",
			ExecutedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	entries, err := s2.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() after reopen error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("Recent() after reopen = %d entries, want 3", len(entries))
	}
	if entries[0].Statement != "statement_C" || entries[2].Statement != "statement_A" {
		t.Errorf("order after reopen = %q … %q, want most recent first", entries[0].Statement, entries[2].Statement)
	}
}
