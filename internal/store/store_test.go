package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DriverSQLite, "file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
	if s.Driver() != DriverSQLite {
		t.Errorf("driver = %q, want sqlite", s.Driver())
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("mysql"), ""); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is only checked with file-based DBs.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestSchemaCreated(t *testing.T) {
	s := openTestStore(t)

	for _, table := range []string{"cache_entries", "jobs"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestSchemaIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := ensureSchema(context.Background(), s.DB(), DriverSQLite); err != nil {
		t.Fatalf("second ensureSchema: %v", err)
	}
}

func TestDefaultDBPathEnvOverride(t *testing.T) {
	dir := t.TempDir()
	want := filepath.Join(dir, "nested", "test.db")
	t.Setenv("QUIZFORGE_DB", want)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
	if _, err := os.Stat(filepath.Dir(want)); err != nil {
		t.Errorf("parent dir not created: %v", err)
	}
}

func TestDefaultDBPathXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QUIZFORGE_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("DefaultDBPath: %v", err)
	}
	want := filepath.Join(dir, "quizforge", "quizforge.db")
	if got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
