package migration

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func openTestDB(t *testing.T) *SQLiteExecutor {
	t.Helper()
	db, err := Open(TestSQLiteConfig(filepath.Join(t.TempDir(), "migrate.db")))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteExecutor(db)
}

func TestScanner_ScanMigrations(t *testing.T) {
	t.Parallel()

	t.Run("sorts numerically and reads descriptions", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/010_late.sql":   {Data: []byte("CREATE TABLE c (id INTEGER);")},
			"m/002_second.sql": {Data: []byte("-- Description: add b\nCREATE TABLE b (id INTEGER);")},
			"m/001_first.sql":  {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"m/README.md":      {Data: []byte("ignored")},
		}

		migrations, err := NewScanner().ScanMigrations(fsys, "m")
		if err != nil {
			t.Fatalf("ScanMigrations failed: %v", err)
		}
		if len(migrations) != 3 {
			t.Fatalf("expected 3 migrations, got %d", len(migrations))
		}
		if migrations[0].Version != "001" || migrations[1].Version != "002" || migrations[2].Version != "010" {
			t.Fatalf("unexpected order: %s %s %s", migrations[0].Version, migrations[1].Version, migrations[2].Version)
		}
		if migrations[1].Description != "add b" {
			t.Fatalf("expected description from header, got %q", migrations[1].Description)
		}
		if migrations[0].Description != "first" {
			t.Fatalf("expected description from filename, got %q", migrations[0].Description)
		}
		if migrations[0].Checksum == "" {
			t.Fatalf("expected checksum to be calculated")
		}
	})

	t.Run("rejects malformed files", func(t *testing.T) {
		t.Parallel()

		cases := map[string]fstest.MapFS{
			"bad name":    {"m/first.sql": {Data: []byte("SELECT 1;")}},
			"empty":       {"m/001_empty.sql": {Data: []byte("-- nothing here\n")}},
			"unbalanced":  {"m/001_broken.sql": {Data: []byte("CREATE TABLE a (id INTEGER;")}},
			"duplicate":   {"m/001_a.sql": {Data: []byte("SELECT 1;")}, "m/01_b.sql": {Data: []byte("SELECT 1;")}},
			"missing dir": {},
		}
		for name, fsys := range cases {
			if _, err := NewScanner().ScanMigrations(fsys, "m"); err == nil {
				t.Fatalf("%s: expected error", name)
			}
		}
	})
}

func TestManager_Run(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("applies pending migrations once", func(t *testing.T) {
		t.Parallel()

		executor := openTestDB(t)
		fsys := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER PRIMARY KEY);\nINSERT INTO a (id) VALUES (1);")},
			"m/002_b.sql": {Data: []byte("CREATE TABLE b (id INTEGER PRIMARY KEY);")},
		}
		manager := NewManager(NewScanner(), executor, fsys, "m", nil)

		applied, err := manager.Run(ctx)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if applied != 2 {
			t.Fatalf("expected 2 migrations applied, got %d", applied)
		}

		applied, err = manager.Run(ctx)
		if err != nil {
			t.Fatalf("second Run failed: %v", err)
		}
		if applied != 0 {
			t.Fatalf("expected no migrations on second run, got %d", applied)
		}

		status, err := manager.Status(ctx)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.CurrentVersion != "002" || status.PendingCount != 0 {
			t.Fatalf("unexpected status: %+v", status)
		}
	})

	t.Run("rolls back a failing migration", func(t *testing.T) {
		t.Parallel()

		executor := openTestDB(t)
		fsys := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);\nINSERT INTO missing_table VALUES (1);")},
		}
		manager := NewManager(NewScanner(), executor, fsys, "m", nil)

		if _, err := manager.Run(ctx); !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}

		var count int
		if err := executor.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sqlite_master WHERE name = 'a'`).Scan(&count); err != nil {
			t.Fatalf("query failed: %v", err)
		}
		if count != 0 {
			t.Fatalf("expected table a to be rolled back")
		}
	})

	t.Run("detects gaps and edited files", func(t *testing.T) {
		t.Parallel()

		executor := openTestDB(t)
		gap := fstest.MapFS{
			"m/001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")},
			"m/003_c.sql": {Data: []byte("CREATE TABLE c (id INTEGER);")},
		}
		if _, err := NewManager(NewScanner(), executor, gap, "m", nil).Run(ctx); !errors.Is(err, ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}

		original := fstest.MapFS{"m/001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER);")}}
		if _, err := NewManager(NewScanner(), executor, original, "m", nil).Run(ctx); err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		edited := fstest.MapFS{"m/001_a.sql": {Data: []byte("CREATE TABLE a (id INTEGER, name TEXT);")}}
		if _, err := NewManager(NewScanner(), executor, edited, "m", nil).Run(ctx); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}

func TestSQLiteConfig_DriverDSN(t *testing.T) {
	t.Parallel()

	cfg := DefaultSQLiteConfig("data/telehealth.db")
	dsn := cfg.DriverDSN()
	for _, want := range []string{"file:data/telehealth.db?", "busy_timeout%285000%29", "foreign_keys%281%29", "journal_mode%28WAL%29"} {
		if !strings.Contains(dsn, want) {
			t.Fatalf("expected %q in %q", want, dsn)
		}
	}

	if err := (SQLiteConfig{}).Validate(); err == nil {
		t.Fatalf("expected empty DSN to be rejected")
	}
	if err := (SQLiteConfig{DSN: "x.db", JournalMode: "bogus"}).Validate(); err == nil {
		t.Fatalf("expected invalid journal mode to be rejected")
	}
}
