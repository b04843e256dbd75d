package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateRecordsVersion(t *testing.T) {
	db := openTestDB(t)

	v, err := Version(db)
	if err != nil {
		t.Fatalf("version before migrate: %v", err)
	}
	if v != 0 {
		t.Fatalf("fresh database should be at version 0, got %d", v)
	}

	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	v, err = Version(db)
	if err != nil {
		t.Fatalf("version after migrate: %v", err)
	}
	if v < 1 {
		t.Fatalf("expected applied version >= 1, got %d", v)
	}

	var stamp string
	if err := db.QueryRow(`SELECT applied_at FROM schema_version LIMIT 1`).Scan(&stamp); err != nil {
		t.Fatalf("read applied_at: %v", err)
	}
	if stamp == "" {
		t.Fatal("applied_at not recorded")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := Migrate(db); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	before, err := Version(db)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	after, err := Version(db)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if before != after {
		t.Fatalf("version moved on a no-op migrate: %d -> %d", before, after)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_version`).Scan(&rows); err != nil {
		t.Fatalf("count schema_version: %v", err)
	}
	if rows != 1 {
		t.Fatalf("schema_version should hold one row, got %d", rows)
	}
}
