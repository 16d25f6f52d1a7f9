package database

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	body := `
-- leading comment
CREATE TABLE a (id INTEGER);

CREATE INDEX idx_a ON a (id);
-- trailing comment
`
	stmts := SplitStatements(body)
	if len(stmts) != 2 {
		t.Fatalf("statements = %d, want 2: %q", len(stmts), stmts)
	}
	if stmts[0] != "CREATE TABLE a (id INTEGER)" {
		t.Fatalf("stmts[0] = %q", stmts[0])
	}
}

func TestExtractUpMigration(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id INTEGER);\n-- +migrate Down\nDROP TABLE a;\n"
	got := ExtractUpMigration(content)
	if got != "\nCREATE TABLE a (id INTEGER);\n" {
		t.Fatalf("up = %q", got)
	}
	if ExtractUpMigration("SELECT 1") != "SELECT 1" {
		t.Fatal("expected content without markers to be returned unchanged")
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db, d, err := OpenSQLite(filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	if err := Migrate(ctx, db, d); err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if err := Migrate(ctx, db, d); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	var applied int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 1 {
		t.Fatalf("applied = %d, want 1", applied)
	}
	for _, table := range []string{"events", "participants", "join_requests"} {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}
