package db

import (
	"os"
	"path/filepath"
	"testing"
)

// writeTestMigrations creates a temporary directory with two migration
// versions and returns its path.
func writeTestMigrations(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "migrations")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("failed to create temp migrations dir: %v", err)
	}

	migrations := map[string]string{
		"000001_create_runs.up.sql": `
			CREATE TABLE IF NOT EXISTS runs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL
			);
		`,
		"000001_create_runs.down.sql": `
			DROP TABLE IF EXISTS runs;
		`,
		"000002_add_notes.up.sql": `
			ALTER TABLE runs ADD COLUMN notes TEXT;
		`,
		"000002_add_notes.down.sql": `
			ALTER TABLE runs DROP COLUMN notes;
		`,
	}
	for name, sql := range migrations {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(sql), 0o644); err != nil {
			t.Fatalf("failed to write migration %s: %v", name, err)
		}
	}
	return dir
}

func TestMigrateUpAndVersion(t *testing.T) {
	db := openTestDB(t)
	dir := writeTestMigrations(t)

	version, dirty, err := db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion before up failed: %v", err)
	}
	if version != 0 || dirty {
		t.Errorf("Expected fresh DB at version 0 clean, got %d dirty=%v", version, dirty)
	}

	if err := db.MigrateUp(dir); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}

	version, dirty, err = db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion after up failed: %v", err)
	}
	if version != 2 || dirty {
		t.Errorf("Expected version 2 clean after up, got %d dirty=%v", version, dirty)
	}

	// Running up again is a no-op.
	if err := db.MigrateUp(dir); err != nil {
		t.Errorf("MigrateUp on current DB should be a no-op, got %v", err)
	}

	// The migrated table is usable.
	if _, err := db.Exec(`INSERT INTO runs (name, notes) VALUES ('a', 'b')`); err != nil {
		t.Errorf("Insert into migrated table failed: %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	dir := writeTestMigrations(t)

	if err := db.MigrateUp(dir); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.MigrateDown(dir); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}

	version, _, err := db.MigrateVersion(dir)
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 1 {
		t.Errorf("Expected version 1 after down, got %d", version)
	}
}

func TestGetLatestMigrationVersion(t *testing.T) {
	dir := writeTestMigrations(t)

	latest, err := GetLatestMigrationVersion(dir)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion failed: %v", err)
	}
	if latest != 2 {
		t.Errorf("Expected latest version 2, got %d", latest)
	}

	if _, err := GetLatestMigrationVersion(t.TempDir()); err == nil {
		t.Error("Expected error for empty migrations dir")
	}
}

func TestCheckMigrations(t *testing.T) {
	db := openTestDB(t)
	dir := writeTestMigrations(t)

	if err := db.CheckMigrations(dir); err == nil {
		t.Error("Expected out-of-date error before migrations")
	}

	if err := db.MigrateUp(dir); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	if err := db.CheckMigrations(dir); err != nil {
		t.Errorf("Expected current DB to pass check, got %v", err)
	}
}

// TestShippedMigrations applies the real migrations in migrations/ to verify
// they parse and produce the analysis tables.
func TestShippedMigrations(t *testing.T) {
	db := openTestDB(t)

	if err := db.MigrateUp("../../migrations"); err != nil {
		t.Fatalf("MigrateUp on shipped migrations failed: %v", err)
	}

	for _, table := range []string{"analysis_runs", "analysis_spikes"} {
		var count int
		err := db.QueryRow(`
			SELECT COUNT(*) FROM sqlite_master
			WHERE type='table' AND name=?`, table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to query sqlite_master: %v", err)
		}
		if count != 1 {
			t.Errorf("Expected table %s after migrations", table)
		}
	}

	if err := db.MigrateDown("../../migrations"); err != nil {
		t.Fatalf("MigrateDown on shipped migrations failed: %v", err)
	}
}
