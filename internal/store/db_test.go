package store

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestOpenMemory(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 6 {
		t.Errorf("SchemaVersion = %d, want 6", v)
	}
}

func TestTablesExist(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	tables := []string{
		"schema_versions", "activities", "identity_axes", "user_achievements",
		"identity_declared", "identity_declared_versions", "identity_observed",
		"feedback_history",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestAxesConstraints(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	insert := `
		INSERT INTO identity_axes (user_id, axis_key, time_window, label, status, relevance_score,
			trend, first_detected_at, last_active_at, updated_at)
		VALUES ('ana', ?, '90d', 'Corpo', ?, ?, ?, 1000, 1000, 1000)
	`

	// Valid insert
	if _, err := db.Exec(insert, "body", "emerging", 0.5, "up"); err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	bad := []struct {
		name   string
		status string
		score  float64
		trend  string
	}{
		{"invalid status", "dormant", 0.5, "up"},
		{"score above one", "central", 1.5, "up"},
		{"negative score", "latent", -0.1, "up"},
		{"invalid trend", "central", 0.8, "sideways"},
	}
	for i, b := range bad {
		if _, err := db.Exec(insert, fmt.Sprintf("axis%d", i), b.status, b.score, b.trend); err == nil {
			t.Errorf("%s: expected error, got nil", b.name)
		}
	}
}

func TestAchievementsConstraints(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	_, err = db.Exec(`
		INSERT INTO user_achievements (user_id, achievement_id, progress, last_evaluated_at)
		VALUES ('ana', 'first', 1.2, 1000)
	`)
	if err == nil {
		t.Error("expected error for progress above 1, got nil")
	}
}

func TestActivitiesUnique(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	insert := `INSERT INTO activities (id, user_id, type, timestamp, created_at) VALUES (?, ?, 'habit', '2024-01-01', 1000)`
	if _, err := db.Exec(insert, "a1", "ana"); err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}
	if _, err := db.Exec(insert, "a1", "bruno"); err != nil {
		t.Fatalf("same id for another user should be allowed: %v", err)
	}
	if _, err := db.Exec(insert, "a1", "ana"); err == nil {
		t.Error("expected error for duplicate (user_id, id), got nil")
	}
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lifeaxes.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	// Running migrate again should be a no-op
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 6 {
		t.Errorf("SchemaVersion after re-migrate = %d, want 6", v)
	}
}

func TestWALMode(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	var mode string
	err = db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	// In-memory databases may use "memory" mode instead of WAL
	if mode != "wal" && mode != "memory" {
		t.Errorf("journal_mode = %q, want wal or memory", mode)
	}
}

func TestForeignKeysEnabled(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer db.Close()

	var fk int
	err = db.QueryRow("PRAGMA foreign_keys").Scan(&fk)
	if err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}
