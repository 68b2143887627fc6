package database

import (
	"path/filepath"
	"testing"

	"github.com/pwannenmacher/review-flow/internal/config"
)

func TestSQLiteMigrations(t *testing.T) {
	db, err := New(&config.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("RunMigrations() error = %v", err)
	}
	// running again is a no-op
	if err := db.RunMigrations(); err != nil {
		t.Fatalf("second RunMigrations() error = %v", err)
	}

	version, err := MigrationVersion(db.DB, db.Driver)
	if err != nil {
		t.Fatalf("MigrationVersion() error = %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}

	for _, table := range []string{"employees", "assignments", "assignment_events", "responses", "feedback_records", "review_edit_sagas"} {
		var name string
		err := db.DB.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = $1`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	if err := db.HealthCheck(); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}
