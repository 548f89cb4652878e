package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// openTestDB opens a database in a per-test temp directory and closes
// it when the test finishes.
func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "termcore.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	return db
}

func TestOpenCreatesFileAndDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "var", "lib", "termcore", "termcore.db")

	db, err := Open(Config{Path: dbPath, WALMode: true, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestOpenEnablesWALMode(t *testing.T) {
	db := openTestDB(t)

	var mode string
	if err := db.QueryRowContext(context.Background(), "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("querying journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestOpenEnforcesForeignKeys(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Matches the shape of the devices/registers relationship.
	_, err := db.ExecContext(ctx, `
		CREATE TABLE parent_devices (id TEXT PRIMARY KEY) STRICT;
		CREATE TABLE child_registers (
			device_id TEXT NOT NULL,
			address INTEGER NOT NULL,
			PRIMARY KEY (device_id, address),
			FOREIGN KEY (device_id) REFERENCES parent_devices(id) ON DELETE CASCADE
		) STRICT;
	`)
	if err != nil {
		t.Fatalf("creating tables: %v", err)
	}

	_, err = db.ExecContext(ctx,
		"INSERT INTO child_registers (device_id, address) VALUES ('dev-ghost', 100)")
	if err == nil {
		t.Fatal("insert referencing a missing device succeeded; foreign keys are off")
	}

	// Cascade path: delete the parent, children go with it.
	if _, err := db.ExecContext(ctx, "INSERT INTO parent_devices (id) VALUES ('dev-1')"); err != nil {
		t.Fatalf("inserting device: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO child_registers (device_id, address) VALUES ('dev-1', 100)"); err != nil {
		t.Fatalf("inserting register: %v", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM parent_devices WHERE id = 'dev-1'"); err != nil {
		t.Fatalf("deleting device: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM child_registers").Scan(&count); err != nil {
		t.Fatalf("counting registers: %v", err)
	}
	if count != 0 {
		t.Errorf("%d registers survived device delete, want 0", count)
	}
}

func TestHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestCloseIsSafeWhenUnopened(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("Close() on nil receiver error = %v", err)
	}

	empty := &DB{}
	if err := empty.Close(); err != nil {
		t.Errorf("Close() on empty DB error = %v", err)
	}
}
