package blend

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the blend schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}

	// Matches migration.
	schema := `
		CREATE TABLE blend_operations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			dest_tank_id TEXT NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('completed', 'failed', 'stopped')),
			total_target REAL NOT NULL,
			transferred REAL NOT NULL,
			api_gravity REAL NOT NULL,
			viscosity REAL NOT NULL,
			error TEXT,
			started_at TEXT NOT NULL,
			completed_at TEXT
		) STRICT;

		CREATE TABLE blend_components (
			operation_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			tank_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			target REAL NOT NULL,
			transferred REAL NOT NULL,
			flow_rate REAL NOT NULL,
			done INTEGER NOT NULL,
			PRIMARY KEY (operation_id, position),
			FOREIGN KEY (operation_id) REFERENCES blend_operations(id) ON DELETE CASCADE
		) STRICT;`

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func archivedSnapshot() Snapshot {
	started := time.Date(2026, 8, 14, 9, 30, 0, 0, time.UTC)
	return Snapshot{
		ID:          "op-1",
		Name:        "summer blend 14",
		DestTankID:  "tank-dest",
		Status:      StatusCompleted,
		TotalTarget: 1000,
		Transferred: 1000,
		APIGravity:  36.0,
		Viscosity:   22.0,
		StartedAt:   started,
		CompletedAt: started.Add(45 * time.Minute),
		Components: []ComponentProgress{
			{TankID: "tank-a", ProductID: "prod-a", Target: 600, Transferred: 600, FlowRate: 200, Done: true},
			{TankID: "tank-b", ProductID: "prod-b", Target: 400, Transferred: 400, FlowRate: 150, Done: true},
		},
	}
}

func TestSQLiteArchiveRoundTrip(t *testing.T) {
	archive := NewSQLiteArchive(setupTestDB(t))
	ctx := context.Background()

	want := archivedSnapshot()
	if err := archive.SaveOperation(ctx, want); err != nil {
		t.Fatalf("SaveOperation() = %v", err)
	}

	got, err := archive.GetOperation(ctx, "op-1")
	if err != nil {
		t.Fatalf("GetOperation() = %v", err)
	}
	if got.Name != want.Name || got.Status != want.Status || got.DestTankID != want.DestTankID {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.APIGravity != 36.0 || got.Viscosity != 22.0 {
		t.Errorf("properties = %g/%g, want 36/22", got.APIGravity, got.Viscosity)
	}
	if !got.StartedAt.Equal(want.StartedAt) || !got.CompletedAt.Equal(want.CompletedAt) {
		t.Errorf("timestamps = %v/%v, want %v/%v",
			got.StartedAt, got.CompletedAt, want.StartedAt, want.CompletedAt)
	}
	if len(got.Components) != 2 {
		t.Fatalf("got %d components, want 2", len(got.Components))
	}
	if got.Components[0].TankID != "tank-a" || got.Components[1].TankID != "tank-b" {
		t.Error("components out of order")
	}
	if !got.Components[0].Done || got.Components[0].Transferred != 600 {
		t.Errorf("component 0 = %+v", got.Components[0])
	}
}

func TestSQLiteArchiveReplacesOnResave(t *testing.T) {
	archive := NewSQLiteArchive(setupTestDB(t))
	ctx := context.Background()

	snap := archivedSnapshot()
	snap.Status = StatusFailed
	snap.Error = "link down"
	snap.Components = snap.Components[:1]
	if err := archive.SaveOperation(ctx, snap); err != nil {
		t.Fatalf("SaveOperation() = %v", err)
	}

	// A second save of the same ID replaces the record wholesale.
	if err := archive.SaveOperation(ctx, archivedSnapshot()); err != nil {
		t.Fatalf("resaving: %v", err)
	}

	got, err := archive.GetOperation(ctx, "op-1")
	if err != nil {
		t.Fatalf("GetOperation() = %v", err)
	}
	if got.Status != StatusCompleted || got.Error != "" {
		t.Errorf("status = %s error = %q, want completed with no error", got.Status, got.Error)
	}
	if len(got.Components) != 2 {
		t.Errorf("got %d components after resave, want 2", len(got.Components))
	}
}

func TestSQLiteArchiveList(t *testing.T) {
	archive := NewSQLiteArchive(setupTestDB(t))
	ctx := context.Background()

	first := archivedSnapshot()
	second := archivedSnapshot()
	second.ID = "op-2"
	second.StartedAt = first.StartedAt.Add(time.Hour)
	second.Status = StatusStopped

	if err := archive.SaveOperation(ctx, first); err != nil {
		t.Fatalf("SaveOperation() = %v", err)
	}
	if err := archive.SaveOperation(ctx, second); err != nil {
		t.Fatalf("SaveOperation() = %v", err)
	}

	snaps, err := archive.ListOperations(ctx, 0)
	if err != nil {
		t.Fatalf("ListOperations() = %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d operations, want 2", len(snaps))
	}
	// Newest first.
	if snaps[0].ID != "op-2" || snaps[1].ID != "op-1" {
		t.Errorf("order = %s, %s, want op-2, op-1", snaps[0].ID, snaps[1].ID)
	}

	limited, err := archive.ListOperations(ctx, 1)
	if err != nil {
		t.Fatalf("ListOperations(1) = %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "op-2" {
		t.Errorf("limited list = %+v, want just op-2", limited)
	}
}

func TestSQLiteArchiveGetMissing(t *testing.T) {
	archive := NewSQLiteArchive(setupTestDB(t))

	_, err := archive.GetOperation(context.Background(), "nope")
	if !errors.Is(err, ErrOperationNotFound) {
		t.Errorf("GetOperation(missing) = %v, want ErrOperationNotFound", err)
	}
}
