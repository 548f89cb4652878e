package blend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteArchive implements ArchiveRepository using SQLite. Each finished
// operation is written once, with one row per component, inside a single
// transaction.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive creates a SQLite-backed blend archive.
// The db parameter should be an open SQLite connection with the blend
// tables migrated.
func NewSQLiteArchive(db *sql.DB) *SQLiteArchive {
	return &SQLiteArchive{db: db}
}

// SaveOperation persists a finished operation. Saving the same operation
// again replaces the earlier record.
func (a *SQLiteArchive) SaveOperation(ctx context.Context, snap Snapshot) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning archive transaction: %w", err)
	}
	defer tx.Rollback()

	var completedAt interface{}
	if !snap.CompletedAt.IsZero() {
		completedAt = snap.CompletedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO blend_operations
			(id, name, dest_tank_id, status, total_target, transferred,
			api_gravity, viscosity, error, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.ID, snap.Name, snap.DestTankID, string(snap.Status),
		snap.TotalTarget, snap.Transferred, snap.APIGravity, snap.Viscosity,
		snap.Error, snap.StartedAt.UTC().Format(time.RFC3339Nano), completedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting blend operation: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM blend_components WHERE operation_id = ?`, snap.ID); err != nil {
		return fmt.Errorf("clearing blend components: %w", err)
	}
	for i, c := range snap.Components {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO blend_components
				(operation_id, position, tank_id, product_id, target,
				transferred, flow_rate, done)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			snap.ID, i, c.TankID, c.ProductID, c.Target,
			c.Transferred, c.FlowRate, c.Done,
		)
		if err != nil {
			return fmt.Errorf("inserting blend component: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing blend archive: %w", err)
	}
	return nil
}

// GetOperation retrieves an archived operation by ID.
// Returns ErrOperationNotFound if no record exists.
func (a *SQLiteArchive) GetOperation(ctx context.Context, id string) (*Snapshot, error) {
	query := `
		SELECT id, name, dest_tank_id, status, total_target, transferred,
			api_gravity, viscosity, error, started_at, completed_at
		FROM blend_operations
		WHERE id = ?`

	snap, err := scanOperation(a.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
		}
		return nil, fmt.Errorf("querying blend operation: %w", err)
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT tank_id, product_id, target, transferred, flow_rate, done
		FROM blend_components
		WHERE operation_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("querying blend components: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c ComponentProgress
		if err := rows.Scan(&c.TankID, &c.ProductID, &c.Target,
			&c.Transferred, &c.FlowRate, &c.Done); err != nil {
			return nil, fmt.Errorf("scanning blend component: %w", err)
		}
		snap.Components = append(snap.Components, c)
	}
	return snap, rows.Err()
}

// ListOperations retrieves archived operations newest first, without
// component detail. Limit caps the result; zero means no cap.
func (a *SQLiteArchive) ListOperations(ctx context.Context, limit int) ([]Snapshot, error) {
	query := `
		SELECT id, name, dest_tank_id, status, total_target, transferred,
			api_gravity, viscosity, error, started_at, completed_at
		FROM blend_operations
		ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying blend operations: %w", err)
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		snap, scanErr := scanOperation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning blend operation: %w", scanErr)
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

// rowScanner abstracts sql.Row and sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(row rowScanner) (*Snapshot, error) {
	var snap Snapshot
	var status, startedAt string
	var completedAt sql.NullString
	var errText sql.NullString

	err := row.Scan(&snap.ID, &snap.Name, &snap.DestTankID, &status,
		&snap.TotalTarget, &snap.Transferred, &snap.APIGravity,
		&snap.Viscosity, &errText, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	snap.Status = Status(status)
	snap.Error = errText.String
	if snap.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return nil, fmt.Errorf("parsing started_at: %w", err)
	}
	if completedAt.Valid {
		if snap.CompletedAt, err = time.Parse(time.RFC3339Nano, completedAt.String); err != nil {
			return nil, fmt.Errorf("parsing completed_at: %w", err)
		}
	}
	return &snap, nil
}
