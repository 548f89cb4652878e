package plant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for static configuration lookups.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// ListDevices retrieves all device definitions.
	ListDevices(ctx context.Context) ([]Device, error)

	// GetDevice retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetDevice(ctx context.Context, id string) (*Device, error)

	// ListRegisters retrieves all register definitions for one device,
	// ordered by address.
	ListRegisters(ctx context.Context, deviceID string) ([]Register, error)

	// ListTanks retrieves all tank definitions.
	ListTanks(ctx context.Context) ([]Tank, error)

	// GetTank retrieves a tank by ID.
	// Returns ErrTankNotFound if the tank does not exist.
	GetTank(ctx context.Context, id string) (*Tank, error)

	// ListProducts retrieves all product definitions.
	ListProducts(ctx context.Context) ([]Product, error)

	// GetProduct retrieves a product by ID.
	// Returns ErrProductNotFound if the product does not exist.
	GetProduct(ctx context.Context, id string) (*Product, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// ListDevices retrieves all device definitions.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	query := `
		SELECT id, name, transport, address, unit_id, baud_rate, enabled,
			created_at, updated_at
		FROM devices
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, scanErr := scanDevice(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning device: %w", scanErr)
		}
		devices = append(devices, *d)
	}
	return devices, rows.Err()
}

// GetDevice retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetDevice(ctx context.Context, id string) (*Device, error) {
	query := `
		SELECT id, name, transport, address, unit_id, baud_rate, enabled,
			created_at, updated_at
		FROM devices
		WHERE id = ?`

	d, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return d, nil
}

// ListRegisters retrieves all register definitions for one device.
func (r *SQLiteRepository) ListRegisters(ctx context.Context, deviceID string) ([]Register, error) {
	query := `
		SELECT device_id, name, address, class, encoding, scale,
			poll_interval_ms, enabled
		FROM registers
		WHERE device_id = ?
		ORDER BY address`

	rows, err := r.db.QueryContext(ctx, query, deviceID)
	if err != nil {
		return nil, fmt.Errorf("querying registers: %w", err)
	}
	defer rows.Close()

	var registers []Register
	for rows.Next() {
		var (
			reg        Register
			intervalMS int64
		)
		if scanErr := rows.Scan(&reg.DeviceID, &reg.Name, &reg.Address, &reg.Class,
			&reg.Encoding, &reg.Scale, &intervalMS, &reg.Enabled); scanErr != nil {
			return nil, fmt.Errorf("scanning register: %w", scanErr)
		}
		reg.PollInterval = time.Duration(intervalMS) * time.Millisecond
		registers = append(registers, reg)
	}
	return registers, rows.Err()
}

// ListTanks retrieves all tank definitions.
func (r *SQLiteRepository) ListTanks(ctx context.Context) ([]Tank, error) {
	query := `
		SELECT id, name, product_id, device_id, valve_coil_addr,
			pump_speed_addr, flow_rate_addr
		FROM tanks
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying tanks: %w", err)
	}
	defer rows.Close()

	var tanks []Tank
	for rows.Next() {
		var t Tank
		if scanErr := rows.Scan(&t.ID, &t.Name, &t.ProductID, &t.DeviceID,
			&t.ValveCoilAddr, &t.PumpSpeedAddr, &t.FlowRateAddr); scanErr != nil {
			return nil, fmt.Errorf("scanning tank: %w", scanErr)
		}
		tanks = append(tanks, t)
	}
	return tanks, rows.Err()
}

// GetTank retrieves a tank by ID.
func (r *SQLiteRepository) GetTank(ctx context.Context, id string) (*Tank, error) {
	query := `
		SELECT id, name, product_id, device_id, valve_coil_addr,
			pump_speed_addr, flow_rate_addr
		FROM tanks
		WHERE id = ?`

	var t Tank
	err := r.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.ProductID,
		&t.DeviceID, &t.ValveCoilAddr, &t.PumpSpeedAddr, &t.FlowRateAddr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTankNotFound
		}
		return nil, fmt.Errorf("querying tank by id: %w", err)
	}
	return &t, nil
}

// ListProducts retrieves all product definitions.
func (r *SQLiteRepository) ListProducts(ctx context.Context) ([]Product, error) {
	query := `
		SELECT id, name, api_gravity, viscosity
		FROM products
		ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying products: %w", err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if scanErr := rows.Scan(&p.ID, &p.Name, &p.APIGravity, &p.Viscosity); scanErr != nil {
			return nil, fmt.Errorf("scanning product: %w", scanErr)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetProduct retrieves a product by ID.
func (r *SQLiteRepository) GetProduct(ctx context.Context, id string) (*Product, error) {
	query := `
		SELECT id, name, api_gravity, viscosity
		FROM products
		WHERE id = ?`

	var p Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.APIGravity, &p.Viscosity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("querying product by id: %w", err)
	}
	return &p, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDevice scans a device row in the column order used by all queries.
func scanDevice(row rowScanner) (*Device, error) {
	var (
		d                    Device
		createdAt, updatedAt string
	)
	err := row.Scan(&d.ID, &d.Name, &d.Transport, &d.Address, &d.UnitID,
		&d.BaudRate, &d.Enabled, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	// Timestamps are stored as RFC3339 text.
	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}
	return &d, nil
}
