package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// Data directory and file stay private to the service account. The
	// plant database names every device address on the terminal network.
	dirMode  = 0750
	fileMode = 0600

	// openTimeout bounds the connectivity check at startup.
	openTimeout = 5 * time.Second
)

// DB is the embedded SQLite store for Terminal Core. It holds the
// static plant configuration (devices, registers, tanks, products)
// read once at startup, and the blend archive written as operations
// finish. Repositories in the plant and blend packages query the
// embedded *sql.DB directly; this wrapper owns the connection
// lifecycle and schema migrations.
type DB struct {
	*sql.DB
}

// Config maps the database section of config.yaml.
type Config struct {
	// Path to the SQLite file. Parent directories are created on first run.
	Path string

	// WALMode turns on write-ahead logging so registry reads at startup
	// do not stall behind archive writes.
	WALMode bool

	// BusyTimeout is how long a statement waits on a locked database,
	// in seconds.
	BusyTimeout int
}

// Open connects to the SQLite file at cfg.Path, creating it and its
// directory on first run, and verifies the connection with a ping.
// Foreign keys are always on: the register and blend component tables
// cascade from their parents.
func Open(cfg Config) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=on",
		cfg.Path, cfg.BusyTimeout*1000)
	if cfg.WALMode {
		dsn += "&_journal_mode=WAL&_synchronous=NORMAL"
	}

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection is enough: SQLite allows a single writer, and the
	// only steady-state writer here is the blend archive.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db := &DB{DB: sqlDB}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		sqlDB.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	// The file may not exist until the first write; retried implicitly
	// on the next startup.
	_ = os.Chmod(cfg.Path, fileMode) //nolint:errcheck

	return db, nil
}

// Close releases the connection. Safe to call on a DB that never
// opened.
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to confirm the connection is alive.
// Part of the startup health gate in main.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
