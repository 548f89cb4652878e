// Terminal Core - Liquid Terminal Automation
//
// This is the main entry point for the Terminal Core application.
// Terminal Core is the field layer for a liquid-product terminal:
//   - Continuous register polling of flow computers, tank gauges, and PLCs
//   - A shared in-memory register cache fed to MQTT and InfluxDB
//   - Multi-stream blend orchestration with dedicated control connections
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/calder-systems/terminal-core/migrations"

	"github.com/calder-systems/terminal-core/internal/blend"
	"github.com/calder-systems/terminal-core/internal/fieldbus"
	"github.com/calder-systems/terminal-core/internal/infrastructure/config"
	"github.com/calder-systems/terminal-core/internal/infrastructure/database"
	"github.com/calder-systems/terminal-core/internal/infrastructure/influxdb"
	"github.com/calder-systems/terminal-core/internal/infrastructure/logging"
	"github.com/calder-systems/terminal-core/internal/infrastructure/mqtt"
	"github.com/calder-systems/terminal-core/internal/plant"
	"github.com/calder-systems/terminal-core/internal/poller"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// shutdownTimeout bounds how long running blends get to settle on exit.
const shutdownTimeout = 30 * time.Second

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Terminal Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Load plant configuration into the registry
	plantRepo := plant.NewSQLiteRepository(db.DB)
	registry := plant.NewRegistry(plantRepo)
	registry.SetLogger(log)

	if loadErr := registry.Load(ctx); loadErr != nil {
		return fmt.Errorf("loading plant configuration: %w", loadErr)
	}
	stats := registry.GetStats()
	log.Info("plant configuration loaded",
		"devices", stats.Devices,
		"registers", stats.Registers,
		"tanks", stats.Tanks,
		"products", stats.Products,
	)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)
	mqttClient.SetLogger(log.With("component", "mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Device connections share one factory so the config timeout applies
	// to pollers and blend controllers alike.
	connFactory := func(d plant.Device) (fieldbus.Conn, error) {
		return fieldbus.NewModbusConn(fieldbus.ConnConfig{
			Transport: d.Transport,
			Address:   d.Address,
			UnitID:    d.UnitID,
			BaudRate:  d.BaudRate,
			Timeout:   cfg.Polling.ConnectTimeout,
		})
	}

	// Start the polling layer
	cache := poller.NewCache()
	runner := poller.NewRunner(registry, connFactory, cache, poller.Config{
		Tick:    cfg.Polling.Tick,
		Backoff: cfg.Polling.Backoff,
	})
	pollLog := log.With("component", "poller")
	runner.SetLogger(pollLog)

	qos := byte(cfg.MQTT.QoS)
	trigger := poller.NewTriggerPublisher(mqttClient, qos)
	trigger.SetLogger(pollLog)
	defer trigger.Close()
	runner.Subscribe(trigger)

	health := poller.NewHealthPublisher(mqttClient, qos)
	health.SetLogger(pollLog)
	defer health.Close()
	runner.SubscribeHealth(health)

	if influxClient != nil {
		runner.Subscribe(influxdb.NewRegisterSink(influxClient))
		runner.SubscribeHealth(influxdb.NewHealthSink(influxClient))
	}

	if startErr := runner.Start(ctx); startErr != nil {
		return fmt.Errorf("starting pollers: %w", startErr)
	}
	defer func() {
		log.Info("stopping pollers")
		runner.Stop()
	}()
	log.Info("polling layer started", "devices", stats.Devices)

	// Start the blend orchestrator
	orchestrator := blend.NewOrchestrator(registry, connFactory, blend.Config{
		ControlInterval: cfg.Blending.ControlInterval,
		MonitorInterval: cfg.Blending.MonitorInterval,
	})
	blendLog := log.With("component", "blend")
	orchestrator.SetLogger(blendLog)
	orchestrator.SetArchive(blend.NewSQLiteArchive(db.DB))

	statePub := blend.NewStatePublisher(mqttClient, qos)
	statePub.SetLogger(blendLog)
	defer statePub.Close()
	orchestrator.AddEventSink(statePub)

	progressPub := blend.NewProgressPublisher(mqttClient, qos)
	progressPub.SetLogger(blendLog)
	defer progressPub.Close()
	orchestrator.AddTelemetrySink(progressPub)

	if influxClient != nil {
		orchestrator.AddTelemetrySink(influxdb.NewBlendSink(influxClient))
	}

	defer func() {
		log.Info("stopping blend operations")
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if shutdownErr := orchestrator.Shutdown(stopCtx); shutdownErr != nil {
			log.Error("blend shutdown incomplete", "error", shutdownErr)
		}
	}()
	log.Info("blend orchestrator ready")

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred cleanup runs in reverse order:
	// 1. Blend orchestrator (settle valves and pumps)
	// 2. Pollers
	// 3. InfluxDB (if enabled)
	// 4. MQTT
	// 5. Database

	log.Info("Terminal Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses TERMCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("TERMCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
//
// MQTT is excluded: the paho client reconnects on its own, and a broker
// blip at startup must not take the polling layer down with it.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
