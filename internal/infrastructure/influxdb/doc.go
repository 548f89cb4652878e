// Package influxdb provides InfluxDB connectivity for Terminal Core.
//
// It wraps the official influxdb-client-go v2 library with Terminal Core-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Polled register values from field devices
//   - Device poll-health transitions
//   - Blend operation progress and per-stream flow samples
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "calder",
//	    Bucket: "terminal",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write register telemetry
//	client.WriteRegisterValue("bay1-flowcomp", 100, 1000.0, time.Now())
//
// The sink types (RegisterSink, HealthSink, BlendSink) adapt the client to
// the poller and blend notification interfaces, so telemetry wiring is a
// one-liner at startup.
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
