package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/calder-systems/terminal-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	// Batching defaults when config.yaml leaves them unset. Register
	// telemetry arrives at poll rate across every device, so unbatched
	// writes would mean one HTTP request per register transition.
	defaultBatchSize      = 100
	defaultFlushSeconds   = 10
	millisecondsPerSecond = 1000
)

// Client is the telemetry sink for the terminal's time-series data:
// polled register values, device poll health, and blend progress all
// land here through the sink adapters in sinks.go.
//
// Writes go through the non-blocking batched WriteAPI, so the poller
// and blend monitor never wait on InfluxDB. Batch errors surface
// asynchronously via the SetOnError callback. All methods are safe for
// concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	mu        sync.RWMutex
	connected bool
	onError   func(err error)
}

// Connect builds a client from the influxdb section of config.yaml and
// verifies the server answers a ping before returning. Returns
// ErrDisabled when the section is disabled, so callers can treat
// InfluxDB as optional without special-casing.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batch, flush := batchSettings(cfg)
	// #nosec G115 -- batchSettings returns positive values
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batch)).
			SetFlushInterval(uint(flush)*millisecondsPerSecond))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:       cfg,
		connected: true,
	}
	go c.watchWriteErrors(c.writeAPI.Errors())

	return c, nil
}

// batchSettings applies defaults for unset or nonsense config values.
func batchSettings(cfg config.InfluxDBConfig) (batchSize, flushSeconds int) {
	batchSize = cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushSeconds = cfg.FlushInterval
	if flushSeconds <= 0 {
		flushSeconds = defaultFlushSeconds
	}
	return batchSize, flushSeconds
}

// watchWriteErrors forwards async batch failures to the registered
// callback. Runs until the write API closes its error channel.
func (c *Client) watchWriteErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError registers a callback for asynchronous write failures.
// Typically wired to the application logger at startup.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// IsConnected reports the last known connection state. The write
// helpers use it to drop telemetry cheaply after Close; for an active
// probe use HealthCheck.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// HealthCheck pings the server. Used by the startup health gate.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := c.client.Ping(checkCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// Flush blocks until buffered points are written. Used before shutdown
// and by tests that need batched writes delivered now.
func (c *Client) Flush() {
	if c.writeAPI == nil || !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes pending telemetry and shuts the client down. Writes
// arriving afterwards are dropped by the IsConnected guard.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
