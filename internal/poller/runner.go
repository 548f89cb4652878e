package poller

import (
	"context"
	"fmt"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
	"github.com/calder-systems/terminal-core/internal/plant"
)

// ConnFactory builds a device connection from its definition.
// Production wiring uses fieldbus.NewModbusConn; tests substitute fakes.
type ConnFactory func(plant.Device) (fieldbus.Conn, error)

// ModbusConnFactory is the production ConnFactory.
func ModbusConnFactory(d plant.Device) (fieldbus.Conn, error) {
	return fieldbus.NewModbusConn(fieldbus.ConnConfig{
		Transport: d.Transport,
		Address:   d.Address,
		UnitID:    d.UnitID,
		BaudRate:  d.BaudRate,
	})
}

// Runner owns the full set of pollers, one per enabled device.
//
// It is the explicit arena the rest of the system holds a reference to;
// there is no global device registry. Pollers run independently: one
// unreachable device never blocks the others.
type Runner struct {
	registry *plant.Registry
	factory  ConnFactory
	cache    *Cache
	cfg      Config

	subscribers []Subscriber
	healthSinks []HealthSink

	pollers map[string]*Poller
	logger  Logger
}

// NewRunner creates a runner over the configured devices.
//
// Parameters:
//   - registry: Loaded plant configuration
//   - factory: Connection factory (ModbusConnFactory in production)
//   - cache: Shared register cache
//   - cfg: Timing parameters applied to every poller
func NewRunner(registry *plant.Registry, factory ConnFactory, cache *Cache, cfg Config) *Runner {
	return &Runner{
		registry: registry,
		factory:  factory,
		cache:    cache,
		cfg:      cfg,
		pollers:  make(map[string]*Poller),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the runner and all pollers it creates.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Subscribe registers a change subscriber on every poller.
// Must be called before Start.
func (r *Runner) Subscribe(s Subscriber) {
	r.subscribers = append(r.subscribers, s)
}

// SubscribeHealth registers a health sink on every poller.
// Must be called before Start.
func (r *Runner) SubscribeHealth(s HealthSink) {
	r.healthSinks = append(r.healthSinks, s)
}

// Start builds and launches one poller per enabled device.
//
// Returns:
//   - error: If a connection cannot be constructed (not: connected — dial
//     failures are handled by each poller's own backoff)
func (r *Runner) Start(ctx context.Context) error {
	for _, device := range r.registry.EnabledDevices() {
		conn, err := r.factory(device)
		if err != nil {
			r.Stop()
			return fmt.Errorf("building connection for %q: %w", device.ID, err)
		}

		p := New(device, r.registry.Registers(device.ID), conn, r.cache, r.cfg)
		p.SetLogger(r.logger)
		for _, s := range r.subscribers {
			p.Subscribe(s)
		}
		for _, s := range r.healthSinks {
			p.SubscribeHealth(s)
		}

		r.pollers[device.ID] = p
		p.Start(ctx)
	}

	r.logger.Info("pollers started", "count", len(r.pollers))
	return nil
}

// Stop shuts down every poller and closes every connection.
func (r *Runner) Stop() {
	for _, p := range r.pollers {
		p.Stop()
	}
	r.logger.Info("pollers stopped", "count", len(r.pollers))
}

// DeviceHealth returns the poll health of every running poller.
func (r *Runner) DeviceHealth() []Health {
	out := make([]Health, 0, len(r.pollers))
	for _, p := range r.pollers {
		out = append(out, p.Status())
	}
	return out
}

// Cache returns the shared register cache.
// This is the read side of the get_cache_value command boundary.
func (r *Runner) Cache() *Cache {
	return r.cache
}
