package plant

import (
	"context"
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry serves validated static configuration from an in-memory cache.
//
// The cache is populated once at startup via Load; the core never mutates
// plant configuration afterwards, so lookups after Load are lock-free reads
// over immutable maps guarded by an RWMutex for the reload path.
//
// All public methods are thread-safe.
type Registry struct {
	repo Repository

	mu        sync.RWMutex
	devices   map[string]Device
	registers map[string][]Register // keyed by device ID, sorted by address
	tanks     map[string]Tank
	products  map[string]Product

	logger Logger
}

// NewRegistry creates a new configuration registry backed by repo.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:      repo,
		devices:   make(map[string]Device),
		registers: make(map[string][]Register),
		tanks:     make(map[string]Tank),
		products:  make(map[string]Product),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Load reads the full configuration from the repository, validates it, and
// replaces the cache. Called once at application startup.
//
// Validation enforces the (device, address) uniqueness invariant and the
// per-entity rules in validation.go. A single invalid definition fails the
// whole load: a terminal must not start on a partially-usable register map.
//
// Returns:
//   - error: Wrapped repository or validation error, or nil on success
func (r *Registry) Load(ctx context.Context) error {
	devices, err := r.repo.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	deviceMap := make(map[string]Device, len(devices))
	registerMap := make(map[string][]Register, len(devices))
	registerCount := 0

	for i := range devices {
		d := devices[i]
		if validErr := ValidateDevice(&d); validErr != nil {
			return fmt.Errorf("device %q: %w", d.ID, validErr)
		}
		deviceMap[d.ID] = d

		regs, listErr := r.repo.ListRegisters(ctx, d.ID)
		if listErr != nil {
			return fmt.Errorf("loading registers for %q: %w", d.ID, listErr)
		}

		seen := make(map[uint16]bool, len(regs))
		for j := range regs {
			reg := regs[j]
			if validErr := ValidateRegister(&reg); validErr != nil {
				return fmt.Errorf("register %s/%d: %w", d.ID, reg.Address, validErr)
			}
			if seen[reg.Address] {
				return fmt.Errorf("%w: %s/%d", ErrDuplicateRegister, d.ID, reg.Address)
			}
			seen[reg.Address] = true
		}
		registerMap[d.ID] = regs
		registerCount += len(regs)
	}

	tanks, err := r.repo.ListTanks(ctx)
	if err != nil {
		return fmt.Errorf("loading tanks: %w", err)
	}
	products, err := r.repo.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("loading products: %w", err)
	}

	productMap := make(map[string]Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}

	tankMap := make(map[string]Tank, len(tanks))
	for i := range tanks {
		t := tanks[i]
		if validErr := ValidateTank(&t); validErr != nil {
			return fmt.Errorf("tank %q: %w", t.ID, validErr)
		}
		if _, ok := productMap[t.ProductID]; !ok {
			return fmt.Errorf("tank %q: %w: %q", t.ID, ErrProductNotFound, t.ProductID)
		}
		if _, ok := deviceMap[t.DeviceID]; !ok {
			return fmt.Errorf("tank %q: %w: %q", t.ID, ErrDeviceNotFound, t.DeviceID)
		}
		tankMap[t.ID] = t
	}

	r.mu.Lock()
	r.devices = deviceMap
	r.registers = registerMap
	r.tanks = tankMap
	r.products = productMap
	r.mu.Unlock()

	r.logger.Info("plant configuration loaded",
		"devices", len(deviceMap),
		"registers", registerCount,
		"tanks", len(tankMap),
		"products", len(productMap),
	)
	return nil
}

// Device retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
func (r *Registry) Device(id string) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return Device{}, ErrDeviceNotFound
	}
	return d, nil
}

// Devices returns all device definitions.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, d)
	}
	return out
}

// EnabledDevices returns all devices with polling enabled.
func (r *Registry) EnabledDevices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Device
	for _, d := range r.devices {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// Registers returns the register map for one device, sorted by address.
// The returned slice is a copy; callers can safely modify it.
func (r *Registry) Registers(deviceID string) []Register {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := r.registers[deviceID]
	out := make([]Register, len(regs))
	copy(out, regs)
	return out
}

// Tank retrieves a tank by ID.
// Returns ErrTankNotFound if the tank does not exist.
func (r *Registry) Tank(id string) (Tank, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tanks[id]
	if !ok {
		return Tank{}, ErrTankNotFound
	}
	return t, nil
}

// Product retrieves a product by ID.
// Returns ErrProductNotFound if the product does not exist.
func (r *Registry) Product(id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

// TankProduct resolves a tank's product definition in one call.
func (r *Registry) TankProduct(tankID string) (Tank, Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tanks[tankID]
	if !ok {
		return Tank{}, Product{}, ErrTankNotFound
	}
	p, ok := r.products[t.ProductID]
	if !ok {
		return Tank{}, Product{}, ErrProductNotFound
	}
	return t, p, nil
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	Devices   int
	Registers int
	Tanks     int
	Products  int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		Devices:  len(r.devices),
		Tanks:    len(r.tanks),
		Products: len(r.products),
	}
	for _, regs := range r.registers {
		stats.Registers += len(regs)
	}
	return stats
}
