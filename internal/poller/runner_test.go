package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
	"github.com/calder-systems/terminal-core/internal/plant"
)

// fakeRepo serves a fixed plant configuration for runner tests.
type fakeRepo struct {
	devices   []plant.Device
	registers map[string][]plant.Register
}

func (f *fakeRepo) ListDevices(_ context.Context) ([]plant.Device, error) {
	return f.devices, nil
}

func (f *fakeRepo) GetDevice(_ context.Context, id string) (*plant.Device, error) {
	for _, d := range f.devices {
		if d.ID == id {
			return &d, nil
		}
	}
	return nil, plant.ErrDeviceNotFound
}

func (f *fakeRepo) ListRegisters(_ context.Context, deviceID string) ([]plant.Register, error) {
	return f.registers[deviceID], nil
}

func (f *fakeRepo) ListTanks(_ context.Context) ([]plant.Tank, error) {
	return nil, nil
}

func (f *fakeRepo) GetTank(_ context.Context, _ string) (*plant.Tank, error) {
	return nil, plant.ErrTankNotFound
}

func (f *fakeRepo) ListProducts(_ context.Context) ([]plant.Product, error) {
	return nil, nil
}

func (f *fakeRepo) GetProduct(_ context.Context, _ string) (*plant.Product, error) {
	return nil, plant.ErrProductNotFound
}

func runnerRegistry(t *testing.T) *plant.Registry {
	t.Helper()

	repo := &fakeRepo{
		devices: []plant.Device{
			{ID: "dev-a", Name: "Bay A", Transport: fieldbus.TransportTCP, Address: "a:502", Enabled: true},
			{ID: "dev-b", Name: "Bay B", Transport: fieldbus.TransportTCP, Address: "b:502", Enabled: true},
			{ID: "dev-off", Name: "Spare", Transport: fieldbus.TransportTCP, Address: "c:502", Enabled: false},
		},
		registers: map[string][]plant.Register{
			"dev-a": {{
				DeviceID: "dev-a", Name: "flow", Address: 100,
				Class: plant.ClassInput, Encoding: fieldbus.EncodingUint16,
				Scale: 1.0, PollInterval: 5 * time.Millisecond, Enabled: true,
			}},
			"dev-b": {{
				DeviceID: "dev-b", Name: "level", Address: 10,
				Class: plant.ClassHolding, Encoding: fieldbus.EncodingUint16,
				Scale: 1.0, PollInterval: 5 * time.Millisecond, Enabled: true,
			}},
		},
	}

	registry := plant.NewRegistry(repo)
	if err := registry.Load(context.Background()); err != nil {
		t.Fatalf("loading registry: %v", err)
	}
	return registry
}

func TestRunnerStartsEnabledDevicesOnly(t *testing.T) {
	registry := runnerRegistry(t)
	cache := NewCache()

	conns := map[string]*fakeConn{}
	factory := func(d plant.Device) (fieldbus.Conn, error) {
		c := newFakeConn()
		c.words[100] = 42
		c.words[10] = 7
		conns[d.ID] = c
		return c, nil
	}

	runner := NewRunner(registry, factory, cache, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer runner.Stop()

	if len(conns) != 2 {
		t.Fatalf("factory built %d connections, want 2", len(conns))
	}
	if _, ok := conns["dev-off"]; ok {
		t.Error("disabled device was given a connection")
	}

	waitFor(t, time.Second, func() bool {
		_, okA := cache.Get("dev-a", 100)
		_, okB := cache.Get("dev-b", 10)
		return okA && okB
	})

	entry, _ := cache.Get("dev-a", 100)
	if entry.Value != 42 {
		t.Errorf("cached value = %v, want 42", entry.Value)
	}
}

func TestRunnerFansOutSubscribers(t *testing.T) {
	registry := runnerRegistry(t)
	cache := NewCache()

	factory := func(_ plant.Device) (fieldbus.Conn, error) {
		c := newFakeConn()
		c.words[100] = 1
		c.words[10] = 1
		return c, nil
	}

	runner := NewRunner(registry, factory, cache, fastConfig())
	sub := &recordingSubscriber{}
	runner.Subscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer runner.Stop()

	// Both pollers share the one subscriber; each first read is a change.
	waitFor(t, time.Second, func() bool { return sub.count() >= 2 })
}

func TestRunnerStopClosesConnections(t *testing.T) {
	registry := runnerRegistry(t)
	cache := NewCache()

	conns := map[string]*fakeConn{}
	factory := func(d plant.Device) (fieldbus.Conn, error) {
		c := newFakeConn()
		conns[d.ID] = c
		return c, nil
	}

	runner := NewRunner(registry, factory, cache, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	runner.Stop()

	for id, c := range conns {
		c.mu.Lock()
		closes := c.closes
		c.mu.Unlock()
		if closes == 0 {
			t.Errorf("connection for %s not closed", id)
		}
	}
}

func TestRunnerFactoryFailureStopsStartedPollers(t *testing.T) {
	registry := runnerRegistry(t)
	cache := NewCache()

	factoryErr := errors.New("no serial port")
	conns := map[string]*fakeConn{}
	factory := func(d plant.Device) (fieldbus.Conn, error) {
		if d.ID == "dev-b" {
			return nil, factoryErr
		}
		c := newFakeConn()
		conns[d.ID] = c
		return c, nil
	}

	runner := NewRunner(registry, factory, cache, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := runner.Start(ctx)
	if !errors.Is(err, factoryErr) {
		t.Fatalf("Start() error = %v, want wrapped factory error", err)
	}

	// The poller that did start must have been stopped and its conn closed.
	if c, ok := conns["dev-a"]; ok {
		c.mu.Lock()
		closes := c.closes
		c.mu.Unlock()
		if closes == 0 {
			t.Error("connection for dev-a not closed after failed start")
		}
	}
}

func TestRunnerDeviceHealth(t *testing.T) {
	registry := runnerRegistry(t)
	cache := NewCache()

	factory := func(_ plant.Device) (fieldbus.Conn, error) {
		return newFakeConn(), nil
	}

	runner := NewRunner(registry, factory, cache, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runner.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer runner.Stop()

	waitFor(t, time.Second, func() bool {
		healths := runner.DeviceHealth()
		if len(healths) != 2 {
			return false
		}
		for _, h := range healths {
			if h.Status != StatusOK {
				return false
			}
		}
		return true
	})

	seen := map[string]bool{}
	for _, h := range runner.DeviceHealth() {
		seen[h.DeviceID] = true
	}
	for _, id := range []string{"dev-a", "dev-b"} {
		if !seen[id] {
			t.Errorf("missing health for %s", id)
		}
	}

	if runner.Cache() != cache {
		t.Error("Cache() did not return the shared cache")
	}
}
