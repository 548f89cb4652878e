package plant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
)

// fakeRepository implements Repository from in-memory fixtures.
type fakeRepository struct {
	devices   []Device
	registers map[string][]Register
	tanks     []Tank
	products  []Product
}

func (f *fakeRepository) ListDevices(context.Context) ([]Device, error) {
	return f.devices, nil
}

func (f *fakeRepository) GetDevice(_ context.Context, id string) (*Device, error) {
	for i := range f.devices {
		if f.devices[i].ID == id {
			d := f.devices[i]
			return &d, nil
		}
	}
	return nil, ErrDeviceNotFound
}

func (f *fakeRepository) ListRegisters(_ context.Context, deviceID string) ([]Register, error) {
	return f.registers[deviceID], nil
}

func (f *fakeRepository) ListTanks(context.Context) ([]Tank, error) {
	return f.tanks, nil
}

func (f *fakeRepository) GetTank(_ context.Context, id string) (*Tank, error) {
	for i := range f.tanks {
		if f.tanks[i].ID == id {
			t := f.tanks[i]
			return &t, nil
		}
	}
	return nil, ErrTankNotFound
}

func (f *fakeRepository) ListProducts(context.Context) ([]Product, error) {
	return f.products, nil
}

func (f *fakeRepository) GetProduct(_ context.Context, id string) (*Product, error) {
	for i := range f.products {
		if f.products[i].ID == id {
			p := f.products[i]
			return &p, nil
		}
	}
	return nil, ErrProductNotFound
}

func fixtureRepo() *fakeRepository {
	return &fakeRepository{
		devices: []Device{{
			ID:        "dev-1",
			Name:      "Bay 1 Flow Computer",
			Transport: fieldbus.TransportTCP,
			Address:   "10.0.4.20:502",
			Enabled:   true,
		}},
		registers: map[string][]Register{
			"dev-1": {
				{
					DeviceID: "dev-1", Name: "flow_rate", Address: 100,
					Class: ClassInput, Encoding: fieldbus.EncodingFloat32,
					Scale: 1.0, PollInterval: time.Second, Enabled: true,
				},
				{
					DeviceID: "dev-1", Name: "valve", Address: 10,
					Class: ClassCoil, Encoding: fieldbus.EncodingBool,
					Scale: 1.0, PollInterval: time.Second, Enabled: true,
				},
			},
		},
		tanks: []Tank{{
			ID: "tank-7", Name: "Tank 7", ProductID: "prod-a", DeviceID: "dev-1",
			ValveCoilAddr: 10, PumpSpeedAddr: 200, FlowRateAddr: 100,
		}},
		products: []Product{{
			ID: "prod-a", Name: "Alkylate", APIGravity: 70.2, Viscosity: 0.6,
		}},
	}
}

func TestRegistryLoad(t *testing.T) {
	reg := NewRegistry(fixtureRepo())
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load() = %v", err)
	}

	stats := reg.GetStats()
	if stats.Devices != 1 || stats.Registers != 2 || stats.Tanks != 1 || stats.Products != 1 {
		t.Errorf("GetStats() = %+v, want 1 device, 2 registers, 1 tank, 1 product", stats)
	}

	d, err := reg.Device("dev-1")
	if err != nil {
		t.Fatalf("Device() = %v", err)
	}
	if d.Name != "Bay 1 Flow Computer" {
		t.Errorf("Device().Name = %q", d.Name)
	}

	if _, err := reg.Device("dev-9"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Device(unknown) = %v, want ErrDeviceNotFound", err)
	}

	tank, product, err := reg.TankProduct("tank-7")
	if err != nil {
		t.Fatalf("TankProduct() = %v", err)
	}
	if tank.FlowRateAddr != 100 || product.APIGravity != 70.2 {
		t.Errorf("TankProduct() = %+v / %+v", tank, product)
	}
}

func TestRegistryLoadDuplicateRegister(t *testing.T) {
	repo := fixtureRepo()
	dup := repo.registers["dev-1"][0]
	repo.registers["dev-1"] = append(repo.registers["dev-1"], dup)

	reg := NewRegistry(repo)
	if err := reg.Load(context.Background()); !errors.Is(err, ErrDuplicateRegister) {
		t.Errorf("Load() = %v, want ErrDuplicateRegister", err)
	}
}

func TestRegistryLoadUnknownProduct(t *testing.T) {
	repo := fixtureRepo()
	repo.tanks[0].ProductID = "prod-b"

	reg := NewRegistry(repo)
	if err := reg.Load(context.Background()); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("Load() = %v, want ErrProductNotFound", err)
	}
}

func TestRegistryRegistersCopy(t *testing.T) {
	reg := NewRegistry(fixtureRepo())
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load() = %v", err)
	}

	regs := reg.Registers("dev-1")
	if len(regs) != 2 {
		t.Fatalf("Registers() returned %d entries, want 2", len(regs))
	}

	// Mutating the returned slice must not affect the cache.
	regs[0].Scale = 99

	again := reg.Registers("dev-1")
	if again[0].Scale == 99 {
		t.Error("Registers() returned a shared slice; want a copy")
	}
}
