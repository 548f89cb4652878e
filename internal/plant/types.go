package plant

import (
	"time"

	"github.com/google/uuid"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
)

// Device represents one field device (flow computer, valve bank, tank gauge).
type Device struct {
	// Identity
	ID   string `json:"id"`
	Name string `json:"name"`

	// Transport
	Transport fieldbus.TransportKind `json:"transport"`
	Address   string                 `json:"address"`
	UnitID    uint8                  `json:"unit_id"`
	BaudRate  int                    `json:"baud_rate,omitempty"`

	// Enabled devices are polled; disabled devices keep their definitions
	// but receive no traffic.
	Enabled bool `json:"enabled"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RegisterClass identifies the Modbus table a register lives in.
type RegisterClass string

// Register classes.
const (
	// ClassInput is a read-only 16-bit input register.
	ClassInput RegisterClass = "input"

	// ClassHolding is a read/write 16-bit holding register.
	ClassHolding RegisterClass = "holding"

	// ClassCoil is a read/write single bit.
	ClassCoil RegisterClass = "coil"

	// ClassDiscrete is a read-only single bit.
	ClassDiscrete RegisterClass = "discrete"
)

// Valid reports whether the register class is one of the supported values.
func (c RegisterClass) Valid() bool {
	switch c {
	case ClassInput, ClassHolding, ClassCoil, ClassDiscrete:
		return true
	default:
		return false
	}
}

// Bit reports whether the class addresses single bits rather than words.
func (c RegisterClass) Bit() bool {
	return c == ClassCoil || c == ClassDiscrete
}

// Register defines one addressable value on a device.
//
// Invariant: (DeviceID, Address) is unique across the whole configuration.
type Register struct {
	DeviceID string            `json:"device_id"`
	Name     string            `json:"name"`
	Address  uint16            `json:"address"`
	Class    RegisterClass     `json:"class"`
	Encoding fieldbus.Encoding `json:"encoding"`

	// Scale is a multiplicative factor applied after decode. Default 1.0.
	Scale float64 `json:"scale"`

	// PollInterval is how often the poller refreshes this register.
	PollInterval time.Duration `json:"poll_interval"`

	Enabled bool `json:"enabled"`
}

// Product holds the static quality properties of a blend stock product.
type Product struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// APIGravity is the product's API gravity at standard conditions.
	APIGravity float64 `json:"api_gravity"`

	// Viscosity is the product's kinematic viscosity in centistokes.
	Viscosity float64 `json:"viscosity"`
}

// Tank binds a physical tank to its product and to the device registers that
// actuate its flow path.
type Tank struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProductID string `json:"product_id"`

	// DeviceID owns the three addresses below.
	DeviceID string `json:"device_id"`

	// ValveCoilAddr is the coil controlling the tank's discharge valve.
	ValveCoilAddr uint16 `json:"valve_coil_addr"`

	// PumpSpeedAddr is the holding register for the pump speed setpoint,
	// stored as a 32-bit float (two registers).
	PumpSpeedAddr uint16 `json:"pump_speed_addr"`

	// FlowRateAddr is the input register reporting the measured flow rate,
	// stored as a 32-bit float (two registers).
	FlowRateAddr uint16 `json:"flow_rate_addr"`
}

// GenerateID returns a new unique identifier for plant entities.
func GenerateID() string {
	return uuid.New().String()
}
