package plant

import (
	"fmt"
	"time"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
)

// Validation limits.
const (
	// maxNameLength bounds entity names.
	maxNameLength = 128

	// maxPollInterval caps how stale a register is allowed to be by
	// configuration. Anything slower belongs in a reporting system.
	maxPollInterval = 24 * time.Hour
)

// ValidateDevice checks a device definition for configuration errors.
//
// Returns:
//   - error: ErrInvalidDevice with detail, or nil if valid
func ValidateDevice(d *Device) error {
	if d.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDevice)
	}
	if d.Name == "" || len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidDevice, maxNameLength)
	}
	if !d.Transport.Valid() {
		return fmt.Errorf("%w: unknown transport %q", ErrInvalidDevice, d.Transport)
	}
	if d.Address == "" {
		return fmt.Errorf("%w: address is required", ErrInvalidDevice)
	}
	return nil
}

// ValidateRegister checks a register definition for configuration errors.
//
// The class and encoding must agree: bit classes (coil, discrete) carry
// boolean values; word classes (input, holding) carry numeric values.
//
// Returns:
//   - error: ErrInvalidRegister with detail, or nil if valid
func ValidateRegister(r *Register) error {
	if r.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidRegister)
	}
	if !r.Class.Valid() {
		return fmt.Errorf("%w: unknown class %q", ErrInvalidRegister, r.Class)
	}
	if !r.Encoding.Valid() {
		return fmt.Errorf("%w: unknown encoding %q", ErrInvalidRegister, r.Encoding)
	}
	if r.Class.Bit() != (r.Encoding == fieldbus.EncodingBool) {
		return fmt.Errorf("%w: class %q incompatible with encoding %q", ErrInvalidRegister, r.Class, r.Encoding)
	}
	if r.Scale == 0 {
		return fmt.Errorf("%w: scale must be non-zero", ErrInvalidRegister)
	}
	if r.PollInterval <= 0 || r.PollInterval > maxPollInterval {
		return fmt.Errorf("%w: poll_interval %v out of range", ErrInvalidRegister, r.PollInterval)
	}
	return nil
}

// ValidateTank checks a tank definition for configuration errors.
//
// Returns:
//   - error: ErrInvalidTank with detail, or nil if valid
func ValidateTank(t *Tank) error {
	if t.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidTank)
	}
	if t.Name == "" || len(t.Name) > maxNameLength {
		return fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidTank, maxNameLength)
	}
	if t.ProductID == "" {
		return fmt.Errorf("%w: product_id is required", ErrInvalidTank)
	}
	if t.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidTank)
	}
	return nil
}
