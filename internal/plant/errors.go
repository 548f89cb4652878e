package plant

import "errors"

// Domain errors for the plant package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, plant.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("plant: device not found")

	// ErrRegisterNotFound is returned when a (device, address) pair does
	// not exist.
	ErrRegisterNotFound = errors.New("plant: register not found")

	// ErrTankNotFound is returned when a tank ID does not exist.
	ErrTankNotFound = errors.New("plant: tank not found")

	// ErrProductNotFound is returned when a product ID does not exist.
	ErrProductNotFound = errors.New("plant: product not found")

	// ErrInvalidDevice is returned when a device definition fails validation.
	ErrInvalidDevice = errors.New("plant: invalid device")

	// ErrInvalidRegister is returned when a register definition fails
	// validation.
	ErrInvalidRegister = errors.New("plant: invalid register")

	// ErrInvalidTank is returned when a tank definition fails validation.
	ErrInvalidTank = errors.New("plant: invalid tank")

	// ErrDuplicateRegister is returned when two registers share the same
	// (device, address) pair.
	ErrDuplicateRegister = errors.New("plant: duplicate register address")
)
