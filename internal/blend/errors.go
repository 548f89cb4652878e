package blend

import "errors"

// Domain errors for the blend package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, blend.ErrInvalidRequest) {
//	    // reject, no operation was created
//	}
var (
	// ErrInvalidRequest is returned when a blend request fails validation.
	// No operation record is created and no physical action is taken.
	ErrInvalidRequest = errors.New("blend: invalid request")

	// ErrActuation is returned when a flow controller read or write fails.
	// It escalates to component failure and then whole-operation failure.
	ErrActuation = errors.New("blend: actuation failed")

	// ErrEmergencyStopped is returned when a command reaches a flow
	// controller after its emergency stop has been triggered.
	ErrEmergencyStopped = errors.New("blend: emergency stopped")

	// ErrOperationNotFound is returned when an operation ID is unknown.
	ErrOperationNotFound = errors.New("blend: operation not found")

	// ErrTankInUse is returned when a requested source tank is already
	// bound to another active operation.
	ErrTankInUse = errors.New("blend: source tank in use")
)
