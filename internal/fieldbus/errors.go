package fieldbus

import "errors"

// Domain errors for the fieldbus package.
//
// Codec errors (ErrEncodingFailed, ErrDecodingFailed, ErrValueRange) indicate
// a programming or configuration fault and are never retried. Connection and
// I/O errors are transient and are handled by the poller's backoff policy.
var (
	// ErrEncodingFailed is returned when a value cannot be encoded to words.
	ErrEncodingFailed = errors.New("fieldbus: encoding failed")

	// ErrDecodingFailed is returned when a word group cannot be decoded.
	ErrDecodingFailed = errors.New("fieldbus: decoding failed")

	// ErrValueRange is returned when an integer value does not fit the
	// encoding's representable range.
	ErrValueRange = errors.New("fieldbus: value out of range")

	// ErrConnectionFailed is returned when a connection attempt fails.
	ErrConnectionFailed = errors.New("fieldbus: connection failed")

	// ErrTimeout is returned when a connect or I/O operation times out.
	ErrTimeout = errors.New("fieldbus: operation timed out")

	// ErrRefused is returned when the device actively refuses the connection.
	ErrRefused = errors.New("fieldbus: connection refused")

	// ErrProtocolMismatch is returned when the device responds with frames
	// the protocol layer cannot parse.
	ErrProtocolMismatch = errors.New("fieldbus: protocol mismatch")

	// ErrNotConnected is returned when an I/O operation is attempted on a
	// closed or never-opened connection.
	ErrNotConnected = errors.New("fieldbus: not connected")

	// ErrDeviceNAK is returned when the device answers with a Modbus
	// exception response.
	ErrDeviceNAK = errors.New("fieldbus: device rejected request")

	// ErrIO is returned for transport-level read/write failures that are not
	// timeouts or exception responses.
	ErrIO = errors.New("fieldbus: i/o failure")
)
