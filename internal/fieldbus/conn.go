package fieldbus

import "time"

// TransportKind identifies how a device is addressed on the wire.
type TransportKind string

// Supported transport kinds.
const (
	// TransportTCP is a stream-oriented Modbus TCP connection.
	TransportTCP TransportKind = "tcp"

	// TransportRTU is a packet-oriented Modbus RTU serial connection.
	TransportRTU TransportKind = "rtu"
)

// Valid reports whether the transport kind is supported.
func (k TransportKind) Valid() bool {
	return k == TransportTCP || k == TransportRTU
}

// Conn is a single logical link to one field device.
//
// A Conn is exclusively owned by the component that opened it (a poller or a
// flow controller); it is not safe for concurrent use. The owner must call
// Close on every exit path, including error paths.
//
// No method retries: a failed call surfaces immediately with a classified
// sentinel error (ErrTimeout, ErrDeviceNAK, ...).
type Conn interface {
	// Connect opens the underlying transport.
	Connect() error

	// Close releases the underlying transport. Safe to call more than once.
	Close() error

	// ReadBlock reads count holding registers starting at addr.
	ReadBlock(addr, count uint16) ([]uint16, error)

	// ReadInputBlock reads count read-only input registers starting at addr.
	ReadInputBlock(addr, count uint16) ([]uint16, error)

	// WriteBlock writes words to holding registers starting at addr.
	WriteBlock(addr uint16, words []uint16) error

	// ReadBit reads a single coil at addr.
	ReadBit(addr uint16) (bool, error)

	// ReadDiscreteBit reads a single discrete input at addr.
	ReadDiscreteBit(addr uint16) (bool, error)

	// WriteBit writes a single coil at addr.
	WriteBit(addr uint16, value bool) error
}

// ConnConfig holds the transport parameters for one device connection.
type ConnConfig struct {
	// Transport selects TCP or RTU framing.
	Transport TransportKind

	// Address is "host:port" for TCP or the serial device path for RTU.
	Address string

	// UnitID is the Modbus slave/unit identifier.
	UnitID uint8

	// Timeout bounds every connect and I/O call.
	// Default: 3 seconds.
	Timeout time.Duration

	// BaudRate applies to RTU only. Default: 19200.
	BaudRate int
}
