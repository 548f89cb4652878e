package fieldbus

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"github.com/goburrow/modbus"
)

// Default connection parameters.
const (
	defaultTimeout  = 3 * time.Second
	defaultBaudRate = 19200

	// coilOn is the Modbus wire value for writing a coil to ON.
	coilOn = 0xFF00

	// coilOff is the Modbus wire value for writing a coil to OFF.
	coilOff = 0x0000
)

// closer is the subset of the goburrow handler types used for lifecycle.
type closer interface {
	Connect() error
	Close() error
}

// ModbusConn implements Conn over goburrow/modbus.
//
// It owns one TCP or RTU client handler and classifies every transport error
// into the package sentinels so callers never see library-specific types.
type ModbusConn struct {
	handler   closer
	client    modbus.Client
	connected bool
}

// NewModbusConn creates an unconnected Modbus connection from config.
//
// Parameters:
//   - cfg: Transport parameters (kind, address, unit ID, timeout)
//
// Returns:
//   - *ModbusConn: Ready for Connect
//   - error: ErrConnectionFailed if the config is unusable
func NewModbusConn(cfg ConnConfig) (*ModbusConn, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("%w: address required", ErrConnectionFailed)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	switch cfg.Transport {
	case TransportTCP:
		h := modbus.NewTCPClientHandler(cfg.Address)
		h.Timeout = timeout
		h.SlaveId = cfg.UnitID
		return &ModbusConn{handler: h, client: modbus.NewClient(h)}, nil
	case TransportRTU:
		h := modbus.NewRTUClientHandler(cfg.Address)
		h.Timeout = timeout
		h.SlaveId = cfg.UnitID
		h.BaudRate = cfg.BaudRate
		if h.BaudRate == 0 {
			h.BaudRate = defaultBaudRate
		}
		return &ModbusConn{handler: h, client: modbus.NewClient(h)}, nil
	default:
		return nil, fmt.Errorf("%w: unknown transport %q", ErrConnectionFailed, cfg.Transport)
	}
}

// Connect opens the underlying transport.
func (c *ModbusConn) Connect() error {
	if err := c.handler.Connect(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectionFailed, classify(err))
	}
	c.connected = true
	return nil
}

// Close releases the underlying transport. Safe to call more than once.
func (c *ModbusConn) Close() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	if err := c.handler.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

// ReadBlock reads count holding registers starting at addr.
func (c *ModbusConn) ReadBlock(addr, count uint16) ([]uint16, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	raw, err := c.client.ReadHoldingRegisters(addr, count)
	if err != nil {
		return nil, classify(err)
	}
	return bytesToWords(raw, count)
}

// ReadInputBlock reads count input registers starting at addr.
func (c *ModbusConn) ReadInputBlock(addr, count uint16) ([]uint16, error) {
	if !c.connected {
		return nil, ErrNotConnected
	}
	raw, err := c.client.ReadInputRegisters(addr, count)
	if err != nil {
		return nil, classify(err)
	}
	return bytesToWords(raw, count)
}

// WriteBlock writes words to holding registers starting at addr.
func (c *ModbusConn) WriteBlock(addr uint16, words []uint16) error {
	if !c.connected {
		return ErrNotConnected
	}
	if len(words) == 0 {
		return nil
	}

	// Single-register writes use function 06; multi-register use function 16.
	if len(words) == 1 {
		if _, err := c.client.WriteSingleRegister(addr, words[0]); err != nil {
			return classify(err)
		}
		return nil
	}

	buf := make([]byte, 0, len(words)*2)
	for _, w := range words {
		buf = append(buf, byte(w>>8), byte(w))
	}
	if _, err := c.client.WriteMultipleRegisters(addr, uint16(len(words)), buf); err != nil {
		return classify(err)
	}
	return nil
}

// ReadBit reads a single coil at addr.
func (c *ModbusConn) ReadBit(addr uint16) (bool, error) {
	if !c.connected {
		return false, ErrNotConnected
	}
	raw, err := c.client.ReadCoils(addr, 1)
	if err != nil {
		return false, classify(err)
	}
	if len(raw) < 1 {
		return false, fmt.Errorf("%w: empty coil response", ErrProtocolMismatch)
	}
	return raw[0]&0x01 != 0, nil
}

// ReadDiscreteBit reads a single discrete input at addr.
func (c *ModbusConn) ReadDiscreteBit(addr uint16) (bool, error) {
	if !c.connected {
		return false, ErrNotConnected
	}
	raw, err := c.client.ReadDiscreteInputs(addr, 1)
	if err != nil {
		return false, classify(err)
	}
	if len(raw) < 1 {
		return false, fmt.Errorf("%w: empty discrete response", ErrProtocolMismatch)
	}
	return raw[0]&0x01 != 0, nil
}

// WriteBit writes a single coil at addr.
func (c *ModbusConn) WriteBit(addr uint16, value bool) error {
	if !c.connected {
		return ErrNotConnected
	}
	wire := uint16(coilOff)
	if value {
		wire = coilOn
	}
	if _, err := c.client.WriteSingleCoil(addr, wire); err != nil {
		return classify(err)
	}
	return nil
}

// bytesToWords converts a big-endian Modbus payload into 16-bit words.
func bytesToWords(raw []byte, count uint16) ([]uint16, error) {
	if len(raw) != int(count)*2 {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrProtocolMismatch, int(count)*2, len(raw))
	}
	words := make([]uint16, count)
	for i := range words {
		words[i] = uint16(raw[i*2])<<8 | uint16(raw[i*2+1])
	}
	return words, nil
}

// classify maps a transport error onto the package sentinel taxonomy.
func classify(err error) error {
	var mbErr *modbus.ModbusError
	if errors.As(err, &mbErr) {
		return fmt.Errorf("%w: function %d exception %d", ErrDeviceNAK, mbErr.FunctionCode, mbErr.ExceptionCode)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %w", ErrRefused, err)
	}

	return fmt.Errorf("%w: %w", ErrIO, err)
}
