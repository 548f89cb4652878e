package blend

import (
	"errors"
	"sync"
	"testing"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
	"github.com/calder-systems/terminal-core/internal/plant"
)

// fakeConn is an in-memory device for blend tests. Holding and input
// registers share one word map, so a pump speed setpoint written by the
// controller reads back as the measured flow rate.
type fakeConn struct {
	mu        sync.Mutex
	words     map[uint16]uint16
	bits      map[uint16]bool
	failErr   error
	connected bool
	closes    int
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		words: make(map[uint16]uint16),
		bits:  make(map[uint16]bool),
	}
}

func (f *fakeConn) Connect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.connected = true
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.closes++
	return nil
}

func (f *fakeConn) setFailErr(err error) {
	f.mu.Lock()
	f.failErr = err
	f.mu.Unlock()
}

func (f *fakeConn) readWords(addr, count uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	out := make([]uint16, count)
	for i := uint16(0); i < count; i++ {
		out[i] = f.words[addr+i]
	}
	return out, nil
}

func (f *fakeConn) ReadBlock(addr, count uint16) ([]uint16, error) {
	return f.readWords(addr, count)
}

func (f *fakeConn) ReadInputBlock(addr, count uint16) ([]uint16, error) {
	return f.readWords(addr, count)
}

func (f *fakeConn) WriteBlock(addr uint16, words []uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	for i, w := range words {
		f.words[addr+uint16(i)] = w
	}
	return nil
}

func (f *fakeConn) ReadBit(addr uint16) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return false, f.failErr
	}
	return f.bits[addr], nil
}

func (f *fakeConn) ReadDiscreteBit(addr uint16) (bool, error) {
	return f.ReadBit(addr)
}

func (f *fakeConn) WriteBit(addr uint16, value bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.bits[addr] = value
	return nil
}

func (f *fakeConn) valve(addr uint16) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bits[addr]
}

func (f *fakeConn) pumpSpeed(addr uint16) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, err := fieldbus.Decode([]uint16{f.words[addr], f.words[addr+1]}, fieldbus.EncodingFloat32)
	if err != nil {
		return -1
	}
	return v
}

func testTank(id, productID, deviceID string) plant.Tank {
	return plant.Tank{
		ID: id, Name: id, ProductID: productID, DeviceID: deviceID,
		ValveCoilAddr: 10, PumpSpeedAddr: 200, FlowRateAddr: 200,
	}
}

func TestFlowControllerActuation(t *testing.T) {
	conn := newFakeConn()
	fc := NewFlowController(testTank("tank-a", "prod-a", "dev-a"), conn)

	if err := fc.Connect(); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if err := fc.OpenValve(); err != nil {
		t.Fatalf("OpenValve() = %v", err)
	}
	if !conn.valve(10) {
		t.Error("valve coil not set after OpenValve")
	}
	if !fc.ValveOpen() {
		t.Error("ValveOpen() = false after OpenValve")
	}

	if err := fc.SetPumpSpeed(250.5); err != nil {
		t.Fatalf("SetPumpSpeed() = %v", err)
	}
	if got := conn.pumpSpeed(200); got != 250.5 {
		t.Errorf("pump speed register = %g, want 250.5", got)
	}

	// Flow meter echoes the setpoint in this fixture.
	rate, err := fc.ReadFlowRate()
	if err != nil {
		t.Fatalf("ReadFlowRate() = %v", err)
	}
	if rate != 250.5 {
		t.Errorf("ReadFlowRate() = %g, want 250.5", rate)
	}
	if fc.LastFlowRate() != 250.5 {
		t.Errorf("LastFlowRate() = %g, want 250.5", fc.LastFlowRate())
	}

	if err := fc.CloseValve(); err != nil {
		t.Fatalf("CloseValve() = %v", err)
	}
	if conn.valve(10) {
		t.Error("valve coil still set after CloseValve")
	}
}

func TestFlowControllerEmergencyStop(t *testing.T) {
	conn := newFakeConn()
	fc := NewFlowController(testTank("tank-a", "prod-a", "dev-a"), conn)

	if err := fc.Connect(); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	if err := fc.OpenValve(); err != nil {
		t.Fatalf("OpenValve() = %v", err)
	}
	if err := fc.SetPumpSpeed(100); err != nil {
		t.Fatalf("SetPumpSpeed() = %v", err)
	}

	if err := fc.EmergencyStop(); err != nil {
		t.Fatalf("EmergencyStop() = %v", err)
	}
	if conn.valve(10) {
		t.Error("valve still open after emergency stop")
	}
	if got := conn.pumpSpeed(200); got != 0 {
		t.Errorf("pump speed = %g after emergency stop, want 0", got)
	}
	if !fc.Stopped() {
		t.Error("Stopped() = false after emergency stop")
	}

	// All commands fail fast once stopped.
	if err := fc.OpenValve(); !errors.Is(err, ErrEmergencyStopped) {
		t.Errorf("OpenValve() after stop = %v, want ErrEmergencyStopped", err)
	}
	if err := fc.SetPumpSpeed(50); !errors.Is(err, ErrEmergencyStopped) {
		t.Errorf("SetPumpSpeed() after stop = %v, want ErrEmergencyStopped", err)
	}
	if _, err := fc.ReadFlowRate(); !errors.Is(err, ErrEmergencyStopped) {
		t.Errorf("ReadFlowRate() after stop = %v, want ErrEmergencyStopped", err)
	}

	// Idempotent.
	if err := fc.EmergencyStop(); err != nil {
		t.Errorf("second EmergencyStop() = %v", err)
	}
}

func TestFlowControllerEmergencyStopReportsWriteFailure(t *testing.T) {
	conn := newFakeConn()
	fc := NewFlowController(testTank("tank-a", "prod-a", "dev-a"), conn)

	conn.setFailErr(errors.New("device gone"))
	err := fc.EmergencyStop()
	if !errors.Is(err, ErrActuation) {
		t.Errorf("EmergencyStop() = %v, want ErrActuation", err)
	}
	if !fc.Stopped() {
		t.Error("Stopped() = false even though stop was attempted")
	}
}

func TestFlowControllerWrapsActuationErrors(t *testing.T) {
	conn := newFakeConn()
	fc := NewFlowController(testTank("tank-a", "prod-a", "dev-a"), conn)
	conn.setFailErr(errors.New("io timeout"))

	if err := fc.OpenValve(); !errors.Is(err, ErrActuation) {
		t.Errorf("OpenValve() = %v, want ErrActuation", err)
	}
	if err := fc.SetPumpSpeed(10); !errors.Is(err, ErrActuation) {
		t.Errorf("SetPumpSpeed() = %v, want ErrActuation", err)
	}
	if _, err := fc.ReadFlowRate(); !errors.Is(err, ErrActuation) {
		t.Errorf("ReadFlowRate() = %v, want ErrActuation", err)
	}
}
