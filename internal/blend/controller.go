package blend

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
	"github.com/calder-systems/terminal-core/internal/plant"
)

// flowRateWords is the register width of pump speed and flow rate values
// (32-bit float, two registers).
const flowRateWords = 2

// FlowController drives one source-tank-to-target-tank flow path: a valve
// coil plus a pump speed setpoint on the tank's device.
//
// A FlowController is exclusively owned by the blend operation that created
// it. Its methods serialise on an internal mutex; EmergencyStop additionally
// flips an atomic flag first, so any command issued after the stop fails
// fast with ErrEmergencyStopped while the stop itself waits at most one
// in-flight I/O timeout before actuating.
type FlowController struct {
	tank plant.Tank
	conn fieldbus.Conn

	mu      sync.Mutex // serialises device I/O
	stopped atomic.Bool

	// Mirrors of the last commanded state, for status queries.
	valveOpen atomic.Bool
	pumpSpeed atomic.Uint64 // float64 bits
	lastFlow  atomic.Uint64 // float64 bits
}

// NewFlowController creates a flow controller for tank over conn.
// Ownership of conn transfers to the controller.
func NewFlowController(tank plant.Tank, conn fieldbus.Conn) *FlowController {
	return &FlowController{tank: tank, conn: conn}
}

// Tank returns the tank this controller actuates.
func (fc *FlowController) Tank() plant.Tank {
	return fc.tank
}

// Connect opens the device connection. Used as the readiness check during
// the operation's preparing phase.
func (fc *FlowController) Connect() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if err := fc.conn.Connect(); err != nil {
		return fmt.Errorf("%w: connecting to tank %s device: %w", ErrActuation, fc.tank.ID, err)
	}
	return nil
}

// Close releases the device connection. Safe to call more than once.
func (fc *FlowController) Close() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.conn.Close()
}

// OpenValve opens the tank's discharge valve.
func (fc *FlowController) OpenValve() error {
	if fc.stopped.Load() {
		return ErrEmergencyStopped
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()

	if err := fc.conn.WriteBit(fc.tank.ValveCoilAddr, true); err != nil {
		return fmt.Errorf("%w: opening valve on tank %s: %w", ErrActuation, fc.tank.ID, err)
	}
	fc.valveOpen.Store(true)
	return nil
}

// CloseValve closes the tank's discharge valve.
func (fc *FlowController) CloseValve() error {
	if fc.stopped.Load() {
		return ErrEmergencyStopped
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.closeValveLocked()
}

func (fc *FlowController) closeValveLocked() error {
	if err := fc.conn.WriteBit(fc.tank.ValveCoilAddr, false); err != nil {
		return fmt.Errorf("%w: closing valve on tank %s: %w", ErrActuation, fc.tank.ID, err)
	}
	fc.valveOpen.Store(false)
	return nil
}

// SetPumpSpeed commands the pump speed setpoint in flow units.
func (fc *FlowController) SetPumpSpeed(rate float64) error {
	if fc.stopped.Load() {
		return ErrEmergencyStopped
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.setPumpSpeedLocked(rate)
}

func (fc *FlowController) setPumpSpeedLocked(rate float64) error {
	words, err := fieldbus.Encode(rate, fieldbus.EncodingFloat32)
	if err != nil {
		return fmt.Errorf("%w: encoding pump speed %g: %w", ErrActuation, rate, err)
	}
	if err := fc.conn.WriteBlock(fc.tank.PumpSpeedAddr, words); err != nil {
		return fmt.Errorf("%w: setting pump speed on tank %s: %w", ErrActuation, fc.tank.ID, err)
	}
	fc.pumpSpeed.Store(floatBits(rate))
	return nil
}

// ReadFlowRate reads the measured flow rate from the tank's flow meter.
func (fc *FlowController) ReadFlowRate() (float64, error) {
	if fc.stopped.Load() {
		return 0, ErrEmergencyStopped
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()

	words, err := fc.conn.ReadInputBlock(fc.tank.FlowRateAddr, flowRateWords)
	if err != nil {
		return 0, fmt.Errorf("%w: reading flow rate on tank %s: %w", ErrActuation, fc.tank.ID, err)
	}
	rate, err := fieldbus.Decode(words, fieldbus.EncodingFloat32)
	if err != nil {
		return 0, fmt.Errorf("%w: decoding flow rate on tank %s: %w", ErrActuation, fc.tank.ID, err)
	}
	fc.lastFlow.Store(floatBits(rate))
	return rate, nil
}

// AdjustFlowRate writes a corrected setpoint when the observed flow has
// drifted outside tolerance. The correction is a plain setpoint rewrite;
// finer control belongs to the device's own PID loop.
func (fc *FlowController) AdjustFlowRate(target float64) error {
	if fc.stopped.Load() {
		return ErrEmergencyStopped
	}
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.setPumpSpeedLocked(target)
}

// EmergencyStop closes the valve and zeroes the pump speed.
//
// Idempotent and callable from any state. The stopped flag is set before
// acquiring the I/O mutex, so commands queued behind an in-flight operation
// fail fast instead of actuating after the stop. Both writes are attempted
// even if the first fails; the first error is returned.
func (fc *FlowController) EmergencyStop() error {
	fc.stopped.Store(true)

	fc.mu.Lock()
	defer fc.mu.Unlock()

	var firstErr error
	if err := fc.closeValveLocked(); err != nil {
		firstErr = err
	}
	if err := fc.setPumpSpeedLocked(0); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Stopped reports whether emergency stop has been triggered.
func (fc *FlowController) Stopped() bool {
	return fc.stopped.Load()
}

// ValveOpen reports the last commanded valve state.
func (fc *FlowController) ValveOpen() bool {
	return fc.valveOpen.Load()
}

// PumpSpeed reports the last commanded pump speed.
func (fc *FlowController) PumpSpeed() float64 {
	return floatFromBits(fc.pumpSpeed.Load())
}

// LastFlowRate reports the most recently observed flow rate.
func (fc *FlowController) LastFlowRate() float64 {
	return floatFromBits(fc.lastFlow.Load())
}
