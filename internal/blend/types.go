package blend

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/calder-systems/terminal-core/internal/plant"
)

// Status is the lifecycle state of a blend operation.
type Status string

const (
	StatusPlanning   Status = "planning"
	StatusPreparing  Status = "preparing"
	StatusBlending   Status = "blending"
	StatusCompleting Status = "completing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusStopped    Status = "stopped"
)

// Terminal reports whether s is a terminal state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusStopped
}

// ComponentRequest names one source tank's contribution to a blend.
type ComponentRequest struct {
	TankID       string  `yaml:"tank_id" json:"tank_id"`
	TargetVolume float64 `yaml:"target_volume" json:"target_volume"` // gallons
	FlowRate     float64 `yaml:"flow_rate" json:"flow_rate"`         // gallons per minute
}

// Request describes a blend to be started.
type Request struct {
	Name         string             `yaml:"name" json:"name"`
	DestTankID   string             `yaml:"dest_tank_id" json:"dest_tank_id"`
	Components   []ComponentRequest `yaml:"components" json:"components"`
	TolerancePct float64            `yaml:"tolerance_pct" json:"tolerance_pct"` // 0 picks the default
}

// Component tracks one source tank's live contribution during a blend.
//
// Transferred volume is written only by the component's control goroutine
// and read concurrently by the monitor, so it is kept as atomic float bits.
type Component struct {
	Tank       plant.Tank
	Product    plant.Product
	Target     float64 // gallons
	FlowRate   float64 // gallons per minute, setpoint
	Tolerance  float64 // fraction of setpoint, e.g. 0.05
	controller *FlowController

	transferred atomic.Uint64 // float64 bits
	done        atomic.Bool
}

// Transferred returns the volume delivered so far, clamped at the target.
func (c *Component) Transferred() float64 {
	return floatFromBits(c.transferred.Load())
}

// Done reports whether the component has reached its target volume.
func (c *Component) Done() bool {
	return c.done.Load()
}

// accumulate adds rate integrated over elapsed to the transferred volume,
// clamping at the target. Returns true once the target is reached.
func (c *Component) accumulate(rate float64, elapsed time.Duration) bool {
	vol := c.Transferred() + rate*elapsed.Minutes()
	if vol >= c.Target {
		vol = c.Target
		c.done.Store(true)
	}
	c.transferred.Store(floatBits(vol))
	return c.done.Load()
}

// ComponentProgress is a point-in-time view of one component.
type ComponentProgress struct {
	TankID      string  `json:"tank_id"`
	ProductID   string  `json:"product_id"`
	Target      float64 `json:"target"`
	Transferred float64 `json:"transferred"`
	FlowRate    float64 `json:"flow_rate"`
	Done        bool    `json:"done"`
}

// Snapshot is a point-in-time view of a blend operation.
type Snapshot struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	DestTankID  string              `json:"dest_tank_id"`
	Status      Status              `json:"status"`
	TotalTarget float64             `json:"total_target"`
	Transferred float64             `json:"transferred"`
	APIGravity  float64             `json:"api_gravity"` // volume-weighted
	Viscosity   float64             `json:"viscosity"`   // volume-weighted
	Components  []ComponentProgress `json:"components"`
	StartedAt   time.Time           `json:"started_at"`
	CompletedAt time.Time           `json:"completed_at,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Operation is one blend in flight. Fields behind mu change as the
// lifecycle advances; components and their controllers are fixed at start.
type Operation struct {
	ID         string
	Name       string
	DestTankID string
	Components []*Component

	mu          sync.Mutex
	status      Status
	startedAt   time.Time
	completedAt time.Time
	failErr     error

	cancel   func()
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// Status returns the operation's current lifecycle state.
func (op *Operation) Status() Status {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.status
}

// setStatus advances the lifecycle. Terminal states are sticky: once the
// operation has failed, stopped, or completed, further transitions are
// ignored.
func (op *Operation) setStatus(s Status) bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.status.Terminal() {
		return false
	}
	op.status = s
	if s.Terminal() {
		op.completedAt = time.Now()
	}
	return true
}

// setFailure records the first failure cause alongside the failed state.
func (op *Operation) setFailure(err error) bool {
	op.mu.Lock()
	if op.status.Terminal() {
		op.mu.Unlock()
		return false
	}
	op.status = StatusFailed
	op.failErr = err
	op.completedAt = time.Now()
	op.mu.Unlock()
	return true
}

// TotalTarget is the sum of all component target volumes.
func (op *Operation) TotalTarget() float64 {
	var total float64
	for _, c := range op.Components {
		total += c.Target
	}
	return total
}

// Transferred is the sum of all component transferred volumes.
func (op *Operation) Transferred() float64 {
	var total float64
	for _, c := range op.Components {
		total += c.Transferred()
	}
	return total
}

// Snapshot captures the operation's current state.
//
// Weighted properties are computed over the volume transferred so far, so
// the blend's running API gravity and viscosity converge toward the planned
// values as the transfer completes. Zero transferred volume yields zero
// properties.
func (op *Operation) Snapshot() Snapshot {
	op.mu.Lock()
	snap := Snapshot{
		ID:          op.ID,
		Name:        op.Name,
		DestTankID:  op.DestTankID,
		Status:      op.status,
		StartedAt:   op.startedAt,
		CompletedAt: op.completedAt,
	}
	if op.failErr != nil {
		snap.Error = op.failErr.Error()
	}
	op.mu.Unlock()

	var totalVol, weightedAPI, weightedVisc float64
	for _, c := range op.Components {
		vol := c.Transferred()
		totalVol += vol
		weightedAPI += c.Product.APIGravity * vol
		weightedVisc += c.Product.Viscosity * vol
		snap.Components = append(snap.Components, ComponentProgress{
			TankID:      c.Tank.ID,
			ProductID:   c.Product.ID,
			Target:      c.Target,
			Transferred: vol,
			FlowRate:    c.FlowRate,
			Done:        c.Done(),
		})
		snap.TotalTarget += c.Target
	}
	snap.Transferred = totalVol
	if totalVol > 0 {
		snap.APIGravity = weightedAPI / totalVol
		snap.Viscosity = weightedVisc / totalVol
	}
	return snap
}

func floatBits(f float64) uint64 {
	return math.Float64bits(f)
}

func floatFromBits(b uint64) float64 {
	return math.Float64frombits(b)
}
