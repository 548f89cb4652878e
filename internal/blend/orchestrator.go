package blend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
	"github.com/calder-systems/terminal-core/internal/plant"
)

// Logger is the minimal logging interface used by the orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ConnFactory opens a device connection for a flow controller.
type ConnFactory func(plant.Device) (fieldbus.Conn, error)

// TelemetrySink receives periodic progress snapshots during a blend.
type TelemetrySink interface {
	BlendProgress(snap Snapshot)
}

// EventSink receives a snapshot on every lifecycle transition.
type EventSink interface {
	BlendStateChanged(snap Snapshot)
}

// ArchiveRepository persists completed operations.
type ArchiveRepository interface {
	SaveOperation(ctx context.Context, snap Snapshot) error
}

// Config tunes orchestrator timing.
type Config struct {
	// ControlInterval is how often each component reads its flow meter
	// and integrates transferred volume.
	ControlInterval time.Duration

	// MonitorInterval is how often progress snapshots are published.
	MonitorInterval time.Duration
}

// DefaultConfig returns production timing.
func DefaultConfig() Config {
	return Config{
		ControlInterval: 100 * time.Millisecond,
		MonitorInterval: 1 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ControlInterval <= 0 {
		c.ControlInterval = d.ControlInterval
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = d.MonitorInterval
	}
	return c
}

// Orchestrator runs multi-stream blend operations.
//
// Each operation owns dedicated device connections for its source tanks,
// separate from the polling layer, so control writes never queue behind
// scan reads. Source and destination tanks are exclusive to one operation
// at a time.
//
// Thread Safety: all methods are safe for concurrent use.
type Orchestrator struct {
	registry  *plant.Registry
	connect   ConnFactory
	cfg       Config
	logger    Logger
	telemetry []TelemetrySink
	events    []EventSink
	archive   ArchiveRepository

	mu          sync.Mutex
	active      map[string]*Operation // all operations by ID, terminal included
	activeTanks map[string]string     // tank ID -> operation ID holding it
}

// NewOrchestrator creates a blend orchestrator over the plant registry.
func NewOrchestrator(registry *plant.Registry, connect ConnFactory, cfg Config) *Orchestrator {
	return &Orchestrator{
		registry:    registry,
		connect:     connect,
		cfg:         cfg.withDefaults(),
		logger:      noopLogger{},
		active:      make(map[string]*Operation),
		activeTanks: make(map[string]string),
	}
}

// SetLogger replaces the no-op logger.
func (o *Orchestrator) SetLogger(logger Logger) {
	if logger != nil {
		o.logger = logger
	}
}

// AddTelemetrySink registers a progress snapshot consumer.
func (o *Orchestrator) AddTelemetrySink(sink TelemetrySink) {
	o.telemetry = append(o.telemetry, sink)
}

// AddEventSink registers a lifecycle transition consumer.
func (o *Orchestrator) AddEventSink(sink EventSink) {
	o.events = append(o.events, sink)
}

// SetArchive registers the repository that stores finished operations.
func (o *Orchestrator) SetArchive(repo ArchiveRepository) {
	o.archive = repo
}

// StartBlend validates the request, reserves its tanks, connects a flow
// controller per source tank, and launches the blend. It returns once the
// operation has entered the blending state; progress is observed through
// Operation snapshots and the registered sinks.
//
// Returns ErrInvalidRequest (as a ValidationError) when the request fails
// validation, ErrTankInUse when a source or destination tank is already
// held by another operation, and ErrActuation when a device cannot be
// reached during preparation.
func (o *Orchestrator) StartBlend(ctx context.Context, req Request) (Snapshot, error) {
	tanks, products, err := validateRequest(o.registry, req)
	if err != nil {
		return Snapshot{}, err
	}

	tolerance := req.TolerancePct
	if tolerance == 0 {
		tolerance = defaultTolerancePct
	}

	op := &Operation{
		ID:         plant.GenerateID(),
		Name:       req.Name,
		DestTankID: req.DestTankID,
		status:     StatusPlanning,
		startedAt:  time.Now(),
	}
	for i, c := range req.Components {
		op.Components = append(op.Components, &Component{
			Tank:      tanks[i],
			Product:   products[i],
			Target:    c.TargetVolume,
			FlowRate:  c.FlowRate,
			Tolerance: tolerance / 100,
		})
	}

	if err := o.reserveTanks(op); err != nil {
		return Snapshot{}, err
	}

	o.logger.Info("blend operation planned",
		"operation_id", op.ID,
		"name", op.Name,
		"components", len(op.Components),
		"total_target", op.TotalTarget(),
	)
	o.emitState(op)

	// Preparing: open a dedicated connection per source tank and verify
	// the device answers before any product moves.
	op.setStatus(StatusPreparing)
	o.emitState(op)

	for _, comp := range op.Components {
		device, err := o.registry.Device(comp.Tank.DeviceID)
		if err != nil {
			cause := fmt.Errorf("%w: resolving device for tank %s: %w", ErrActuation, comp.Tank.ID, err)
			o.abortPreparation(op, cause)
			return Snapshot{}, cause
		}
		conn, err := o.connect(device)
		if err != nil {
			cause := fmt.Errorf("%w: dialing device for tank %s: %w", ErrActuation, comp.Tank.ID, err)
			o.abortPreparation(op, cause)
			return Snapshot{}, cause
		}
		comp.controller = NewFlowController(comp.Tank, conn)
		if err := comp.controller.Connect(); err != nil {
			o.abortPreparation(op, err)
			return Snapshot{}, err
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	op.cancel = cancel

	op.setStatus(StatusBlending)
	o.emitState(op)
	o.logger.Info("blend started", "operation_id", op.ID, "name", op.Name)

	op.wg.Add(1)
	go func() {
		defer op.wg.Done()
		o.run(runCtx, op)
	}()

	return op.Snapshot(), nil
}

// Operation returns a snapshot of the operation with the given ID.
func (o *Orchestrator) Operation(id string) (Snapshot, error) {
	o.mu.Lock()
	op, ok := o.active[id]
	o.mu.Unlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	return op.Snapshot(), nil
}

// Operations returns snapshots of every known operation, terminal included.
func (o *Orchestrator) Operations() []Snapshot {
	o.mu.Lock()
	ops := make([]*Operation, 0, len(o.active))
	for _, op := range o.active {
		ops = append(ops, op)
	}
	o.mu.Unlock()

	snaps := make([]Snapshot, 0, len(ops))
	for _, op := range ops {
		snaps = append(snaps, op.Snapshot())
	}
	return snaps
}

// StopBlend winds an operation down gracefully: flow loops exit, valves
// close, pumps zero, and the operation finishes in the stopped state.
// Stopping a terminal operation is a no-op.
func (o *Orchestrator) StopBlend(id string) error {
	o.mu.Lock()
	op, ok := o.active[id]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	op.stopOnce.Do(func() {
		o.logger.Info("blend stop requested", "operation_id", id)
		if op.cancel != nil {
			op.cancel()
		}
	})
	return nil
}

// EmergencyStop halts an operation immediately. Every flow controller is
// stopped in parallel with best effort: valves close and pumps zero even
// if some writes fail. Idempotent.
func (o *Orchestrator) EmergencyStop(id string) error {
	o.mu.Lock()
	op, ok := o.active[id]
	o.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	o.emergencyStop(op)
	return nil
}

// EmergencyStopAll halts every non-terminal operation.
func (o *Orchestrator) EmergencyStopAll() {
	o.mu.Lock()
	ops := make([]*Operation, 0, len(o.active))
	for _, op := range o.active {
		ops = append(ops, op)
	}
	o.mu.Unlock()

	for _, op := range ops {
		if !op.Status().Terminal() {
			o.emergencyStop(op)
		}
	}
}

// Shutdown stops all running operations and waits for them to finish, or
// until ctx expires.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	ops := make([]*Operation, 0, len(o.active))
	for _, op := range o.active {
		ops = append(ops, op)
	}
	o.mu.Unlock()

	for _, op := range ops {
		op.stopOnce.Do(func() {
			if op.cancel != nil {
				op.cancel()
			}
		})
	}

	done := make(chan struct{})
	go func() {
		for _, op := range ops {
			op.wg.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drives the blending and completing phases and settles the operation
// into its terminal state.
func (o *Orchestrator) run(ctx context.Context, op *Operation) {
	errCh := make(chan error, len(op.Components))
	var compWG sync.WaitGroup
	for _, comp := range op.Components {
		compWG.Add(1)
		go func(c *Component) {
			defer compWG.Done()
			errCh <- o.runComponent(ctx, c)
		}(comp)
	}
	go func() {
		compWG.Wait()
		close(errCh)
	}()

	monitorDone := make(chan struct{})
	go o.monitor(ctx, op, monitorDone)

	// Collect results as each stream exits. The first failure halts the
	// whole operation immediately: the other streams must not keep pumping
	// while one stream is in an unknown actuation state.
	var firstErr error
	for err := range errCh {
		if err != nil && firstErr == nil {
			firstErr = err
			o.stopControllers(op)
			op.stopOnce.Do(func() {
				if op.cancel != nil {
					op.cancel()
				}
			})
		}
	}
	close(monitorDone)

	switch {
	case firstErr != nil:
		// Streams were already halted by the collector above; record the
		// originating cause unless a stop got there first.
		if op.setFailure(firstErr) {
			o.logger.Error("blend failed", "operation_id", op.ID, "error", firstErr)
		}
	case ctx.Err() != nil:
		if op.setStatus(StatusStopped) {
			o.settleControllers(op)
			o.logger.Info("blend stopped", "operation_id", op.ID)
		}
	default:
		op.setStatus(StatusCompleting)
		o.emitState(op)
		o.settleControllers(op)
		op.setStatus(StatusCompleted)
		o.logger.Info("blend completed",
			"operation_id", op.ID,
			"transferred", op.Transferred(),
		)
	}

	o.closeControllers(op)
	o.releaseTanks(op)
	o.emitState(op)
	o.archiveOperation(op)
}

// runComponent is the control loop for a single source stream. Transferred
// volume integrates the measured flow rate over the measured time between
// reads, so actual elapsed time, not the nominal tick, decides the volume.
func (o *Orchestrator) runComponent(ctx context.Context, comp *Component) error {
	if err := comp.controller.OpenValve(); err != nil {
		return err
	}
	if err := comp.controller.SetPumpSpeed(comp.FlowRate); err != nil {
		return err
	}

	ticker := time.NewTicker(o.cfg.ControlInterval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			rate, err := comp.controller.ReadFlowRate()
			if err != nil {
				return err
			}
			elapsed := now.Sub(last)
			last = now

			if comp.accumulate(rate, elapsed) {
				if err := comp.controller.SetPumpSpeed(0); err != nil {
					return err
				}
				if err := comp.controller.CloseValve(); err != nil {
					return err
				}
				return nil
			}

			// Nudge the setpoint when the observed rate drifts outside
			// tolerance.
			if dev := rate - comp.FlowRate; dev > comp.FlowRate*comp.Tolerance || dev < -comp.FlowRate*comp.Tolerance {
				if err := comp.controller.AdjustFlowRate(comp.FlowRate); err != nil {
					return err
				}
			}
		}
	}
}

// monitor publishes progress snapshots until the run finishes.
func (o *Orchestrator) monitor(ctx context.Context, op *Operation, done <-chan struct{}) {
	ticker := time.NewTicker(o.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := op.Snapshot()
			for _, sink := range o.telemetry {
				sink.BlendProgress(snap)
			}
		}
	}
}

// emergencyStop drives op to the stopped state immediately.
func (o *Orchestrator) emergencyStop(op *Operation) {
	if !op.setStatus(StatusStopped) {
		return
	}
	o.logger.Warn("blend emergency stop", "operation_id", op.ID)
	o.stopControllers(op)
	op.stopOnce.Do(func() {
		if op.cancel != nil {
			op.cancel()
		}
	})
}

// stopControllers emergency-stops every controller in parallel.
func (o *Orchestrator) stopControllers(op *Operation) {
	var wg sync.WaitGroup
	for _, comp := range op.Components {
		if comp.controller == nil {
			continue
		}
		wg.Add(1)
		go func(c *Component) {
			defer wg.Done()
			if err := c.controller.EmergencyStop(); err != nil {
				o.logger.Error("emergency stop write failed",
					"operation_id", op.ID,
					"tank_id", c.Tank.ID,
					"error", err,
				)
			}
		}(comp)
	}
	wg.Wait()
}

// settleControllers closes valves and zeroes pumps on streams that have
// not already shut themselves down. Best effort.
func (o *Orchestrator) settleControllers(op *Operation) {
	for _, comp := range op.Components {
		fc := comp.controller
		if fc == nil || fc.Stopped() {
			continue
		}
		if fc.PumpSpeed() != 0 {
			if err := fc.SetPumpSpeed(0); err != nil {
				o.logger.Warn("zeroing pump failed",
					"operation_id", op.ID,
					"tank_id", comp.Tank.ID,
					"error", err,
				)
			}
		}
		if fc.ValveOpen() {
			if err := fc.CloseValve(); err != nil {
				o.logger.Warn("closing valve failed",
					"operation_id", op.ID,
					"tank_id", comp.Tank.ID,
					"error", err,
				)
			}
		}
	}
}

func (o *Orchestrator) closeControllers(op *Operation) {
	for _, comp := range op.Components {
		if comp.controller != nil {
			_ = comp.controller.Close()
		}
	}
}

// abortPreparation tears down a partially prepared operation.
func (o *Orchestrator) abortPreparation(op *Operation, cause error) {
	op.setFailure(cause)
	o.closeControllers(op)
	o.releaseTanks(op)
	o.emitState(op)
	o.archiveOperation(op)
	o.logger.Error("blend preparation failed", "operation_id", op.ID, "error", cause)
}

// reserveTanks registers op and claims its source and destination tanks.
func (o *Orchestrator) reserveTanks(op *Operation) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	claims := make([]string, 0, len(op.Components)+1)
	for _, comp := range op.Components {
		claims = append(claims, comp.Tank.ID)
	}
	claims = append(claims, op.DestTankID)

	for _, tankID := range claims {
		if holder, held := o.activeTanks[tankID]; held {
			return fmt.Errorf("%w: tank %s is held by operation %s", ErrTankInUse, tankID, holder)
		}
	}
	for _, tankID := range claims {
		o.activeTanks[tankID] = op.ID
	}
	o.active[op.ID] = op
	return nil
}

// releaseTanks frees op's tank claims. The operation itself stays in the
// active map so its terminal snapshot remains queryable.
func (o *Orchestrator) releaseTanks(op *Operation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for tankID, holder := range o.activeTanks {
		if holder == op.ID {
			delete(o.activeTanks, tankID)
		}
	}
}

func (o *Orchestrator) emitState(op *Operation) {
	snap := op.Snapshot()
	for _, sink := range o.events {
		sink.BlendStateChanged(snap)
	}
}

func (o *Orchestrator) archiveOperation(op *Operation) {
	if o.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.archive.SaveOperation(ctx, op.Snapshot()); err != nil {
		o.logger.Error("archiving blend failed", "operation_id", op.ID, "error", err)
	}
}
