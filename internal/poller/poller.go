package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/calder-systems/terminal-core/internal/fieldbus"
	"github.com/calder-systems/terminal-core/internal/plant"
)

// PollStatus describes the outcome of a device's most recent poll attempt.
type PollStatus string

// Poll status values.
const (
	// StatusOK means the last poll cycle completed without error.
	StatusOK PollStatus = "ok"

	// StatusTimeout means the last poll attempt timed out.
	StatusTimeout PollStatus = "timeout"

	// StatusProtocolError means the device answered with frames or
	// exception responses the core could not use.
	StatusProtocolError PollStatus = "protocol_error"

	// StatusDisconnected means the transport is down.
	StatusDisconnected PollStatus = "disconnected"
)

// Change is one register value update, delivered to subscribers after a
// poll cycle.
type Change struct {
	DeviceID string    `json:"device_id"`
	Address  uint16    `json:"address"`
	Value    float64   `json:"value"`
	ReadAt   time.Time `json:"read_at"`
}

// Health is a poll-health snapshot for one device.
type Health struct {
	DeviceID     string     `json:"device_id"`
	Status       PollStatus `json:"status"`
	LastPollTime time.Time  `json:"last_poll_time"`
}

// Subscriber receives register change notifications.
//
// Implementations must not block: they are invoked synchronously at the end
// of each poll cycle. Queue or drop internally if delivery is slow.
type Subscriber interface {
	RegisterChanged(changes []Change)
}

// HealthSink receives poll-health snapshots.
type HealthSink interface {
	PollHealth(h Health)
}

// Logger defines the logging interface used by the poller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Default timing parameters.
const (
	// defaultTick is the scheduler granularity. Registers become due on
	// their own intervals; the tick only bounds detection latency.
	defaultTick = 100 * time.Millisecond

	// defaultBackoff delays the next attempt after a device I/O failure.
	defaultBackoff = 5 * time.Second
)

// Config holds poller timing parameters.
type Config struct {
	// Tick is the scheduler tick. Default: 100ms.
	Tick time.Duration

	// Backoff is the fixed delay after a failed poll cycle. Default: 5s.
	Backoff time.Duration
}

// Poller continuously polls one device's enabled registers into the cache.
//
// The poller exclusively owns its Conn: the connection is opened inside the
// poll goroutine and closed deterministically on shutdown or fatal error.
type Poller struct {
	device plant.Device
	conn   fieldbus.Conn
	sched  *schedule
	cache  *Cache
	cfg    Config

	subscribers []Subscriber
	healthSinks []HealthSink

	// Mutable status, read by Status() from other goroutines.
	mu           sync.RWMutex
	lastPollTime time.Time
	lastStatus   PollStatus
	connected    bool

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// New creates a poller for one device.
//
// Parameters:
//   - device: The device definition (identity, transport)
//   - regs: The device's register map (disabled registers are skipped)
//   - conn: The device connection; ownership transfers to the poller
//   - cache: The shared register cache to upsert into
//   - cfg: Timing parameters (zero values take defaults)
//
// Returns:
//   - *Poller: Ready to Start
func New(device plant.Device, regs []plant.Register, conn fieldbus.Conn, cache *Cache, cfg Config) *Poller {
	if cfg.Tick <= 0 {
		cfg.Tick = defaultTick
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	return &Poller{
		device:     device,
		conn:       conn,
		sched:      newSchedule(regs, time.Now()),
		cache:      cache,
		cfg:        cfg,
		lastStatus: StatusDisconnected,
		done:       make(chan struct{}),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for this poller.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

// Subscribe registers a change subscriber. Must be called before Start.
func (p *Poller) Subscribe(s Subscriber) {
	p.subscribers = append(p.subscribers, s)
}

// SubscribeHealth registers a health sink. Must be called before Start.
func (p *Poller) SubscribeHealth(s HealthSink) {
	p.healthSinks = append(p.healthSinks, s)
}

// Start launches the poll goroutine. Call Stop to shut down.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.run(ctx)
}

// Stop shuts the poller down and closes its connection.
// Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

// Status returns the device's current poll health.
func (p *Poller) Status() Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Health{
		DeviceID:     p.device.ID,
		Status:       p.lastStatus,
		LastPollTime: p.lastPollTime,
	}
}

// run is the poll loop. It owns the connection for its whole lifetime and
// closes it on every exit path.
func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()
	defer p.closeConn()

	if p.sched.empty() {
		p.logger.Warn("poller has no enabled registers", "device_id", p.device.ID)
		return
	}

	ticker := time.NewTicker(p.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
		}

		now := time.Now()
		due := p.sched.due(now)
		if len(due) == 0 {
			continue
		}

		if err := p.ensureConnected(); err != nil {
			p.recordFailure(err, now)
			p.backoff(ctx)
			continue
		}

		changes, err := p.pollCycle(due, now)
		if len(changes) > 0 {
			p.notify(changes)
		}
		if err != nil {
			p.recordFailure(err, now)
			p.backoff(ctx)
			continue
		}
		p.recordSuccess(now)
	}
}

// pollCycle executes one pass over the due registers. Batches that succeed
// before an error still land in the cache; the error aborts the remainder
// of the cycle so the whole device backs off together.
func (p *Poller) pollCycle(due []plant.Register, now time.Time) ([]Change, error) {
	var changes []Change

	for _, b := range coalesce(due) {
		batchChanges, err := p.readBatch(b, now)
		changes = append(changes, batchChanges...)
		if err != nil {
			return changes, err
		}
	}
	return changes, nil
}

// readBatch reads one coalesced batch, decodes and caches each register.
func (p *Poller) readBatch(b batch, now time.Time) ([]Change, error) {
	if b.class.Bit() {
		return p.readBit(b.regs[0], now)
	}

	var (
		words []uint16
		err   error
	)
	switch b.class {
	case plant.ClassInput:
		words, err = p.conn.ReadInputBlock(b.start, b.words)
	case plant.ClassHolding:
		words, err = p.conn.ReadBlock(b.start, b.words)
	default:
		return nil, fmt.Errorf("%w: class %q is not block-readable", fieldbus.ErrProtocolMismatch, b.class)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s block %d+%d: %w", b.class, b.start, b.words, err)
	}

	changes := make([]Change, 0, len(b.regs))
	offset := 0
	for _, reg := range b.regs {
		width := reg.Encoding.WordCount()
		raw, decodeErr := fieldbus.Decode(words[offset:offset+width], reg.Encoding)
		offset += width
		if decodeErr != nil {
			// Codec errors are configuration faults: log and skip the
			// register rather than backing off the whole device.
			p.logger.Error("register decode failed",
				"device_id", reg.DeviceID,
				"address", reg.Address,
				"error", decodeErr,
			)
			continue
		}

		value := raw * reg.Scale
		entry := Entry{DeviceID: reg.DeviceID, Address: reg.Address, Value: value, ReadAt: now}
		p.cache.Put(entry)
		p.sched.markRead(reg.Address, now)
		changes = append(changes, Change(entry))
	}
	return changes, nil
}

// readBit reads a single coil or discrete input.
func (p *Poller) readBit(reg plant.Register, now time.Time) ([]Change, error) {
	var (
		bit bool
		err error
	)
	if reg.Class == plant.ClassCoil {
		bit, err = p.conn.ReadBit(reg.Address)
	} else {
		bit, err = p.conn.ReadDiscreteBit(reg.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s %d: %w", reg.Class, reg.Address, err)
	}

	value := 0.0
	if bit {
		value = 1.0
	}
	entry := Entry{DeviceID: reg.DeviceID, Address: reg.Address, Value: value, ReadAt: now}
	p.cache.Put(entry)
	p.sched.markRead(reg.Address, now)
	return []Change{Change(entry)}, nil
}

// ensureConnected opens the connection if it is not already open.
func (p *Poller) ensureConnected() error {
	p.mu.RLock()
	connected := p.connected
	p.mu.RUnlock()
	if connected {
		return nil
	}

	if err := p.conn.Connect(); err != nil {
		return err
	}

	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()

	p.logger.Info("device connected",
		"device_id", p.device.ID,
		"address", p.device.Address,
	)
	return nil
}

// closeConn closes the connection if open. Called on every run exit path.
func (p *Poller) closeConn() {
	p.mu.Lock()
	wasConnected := p.connected
	p.connected = false
	p.mu.Unlock()

	if err := p.conn.Close(); err != nil && wasConnected {
		p.logger.Warn("error closing device connection",
			"device_id", p.device.ID,
			"error", err,
		)
	}
}

// recordSuccess updates status after a clean poll cycle.
func (p *Poller) recordSuccess(now time.Time) {
	p.setStatus(StatusOK, now)
}

// recordFailure classifies the error, updates status, and drops the
// connection so the next cycle redials. Cached values are retained.
func (p *Poller) recordFailure(err error, now time.Time) {
	status := StatusDisconnected
	switch {
	case errors.Is(err, fieldbus.ErrTimeout):
		status = StatusTimeout
	case errors.Is(err, fieldbus.ErrDeviceNAK), errors.Is(err, fieldbus.ErrProtocolMismatch):
		status = StatusProtocolError
	}

	p.logger.Warn("poll cycle failed",
		"device_id", p.device.ID,
		"status", status,
		"error", err,
	)

	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	// Close and redial next cycle; half-dead connections are worthless.
	_ = p.conn.Close()

	p.setStatus(status, now)
}

// setStatus records the poll outcome and publishes a health snapshot.
func (p *Poller) setStatus(status PollStatus, now time.Time) {
	p.mu.Lock()
	p.lastStatus = status
	p.lastPollTime = now
	p.mu.Unlock()

	h := Health{DeviceID: p.device.ID, Status: status, LastPollTime: now}
	for _, sink := range p.healthSinks {
		sink.PollHealth(h)
	}
}

// notify delivers changes to all subscribers.
func (p *Poller) notify(changes []Change) {
	for _, s := range p.subscribers {
		s.RegisterChanged(changes)
	}
}

// backoff sleeps for the configured backoff, returning early on shutdown.
func (p *Poller) backoff(ctx context.Context) {
	select {
	case <-time.After(p.cfg.Backoff):
	case <-ctx.Done():
	case <-p.done:
	}
}
